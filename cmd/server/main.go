package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/muhammed-ajmal-puthanpura/campusconnect/api/swagger"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/handler"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/middleware"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/repository"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/cache"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/certificate"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/config"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/database"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/jobs"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/logger"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/mailer"
	corsmiddleware "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/middleware/cors"
	reqidmiddleware "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/middleware/requestid"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/storage"
)

// @title CampusConnect API
// @version 1.0.0
// @description Campus event lifecycle platform: approvals, registrations, QR attendance and certificates
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	files, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender := mailer.NewSMTPMailer(cfg.SMTP, logr)
	notifications := service.NewNotificationService(sender, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	userRepo := repository.NewUserRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	eventRepo := repository.NewEventRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	signer := qr.NewSigner(cfg.QR.Secret)
	renderer := certificate.NewRenderer()
	metrics := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	venueService := service.NewVenueService(venueRepo, logr)
	approvalService := service.NewApprovalService(approvalRepo, eventRepo, userRepo, venueRepo, notifications, cacheRepo, nil, logr)
	eventService := service.NewEventService(eventRepo, venueRepo, approvalService, cacheRepo, files, metrics, service.EventServiceConfig{
		CacheTTL:       cfg.Events.CacheTTL,
		PosterDir:      cfg.Storage.PosterDir,
		AllowedImgExts: cfg.Storage.AllowedImgExts,
	}, nil, logr)
	registrationService := service.NewRegistrationService(registrationRepo, eventRepo, userRepo, signer, notifications, nil, logr)
	teamService := service.NewTeamService(teamRepo, registrationRepo, eventRepo, userRepo, signer, notifications, nil, logr)
	templateService := service.NewTemplateService(templateRepo, files, service.TemplateServiceConfig{
		MaxPerOrganizer: cfg.Templates.MaxPerOrganizer,
		TemplateDir:     cfg.Storage.TemplateDir,
	}, nil, logr)
	certificateService := service.NewCertificateService(certificateRepo, registrationRepo, teamRepo, templateRepo, attendanceRepo, eventRepo, userRepo, renderer, files, cfg.Storage.CertificateDir, nil, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, registrationRepo, eventRepo, signer, certificateService, cfg.Attendance.GracePeriod, logr)
	feedbackService := service.NewFeedbackService(feedbackRepo, registrationRepo, attendanceRepo, eventRepo, nil, logr)

	authHandler := handler.NewAuthHandler(authService)
	venueHandler := handler.NewVenueHandler(venueService)
	eventHandler := handler.NewEventHandler(eventService)
	approvalHandler := handler.NewApprovalHandler(approvalService)
	registrationHandler := handler.NewRegistrationHandler(registrationService)
	teamHandler := handler.NewTeamHandler(teamService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, metrics)
	certificateHandler := handler.NewCertificateHandler(certificateService, metrics)
	templateHandler := handler.NewTemplateHandler(templateService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	api.GET("/venues", venueHandler.Venues)
	api.GET("/departments", venueHandler.Departments)

	events := api.Group("/events")
	{
		events.GET("", middleware.OptionalJWT(authService), eventHandler.List)
		events.GET("/:id", middleware.OptionalJWT(authService), eventHandler.Get)
		events.GET("/:id/teams", teamHandler.EventTeams)

		organizer := events.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin))
		{
			organizer.POST("", eventHandler.Create)
			organizer.PUT("/:id", eventHandler.Update)
			organizer.DELETE("/:id", eventHandler.Delete)
			organizer.POST("/:id/poster", eventHandler.UploadPoster)
			organizer.GET("/:id/stats", eventHandler.Stats)
			organizer.GET("/:id/participants", registrationHandler.Participants)
			organizer.POST("/:id/attendance", attendanceHandler.MarkManual)
			organizer.POST("/:id/attendance/scan", attendanceHandler.Scan)
			organizer.POST("/:id/attendance/bulk", attendanceHandler.BulkUpload)
		}

		authed := events.Group("", middleware.JWT(authService))
		{
			authed.GET("/:id/approvals", approvalHandler.ListForEvent)
			authed.POST("/:id/register", registrationHandler.Register)
			authed.POST("/:id/teams", teamHandler.Create)
			authed.POST("/:id/certificate", certificateHandler.Generate)
			authed.POST("/:id/feedback", feedbackHandler.Submit)
			authed.GET("/:id/feedback", feedbackHandler.EventFeedback)
		}
	}

	approvals := api.Group("/approvals", middleware.JWT(authService), middleware.RequireRoles(models.RoleHOD, models.RolePrincipal, models.RoleAdmin))
	{
		approvals.GET("/pending", approvalHandler.Pending)
		approvals.PUT("/:id/decide", approvalHandler.Decide)
	}

	registrations := api.Group("/registrations", middleware.JWT(authService))
	{
		registrations.GET("/mine", registrationHandler.Mine)
		registrations.PUT("/:id/prize", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), certificateHandler.AssignRegistrationPrize)
		registrations.DELETE("/:id/prize", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), certificateHandler.ClearRegistrationPrize)
	}

	teams := api.Group("/teams", middleware.JWT(authService))
	{
		teams.POST("/:id/invitations", teamHandler.Invite)
		teams.PUT("/:id/prize", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), certificateHandler.AssignTeamPrize)
		teams.DELETE("/:id/prize", middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin), certificateHandler.ClearTeamPrize)
	}

	invitations := api.Group("/invitations", middleware.JWT(authService))
	{
		invitations.GET("/mine", teamHandler.MyInvitations)
		invitations.PUT("/:id/respond", teamHandler.Respond)
	}

	certificates := api.Group("/certificates", middleware.JWT(authService))
	{
		certificates.GET("/mine", certificateHandler.Mine)
		certificates.GET("/:id/download", certificateHandler.Download)
	}

	templates := api.Group("/templates", middleware.JWT(authService), middleware.RequireRoles(models.RoleOrganizer, models.RoleAdmin))
	{
		templates.POST("", templateHandler.Upload)
		templates.GET("", templateHandler.List)
		templates.PUT("/:id/default", templateHandler.SetDefault)
		templates.PUT("/:id/positions", templateHandler.SavePositions)
		templates.DELETE("/:id", templateHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
