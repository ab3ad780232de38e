package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	BaseURL   string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	SMTP       SMTPConfig
	Storage    StorageConfig
	QR         QRConfig
	Attendance AttendanceConfig
	Templates  TemplatesConfig
	Events     EventsConfig
	Notify     NotifyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SMTPConfig configures the outbound notification mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

// StorageConfig controls where uploaded and generated artifacts live.
type StorageConfig struct {
	UploadDir      string
	CertificateDir string
	TemplateDir    string
	PosterDir      string
	MaxUploadBytes int64
	AllowedImgExts []string
}

// QRConfig holds the secret used to sign registration QR payloads.
type QRConfig struct {
	Secret string
}

// AttendanceConfig tunes the scan acceptance window.
type AttendanceConfig struct {
	GracePeriod time.Duration
}

// TemplatesConfig caps certificate template uploads per organizer.
type TemplatesConfig struct {
	MaxPerOrganizer int
}

// EventsConfig governs the cached approved-event listing.
type EventsConfig struct {
	CacheTTL time.Duration
}

// NotifyConfig tunes the background notification dispatcher.
type NotifyConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BaseURL = v.GetString("APP_BASE_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
		Enabled:  v.GetBool("SMTP_ENABLED"),
	}

	maxUpload := v.GetInt64("STORAGE_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		UploadDir:      v.GetString("STORAGE_UPLOAD_DIR"),
		CertificateDir: v.GetString("STORAGE_CERTIFICATE_DIR"),
		TemplateDir:    v.GetString("STORAGE_TEMPLATE_DIR"),
		PosterDir:      v.GetString("STORAGE_POSTER_DIR"),
		MaxUploadBytes: maxUpload,
		AllowedImgExts: splitAndTrim(v.GetString("STORAGE_ALLOWED_IMAGE_EXTS")),
	}

	cfg.QR = QRConfig{Secret: v.GetString("QR_SECRET")}

	cfg.Attendance = AttendanceConfig{
		GracePeriod: parseDuration(v.GetString("ATTENDANCE_GRACE_PERIOD"), 72*time.Hour),
	}

	maxTemplates := v.GetInt("TEMPLATES_MAX_PER_ORGANIZER")
	if maxTemplates <= 0 {
		maxTemplates = 10
	}
	cfg.Templates = TemplatesConfig{MaxPerOrganizer: maxTemplates}

	cfg.Events = EventsConfig{
		CacheTTL: parseDuration(v.GetString("EVENTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Notify = NotifyConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campusconnect")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "campusconnect")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "noreply@campusconnect.local")
	v.SetDefault("SMTP_ENABLED", false)

	v.SetDefault("STORAGE_UPLOAD_DIR", "./uploads")
	v.SetDefault("STORAGE_CERTIFICATE_DIR", "certificates")
	v.SetDefault("STORAGE_TEMPLATE_DIR", "certificates/templates")
	v.SetDefault("STORAGE_POSTER_DIR", "events")
	v.SetDefault("STORAGE_MAX_UPLOAD_BYTES", 5*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_IMAGE_EXTS", ".jpg,.jpeg,.png,.webp")

	v.SetDefault("QR_SECRET", "dev_qr_secret")
	v.SetDefault("ATTENDANCE_GRACE_PERIOD", "72h")
	v.SetDefault("TEMPLATES_MAX_PER_ORGANIZER", 10)
	v.SetDefault("EVENTS_CACHE_TTL", "5m")

	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
