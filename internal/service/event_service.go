package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error)
	FindConflict(ctx context.Context, venueID string, startsAt, endsAt time.Time, excludeID string) (*models.Event, error)
	UpdatePoster(ctx context.Context, id, posterPath string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, eventID string) (*models.EventStats, error)
}

type approvalStarter interface {
	StartWorkflow(ctx context.Context, event *models.Event, remarks *string) error
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type posterStore interface {
	Save(filename string, data []byte) (string, error)
}

// CreateEventRequest describes event creation payload.
type CreateEventRequest struct {
	Title           string    `json:"title" validate:"required,min=3"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required"`
	Mode            string    `json:"mode" validate:"required,oneof=offline online"`
	VenueID         string    `json:"venue_id,omitempty"`
	DepartmentID    string    `json:"department_id,omitempty"`
	MeetingURL      string    `json:"meeting_url,omitempty" validate:"omitempty,url"`
	TemplateID      string    `json:"certificate_template_id,omitempty"`
	IsTeamEvent     bool      `json:"is_team_event"`
	MinTeamSize     int       `json:"min_team_size" validate:"gte=0"`
	MaxTeamSize     int       `json:"max_team_size" validate:"gte=0"`
	CampusExclusive bool      `json:"campus_exclusive"`
	HasPrizes       bool      `json:"has_prizes"`
	DutyLeave       bool      `json:"duty_leave"`
}

// UpdateEventRequest reuses the creation payload; edits to schedule, venue
// or mode restart the approval workflow.
type UpdateEventRequest = CreateEventRequest

// EventServiceConfig tunes listing cache behaviour and poster uploads.
type EventServiceConfig struct {
	CacheTTL       time.Duration
	PosterDir      string
	AllowedImgExts []string
}

// EventService orchestrates the event lifecycle.
type EventService struct {
	events    eventRepository
	venues    venueReader
	workflow  approvalStarter
	cache     listingCache
	posters   posterStore
	metrics   *MetricsService
	config    EventServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs EventService.
func NewEventService(events eventRepository, venues venueReader, workflow approvalStarter, cache listingCache, posters posterStore, metrics *MetricsService, config EventServiceConfig, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.PosterDir == "" {
		config.PosterDir = "events"
	}
	return &EventService{events: events, venues: venues, workflow: workflow, cache: cache, posters: posters, metrics: metrics, config: config, validator: validate, logger: logger}
}

// Create validates the proposal, reserves the venue slot and starts the
// approval workflow. The event is born pending and stays invisible to
// students until approved.
func (s *EventService) Create(ctx context.Context, organizerID string, req CreateEventRequest) (*models.EventDetail, error) {
	event, err := s.buildEvent(ctx, req, "")
	if err != nil {
		return nil, err
	}
	event.OrganizerID = organizerID
	event.Status = models.EventStatusPending
	event.ScanToken = uuid.NewString()

	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	if err := s.workflow.StartWorkflow(ctx, event, nil); err != nil {
		if delErr := s.events.Delete(ctx, event.ID); delErr != nil {
			s.logger.Error("failed to roll back event after workflow error", zap.String("event_id", event.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.invalidateListings(ctx)
	return s.detail(ctx, event.ID)
}

// Update edits an event. Changes to schedule, venue, mode, meeting URL or
// department are material: they reset the status to pending and restart the
// approval cycle with a re-submission remark.
func (s *EventService) Update(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole, req UpdateEventRequest) (*models.EventDetail, error) {
	current, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && current.OrganizerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may edit this event")
	}

	updated, err := s.buildEvent(ctx, req, eventID)
	if err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.OrganizerID = current.OrganizerID
	updated.ScanToken = current.ScanToken
	updated.PosterPath = current.PosterPath
	updated.CreatedAt = current.CreatedAt
	updated.Status = current.Status

	material := materialChange(current, updated)
	if material {
		updated.Status = models.EventStatusPending
	}

	if err := s.events.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}

	if material {
		remark := "re-submitted after event edit"
		if err := s.workflow.StartWorkflow(ctx, updated, &remark); err != nil {
			return nil, err
		}
	}

	s.invalidateListings(ctx)
	return s.detail(ctx, updated.ID)
}

// Delete removes an event and everything hanging off it.
func (s *EventService) Delete(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the organizer may delete this event")
	}
	if err := s.events.Delete(ctx, eventID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.invalidateListings(ctx)
	return nil
}

// Get returns one event with joined context.
func (s *EventService) Get(ctx context.Context, eventID string) (*models.EventDetail, error) {
	return s.detail(ctx, eventID)
}

// List returns events matching the filter. Approved listings, the hottest
// read path, are served from the cache.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, *models.Pagination, error) {
	type cachedListing struct {
		Events     []models.EventDetail `json:"events"`
		Pagination models.Pagination    `json:"pagination"`
	}

	cacheable := filter.Status == models.EventStatusApproved && s.cache != nil
	key := listingCacheKey(filter)

	if cacheable {
		start := time.Now()
		var cached cachedListing
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached.Events, &cached.Pagination, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("event listing cache read failed", zap.Error(err))
		}
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if cacheable {
		start := time.Now()
		if err := s.cache.Set(ctx, key, cachedListing{Events: events, Pagination: *pagination}, s.config.CacheTTL); err != nil {
			s.logger.Warn("event listing cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}

	return events, pagination, nil
}

// Stats returns organizer dashboard counters for one event.
func (s *EventService) Stats(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) (*models.EventStats, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may view event stats")
	}
	stats, err := s.events.Stats(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event stats")
	}
	return stats, nil
}

// UploadPoster stores the event poster image and records its path.
func (s *EventService) UploadPoster(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole, filename string, data []byte) (string, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only the organizer may upload the poster")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowedExt(ext) {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported poster type %s", ext))
	}

	path := filepath.Join(s.config.PosterDir, eventID+ext)
	stored, err := s.posters.Save(path, data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store poster")
	}
	if err := s.events.UpdatePoster(ctx, eventID, stored); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record poster path")
	}
	s.invalidateListings(ctx)
	return stored, nil
}

func (s *EventService) buildEvent(ctx context.Context, req CreateEventRequest, excludeID string) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must end after it starts")
	}

	mode := models.EventMode(req.Mode)
	event := &models.Event{
		Title:           req.Title,
		Description:     req.Description,
		StartsAt:        req.StartsAt.UTC(),
		EndsAt:          req.EndsAt.UTC(),
		Mode:            mode,
		IsTeamEvent:     req.IsTeamEvent,
		MinTeamSize:     req.MinTeamSize,
		MaxTeamSize:     req.MaxTeamSize,
		CampusExclusive: req.CampusExclusive,
		HasPrizes:       req.HasPrizes,
		DutyLeave:       req.DutyLeave,
	}
	if req.DepartmentID != "" {
		event.DepartmentID = &req.DepartmentID
	}
	if req.TemplateID != "" {
		event.TemplateID = &req.TemplateID
	}

	if req.IsTeamEvent {
		if req.MinTeamSize < 1 || req.MaxTeamSize < req.MinTeamSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, "team size bounds are invalid")
		}
	}

	switch mode {
	case models.EventModeOffline:
		if req.VenueID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "offline events require a venue")
		}
		if _, err := s.venues.FindByID(ctx, req.VenueID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
		}
		conflict, err := s.events.FindConflict(ctx, req.VenueID, event.StartsAt, event.EndsAt, excludeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check venue availability")
		}
		if conflict != nil {
			return nil, appErrors.Clone(appErrors.ErrVenueConflict, fmt.Sprintf("venue is already booked by %q for that time", conflict.Title))
		}
		event.VenueID = &req.VenueID
	case models.EventModeOnline:
		if req.MeetingURL == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "online events require a meeting URL")
		}
		event.MeetingURL = &req.MeetingURL
	}

	return event, nil
}

func (s *EventService) detail(ctx context.Context, eventID string) (*models.EventDetail, error) {
	detail, err := s.events.FindDetailByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event detail")
	}
	return detail, nil
}

func (s *EventService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "events:list:*"); err != nil {
		s.logger.Warn("failed to invalidate event listing cache", zap.Error(err))
	}
}

func (s *EventService) allowedExt(ext string) bool {
	if len(s.config.AllowedImgExts) == 0 {
		return ext == ".jpg" || ext == ".jpeg" || ext == ".png"
	}
	for _, allowed := range s.config.AllowedImgExts {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// materialChange reports whether the edit touches fields approvers signed
// off on: schedule, mode, venue, meeting URL and the governing department.
func materialChange(current, updated *models.Event) bool {
	if !current.StartsAt.Equal(updated.StartsAt) || !current.EndsAt.Equal(updated.EndsAt) {
		return true
	}
	if current.Mode != updated.Mode {
		return true
	}
	if derefOrEmpty(current.VenueID) != derefOrEmpty(updated.VenueID) {
		return true
	}
	if derefOrEmpty(current.MeetingURL) != derefOrEmpty(updated.MeetingURL) {
		return true
	}
	return derefOrEmpty(current.DepartmentID) != derefOrEmpty(updated.DepartmentID)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func listingCacheKey(filter models.EventFilter) string {
	from, to := "", ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		to = filter.To.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("events:list:%s:%s:%s:%s:%s:%t:%d:%d:%s:%s",
		filter.Status, filter.DepartmentID, filter.OrganizerID, from, to,
		filter.ExcludeCampus, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}
