package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
)

type registrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) (bool, error)
	FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.RegistrationDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
}

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type registrantReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RegistrationService handles individual event registration and passes.
type RegistrationService struct {
	regs      registrationRepository
	events    eventReader
	users     registrantReader
	signer    *qr.Signer
	notify    notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(regs registrationRepository, events eventReader, users registrantReader, signer *qr.Signer, notify notifier, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{regs: regs, events: events, users: users, signer: signer, notify: notify, validator: validate, logger: logger}
}

// Register signs a student up for an individual event and issues the QR
// pass. Duplicate attempts, including concurrent ones, resolve to the
// already-registered error.
func (s *RegistrationService) Register(ctx context.Context, eventID, studentID string, studentRole models.UserRole) (*models.RegistrationDetail, error) {
	event, err := s.loadOpenEvent(ctx, eventID, studentRole)
	if err != nil {
		return nil, err
	}
	if event.IsTeamEvent {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "team events are joined by creating or joining a team")
	}

	reg := &models.Registration{
		ID:        uuid.NewString(),
		EventID:   event.ID,
		StudentID: studentID,
	}
	code, err := s.signer.Encode(qr.Payload{RegistrationID: reg.ID, EventID: event.ID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue pass")
	}
	reg.QRCode = code

	inserted, err := s.regs.Create(ctx, reg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	}

	if student, err := s.users.FindByID(ctx, studentID); err == nil {
		s.notify.Notify(student.Email,
			fmt.Sprintf("Registered: %s", event.Title),
			fmt.Sprintf("You are registered for %q on %s. Present your QR pass at the venue.", event.Title, event.StartsAt.Format("02 Jan 2006 15:04")),
		)
	} else {
		s.logger.Warn("failed to load student for confirmation", zap.String("student_id", studentID), zap.Error(err))
	}

	return s.detail(ctx, reg.ID)
}

// MyRegistrations returns the student's registrations with attendance and
// team context.
func (s *RegistrationService) MyRegistrations(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	regs, err := s.regs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

// EventParticipants returns the participant list for the organizer.
func (s *RegistrationService) EventParticipants(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) ([]models.RegistrationDetail, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may view participants")
	}
	regs, err := s.regs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}
	return regs, nil
}

// loadOpenEvent checks that the event accepts registrations from this
// caller: approved, not yet started and visible to the caller's role.
func (s *RegistrationService) loadOpenEvent(ctx context.Context, eventID string, role models.UserRole) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event.Status != models.EventStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrEventNotOpen, "event is not approved")
	}
	if !time.Now().UTC().Before(event.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrEventNotOpen, "registration closed when the event started")
	}
	if event.CampusExclusive && role == models.RoleGuest {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "campus-exclusive events are closed to guests")
	}
	return event, nil
}

func (s *RegistrationService) detail(ctx context.Context, regID string) (*models.RegistrationDetail, error) {
	detail, err := s.regs.FindDetailByID(ctx, regID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration detail")
	}
	return detail, nil
}
