package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type feedbackRepository interface {
	Upsert(ctx context.Context, fb *models.Feedback) error
	ListByEvent(ctx context.Context, eventID string) ([]models.FeedbackDetail, error)
	Summary(ctx context.Context, eventID string) (*models.FeedbackSummary, error)
}

// SubmitFeedbackRequest carries one rating with optional comments.
type SubmitFeedbackRequest struct {
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comments string `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

// FeedbackService gathers post-event ratings from attendees.
type FeedbackService struct {
	feedback   feedbackRepository
	regs       teamMembershipReader
	attendance attendanceReader
	events     eventReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewFeedbackService constructs FeedbackService.
func NewFeedbackService(feedback feedbackRepository, regs teamMembershipReader, attendance attendanceReader, events eventReader, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{feedback: feedback, regs: regs, attendance: attendance, events: events, validator: validate, logger: logger}
}

// Submit stores the student's rating. Only attendees of an ended event
// may rate it; re-submission overwrites the previous rating.
func (s *FeedbackService) Submit(ctx context.Context, eventID, studentID string, req SubmitFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if time.Now().UTC().Before(event.EndsAt) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "feedback opens after the event ends")
	}

	reg, err := s.regs.FindByEventAndStudent(ctx, eventID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only registered attendees may submit feedback")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	att, err := s.attendance.FindByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if att == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only attendees may submit feedback")
	}

	fb := &models.Feedback{EventID: eventID, StudentID: studentID, Rating: req.Rating}
	if req.Comments != "" {
		fb.Comments = &req.Comments
	}
	if err := s.feedback.Upsert(ctx, fb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save feedback")
	}
	return fb, nil
}

// EventFeedback returns the event's feedback entries and summary for its
// organizer.
func (s *FeedbackService) EventFeedback(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) ([]models.FeedbackDetail, *models.FeedbackSummary, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may view feedback")
	}

	entries, err := s.feedback.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	summary, err := s.feedback.Summary(ctx, eventID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise feedback")
	}
	return entries, summary, nil
}
