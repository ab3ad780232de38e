package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type approvalRepository interface {
	ReplaceForEvent(ctx context.Context, eventID string, approvals []models.Approval) error
	FindByID(ctx context.Context, id string) (*models.Approval, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Approval, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]models.ApprovalDetail, error)
	Decide(ctx context.Context, id, approverID string, status models.ApprovalStatus, remarks *string) (bool, error)
}

type approvalEventStore interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	UpdateStatus(ctx context.Context, id string, status models.EventStatus) error
}

type approverDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindApprover(ctx context.Context, role models.UserRole, departmentID *string) (*models.User, error)
}

type venueReader interface {
	FindByID(ctx context.Context, id string) (*models.Venue, error)
}

type notifier interface {
	Notify(recipient, subject, body string)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DecideApprovalRequest carries an approver's verdict.
type DecideApprovalRequest struct {
	Approve bool    `json:"approve"`
	Remarks *string `json:"remarks,omitempty"`
}

// ApprovalService runs the multi-stage event approval workflow.
type ApprovalService struct {
	approvals approvalRepository
	events    approvalEventStore
	users     approverDirectory
	venues    venueReader
	notify    notifier
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs ApprovalService.
func NewApprovalService(approvals approvalRepository, events approvalEventStore, users approverDirectory, venues venueReader, notify notifier, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{approvals: approvals, events: events, users: users, venues: venues, notify: notify, cache: cache, validator: validate, logger: logger}
}

// StartWorkflow installs a fresh approval cycle for the event. The HOD gate
// applies when a head of department resolves for the governing department;
// a Principal gate always applies and its absence blocks the event.
func (s *ApprovalService) StartWorkflow(ctx context.Context, event *models.Event, remarks *string) error {
	deptID, err := s.governingDepartment(ctx, event)
	if err != nil {
		return err
	}

	var approvals []models.Approval

	if deptID != nil {
		hod, err := s.users.FindApprover(ctx, models.RoleHOD, deptID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department head")
		}
		if hod != nil {
			approvals = append(approvals, models.Approval{
				ApproverID: hod.ID,
				Role:       models.ApprovalRoleHOD,
				Remarks:    remarks,
			})
		}
	}

	principal, err := s.users.FindApprover(ctx, models.RolePrincipal, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve principal")
	}
	if principal == nil {
		return appErrors.Clone(appErrors.ErrNoApprover, "no principal account is configured to approve events")
	}
	approvals = append(approvals, models.Approval{
		ApproverID: principal.ID,
		Role:       models.ApprovalRolePrincipal,
		Remarks:    remarks,
	})

	if err := s.approvals.ReplaceForEvent(ctx, event.ID, approvals); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval tasks")
	}

	// Gates decide in order, so only the first one is asked now; each
	// later gate is notified once the one before it approves.
	s.notifyApprover(ctx, approvals[0].ApproverID, event)

	return nil
}

// Decide records the approver's verdict and recomputes the event status.
// Any rejection rejects the event; the event goes live only once every
// gate has approved.
func (s *ApprovalService) Decide(ctx context.Context, approverID, approvalID string, req DecideApprovalRequest) (*models.Event, error) {
	approval, err := s.approvals.FindByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	if approval.ApproverID != approverID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "approval is assigned to another approver")
	}

	status := models.ApprovalStatusApproved
	if !req.Approve {
		status = models.ApprovalStatusRejected
	}

	decided, err := s.approvals.Decide(ctx, approvalID, approverID, status, req.Remarks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if !decided {
		return nil, appErrors.Clone(appErrors.ErrConflict, "approval has already been decided")
	}

	event, err := s.events.FindByID(ctx, approval.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	newStatus, err := s.recomputeEventStatus(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	if newStatus != event.Status {
		if err := s.events.UpdateStatus(ctx, event.ID, newStatus); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event status")
		}
		event.Status = newStatus
		if err := s.cache.DeleteByPattern(ctx, "events:list:*"); err != nil {
			s.logger.Warn("failed to invalidate event listing cache", zap.Error(err))
		}
		s.notifyOrganizer(ctx, event, req.Remarks)
	} else if req.Approve && newStatus == models.EventStatusPending {
		s.notifyNextApprover(ctx, event)
	}

	return event, nil
}

// PendingFor returns the approver's open queue.
func (s *ApprovalService) PendingFor(ctx context.Context, approverID string) ([]models.ApprovalDetail, error) {
	approvals, err := s.approvals.ListPendingForApprover(ctx, approverID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	return approvals, nil
}

// ListForEvent returns the event's approval trail. Only the organizer and
// admins may inspect it.
func (s *ApprovalService) ListForEvent(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) ([]models.Approval, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may view the approval trail")
	}
	approvals, err := s.approvals.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	return approvals, nil
}

func (s *ApprovalService) recomputeEventStatus(ctx context.Context, eventID string) (models.EventStatus, error) {
	approvals, err := s.approvals.ListByEvent(ctx, eventID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	allApproved := len(approvals) > 0
	for _, a := range approvals {
		switch a.Status {
		case models.ApprovalStatusRejected:
			return models.EventStatusRejected, nil
		case models.ApprovalStatusPending:
			allApproved = false
		}
	}
	if allApproved {
		return models.EventStatusApproved, nil
	}
	return models.EventStatusPending, nil
}

// governingDepartment prefers the venue's owning department over the
// event's own department.
func (s *ApprovalService) governingDepartment(ctx context.Context, event *models.Event) (*string, error) {
	if event.VenueID != nil {
		venue, err := s.venues.FindByID(ctx, *event.VenueID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
		}
		if venue.DepartmentID != nil {
			return venue.DepartmentID, nil
		}
	}
	return event.DepartmentID, nil
}

// notifyApprover emails one approver that the event awaits their verdict.
func (s *ApprovalService) notifyApprover(ctx context.Context, approverID string, event *models.Event) {
	approver, err := s.users.FindByID(ctx, approverID)
	if err != nil {
		s.logger.Warn("failed to load approver for notification", zap.String("approver_id", approverID), zap.Error(err))
		return
	}
	s.notify.Notify(approver.Email,
		fmt.Sprintf("Approval requested: %s", event.Title),
		fmt.Sprintf("The event %q is awaiting your approval.", event.Title),
	)
}

// notifyNextApprover hands the workflow to the next open gate after an
// approval that leaves the event pending.
func (s *ApprovalService) notifyNextApprover(ctx context.Context, event *models.Event) {
	approvals, err := s.approvals.ListByEvent(ctx, event.ID)
	if err != nil {
		s.logger.Warn("failed to list approvals for notification", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	for _, a := range approvals {
		if a.Status == models.ApprovalStatusPending {
			s.notifyApprover(ctx, a.ApproverID, event)
			return
		}
	}
}

func (s *ApprovalService) notifyOrganizer(ctx context.Context, event *models.Event, remarks *string) {
	organizer, err := s.users.FindByID(ctx, event.OrganizerID)
	if err != nil {
		s.logger.Warn("failed to load organizer for notification", zap.String("organizer_id", event.OrganizerID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Event %s: %s", event.Status, event.Title)
	body := fmt.Sprintf("Your event %q is now %s.", event.Title, event.Status)
	if remarks != nil && *remarks != "" {
		body = fmt.Sprintf("%s Remarks: %s", body, *remarks)
	}
	s.notify.Notify(organizer.Email, subject, body)
}
