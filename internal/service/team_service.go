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
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/repository"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
)

type teamRepository interface {
	CreateWithLeader(ctx context.Context, team *models.Team, leaderReg *models.Registration) error
	FindByID(ctx context.Context, id string) (*models.Team, error)
	ExistsByEventAndName(ctx context.Context, eventID, name string) (bool, error)
	CountMembers(ctx context.Context, teamID string) (int, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.TeamDetail, error)
	CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (bool, error)
	FindInvitation(ctx context.Context, id string) (*models.TeamInvitation, error)
	ListInvitationsForStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error)
	AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, reg *models.Registration, maxTeamSize int) error
	RejectInvitation(ctx context.Context, id string) error
}

type teamMembershipReader interface {
	FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error)
}

type inviteeDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// CreateTeamRequest names a new team for a team event.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
}

// InviteRequest addresses the invitee by username.
type InviteRequest struct {
	Username string `json:"username" validate:"required"`
}

// TeamService handles team formation for team events.
type TeamService struct {
	teams     teamRepository
	regs      teamMembershipReader
	events    eventReader
	users     inviteeDirectory
	signer    *qr.Signer
	notify    notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeamService constructs TeamService.
func NewTeamService(teams teamRepository, regs teamMembershipReader, events eventReader, users inviteeDirectory, signer *qr.Signer, notify notifier, validate *validator.Validate, logger *zap.Logger) *TeamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{teams: teams, regs: regs, events: events, users: users, signer: signer, notify: notify, validator: validate, logger: logger}
}

// CreateTeam forms a team with the caller as leader. The leader is
// registered for the event in the same transaction.
func (s *TeamService) CreateTeam(ctx context.Context, eventID, leaderID string, leaderRole models.UserRole, req CreateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}

	event, err := s.loadOpenTeamEvent(ctx, eventID, leaderRole)
	if err != nil {
		return nil, err
	}

	if _, err := s.regs.FindByEventAndStudent(ctx, eventID, leaderID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "you already participate in this event")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	}

	taken, err := s.teams.ExistsByEventAndName(ctx, eventID, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a team with this name already exists for the event")
	}

	team := &models.Team{EventID: eventID, Name: req.Name, LeaderID: leaderID}
	leaderReg, err := s.buildMemberRegistration(eventID, leaderID)
	if err != nil {
		return nil, err
	}

	if err := s.teams.CreateWithLeader(ctx, team, leaderReg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
	}

	s.logger.Info("team created", zap.String("team_id", team.ID), zap.String("event_id", event.ID))
	return team, nil
}

// Invite asks a student to join the leader's team.
func (s *TeamService) Invite(ctx context.Context, teamID, leaderID string, req InviteRequest) (*models.TeamInvitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if team.LeaderID != leaderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the team leader may invite members")
	}

	event, err := s.events.FindByID(ctx, team.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !time.Now().UTC().Before(event.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrEventNotOpen, "team formation closed when the event started")
	}

	invitee, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up invitee")
	}
	if invitee.Role != models.RoleStudent && invitee.Role != models.RoleGuest {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can join teams")
	}
	if event.CampusExclusive && invitee.Role == models.RoleGuest {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "campus-exclusive events are closed to guests")
	}

	if _, err := s.regs.FindByEventAndStudent(ctx, team.EventID, invitee.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "invitee already participates in this event")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check invitee registration")
	}

	members, err := s.teams.CountMembers(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	if event.MaxTeamSize > 0 && members >= event.MaxTeamSize {
		return nil, appErrors.Clone(appErrors.ErrTeamFull, "")
	}

	inv := &models.TeamInvitation{TeamID: teamID, InviteeID: invitee.ID}
	created, err := s.teams.CreateInvitation(ctx, inv)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrAlreadyInvited, "")
	}

	s.notify.Notify(invitee.Email,
		fmt.Sprintf("Team invitation: %s", event.Title),
		fmt.Sprintf("You were invited to join team %q for %q.", team.Name, event.Title),
	)
	return inv, nil
}

// Respond accepts or declines an invitation addressed to the caller.
// Acceptance registers the student and re-validates capacity under a row
// lock so racing acceptances cannot overfill the team.
func (s *TeamService) Respond(ctx context.Context, invitationID, studentID string, accept bool) error {
	inv, err := s.teams.FindInvitation(ctx, invitationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}
	if inv.InviteeID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "invitation is addressed to another student")
	}
	if inv.Status != models.InvitationStatusPending {
		return appErrors.Clone(appErrors.ErrConflict, "invitation has already been answered")
	}

	if !accept {
		if err := s.teams.RejectInvitation(ctx, invitationID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "invitation has already been answered")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decline invitation")
		}
		return nil
	}

	team, err := s.teams.FindByID(ctx, inv.TeamID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	event, err := s.events.FindByID(ctx, team.EventID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !time.Now().UTC().Before(event.StartsAt) {
		return appErrors.Clone(appErrors.ErrEventNotOpen, "team formation closed when the event started")
	}

	if _, err := s.regs.FindByEventAndStudent(ctx, team.EventID, studentID); err == nil {
		s.storeRejection(ctx, invitationID)
		return appErrors.Clone(appErrors.ErrAlreadyRegistered, "you already participate in this event")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	}

	reg, err := s.buildMemberRegistration(team.EventID, studentID)
	if err != nil {
		return err
	}

	if err := s.teams.AcceptInvitation(ctx, inv, reg, event.MaxTeamSize); err != nil {
		if errors.Is(err, repository.ErrTeamAtCapacity) {
			s.storeRejection(ctx, invitationID)
			return appErrors.Clone(appErrors.ErrTeamFull, "")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "invitation has already been answered")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept invitation")
	}

	if leader, err := s.users.FindByID(ctx, team.LeaderID); err == nil {
		s.notify.Notify(leader.Email,
			fmt.Sprintf("Invitation accepted: %s", team.Name),
			fmt.Sprintf("Your invitation for team %q was accepted.", team.Name),
		)
	}
	return nil
}

// storeRejection records a failed acceptance as a rejected invitation so
// the invitee's inbox does not keep a pending row that can never succeed.
func (s *TeamService) storeRejection(ctx context.Context, invitationID string) {
	if err := s.teams.RejectInvitation(ctx, invitationID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to store invitation rejection",
			zap.String("invitation_id", invitationID),
			zap.Error(err),
		)
	}
}

// MyInvitations returns the caller's pending invitations.
func (s *TeamService) MyInvitations(ctx context.Context, studentID string) ([]models.InvitationDetail, error) {
	invitations, err := s.teams.ListInvitationsForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}

// EventTeams returns the teams registered for an event.
func (s *TeamService) EventTeams(ctx context.Context, eventID string) ([]models.TeamDetail, error) {
	teams, err := s.teams.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	return teams, nil
}

func (s *TeamService) loadOpenTeamEvent(ctx context.Context, eventID string, role models.UserRole) (*models.Event, error) {
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
	if !event.IsTeamEvent {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "this event takes individual registrations")
	}
	if event.CampusExclusive && role == models.RoleGuest {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "campus-exclusive events are closed to guests")
	}
	return event, nil
}

func (s *TeamService) buildMemberRegistration(eventID, studentID string) (*models.Registration, error) {
	reg := &models.Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		StudentID: studentID,
	}
	code, err := s.signer.Encode(qr.Payload{RegistrationID: reg.ID, EventID: eventID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue pass")
	}
	reg.QRCode = code
	return reg, nil
}
