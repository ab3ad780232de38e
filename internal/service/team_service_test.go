package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/repository"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
)

type mockTeamRepo struct {
	teams       map[string]models.Team
	invitations map[string]models.TeamInvitation
	members     map[string]int
	regs        *mockRegistrationRepo
	nextInvID   int
}

func (m *mockTeamRepo) CreateWithLeader(ctx context.Context, team *models.Team, leaderReg *models.Registration) error {
	if team.ID == "" {
		team.ID = "team-" + team.Name
	}
	m.teams[team.ID] = *team
	m.members[team.ID] = 1
	leaderReg.TeamID = &team.ID
	if _, err := m.regs.Create(ctx, leaderReg); err != nil {
		return err
	}
	return nil
}

func (m *mockTeamRepo) FindByID(ctx context.Context, id string) (*models.Team, error) {
	if t, ok := m.teams[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeamRepo) ExistsByEventAndName(ctx context.Context, eventID, name string) (bool, error) {
	for _, t := range m.teams {
		if t.EventID == eventID && t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeamRepo) CountMembers(ctx context.Context, teamID string) (int, error) {
	return m.members[teamID], nil
}

func (m *mockTeamRepo) ListByEvent(ctx context.Context, eventID string) ([]models.TeamDetail, error) {
	var list []models.TeamDetail
	for _, t := range m.teams {
		if t.EventID == eventID {
			list = append(list, models.TeamDetail{Team: t, MemberCount: m.members[t.ID]})
		}
	}
	return list, nil
}

func (m *mockTeamRepo) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (bool, error) {
	for _, existing := range m.invitations {
		if existing.TeamID == inv.TeamID && existing.InviteeID == inv.InviteeID && existing.Status == models.InvitationStatusPending {
			return false, nil
		}
	}
	m.nextInvID++
	inv.ID = "inv-" + string(rune('0'+m.nextInvID))
	inv.Status = models.InvitationStatusPending
	m.invitations[inv.ID] = *inv
	return true, nil
}

func (m *mockTeamRepo) FindInvitation(ctx context.Context, id string) (*models.TeamInvitation, error) {
	if inv, ok := m.invitations[id]; ok {
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeamRepo) ListInvitationsForStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error) {
	var list []models.InvitationDetail
	for _, inv := range m.invitations {
		if inv.InviteeID == studentID && inv.Status == models.InvitationStatusPending {
			list = append(list, models.InvitationDetail{TeamInvitation: inv})
		}
	}
	return list, nil
}

func (m *mockTeamRepo) AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, reg *models.Registration, maxTeamSize int) error {
	stored, ok := m.invitations[inv.ID]
	if !ok || stored.Status != models.InvitationStatusPending {
		return sql.ErrNoRows
	}
	if maxTeamSize > 0 && m.members[inv.TeamID] >= maxTeamSize {
		return repository.ErrTeamAtCapacity
	}
	stored.Status = models.InvitationStatusAccepted
	m.invitations[inv.ID] = stored
	m.members[inv.TeamID]++
	reg.TeamID = &inv.TeamID
	if _, err := m.regs.Create(ctx, reg); err != nil {
		return err
	}
	return nil
}

func (m *mockTeamRepo) RejectInvitation(ctx context.Context, id string) error {
	inv, ok := m.invitations[id]
	if !ok || inv.Status != models.InvitationStatusPending {
		return sql.ErrNoRows
	}
	inv.Status = models.InvitationStatusRejected
	m.invitations[id] = inv
	return nil
}

type mockInviteeDir struct {
	users map[string]*models.User
}

func (m *mockInviteeDir) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInviteeDir) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func teamEvent(id string, maxSize int) *models.Event {
	now := time.Now().UTC()
	return &models.Event{
		ID:          id,
		Title:       "Hackathon",
		OrganizerID: "org-1",
		Status:      models.EventStatusApproved,
		Mode:        models.EventModeOffline,
		StartsAt:    now.Add(48 * time.Hour),
		EndsAt:      now.Add(60 * time.Hour),
		IsTeamEvent: true,
		MinTeamSize: 1,
		MaxTeamSize: maxSize,
	}
}

func newTeamFixture(event *models.Event) (*TeamService, *mockTeamRepo, *mockNotifier) {
	regs := &mockRegistrationRepo{regs: map[string]models.Registration{}, details: map[string]models.RegistrationDetail{}}
	teams := &mockTeamRepo{
		teams:       map[string]models.Team{},
		invitations: map[string]models.TeamInvitation{},
		members:     map[string]int{},
		regs:        regs,
	}
	users := &mockInviteeDir{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Email: "asha@campus.test", Username: "asha", Role: models.RoleStudent},
		"stu-2": {ID: "stu-2", Email: "vivek@campus.test", Username: "vivek", Role: models.RoleStudent},
		"stu-3": {ID: "stu-3", Email: "meera@campus.test", Username: "meera", Role: models.RoleStudent},
		"org-1": {ID: "org-1", Email: "organizer@campus.test", Username: "org", Role: models.RoleOrganizer},
	}}
	notify := &mockNotifier{}
	events := &mockEventReader{events: map[string]*models.Event{event.ID: event}}
	svc := NewTeamService(teams, regs, events, users, qr.NewSigner("test-secret"), notify, nil, zap.NewNop())
	return svc, teams, notify
}

func TestTeamServiceCreateRegistersLeader(t *testing.T) {
	svc, teams, _ := newTeamFixture(teamEvent("evt-1", 3))

	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)
	assert.Equal(t, 1, teams.members[team.ID])

	reg, err := teams.regs.FindByEventAndStudent(context.Background(), "evt-1", "stu-1")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.QRCode)
}

func TestTeamServiceDuplicateNameConflicts(t *testing.T) {
	svc, _, _ := newTeamFixture(teamEvent("evt-1", 3))

	_, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)

	_, err = svc.CreateTeam(context.Background(), "evt-1", "stu-2", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceCreateOnIndividualEventFails(t *testing.T) {
	event := teamEvent("evt-1", 3)
	event.IsTeamEvent = false
	svc, _, _ := newTeamFixture(event)

	_, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceInviteOnlyLeader(t *testing.T) {
	svc, _, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)

	_, err = svc.Invite(context.Background(), team.ID, "stu-2", InviteRequest{Username: "meera"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceInviteTwicePending(t *testing.T) {
	svc, _, notify := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)

	_, err = svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)
	assert.Len(t, notify.sent, 1)

	_, err = svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyInvited.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceInviteNonStudentFails(t *testing.T) {
	svc, _, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)

	_, err = svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "org"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceAcceptRegistersMember(t *testing.T) {
	svc, teams, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)
	inv, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)

	require.NoError(t, svc.Respond(context.Background(), inv.ID, "stu-2", true))
	assert.Equal(t, 2, teams.members[team.ID])

	reg, err := teams.regs.FindByEventAndStudent(context.Background(), "evt-1", "stu-2")
	require.NoError(t, err)
	require.NotNil(t, reg.TeamID)
	assert.Equal(t, team.ID, *reg.TeamID)
}

func TestTeamServiceAcceptAtCapacityFails(t *testing.T) {
	svc, teams, _ := newTeamFixture(teamEvent("evt-1", 2))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)

	inv2, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)
	inv3, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "meera"})
	require.NoError(t, err)

	require.NoError(t, svc.Respond(context.Background(), inv2.ID, "stu-2", true))
	assert.Equal(t, 2, teams.members[team.ID])

	err = svc.Respond(context.Background(), inv3.ID, "stu-3", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeamFull.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.InvitationStatusRejected, teams.invitations[inv3.ID].Status)
}

func TestTeamServiceAcceptByRegisteredStudentStoresRejection(t *testing.T) {
	svc, teams, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)
	inv, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)

	rival, err := svc.CreateTeam(context.Background(), "evt-1", "stu-2", models.RoleStudent, CreateTeamRequest{Name: "Null Pointers"})
	require.NoError(t, err)

	err = svc.Respond(context.Background(), inv.ID, "stu-2", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.InvitationStatusRejected, teams.invitations[inv.ID].Status)
	assert.Equal(t, 1, teams.members[team.ID])
	assert.Equal(t, 1, teams.members[rival.ID])
}

func TestTeamServiceRespondWrongInviteeForbidden(t *testing.T) {
	svc, _, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)
	inv, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)

	err = svc.Respond(context.Background(), inv.ID, "stu-3", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTeamServiceDeclineLeavesTeamUnchanged(t *testing.T) {
	svc, teams, _ := newTeamFixture(teamEvent("evt-1", 3))
	team, err := svc.CreateTeam(context.Background(), "evt-1", "stu-1", models.RoleStudent, CreateTeamRequest{Name: "Bit Benders"})
	require.NoError(t, err)
	inv, err := svc.Invite(context.Background(), team.ID, "stu-1", InviteRequest{Username: "vivek"})
	require.NoError(t, err)

	require.NoError(t, svc.Respond(context.Background(), inv.ID, "stu-2", false))
	assert.Equal(t, 1, teams.members[team.ID])
	assert.Equal(t, models.InvitationStatusRejected, teams.invitations[inv.ID].Status)

	err = svc.Respond(context.Background(), inv.ID, "stu-2", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
