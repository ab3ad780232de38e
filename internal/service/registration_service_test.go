package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
)

type mockRegistrationRepo struct {
	regs    map[string]models.Registration
	details map[string]models.RegistrationDetail
}

func (m *mockRegistrationRepo) key(eventID, studentID string) string {
	return eventID + "/" + studentID
}

func (m *mockRegistrationRepo) Create(ctx context.Context, reg *models.Registration) (bool, error) {
	k := m.key(reg.EventID, reg.StudentID)
	if _, exists := m.regs[k]; exists {
		return false, nil
	}
	m.regs[k] = *reg
	m.details[reg.ID] = models.RegistrationDetail{Registration: *reg, StudentName: "Asha", StudentEmail: "asha@campus.test", EventTitle: "Tech Fest"}
	return true, nil
}

func (m *mockRegistrationRepo) FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error) {
	if reg, ok := m.regs[m.key(eventID, studentID)]; ok {
		return &reg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) ListByEvent(ctx context.Context, eventID string) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, d := range m.details {
		if d.EventID == eventID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *mockRegistrationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	var list []models.RegistrationDetail
	for _, d := range m.details {
		if d.StudentID == studentID {
			list = append(list, d)
		}
	}
	return list, nil
}

type mockEventReader struct {
	events map[string]*models.Event
}

func (m *mockEventReader) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func openEvent(id string) *models.Event {
	now := time.Now().UTC()
	return &models.Event{
		ID:          id,
		Title:       "Tech Fest",
		OrganizerID: "org-1",
		Status:      models.EventStatusApproved,
		Mode:        models.EventModeOffline,
		StartsAt:    now.Add(24 * time.Hour),
		EndsAt:      now.Add(30 * time.Hour),
	}
}

func newRegistrationFixture(events map[string]*models.Event) (*RegistrationService, *mockRegistrationRepo, *mockNotifier) {
	repo := &mockRegistrationRepo{regs: map[string]models.Registration{}, details: map[string]models.RegistrationDetail{}}
	users := &mockUserReader{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Email: "asha@campus.test", Role: models.RoleStudent},
	}}
	notify := &mockNotifier{}
	svc := NewRegistrationService(repo, &mockEventReader{events: events}, users, qr.NewSigner("test-secret"), notify, nil, zap.NewNop())
	return svc, repo, notify
}

func TestRegistrationServiceRegisterIssuesSignedPass(t *testing.T) {
	svc, _, notify := newRegistrationFixture(map[string]*models.Event{"evt-1": openEvent("evt-1")})

	detail, err := svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, strings.HasPrefix(detail.QRCode, "CC1."))

	payload, err := qr.NewSigner("test-secret").Decode(detail.QRCode)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", payload.EventID)
	assert.Equal(t, "stu-1", payload.StudentID)
	assert.Len(t, notify.sent, 1)
}

func TestRegistrationServiceRegisterTwiceFails(t *testing.T) {
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": openEvent("evt-1")})

	_, err := svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRejectsTeamEvent(t *testing.T) {
	event := openEvent("evt-1")
	event.IsTeamEvent = true
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": event})

	_, err := svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceRejectsUnapprovedEvent(t *testing.T) {
	event := openEvent("evt-1")
	event.Status = models.EventStatusPending
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": event})

	_, err := svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEventNotOpen.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceClosesAtStart(t *testing.T) {
	event := openEvent("evt-1")
	event.StartsAt = time.Now().UTC().Add(-time.Minute)
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": event})

	_, err := svc.Register(context.Background(), "evt-1", "stu-1", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEventNotOpen.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceGuestBlockedFromCampusExclusive(t *testing.T) {
	event := openEvent("evt-1")
	event.CampusExclusive = true
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": event})

	_, err := svc.Register(context.Background(), "evt-1", "guest-1", models.RoleGuest)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceParticipantsOrganizerOnly(t *testing.T) {
	svc, _, _ := newRegistrationFixture(map[string]*models.Event{"evt-1": openEvent("evt-1")})

	_, err := svc.EventParticipants(context.Background(), "evt-1", "someone-else", models.RoleOrganizer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	regs, err := svc.EventParticipants(context.Background(), "evt-1", "org-1", models.RoleOrganizer)
	require.NoError(t, err)
	assert.Empty(t, regs)
}
