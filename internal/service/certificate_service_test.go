package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/certificate"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type mockCertRepo struct {
	certs  map[string]models.Certificate
	nextID int
}

func (m *mockCertRepo) key(studentID, eventID string) string {
	return studentID + "/" + eventID
}

func (m *mockCertRepo) Upsert(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		m.nextID++
		cert.ID = "cert-" + string(rune('0'+m.nextID))
	}
	m.certs[m.key(cert.StudentID, cert.EventID)] = *cert
	return nil
}

func (m *mockCertRepo) FindByStudentAndEvent(ctx context.Context, studentID, eventID string) (*models.Certificate, error) {
	if c, ok := m.certs[m.key(studentID, eventID)]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *mockCertRepo) FindDetailByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	for _, c := range m.certs {
		if c.ID == id {
			return &models.CertificateDetail{Certificate: c, EventTitle: "Tech Fest"}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertRepo) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	var list []models.CertificateDetail
	for _, c := range m.certs {
		if c.StudentID == studentID {
			list = append(list, models.CertificateDetail{Certificate: c})
		}
	}
	return list, nil
}

type mockPrizeRegStore struct {
	regs map[string]models.Registration
}

func (m *mockPrizeRegStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if reg, ok := m.regs[id]; ok {
		return &reg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPrizeRegStore) FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error) {
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.StudentID == studentID {
			found := reg
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPrizeRegStore) UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error {
	reg, ok := m.regs[id]
	if !ok {
		return sql.ErrNoRows
	}
	reg.PrizePosition = position
	reg.PrizeTitle = title
	reg.PrizeTemplateID = templateID
	m.regs[id] = reg
	return nil
}

func (m *mockPrizeRegStore) ListByTeam(ctx context.Context, teamID string) ([]models.Registration, error) {
	var list []models.Registration
	for _, reg := range m.regs {
		if reg.TeamID != nil && *reg.TeamID == teamID {
			list = append(list, reg)
		}
	}
	return list, nil
}

type mockTeamPrizeStore struct {
	teams map[string]models.Team
}

func (m *mockTeamPrizeStore) FindByID(ctx context.Context, id string) (*models.Team, error) {
	if t, ok := m.teams[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeamPrizeStore) UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error {
	t, ok := m.teams[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.PrizePosition = position
	t.PrizeTitle = title
	t.PrizeTemplateID = templateID
	m.teams[id] = t
	return nil
}

type mockTemplateReader struct {
	templates map[string]*models.CertificateTemplate
	defaults  map[string]*models.CertificateTemplate
	lookups   []string
}

func (m *mockTemplateReader) FindByID(ctx context.Context, id string) (*models.CertificateTemplate, error) {
	m.lookups = append(m.lookups, id)
	if tpl, ok := m.templates[id]; ok {
		return tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTemplateReader) FindDefaultByOrganizer(ctx context.Context, organizerID string) (*models.CertificateTemplate, error) {
	return m.defaults[organizerID], nil
}

type mockCertEventReader struct {
	events map[string]*models.EventDetail
}

func (m *mockCertEventReader) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		event := e.Event
		return &event, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertEventReader) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

type mockCertFiles struct {
	stored  map[string][]byte
	saves   int
	deleted []string
}

func (m *mockCertFiles) Save(filename string, data []byte) (string, error) {
	if m.stored == nil {
		m.stored = map[string][]byte{}
	}
	m.stored[filename] = data
	m.saves++
	return filename, nil
}

func (m *mockCertFiles) Path(filename string) string {
	return filepath.Join("/srv/storage", filename)
}

func (m *mockCertFiles) Exists(filename string) bool {
	_, ok := m.stored[filename]
	return ok
}

func (m *mockCertFiles) Delete(filename string) error {
	delete(m.stored, filename)
	m.deleted = append(m.deleted, filename)
	return nil
}

type certFixture struct {
	svc        *CertificateService
	certs      *mockCertRepo
	regs       *mockPrizeRegStore
	teams      *mockTeamPrizeStore
	templates  *mockTemplateReader
	attendance *mockAttendanceRepo
	files      *mockCertFiles
}

func newCertificateFixture(event *models.EventDetail) *certFixture {
	f := &certFixture{
		certs:      &mockCertRepo{certs: map[string]models.Certificate{}},
		regs:       &mockPrizeRegStore{regs: map[string]models.Registration{}},
		teams:      &mockTeamPrizeStore{teams: map[string]models.Team{}},
		templates:  &mockTemplateReader{templates: map[string]*models.CertificateTemplate{}, defaults: map[string]*models.CertificateTemplate{}},
		attendance: &mockAttendanceRepo{marks: map[string]models.Attendance{}},
		files:      &mockCertFiles{},
	}
	events := &mockCertEventReader{events: map[string]*models.EventDetail{event.ID: event}}
	users := &mockUserReader{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", FullName: "Asha Nair", Email: "asha@campus.test", Role: models.RoleStudent},
	}}
	f.svc = NewCertificateService(f.certs, f.regs, f.teams, f.templates, f.attendance, events, users, certificate.NewRenderer(), f.files, "certificates", nil, zap.NewNop())
	return f
}

func endedEventDetail(id string, hasPrizes bool) *models.EventDetail {
	now := time.Now().UTC()
	return &models.EventDetail{
		Event: models.Event{
			ID:          id,
			Title:       "Tech Fest",
			OrganizerID: "org-1",
			Status:      models.EventStatusApproved,
			StartsAt:    now.Add(-26 * time.Hour),
			EndsAt:      now.Add(-24 * time.Hour),
			HasPrizes:   hasPrizes,
		},
		OrganizerName: "CS Association",
	}
}

func (f *certFixture) registerAndAttend(t *testing.T, regID, eventID, studentID string) {
	t.Helper()
	f.regs.regs[regID] = models.Registration{ID: regID, EventID: eventID, StudentID: studentID}
	_, err := f.attendance.Mark(context.Background(), &models.Attendance{RegistrationID: regID, ScannedBy: "org-1"})
	require.NoError(t, err)
}

func TestCertificateServiceGenerateRequiresRegistration(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))

	_, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceGenerateRequiresAttendance(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1"}

	_, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceGenerateIsIdempotent(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))
	f.registerAndAttend(t, "reg-1", "evt-1", "stu-1")

	first, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.FilePath, filepath.Join("certificates", "cert_stu-1_evt-1_")), first.FilePath)
	assert.True(t, strings.HasSuffix(first.FilePath, ".pdf"))
	assert.Equal(t, 1, f.files.saves)

	second, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Equal(t, 1, f.files.saves)

	forced, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, forced.ID)
	assert.NotEqual(t, first.FilePath, forced.FilePath)
	assert.Equal(t, 2, f.files.saves)
	assert.Contains(t, f.files.deleted, first.FilePath)
	assert.False(t, f.files.Exists(first.FilePath))
	assert.True(t, f.files.Exists(forced.FilePath))
}

func TestCertificateServiceGenerateRerendersWhenFileMissing(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))
	f.registerAndAttend(t, "reg-1", "evt-1", "stu-1")

	first, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	delete(f.files.stored, first.FilePath)

	rerendered, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.files.saves)
	assert.True(t, f.files.Exists(rerendered.FilePath))
}

func TestCertificateServiceForeignTemplateSkipped(t *testing.T) {
	event := endedEventDetail("evt-1", false)
	event.TemplateID = strPtr("tpl-foreign")
	f := newCertificateFixture(event)
	f.templates.templates["tpl-foreign"] = &models.CertificateTemplate{ID: "tpl-foreign", OrganizerID: "someone-else", ImagePath: "templates/tpl-foreign.png"}
	f.registerAndAttend(t, "reg-1", "evt-1", "stu-1")

	cert, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, f.files.stored[cert.FilePath])
	assert.Contains(t, f.templates.lookups, "tpl-foreign")
}

func TestCertificateServicePrizeTemplateTriedFirst(t *testing.T) {
	event := endedEventDetail("evt-1", true)
	event.TemplateID = strPtr("tpl-event")
	f := newCertificateFixture(event)
	f.templates.templates["tpl-event"] = &models.CertificateTemplate{ID: "tpl-event", OrganizerID: "org-1", ImagePath: "templates/tpl-event.png"}
	f.templates.templates["tpl-prize"] = &models.CertificateTemplate{ID: "tpl-prize", OrganizerID: "org-1", ImagePath: "templates/tpl-prize.png"}
	f.regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", EventID: "evt-1", StudentID: "stu-1",
		PrizePosition: strPtr("1st"), PrizeTitle: strPtr("Best Project"), PrizeTemplateID: strPtr("tpl-prize"),
	}
	_, err := f.attendance.Mark(context.Background(), &models.Attendance{RegistrationID: "reg-1", ScannedBy: "org-1"})
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	require.NotEmpty(t, f.templates.lookups)
	assert.Equal(t, "tpl-prize", f.templates.lookups[0])
}

func TestCertificateServiceParticipantPositionGetsNoPrizeTemplate(t *testing.T) {
	event := endedEventDetail("evt-1", true)
	f := newCertificateFixture(event)
	f.regs.regs["reg-1"] = models.Registration{
		ID: "reg-1", EventID: "evt-1", StudentID: "stu-1",
		PrizePosition: strPtr("Participant"), PrizeTemplateID: strPtr("tpl-prize"),
	}
	_, err := f.attendance.Mark(context.Background(), &models.Attendance{RegistrationID: "reg-1", ScannedBy: "org-1"})
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.NotContains(t, f.templates.lookups, "tpl-prize")
}

func TestCertificateServiceAssignPrizeNeedsPrizeEvent(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1"}

	err := f.svc.AssignRegistrationPrize(context.Background(), "reg-1", "org-1", models.RoleOrganizer, PrizeRequest{Position: "1st"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceAssignPrizeOrganizerOnly(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", true))
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1"}

	err := f.svc.AssignRegistrationPrize(context.Background(), "reg-1", "someone-else", models.RoleOrganizer, PrizeRequest{Position: "1st"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceAssignPrizeForeignTemplateForbidden(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", true))
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1"}
	f.templates.templates["tpl-x"] = &models.CertificateTemplate{ID: "tpl-x", OrganizerID: "someone-else", ImagePath: "templates/tpl-x.png"}

	err := f.svc.AssignRegistrationPrize(context.Background(), "reg-1", "org-1", models.RoleOrganizer, PrizeRequest{Position: "1st", TemplateID: "tpl-x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceAssignPrizeRefreshesIssuedCertificate(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", true))
	f.registerAndAttend(t, "reg-1", "evt-1", "stu-1")

	_, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.files.saves)

	err = f.svc.AssignRegistrationPrize(context.Background(), "reg-1", "org-1", models.RoleOrganizer, PrizeRequest{Position: "1st", Title: "Best Project"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.files.saves)

	reg := f.regs.regs["reg-1"]
	require.NotNil(t, reg.PrizePosition)
	assert.Equal(t, "1st", *reg.PrizePosition)
}

func TestCertificateServiceIndividualPrizeOnTeamEventFails(t *testing.T) {
	event := endedEventDetail("evt-1", true)
	event.IsTeamEvent = true
	f := newCertificateFixture(event)
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1"}

	err := f.svc.AssignRegistrationPrize(context.Background(), "reg-1", "org-1", models.RoleOrganizer, PrizeRequest{Position: "1st"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCertificateServiceTeamPrizeRefreshesMembers(t *testing.T) {
	event := endedEventDetail("evt-1", true)
	event.IsTeamEvent = true
	f := newCertificateFixture(event)
	teamID := "team-1"
	f.teams.teams[teamID] = models.Team{ID: teamID, EventID: "evt-1", Name: "Bit Benders", LeaderID: "stu-1"}
	f.regs.regs["reg-1"] = models.Registration{ID: "reg-1", EventID: "evt-1", StudentID: "stu-1", TeamID: &teamID}
	_, err := f.attendance.Mark(context.Background(), &models.Attendance{RegistrationID: "reg-1", ScannedBy: "org-1"})
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.files.saves)

	err = f.svc.AssignTeamPrize(context.Background(), teamID, "org-1", models.RoleOrganizer, PrizeRequest{Position: "1st"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.files.saves)

	team := f.teams.teams[teamID]
	require.NotNil(t, team.PrizePosition)
	assert.Equal(t, "1st", *team.PrizePosition)
}

func TestCertificateServiceDownloadOwnerOnly(t *testing.T) {
	f := newCertificateFixture(endedEventDetail("evt-1", false))
	f.registerAndAttend(t, "reg-1", "evt-1", "stu-1")

	cert, err := f.svc.Generate(context.Background(), "stu-1", "evt-1", false)
	require.NoError(t, err)

	_, _, err = f.svc.Download(context.Background(), cert.ID, "stu-2", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, path, err := f.svc.Download(context.Background(), cert.ID, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, detail.ID)
	assert.Equal(t, filepath.Join("/srv/storage", cert.FilePath), path)
}
