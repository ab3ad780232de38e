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
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type mockEventRepo struct {
	events  map[string]models.Event
	deleted []string
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = "evt-" + event.Title
	}
	m.events[event.ID] = *event
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.Event) error {
	if _, ok := m.events[event.ID]; !ok {
		return sql.ErrNoRows
	}
	m.events[event.ID] = *event
	return nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := m.events[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	if e, ok := m.events[id]; ok {
		return &models.EventDetail{Event: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error) {
	var list []models.EventDetail
	for _, e := range m.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		list = append(list, models.EventDetail{Event: e})
	}
	return list, len(list), nil
}

func (m *mockEventRepo) FindConflict(ctx context.Context, venueID string, startsAt, endsAt time.Time, excludeID string) (*models.Event, error) {
	for _, e := range m.events {
		if e.ID == excludeID || e.VenueID == nil || *e.VenueID != venueID || e.Status == models.EventStatusRejected {
			continue
		}
		if e.StartsAt.Before(endsAt) && e.EndsAt.After(startsAt) {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockEventRepo) UpdatePoster(ctx context.Context, id, posterPath string) error {
	e, ok := m.events[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.PosterPath = &posterPath
	m.events[id] = e
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEventRepo) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	return &models.EventStats{}, nil
}

type mockWorkflow struct {
	started []string
	remarks []*string
	err     error
}

func (m *mockWorkflow) StartWorkflow(ctx context.Context, event *models.Event, remarks *string) error {
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, event.ID)
	m.remarks = append(m.remarks, remarks)
	return nil
}

type mockPosterStore struct {
	saved map[string][]byte
}

func (m *mockPosterStore) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[filename] = data
	return filename, nil
}

func newEventFixture() (*EventService, *mockEventRepo, *mockWorkflow, *mockCache) {
	repo := &mockEventRepo{events: map[string]models.Event{}}
	venues := &mockVenueReader{venues: map[string]*models.Venue{
		"venue-1": {ID: "venue-1", Name: "Main Hall", DepartmentID: strPtr("dept-1")},
	}}
	workflow := &mockWorkflow{}
	cache := &mockCache{}
	svc := NewEventService(repo, venues, workflow, cache, &mockPosterStore{}, nil, EventServiceConfig{}, nil, zap.NewNop())
	return svc, repo, workflow, cache
}

var eventRequestBase = time.Now().UTC()

func validEventRequest() CreateEventRequest {
	now := eventRequestBase
	return CreateEventRequest{
		Title:    "Tech Fest",
		Mode:     "offline",
		VenueID:  "venue-1",
		StartsAt: now.Add(48 * time.Hour),
		EndsAt:   now.Add(54 * time.Hour),
	}
}

func TestEventServiceCreateStartsWorkflow(t *testing.T) {
	svc, repo, workflow, cache := newEventFixture()

	detail, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, detail.Status)
	assert.NotEmpty(t, detail.ScanToken)
	assert.Len(t, workflow.started, 1)
	assert.Contains(t, cache.invalidated, "events:list:*")
	assert.Len(t, repo.events, 1)
}

func TestEventServiceCreateRollsBackWhenWorkflowFails(t *testing.T) {
	svc, repo, workflow, _ := newEventFixture()
	workflow.err = appErrors.Clone(appErrors.ErrNoApprover, "")

	_, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoApprover.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.events)
	assert.Len(t, repo.deleted, 1)
}

func TestEventServiceCreateVenueConflict(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	first, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)
	require.NotNil(t, first)

	req := validEventRequest()
	req.Title = "Overlapping Workshop"
	req.StartsAt = first.StartsAt.Add(time.Hour)
	req.EndsAt = first.EndsAt.Add(time.Hour)
	_, err = svc.Create(context.Background(), "org-2", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVenueConflict.Code, appErrors.FromError(err).Code)
}

func TestEventServiceCreateBackToBackBookingsAllowed(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	first, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)

	req := validEventRequest()
	req.Title = "Evening Session"
	req.StartsAt = first.EndsAt
	req.EndsAt = first.EndsAt.Add(2 * time.Hour)
	_, err = svc.Create(context.Background(), "org-2", req)
	require.NoError(t, err)
}

func TestEventServiceOfflineRequiresVenue(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	req := validEventRequest()
	req.VenueID = ""
	_, err := svc.Create(context.Background(), "org-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceOnlineRequiresMeetingURL(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	req := validEventRequest()
	req.Mode = "online"
	req.VenueID = ""
	_, err := svc.Create(context.Background(), "org-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.MeetingURL = "https://meet.campus.test/techfest"
	_, err = svc.Create(context.Background(), "org-1", req)
	require.NoError(t, err)
}

func TestEventServiceTeamSizeBoundsValidated(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	req := validEventRequest()
	req.IsTeamEvent = true
	req.MinTeamSize = 4
	req.MaxTeamSize = 2
	_, err := svc.Create(context.Background(), "org-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventServiceMaterialEditRestartsApproval(t *testing.T) {
	onlineRequest := func() CreateEventRequest {
		req := validEventRequest()
		req.Mode = "online"
		req.VenueID = ""
		req.MeetingURL = "https://meet.campus.test/techfest"
		return req
	}

	cases := []struct {
		name   string
		base   func() CreateEventRequest
		mutate func(*CreateEventRequest)
	}{
		{"schedule", validEventRequest, func(req *CreateEventRequest) {
			req.StartsAt = req.StartsAt.Add(24 * time.Hour)
			req.EndsAt = req.EndsAt.Add(24 * time.Hour)
		}},
		{"meeting url", onlineRequest, func(req *CreateEventRequest) {
			req.MeetingURL = "https://meet.campus.test/techfest-moved"
		}},
		{"department", validEventRequest, func(req *CreateEventRequest) {
			req.DepartmentID = "dept-2"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, workflow, _ := newEventFixture()

			detail, err := svc.Create(context.Background(), "org-1", tc.base())
			require.NoError(t, err)

			event := repo.events[detail.ID]
			event.Status = models.EventStatusApproved
			repo.events[detail.ID] = event

			req := tc.base()
			tc.mutate(&req)
			updated, err := svc.Update(context.Background(), detail.ID, "org-1", models.RoleOrganizer, req)
			require.NoError(t, err)
			assert.Equal(t, models.EventStatusPending, updated.Status)
			require.Len(t, workflow.started, 2)
			require.NotNil(t, workflow.remarks[1])
			assert.Equal(t, "re-submitted after event edit", *workflow.remarks[1])
		})
	}
}

func TestEventServiceCosmeticEditKeepsStatus(t *testing.T) {
	svc, repo, workflow, _ := newEventFixture()

	detail, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)

	event := repo.events[detail.ID]
	event.Status = models.EventStatusApproved
	repo.events[detail.ID] = event

	req := validEventRequest()
	req.Title = "Tech Fest 2026"
	req.Description = "Now with more tracks"
	updated, err := svc.Update(context.Background(), detail.ID, "org-1", models.RoleOrganizer, req)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusApproved, updated.Status)
	assert.Len(t, workflow.started, 1)
}

func TestEventServiceUpdateByStrangerForbidden(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	detail, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), detail.ID, "org-2", models.RoleOrganizer, validEventRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEventServiceUploadPosterRejectsBadExtension(t *testing.T) {
	svc, _, _, _ := newEventFixture()

	detail, err := svc.Create(context.Background(), "org-1", validEventRequest())
	require.NoError(t, err)

	_, err = svc.UploadPoster(context.Background(), detail.ID, "org-1", models.RoleOrganizer, "poster.gif", []byte{1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	path, err := svc.UploadPoster(context.Background(), detail.ID, "org-1", models.RoleOrganizer, "poster.png", []byte{1})
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}
