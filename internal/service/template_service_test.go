package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type mockTemplateRepo struct {
	templates map[string]models.CertificateTemplate
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl *models.CertificateTemplate) error {
	tpl.CreatedAt = time.Now().UTC()
	m.templates[tpl.ID] = *tpl
	return nil
}

func (m *mockTemplateRepo) FindByID(ctx context.Context, id string) (*models.CertificateTemplate, error) {
	if tpl, ok := m.templates[id]; ok {
		return &tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTemplateRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]models.CertificateTemplate, error) {
	var list []models.CertificateTemplate
	for _, tpl := range m.templates {
		if tpl.OrganizerID == organizerID {
			list = append(list, tpl)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (m *mockTemplateRepo) CountByOrganizer(ctx context.Context, organizerID string) (int, error) {
	count := 0
	for _, tpl := range m.templates {
		if tpl.OrganizerID == organizerID {
			count++
		}
	}
	return count, nil
}

func (m *mockTemplateRepo) SetDefault(ctx context.Context, organizerID, templateID string) error {
	target, ok := m.templates[templateID]
	if !ok || target.OrganizerID != organizerID {
		return sql.ErrNoRows
	}
	for id, tpl := range m.templates {
		if tpl.OrganizerID == organizerID {
			tpl.IsDefault = id == templateID
			m.templates[id] = tpl
		}
	}
	return nil
}

func (m *mockTemplateRepo) UpdatePositions(ctx context.Context, id, organizerID, positions string) error {
	tpl, ok := m.templates[id]
	if !ok || tpl.OrganizerID != organizerID {
		return sql.ErrNoRows
	}
	tpl.Positions = &positions
	m.templates[id] = tpl
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, id, organizerID string) error {
	tpl, ok := m.templates[id]
	if !ok || tpl.OrganizerID != organizerID {
		return sql.ErrNoRows
	}
	wasDefault := tpl.IsDefault
	delete(m.templates, id)
	if wasDefault {
		remaining, _ := m.ListByOrganizer(ctx, organizerID)
		if len(remaining) > 0 {
			promoted := remaining[0]
			promoted.IsDefault = true
			m.templates[promoted.ID] = promoted
		}
	}
	return nil
}

type mockTemplateFiles struct {
	stored  map[string][]byte
	deleted []string
}

func (m *mockTemplateFiles) Save(filename string, data []byte) (string, error) {
	if m.stored == nil {
		m.stored = map[string][]byte{}
	}
	m.stored[filename] = data
	return filename, nil
}

func (m *mockTemplateFiles) Delete(filename string) error {
	delete(m.stored, filename)
	m.deleted = append(m.deleted, filename)
	return nil
}

func newTemplateFixture(maxPerOrganizer int) (*TemplateService, *mockTemplateRepo, *mockTemplateFiles) {
	repo := &mockTemplateRepo{templates: map[string]models.CertificateTemplate{}}
	files := &mockTemplateFiles{}
	svc := NewTemplateService(repo, files, TemplateServiceConfig{MaxPerOrganizer: maxPerOrganizer}, nil, zap.NewNop())
	return svc, repo, files
}

func TestTemplateServiceFirstUploadBecomesDefault(t *testing.T) {
	svc, _, files := newTemplateFixture(10)

	first, err := svc.Upload(context.Background(), "org-1", "Classic", "classic.png", []byte{1, 2})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Contains(t, files.stored, first.ImagePath)

	second, err := svc.Upload(context.Background(), "org-1", "Modern", "modern.jpg", []byte{3, 4})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
}

func TestTemplateServiceUploadRejectsBadExtension(t *testing.T) {
	svc, _, _ := newTemplateFixture(10)

	_, err := svc.Upload(context.Background(), "org-1", "Animated", "template.gif", []byte{1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTemplateServiceQuotaApplies(t *testing.T) {
	svc, _, _ := newTemplateFixture(2)

	_, err := svc.Upload(context.Background(), "org-1", "One", "one.png", []byte{1})
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "org-1", "Two", "two.png", []byte{2})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "org-1", "Three", "three.png", []byte{3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTemplateQuota.Code, appErrors.FromError(err).Code)

	_, err = svc.Upload(context.Background(), "org-2", "Other", "other.png", []byte{4})
	require.NoError(t, err)
}

func TestTemplateServiceSetDefaultSwaps(t *testing.T) {
	svc, repo, _ := newTemplateFixture(10)

	first, err := svc.Upload(context.Background(), "org-1", "Classic", "classic.png", []byte{1})
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "org-1", "Modern", "modern.png", []byte{2})
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(context.Background(), "org-1", second.ID))
	assert.False(t, repo.templates[first.ID].IsDefault)
	assert.True(t, repo.templates[second.ID].IsDefault)
}

func TestTemplateServiceSavePositionsValidatesJSON(t *testing.T) {
	svc, repo, _ := newTemplateFixture(10)
	tpl, err := svc.Upload(context.Background(), "org-1", "Classic", "classic.png", []byte{1})
	require.NoError(t, err)

	err = svc.SavePositions(context.Background(), "org-1", tpl.ID, "not-json")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	positions := `{"student_name":{"x":0.5,"y":0.45,"size":28}}`
	require.NoError(t, svc.SavePositions(context.Background(), "org-1", tpl.ID, positions))
	require.NotNil(t, repo.templates[tpl.ID].Positions)
	assert.Equal(t, positions, *repo.templates[tpl.ID].Positions)
}

func TestTemplateServiceDeleteForeignTemplateForbidden(t *testing.T) {
	svc, _, _ := newTemplateFixture(10)
	tpl, err := svc.Upload(context.Background(), "org-1", "Classic", "classic.png", []byte{1})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "org-2", tpl.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTemplateServiceDeleteRemovesImage(t *testing.T) {
	svc, repo, files := newTemplateFixture(10)
	tpl, err := svc.Upload(context.Background(), "org-1", "Classic", "classic.png", []byte{1})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "org-1", tpl.ID))
	assert.Empty(t, repo.templates)
	assert.Contains(t, files.deleted, tpl.ImagePath)
}
