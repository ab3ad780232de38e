package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/certificate"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type templateRepository interface {
	Create(ctx context.Context, tpl *models.CertificateTemplate) error
	FindByID(ctx context.Context, id string) (*models.CertificateTemplate, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.CertificateTemplate, error)
	CountByOrganizer(ctx context.Context, organizerID string) (int, error)
	SetDefault(ctx context.Context, organizerID, templateID string) error
	UpdatePositions(ctx context.Context, id, organizerID, positions string) error
	Delete(ctx context.Context, id, organizerID string) error
}

type templateFiles interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// TemplateServiceConfig caps uploads and controls where images land.
type TemplateServiceConfig struct {
	MaxPerOrganizer int
	TemplateDir     string
}

// TemplateService manages organizer certificate templates.
type TemplateService struct {
	templates templateRepository
	files     templateFiles
	config    TemplateServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService constructs TemplateService.
func NewTemplateService(templates templateRepository, files templateFiles, config TemplateServiceConfig, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxPerOrganizer <= 0 {
		config.MaxPerOrganizer = 10
	}
	if config.TemplateDir == "" {
		config.TemplateDir = "certificates/templates"
	}
	return &TemplateService{templates: templates, files: files, config: config, validator: validate, logger: logger}
}

// Upload stores a new template image. Every organizer holds the same
// quota; the first upload becomes the default automatically.
func (s *TemplateService) Upload(ctx context.Context, organizerID, name, filename string, data []byte) (*models.CertificateTemplate, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template name required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported template image type %s", ext))
	}

	count, err := s.templates.CountByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count templates")
	}
	if count >= s.config.MaxPerOrganizer {
		return nil, appErrors.Clone(appErrors.ErrTemplateQuota, fmt.Sprintf("at most %d templates per organizer", s.config.MaxPerOrganizer))
	}

	tpl := &models.CertificateTemplate{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Name:        name,
		IsDefault:   count == 0,
	}
	path := filepath.Join(s.config.TemplateDir, tpl.ID+ext)
	stored, err := s.files.Save(path, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store template image")
	}
	tpl.ImagePath = stored

	if err := s.templates.Create(ctx, tpl); err != nil {
		if delErr := s.files.Delete(stored); delErr != nil {
			s.logger.Warn("failed to clean up template image", zap.String("path", stored), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return tpl, nil
}

// List returns the organizer's templates.
func (s *TemplateService) List(ctx context.Context, organizerID string) ([]models.CertificateTemplate, error) {
	templates, err := s.templates.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// SetDefault marks one template as the organizer's default.
func (s *TemplateService) SetDefault(ctx context.Context, organizerID, templateID string) error {
	if err := s.templates.SetDefault(ctx, organizerID, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set default template")
	}
	return nil
}

// SavePositions validates and stores the field placement overrides.
func (s *TemplateService) SavePositions(ctx context.Context, organizerID, templateID, positions string) error {
	var parsed map[string]certificate.Position
	if err := json.Unmarshal([]byte(positions), &parsed); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "positions must be a JSON object of field placements")
	}
	if err := s.templates.UpdatePositions(ctx, templateID, organizerID, positions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save positions")
	}
	return nil
}

// Delete removes a template and its image. When the default goes, the
// newest remaining template takes over as default.
func (s *TemplateService) Delete(ctx context.Context, organizerID, templateID string) error {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if tpl.OrganizerID != organizerID {
		return appErrors.Clone(appErrors.ErrForbidden, "template belongs to another organizer")
	}

	if err := s.templates.Delete(ctx, templateID, organizerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}

	if err := s.files.Delete(tpl.ImagePath); err != nil {
		s.logger.Warn("failed to delete template image", zap.String("path", tpl.ImagePath), zap.Error(err))
	}
	return nil
}
