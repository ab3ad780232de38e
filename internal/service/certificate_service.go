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

// participantPosition is excluded from prize annotations; everyone who
// attended gets a participation certificate anyway.
const participantPosition = "Participant"

type certificateRepository interface {
	Upsert(ctx context.Context, cert *models.Certificate) error
	FindByStudentAndEvent(ctx context.Context, studentID, eventID string) (*models.Certificate, error)
	FindDetailByID(ctx context.Context, id string) (*models.CertificateDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
}

type prizeRegistrationStore interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error)
	UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error
	ListByTeam(ctx context.Context, teamID string) ([]models.Registration, error)
}

type teamPrizeStore interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
	UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error
}

type templateReader interface {
	FindByID(ctx context.Context, id string) (*models.CertificateTemplate, error)
	FindDefaultByOrganizer(ctx context.Context, organizerID string) (*models.CertificateTemplate, error)
}

type attendanceReader interface {
	FindByRegistration(ctx context.Context, registrationID string) (*models.Attendance, error)
}

type certificateEventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error)
}

type certificateUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateFiles interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
	Exists(filename string) bool
	Delete(filename string) error
}

// PrizeRequest assigns a prize position, optionally with a custom title
// and a dedicated certificate template.
type PrizeRequest struct {
	Position   string `json:"position" validate:"required,min=1,max=40"`
	Title      string `json:"title,omitempty" validate:"omitempty,max=120"`
	TemplateID string `json:"template_id,omitempty"`
}

// CertificateService generates certificate PDFs and manages prize
// assignments that feed into them.
type CertificateService struct {
	certs      certificateRepository
	regs       prizeRegistrationStore
	teams      teamPrizeStore
	templates  templateReader
	attendance attendanceReader
	events     certificateEventReader
	users      certificateUserReader
	renderer   *certificate.Renderer
	files      certificateFiles
	certDir    string
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(certs certificateRepository, regs prizeRegistrationStore, teams teamPrizeStore, templates templateReader, attendance attendanceReader, events certificateEventReader, users certificateUserReader, renderer *certificate.Renderer, files certificateFiles, certDir string, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if certDir == "" {
		certDir = "certificates"
	}
	return &CertificateService{certs: certs, regs: regs, teams: teams, templates: templates, attendance: attendance, events: events, users: users, renderer: renderer, files: files, certDir: certDir, validator: validate, logger: logger}
}

// Generate renders and stores the certificate for an attended
// registration. Generation is idempotent: an existing certificate is
// returned as is unless force requests a fresh render. Every render writes
// a uniquely named file; the prior file is removed only after the record
// points at the new one, so a concurrent download never reads a partial
// write.
func (s *CertificateService) Generate(ctx context.Context, studentID, eventID string, force bool) (*models.Certificate, error) {
	reg, err := s.regs.FindByEventAndStudent(ctx, eventID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not registered for this event")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}

	existing, err := s.certs.FindByStudentAndEvent(ctx, studentID, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing certificate")
	}
	if existing != nil && !force && s.files.Exists(existing.FilePath) {
		return existing, nil
	}

	att, err := s.attendance.FindByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if att == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "attendance has not been recorded")
	}

	event, err := s.events.FindDetailByID(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	prizePosition, prizeTitle, prizeTemplateID, err := s.resolvePrize(ctx, event, reg)
	if err != nil {
		return nil, err
	}

	prizeText := ""
	if prizePosition != nil && *prizePosition != "" && !strings.EqualFold(*prizePosition, participantPosition) {
		title := ""
		if prizeTitle != nil {
			title = *prizeTitle
		}
		prizeText = certificate.PrizeLine(*prizePosition, title)
	}

	data := certificate.Data{
		StudentName:   student.FullName,
		EventTitle:    event.Title,
		EventDate:     event.StartsAt.Format("02 January 2006"),
		OrganizerName: event.OrganizerName,
		PrizeText:     prizeText,
	}

	pdf, err := s.render(ctx, event, prizeText, prizeTemplateID, data)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.certDir, fmt.Sprintf("cert_%s_%s_%s.pdf", studentID, eventID, uuid.NewString()))
	stored, err := s.files.Save(path, pdf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	cert := &models.Certificate{StudentID: studentID, EventID: eventID, FilePath: stored}
	if existing != nil {
		cert.ID = existing.ID
	}
	if err := s.certs.Upsert(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate")
	}

	if existing != nil && existing.FilePath != "" && existing.FilePath != stored {
		if err := s.files.Delete(existing.FilePath); err != nil {
			s.logger.Warn("failed to remove replaced certificate file",
				zap.String("path", existing.FilePath),
				zap.Error(err),
			)
		}
	}
	return cert, nil
}

// MyCertificates returns the student's issued certificates.
func (s *CertificateService) MyCertificates(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	certs, err := s.certs.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// Download returns the certificate detail and the on-disk path of its PDF.
// The file is re-rendered when missing from storage.
func (s *CertificateService) Download(ctx context.Context, certID, requesterID string, requesterRole models.UserRole) (*models.CertificateDetail, string, error) {
	detail, err := s.certs.FindDetailByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if requesterRole != models.RoleAdmin && detail.StudentID != requesterID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another student")
	}
	if !s.files.Exists(detail.FilePath) {
		if _, err := s.Generate(ctx, detail.StudentID, detail.EventID, true); err != nil {
			return nil, "", err
		}
	}
	return detail, s.files.Path(detail.FilePath), nil
}

// AssignRegistrationPrize records an individual prize and re-renders the
// winner's certificate when one was already issued.
func (s *CertificateService) AssignRegistrationPrize(ctx context.Context, regID, requesterID string, requesterRole models.UserRole, req PrizeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prize payload")
	}

	reg, err := s.regs.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	event, err := s.authorizePrize(ctx, reg.EventID, requesterID, requesterRole)
	if err != nil {
		return err
	}
	if event.IsTeamEvent {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "team events take team prizes")
	}

	position, title, templateID, err := s.prizeFields(ctx, event, req)
	if err != nil {
		return err
	}
	if err := s.regs.UpdatePrize(ctx, regID, position, title, templateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign prize")
	}

	s.refreshCertificate(ctx, reg.StudentID, reg.EventID)
	return nil
}

// ClearRegistrationPrize removes an individual prize assignment.
func (s *CertificateService) ClearRegistrationPrize(ctx context.Context, regID, requesterID string, requesterRole models.UserRole) error {
	reg, err := s.regs.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if _, err := s.authorizePrize(ctx, reg.EventID, requesterID, requesterRole); err != nil {
		return err
	}
	if err := s.regs.UpdatePrize(ctx, regID, nil, nil, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear prize")
	}
	s.refreshCertificate(ctx, reg.StudentID, reg.EventID)
	return nil
}

// AssignTeamPrize records a team prize and re-renders every attended
// member's certificate.
func (s *CertificateService) AssignTeamPrize(ctx context.Context, teamID, requesterID string, requesterRole models.UserRole, req PrizeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prize payload")
	}

	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	event, err := s.authorizePrize(ctx, team.EventID, requesterID, requesterRole)
	if err != nil {
		return err
	}

	position, title, templateID, err := s.prizeFields(ctx, event, req)
	if err != nil {
		return err
	}
	if err := s.teams.UpdatePrize(ctx, teamID, position, title, templateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign team prize")
	}

	s.refreshTeamCertificates(ctx, teamID, team.EventID)
	return nil
}

// ClearTeamPrize removes a team prize assignment.
func (s *CertificateService) ClearTeamPrize(ctx context.Context, teamID, requesterID string, requesterRole models.UserRole) error {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if _, err := s.authorizePrize(ctx, team.EventID, requesterID, requesterRole); err != nil {
		return err
	}
	if err := s.teams.UpdatePrize(ctx, teamID, nil, nil, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear team prize")
	}
	s.refreshTeamCertificates(ctx, teamID, team.EventID)
	return nil
}

// resolvePrize picks the prize fields governing this registration: the
// team's prize for team events, the registration's own otherwise.
func (s *CertificateService) resolvePrize(ctx context.Context, event *models.EventDetail, reg *models.Registration) (position, title, templateID *string, err error) {
	if event.IsTeamEvent && reg.TeamID != nil {
		team, err := s.teams.FindByID(ctx, *reg.TeamID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, nil, nil
			}
			return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
		}
		return team.PrizePosition, team.PrizeTitle, team.PrizeTemplateID, nil
	}
	return reg.PrizePosition, reg.PrizeTitle, reg.PrizeTemplateID, nil
}

// render resolves the template in priority order: the prize template for
// winners, then the event's template, then the organizer default, and
// finally a drawn fallback layout. Templates owned by someone other than
// the event organizer are skipped.
func (s *CertificateService) render(ctx context.Context, event *models.EventDetail, prizeText string, prizeTemplateID *string, data certificate.Data) ([]byte, error) {
	var candidates []string
	if prizeText != "" && prizeTemplateID != nil {
		candidates = append(candidates, *prizeTemplateID)
	}
	if event.TemplateID != nil {
		candidates = append(candidates, *event.TemplateID)
	}

	for _, id := range candidates {
		tpl, err := s.templates.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
		if pdf, ok := s.tryTemplate(event, tpl, data); ok {
			return pdf, nil
		}
	}

	tpl, err := s.templates.FindDefaultByOrganizer(ctx, event.OrganizerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load default template")
	}
	if tpl != nil {
		if pdf, ok := s.tryTemplate(event, tpl, data); ok {
			return pdf, nil
		}
	}

	pdf, err := s.renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return pdf, nil
}

func (s *CertificateService) tryTemplate(event *models.EventDetail, tpl *models.CertificateTemplate, data certificate.Data) ([]byte, bool) {
	if tpl.OrganizerID != event.OrganizerID {
		return nil, false
	}
	if !s.files.Exists(tpl.ImagePath) {
		s.logger.Warn("template image missing, falling through", zap.String("template_id", tpl.ID))
		return nil, false
	}

	var positions map[string]certificate.Position
	if tpl.Positions != nil && *tpl.Positions != "" {
		if err := json.Unmarshal([]byte(*tpl.Positions), &positions); err != nil {
			s.logger.Warn("invalid template positions, using defaults", zap.String("template_id", tpl.ID), zap.Error(err))
			positions = nil
		}
	}

	pdf, err := s.renderer.RenderWithTemplate(data, s.files.Path(tpl.ImagePath), positions)
	if err != nil {
		s.logger.Warn("template render failed, falling through", zap.String("template_id", tpl.ID), zap.Error(err))
		return nil, false
	}
	return pdf, true
}

func (s *CertificateService) prizeFields(ctx context.Context, event *models.Event, req PrizeRequest) (position, title, templateID *string, err error) {
	if !event.HasPrizes {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "event does not award prizes")
	}
	position = &req.Position
	if req.Title != "" {
		title = &req.Title
	}
	if req.TemplateID != "" {
		tpl, err := s.templates.FindByID(ctx, req.TemplateID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
			}
			return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
		if tpl.OrganizerID != event.OrganizerID {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrForbidden, "template belongs to another organizer")
		}
		templateID = &req.TemplateID
	}
	return position, title, templateID, nil
}

func (s *CertificateService) authorizePrize(ctx context.Context, eventID, requesterID string, requesterRole models.UserRole) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if requesterRole != models.RoleAdmin && event.OrganizerID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may manage prizes")
	}
	return event, nil
}

// refreshCertificate re-renders an already issued certificate so the
// prize change shows up. Nothing happens when no certificate exists yet.
func (s *CertificateService) refreshCertificate(ctx context.Context, studentID, eventID string) {
	existing, err := s.certs.FindByStudentAndEvent(ctx, studentID, eventID)
	if err != nil {
		s.logger.Warn("failed to check certificate for refresh", zap.String("student_id", studentID), zap.Error(err))
		return
	}
	if existing == nil {
		return
	}
	if _, err := s.Generate(ctx, studentID, eventID, true); err != nil {
		s.logger.Warn("failed to refresh certificate", zap.String("student_id", studentID), zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *CertificateService) refreshTeamCertificates(ctx context.Context, teamID, eventID string) {
	members, err := s.regs.ListByTeam(ctx, teamID)
	if err != nil {
		s.logger.Warn("failed to list team members for refresh", zap.String("team_id", teamID), zap.Error(err))
		return
	}
	for _, member := range members {
		s.refreshCertificate(ctx, member.StudentID, eventID)
	}
}
