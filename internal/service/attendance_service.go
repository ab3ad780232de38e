package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/qr"
)

type attendanceRepository interface {
	Mark(ctx context.Context, att *models.Attendance) (bool, error)
	FindByRegistration(ctx context.Context, registrationID string) (*models.Attendance, error)
}

type scanRegistrationReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	FindByEventAndIdentifier(ctx context.Context, eventID, identifier string) (*models.Registration, error)
}

type certificateIssuer interface {
	Generate(ctx context.Context, studentID, eventID string, force bool) (*models.Certificate, error)
}

// AttendanceService marks attendance from QR scans, manual entry and bulk
// uploads. Attendance is accepted from the event start until a grace
// period after it ends.
type AttendanceService struct {
	attendance attendanceRepository
	regs       scanRegistrationReader
	events     eventReader
	signer     *qr.Signer
	certs      certificateIssuer
	grace      time.Duration
	logger     *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(attendance attendanceRepository, regs scanRegistrationReader, events eventReader, signer *qr.Signer, certs certificateIssuer, grace time.Duration, logger *zap.Logger) *AttendanceService {
	if grace <= 0 {
		grace = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{attendance: attendance, regs: regs, events: events, signer: signer, certs: certs, grace: grace, logger: logger}
}

// Scan processes a QR code scanned during the session for one event.
// Tampered or malformed codes, and codes issued for a different event,
// come back as invalid results; a second scan of the same pass reports the
// original scan time instead of failing.
func (s *AttendanceService) Scan(ctx context.Context, eventID, scannerID string, scannerRole models.UserRole, rawCode string) (*models.ScanResult, error) {
	event, err := s.authorizeScanner(ctx, eventID, scannerID, scannerRole)
	if err != nil {
		return nil, err
	}

	payload, err := s.signer.Decode(rawCode)
	if err != nil {
		return &models.ScanResult{Outcome: models.ScanOutcomeInvalid, Message: "QR code is invalid or tampered"}, nil
	}
	if payload.EventID != eventID {
		return &models.ScanResult{Outcome: models.ScanOutcomeInvalid, Message: "QR code is for a different event"}, nil
	}

	reg, err := s.regs.FindDetailByID(ctx, payload.RegistrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ScanResult{Outcome: models.ScanOutcomeInvalid, Message: "registration no longer exists"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if reg.EventID != payload.EventID || reg.StudentID != payload.StudentID {
		return &models.ScanResult{Outcome: models.ScanOutcomeInvalid, Message: "QR code does not match its registration"}, nil
	}

	if err := s.checkWindow(event); err != nil {
		return nil, err
	}

	return s.mark(ctx, reg, scannerID)
}

// MarkManual marks a participant present by email or username, for
// registrants whose pass cannot be scanned.
func (s *AttendanceService) MarkManual(ctx context.Context, eventID, scannerID string, scannerRole models.UserRole, identifier string) (*models.ScanResult, error) {
	event, err := s.authorizeScanner(ctx, eventID, scannerID, scannerRole)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(event); err != nil {
		return nil, err
	}

	reg, err := s.regs.FindByEventAndIdentifier(ctx, eventID, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ScanResult{Outcome: models.ScanOutcomeInvalid, Message: "no registration matches that participant"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up registration")
	}
	detail, err := s.regs.FindDetailByID(ctx, reg.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration detail")
	}

	return s.mark(ctx, detail, scannerID)
}

// BulkUpload marks many participants at once from an uploaded roster.
// Rows that fail keep their own tally; the upload never aborts midway.
func (s *AttendanceService) BulkUpload(ctx context.Context, eventID, scannerID string, scannerRole models.UserRole, rows []models.BulkAttendanceRow) (*models.BulkAttendanceReport, error) {
	event, err := s.authorizeScanner(ctx, eventID, scannerID, scannerRole)
	if err != nil {
		return nil, err
	}
	if err := s.checkWindow(event); err != nil {
		return nil, err
	}

	report := &models.BulkAttendanceReport{}
	for i, row := range rows {
		identifier := row.Email
		if identifier == "" {
			identifier = row.Username
		}
		if identifier == "" {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: no email or username", i+1))
			continue
		}

		reg, err := s.regs.FindByEventAndIdentifier(ctx, eventID, identifier)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				report.NotRegistered++
				continue
			}
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		inserted, err := s.attendance.Mark(ctx, &models.Attendance{RegistrationID: reg.ID, ScannedBy: scannerID})
		if err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if !inserted {
			report.AlreadyMarked++
			continue
		}
		report.Marked++
		s.issueCertificate(ctx, reg.StudentID, reg.EventID)
	}
	return report, nil
}

func (s *AttendanceService) mark(ctx context.Context, reg *models.RegistrationDetail, scannerID string) (*models.ScanResult, error) {
	att := &models.Attendance{RegistrationID: reg.ID, ScannedBy: scannerID}
	inserted, err := s.attendance.Mark(ctx, att)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	if !inserted {
		existing, err := s.attendance.FindByRegistration(ctx, reg.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior scan")
		}
		result := &models.ScanResult{
			Outcome:      models.ScanOutcomeDuplicate,
			Message:      "attendance was already recorded",
			StudentName:  reg.StudentName,
			StudentEmail: reg.StudentEmail,
			EventTitle:   reg.EventTitle,
		}
		if existing != nil {
			result.ScannedAt = &existing.ScannedAt
		}
		return result, nil
	}

	s.issueCertificate(ctx, reg.StudentID, reg.EventID)

	return &models.ScanResult{
		Outcome:      models.ScanOutcomeSuccess,
		Message:      "attendance recorded",
		StudentName:  reg.StudentName,
		StudentEmail: reg.StudentEmail,
		EventTitle:   reg.EventTitle,
		ScannedAt:    &att.ScannedAt,
	}, nil
}

// issueCertificate generates the participant's certificate best effort; a
// failure is logged and the certificate can be regenerated later.
func (s *AttendanceService) issueCertificate(ctx context.Context, studentID, eventID string) {
	if s.certs == nil {
		return
	}
	if _, err := s.certs.Generate(ctx, studentID, eventID, false); err != nil {
		s.logger.Warn("certificate generation failed after attendance",
			zap.String("student_id", studentID),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

func (s *AttendanceService) authorizeScanner(ctx context.Context, eventID, scannerID string, scannerRole models.UserRole) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if scannerRole != models.RoleAdmin && event.OrganizerID != scannerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the organizer may record attendance")
	}
	return event, nil
}

func (s *AttendanceService) checkWindow(event *models.Event) error {
	now := time.Now().UTC()
	if now.Before(event.StartsAt) {
		msg := fmt.Sprintf("attendance opens at the event start, %s", event.StartsAt.UTC().Format("02 Jan 2006 15:04 MST"))
		return appErrors.Clone(appErrors.ErrWindowNotStarted, msg)
	}
	if now.After(event.EndsAt.Add(s.grace)) {
		return appErrors.Clone(appErrors.ErrWindowExpired, "")
	}
	return nil
}
