package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// EventRepository handles persistence of events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `e.id, e.title, e.description, e.starts_at, e.ends_at, e.venue_id, e.department_id, e.mode,
        e.meeting_url, e.poster_path, e.certificate_template_id, e.scan_token, e.organizer_id, e.status,
        e.is_team_event, e.min_team_size, e.max_team_size, e.campus_exclusive, e.has_prizes, e.duty_leave,
        e.created_at, e.updated_at`

// Create persists a new event record.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO events (id, title, description, starts_at, ends_at, venue_id, department_id, mode,
        meeting_url, poster_path, certificate_template_id, scan_token, organizer_id, status,
        is_team_event, min_team_size, max_team_size, campus_exclusive, has_prizes, duty_leave, created_at, updated_at)
        VALUES (:id, :title, :description, :starts_at, :ends_at, :venue_id, :department_id, :mode,
        :meeting_url, :poster_path, :certificate_template_id, :scan_token, :organizer_id, :status,
        :is_team_event, :min_team_size, :max_team_size, :campus_exclusive, :has_prizes, :duty_leave, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an event.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, starts_at = :starts_at,
        ends_at = :ends_at, venue_id = :venue_id, department_id = :department_id, mode = :mode,
        meeting_url = :meeting_url, poster_path = :poster_path, certificate_template_id = :certificate_template_id,
        status = :status, is_team_event = :is_team_event, min_team_size = :min_team_size,
        max_team_size = :max_team_size, campus_exclusive = :campus_exclusive, has_prizes = :has_prizes,
        duty_leave = :duty_leave, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// FindByID returns an event by its ID.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events e WHERE e.id = $1", eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// FindDetailByID returns an event with joined display fields.
func (r *EventRepository) FindDetailByID(ctx context.Context, id string) (*models.EventDetail, error) {
	query := fmt.Sprintf(`SELECT %s, v.name AS venue_name, d.name AS department_name, u.full_name AS organizer_name
        FROM events e
        LEFT JOIN venues v ON v.id = e.venue_id
        LEFT JOIN departments d ON d.id = e.department_id
        JOIN users u ON u.id = e.organizer_id
        WHERE e.id = $1`, eventColumns)
	var detail models.EventDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns events filtered by the provided criteria.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.EventDetail, int, error) {
	base := `FROM events e
LEFT JOIN venues v ON v.id = e.venue_id
LEFT JOIN departments d ON d.id = e.department_id
JOIN users u ON u.id = e.organizer_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.OrganizerID != "" {
		conditions = append(conditions, fmt.Sprintf("e.organizer_id = $%d", len(args)+1))
		args = append(args, filter.OrganizerID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("e.ends_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("e.starts_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.ExcludeCampus {
		conditions = append(conditions, "e.campus_exclusive = FALSE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"starts_at":  "e.starts_at",
		"title":      "e.title",
		"created_at": "e.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "starts_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.starts_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, v.name AS venue_name, d.name AS department_name, u.full_name AS organizer_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, eventColumns, base+clause, orderBy, order, size, offset)

	var events []models.EventDetail
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// FindConflict returns an approved or pending event holding the venue for
// an overlapping time range, if any.
func (r *EventRepository) FindConflict(ctx context.Context, venueID string, startsAt, endsAt time.Time, excludeID string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e
        WHERE e.venue_id = $1 AND e.status <> $2 AND e.starts_at < $3 AND e.ends_at > $4`, eventColumns)
	args := []interface{}{venueID, models.EventStatusRejected, endsAt, startsAt}
	if excludeID != "" {
		query += fmt.Sprintf(" AND e.id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find venue conflict: %w", err)
	}
	return &event, nil
}

// UpdateStatus moves an event to a new lifecycle status.
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status models.EventStatus) error {
	const query = `UPDATE events SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}

// UpdatePoster stores the saved poster path.
func (r *EventRepository) UpdatePoster(ctx context.Context, id, posterPath string) error {
	const query = `UPDATE events SET poster_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, posterPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("update event poster: %w", err)
	}
	return nil
}

// Delete removes an event. Registrations, approvals, teams, attendance,
// certificates and feedback follow via ON DELETE CASCADE.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM events WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates registration, attendance, certificate and team counts.
func (r *EventRepository) Stats(ctx context.Context, eventID string) (*models.EventStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM registrations WHERE event_id = $1) AS registrations,
        (SELECT COUNT(*) FROM attendance a JOIN registrations reg ON reg.id = a.registration_id WHERE reg.event_id = $1) AS attended,
        (SELECT COUNT(*) FROM certificates WHERE event_id = $1) AS certificates,
        (SELECT COUNT(*) FROM teams WHERE event_id = $1) AS teams`
	var stats models.EventStats
	if err := r.db.GetContext(ctx, &stats, query, eventID); err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return &stats, nil
}
