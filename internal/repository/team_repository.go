package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// ErrTeamAtCapacity is returned when an acceptance would exceed the
// event's maximum team size.
var ErrTeamAtCapacity = fmt.Errorf("team at capacity")

// TeamRepository handles persistence of teams and invitations.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = `t.id, t.event_id, t.name, t.leader_id, t.prize_position, t.prize_title, t.prize_template_id, t.created_at`

// CreateWithLeader inserts the team and the leader's registration in one
// transaction so a half-created team never exists.
func (r *TeamRepository) CreateWithLeader(ctx context.Context, team *models.Team, leaderReg *models.Registration) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	if leaderReg.ID == "" {
		leaderReg.ID = uuid.NewString()
	}
	if leaderReg.RegisteredAt.IsZero() {
		leaderReg.RegisteredAt = time.Now().UTC()
	}
	leaderReg.TeamID = &team.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create team: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const insertTeam = `INSERT INTO teams (id, event_id, name, leader_id, created_at)
        VALUES (:id, :event_id, :name, :leader_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertTeam, team); err != nil {
		return fmt.Errorf("insert team: %w", err)
	}

	const insertReg = `INSERT INTO registrations (id, event_id, student_id, team_id, qr_code, registered_at)
        VALUES (:id, :event_id, :student_id, :team_id, :qr_code, :registered_at)`
	if _, err := tx.NamedExecContext(ctx, insertReg, leaderReg); err != nil {
		return fmt.Errorf("insert leader registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create team: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns a team by ID.
func (r *TeamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	query := fmt.Sprintf("SELECT %s FROM teams t WHERE t.id = $1", teamColumns)
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// ExistsByEventAndName checks team name uniqueness within an event.
func (r *TeamRepository) ExistsByEventAndName(ctx context.Context, eventID, name string) (bool, error) {
	const query = `SELECT 1 FROM teams WHERE event_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, eventID, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check team name: %w", err)
	}
	return true, nil
}

// CountMembers returns the team's current member count.
func (r *TeamRepository) CountMembers(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE team_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teamID); err != nil {
		return 0, fmt.Errorf("count team members: %w", err)
	}
	return count, nil
}

// ListByEvent returns an event's teams with member counts.
func (r *TeamRepository) ListByEvent(ctx context.Context, eventID string) ([]models.TeamDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS leader_name,
        (SELECT COUNT(*) FROM registrations reg WHERE reg.team_id = t.id) AS member_count
        FROM teams t
        JOIN users u ON u.id = t.leader_id
        WHERE t.event_id = $1
        ORDER BY t.created_at`, teamColumns)
	var teams []models.TeamDetail
	if err := r.db.SelectContext(ctx, &teams, query, eventID); err != nil {
		return nil, fmt.Errorf("list event teams: %w", err)
	}
	return teams, nil
}

// CreateInvitation records a pending invitation. A partial unique index on
// (team_id, invitee_id) for pending rows absorbs duplicate invites.
func (r *TeamRepository) CreateInvitation(ctx context.Context, inv *models.TeamInvitation) (bool, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO team_invitations (id, team_id, invitee_id, status, created_at)
        VALUES (:id, :team_id, :invitee_id, :status, :created_at)
        ON CONFLICT (team_id, invitee_id) WHERE status = 'pending' DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, inv)
	if err != nil {
		return false, fmt.Errorf("create invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create invitation rows: %w", err)
	}
	return n > 0, nil
}

// FindInvitation returns an invitation by ID.
func (r *TeamRepository) FindInvitation(ctx context.Context, id string) (*models.TeamInvitation, error) {
	const query = `SELECT id, team_id, invitee_id, status, created_at, responded_at FROM team_invitations WHERE id = $1`
	var inv models.TeamInvitation
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvitationsForStudent returns the student's pending invitations with
// team and event context.
func (r *TeamRepository) ListInvitationsForStudent(ctx context.Context, studentID string) ([]models.InvitationDetail, error) {
	const query = `SELECT i.id, i.team_id, i.invitee_id, i.status, i.created_at, i.responded_at,
        t.name AS team_name, u.full_name AS leader_name,
        e.id AS event_id, e.title AS event_title, e.starts_at AS event_starts_at
        FROM team_invitations i
        JOIN teams t ON t.id = i.team_id
        JOIN users u ON u.id = t.leader_id
        JOIN events e ON e.id = t.event_id
        WHERE i.invitee_id = $1 AND i.status = $2
        ORDER BY i.created_at DESC`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query, studentID, models.InvitationStatusPending); err != nil {
		return nil, fmt.Errorf("list student invitations: %w", err)
	}
	return invitations, nil
}

// AcceptInvitation marks the invitation accepted and registers the invitee
// in one transaction. The team row is locked so concurrent acceptances
// re-validate capacity against committed membership.
func (r *TeamRepository) AcceptInvitation(ctx context.Context, inv *models.TeamInvitation, reg *models.Registration, maxTeamSize int) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}
	reg.TeamID = &inv.TeamID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept invitation: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var teamID string
	if err := tx.GetContext(ctx, &teamID, `SELECT id FROM teams WHERE id = $1 FOR UPDATE`, inv.TeamID); err != nil {
		return fmt.Errorf("lock team: %w", err)
	}

	var members int
	if err := tx.GetContext(ctx, &members, `SELECT COUNT(*) FROM registrations WHERE team_id = $1`, inv.TeamID); err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if maxTeamSize > 0 && members >= maxTeamSize {
		return ErrTeamAtCapacity
	}

	const updateInv = `UPDATE team_invitations SET status = $2, responded_at = $3 WHERE id = $1 AND status = $4`
	res, err := tx.ExecContext(ctx, updateInv, inv.ID, models.InvitationStatusAccepted, time.Now().UTC(), models.InvitationStatusPending)
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	const insertReg = `INSERT INTO registrations (id, event_id, student_id, team_id, qr_code, registered_at)
        VALUES (:id, :event_id, :student_id, :team_id, :qr_code, :registered_at)`
	if _, err := tx.NamedExecContext(ctx, insertReg, reg); err != nil {
		return fmt.Errorf("insert member registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept invitation: %w", err)
	}
	commit = true
	return nil
}

// RejectInvitation marks a pending invitation rejected.
func (r *TeamRepository) RejectInvitation(ctx context.Context, id string) error {
	const query = `UPDATE team_invitations SET status = $2, responded_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.InvitationStatusRejected, time.Now().UTC(), models.InvitationStatusPending)
	if err != nil {
		return fmt.Errorf("reject invitation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePrize sets or clears the team prize. Passing nil values clears it.
func (r *TeamRepository) UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error {
	const query = `UPDATE teams SET prize_position = $2, prize_title = $3, prize_template_id = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, position, title, templateID)
	if err != nil {
		return fmt.Errorf("update team prize: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
