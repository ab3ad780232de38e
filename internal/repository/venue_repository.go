package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// VenueRepository handles persistence of venues and departments.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository constructs the repository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// FindByID returns a venue by ID.
func (r *VenueRepository) FindByID(ctx context.Context, id string) (*models.Venue, error) {
	const query = `SELECT id, name, department_id, capacity FROM venues WHERE id = $1`
	var venue models.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, err
	}
	return &venue, nil
}

// List returns all venues ordered by name.
func (r *VenueRepository) List(ctx context.Context) ([]models.Venue, error) {
	const query = `SELECT id, name, department_id, capacity FROM venues ORDER BY name`
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query); err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return venues, nil
}

// FindDepartment returns a department by ID.
func (r *VenueRepository) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name FROM departments WHERE id = $1`
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// ListDepartments returns all departments ordered by name.
func (r *VenueRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	const query = `SELECT id, name FROM departments ORDER BY name`
	var depts []models.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}
