package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
)

type venueDirectory interface {
	List(ctx context.Context) ([]models.Venue, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
}

// VenueService serves the venue and department directory backing event
// creation forms.
type VenueService struct {
	venues venueDirectory
	logger *zap.Logger
}

// NewVenueService constructs VenueService.
func NewVenueService(venues venueDirectory, logger *zap.Logger) *VenueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueService{venues: venues, logger: logger}
}

// Venues lists all bookable venues.
func (s *VenueService) Venues(ctx context.Context) ([]models.Venue, error) {
	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list venues")
	}
	return venues, nil
}

// Departments lists all departments.
func (s *VenueService) Departments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.venues.ListDepartments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}
