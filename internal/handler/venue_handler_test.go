package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
)

type fakeVenueDir struct {
	venues      []models.Venue
	departments []models.Department
	err         error
}

func (f *fakeVenueDir) List(context.Context) ([]models.Venue, error) {
	return f.venues, f.err
}

func (f *fakeVenueDir) ListDepartments(context.Context) ([]models.Department, error) {
	return f.departments, f.err
}

type venueEnvelope struct {
	Data  []models.Venue `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestVenueHandlerVenues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewVenueService(&fakeVenueDir{venues: []models.Venue{
		{ID: "venue-1", Name: "Main Auditorium", Capacity: 400},
	}}, nil)
	h := NewVenueHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/venues", nil)

	h.Venues(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope venueEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Main Auditorium", envelope.Data[0].Name)
}

func TestVenueHandlerVenuesFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewVenueService(&fakeVenueDir{err: errors.New("db down")}, nil)
	h := NewVenueHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/venues", nil)

	h.Venues(c)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var envelope venueEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
}

func TestVenueHandlerDepartments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewVenueService(&fakeVenueDir{departments: []models.Department{
		{ID: "dept-1", Name: "Computer Science"},
	}}, nil)
	h := NewVenueHandler(svc)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/departments", nil)

	h.Departments(c)

	require.Equal(t, http.StatusOK, rec.Code)
}
