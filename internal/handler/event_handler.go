package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

const maxUploadBytes = 8 << 20

// EventHandler exposes event lifecycle endpoints.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param status query string false "Filter by status (staff only for non-approved)"
// @Param departmentId query string false "Filter by department"
// @Param organizerId query string false "Filter by organizer"
// @Param from query string false "Events starting at or after (RFC3339)"
// @Param to query string false "Events starting before (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.EventFilter
	filter.Status = models.EventStatusApproved
	if status := c.Query("status"); status != "" && isStaff(claims) {
		filter.Status = models.EventStatus(status)
	}
	filter.DepartmentID = c.Query("departmentId")
	filter.OrganizerID = c.Query("organizerId")
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Guests and anonymous visitors never see campus-exclusive events.
	if claims == nil || claims.Role == models.RoleGuest {
		filter.ExcludeCampus = true
	}

	events, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get one event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	detail, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Propose a new event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.events.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Edit an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.events.Update(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Security BearerAuth
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.events.Delete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Organizer dashboard counters for an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/stats [get]
func (h *EventHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	stats, err := h.events.Stats(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// UploadPoster godoc
// @Summary Upload the event poster image
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Event ID"
// @Param file formData file true "Poster image"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/poster [post]
func (h *EventHandler) UploadPoster(c *gin.Context) {
	claims := claimsFromContext(c)
	filename, data, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	path, err := h.events.UploadPoster(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"poster_path": path}, nil)
}

func isStaff(claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleOrganizer, models.RoleHOD, models.RolePrincipal:
		return true
	}
	return false
}

func readUpload(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "file upload required")
	}
	if header.Size > maxUploadBytes {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}
	file, err := header.Open()
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if len(data) > maxUploadBytes {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}
	return header.Filename, data, nil
}
