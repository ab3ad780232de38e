package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// VenueHandler exposes the venue and department directory.
type VenueHandler struct {
	venues *service.VenueService
}

// NewVenueHandler constructs VenueHandler.
func NewVenueHandler(venues *service.VenueService) *VenueHandler {
	return &VenueHandler{venues: venues}
}

// Venues godoc
// @Summary List bookable venues
// @Tags Venues
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /venues [get]
func (h *VenueHandler) Venues(c *gin.Context) {
	venues, err := h.venues.Venues(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venues, nil)
}

// Departments godoc
// @Summary List departments
// @Tags Venues
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *VenueHandler) Departments(c *gin.Context) {
	departments, err := h.venues.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}
