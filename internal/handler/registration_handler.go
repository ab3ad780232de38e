package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// RegistrationHandler exposes individual registration endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register godoc
// @Summary Register for an event and receive the QR pass
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, err := h.registrations.Register(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Mine godoc
// @Summary The caller's registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/mine [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	regs, err := h.registrations.MyRegistrations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Participants godoc
// @Summary Participant list for the organizer
// @Tags Registrations
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/participants [get]
func (h *RegistrationHandler) Participants(c *gin.Context) {
	claims := claimsFromContext(c)
	regs, err := h.registrations.EventParticipants(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}
