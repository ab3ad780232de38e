package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// TeamHandler exposes team formation endpoints.
type TeamHandler struct {
	teams *service.TeamService
}

// NewTeamHandler constructs TeamHandler.
func NewTeamHandler(teams *service.TeamService) *TeamHandler {
	return &TeamHandler{teams: teams}
}

type respondInvitationRequest struct {
	Accept bool `json:"accept"`
}

// Create godoc
// @Summary Create a team for a team event
// @Tags Teams
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.CreateTeamRequest true "Team payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/teams [post]
func (h *TeamHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	team, err := h.teams.CreateTeam(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// Invite godoc
// @Summary Invite a student to the caller's team
// @Tags Teams
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body service.InviteRequest true "Invitee username"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /teams/{id}/invitations [post]
func (h *TeamHandler) Invite(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	inv, err := h.teams.Invite(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// Respond godoc
// @Summary Accept or decline a team invitation
// @Tags Teams
// @Accept json
// @Produce json
// @Param id path string true "Invitation ID"
// @Param payload body respondInvitationRequest true "Response"
// @Success 204
// @Security BearerAuth
// @Router /invitations/{id}/respond [put]
func (h *TeamHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	var req respondInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.teams.Respond(c.Request.Context(), c.Param("id"), claims.UserID, req.Accept); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyInvitations godoc
// @Summary The caller's pending invitations
// @Tags Teams
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /invitations/mine [get]
func (h *TeamHandler) MyInvitations(c *gin.Context) {
	claims := claimsFromContext(c)
	invitations, err := h.teams.MyInvitations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invitations, nil)
}

// EventTeams godoc
// @Summary Teams registered for an event
// @Tags Teams
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/teams [get]
func (h *TeamHandler) EventTeams(c *gin.Context) {
	teams, err := h.teams.EventTeams(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, nil)
}
