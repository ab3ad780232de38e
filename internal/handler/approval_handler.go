package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// ApprovalHandler exposes the approval workflow endpoints.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler constructs ApprovalHandler.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// Pending godoc
// @Summary List the caller's pending approvals
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	approvals, err := h.approvals.PendingFor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, nil)
}

// Decide godoc
// @Summary Approve or reject an event
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body service.DecideApprovalRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/{id}/decide [put]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.approvals.Decide(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// ListForEvent godoc
// @Summary Approval trail for an event
// @Tags Approvals
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/approvals [get]
func (h *ApprovalHandler) ListForEvent(c *gin.Context) {
	claims := claimsFromContext(c)
	approvals, err := h.approvals.ListForEvent(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, nil)
}
