package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// FeedbackHandler exposes post-event feedback endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs FeedbackHandler.
func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Submit godoc
// @Summary Rate an attended event
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.SubmitFeedbackRequest true "Rating payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fb, err := h.feedback.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fb)
}

// EventFeedback godoc
// @Summary Feedback entries and summary for the organizer
// @Tags Feedback
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/feedback [get]
func (h *FeedbackHandler) EventFeedback(c *gin.Context) {
	claims := claimsFromContext(c)
	entries, summary, err := h.feedback.EventFeedback(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"summary": summary})
}
