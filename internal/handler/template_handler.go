package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// TemplateHandler exposes certificate template management endpoints.
type TemplateHandler struct {
	templates *service.TemplateService
}

// NewTemplateHandler constructs TemplateHandler.
func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type savePositionsRequest struct {
	Positions string `json:"positions" binding:"required"`
}

// Upload godoc
// @Summary Upload a certificate template image
// @Tags Templates
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Template name"
// @Param file formData file true "Template image (jpg or png)"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [post]
func (h *TemplateHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	filename, data, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	tpl, err := h.templates.Upload(c.Request.Context(), claims.UserID, c.PostForm("name"), filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// List godoc
// @Summary The caller's certificate templates
// @Tags Templates
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	templates, err := h.templates.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// SetDefault godoc
// @Summary Mark a template as the caller's default
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Security BearerAuth
// @Router /templates/{id}/default [put]
func (h *TemplateHandler) SetDefault(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.templates.SetDefault(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SavePositions godoc
// @Summary Save field placement overrides for a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body savePositionsRequest true "Positions JSON"
// @Success 204
// @Security BearerAuth
// @Router /templates/{id}/positions [put]
func (h *TemplateHandler) SavePositions(c *gin.Context) {
	claims := claimsFromContext(c)
	var req savePositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.templates.SavePositions(c.Request.Context(), claims.UserID, c.Param("id"), req.Positions); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a certificate template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Security BearerAuth
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.templates.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
