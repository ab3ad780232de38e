package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// CertificateHandler exposes certificate and prize endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
	metrics      *service.MetricsService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService, metrics *service.MetricsService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, metrics: metrics}
}

// Generate godoc
// @Summary Generate the caller's certificate for an attended event
// @Tags Certificates
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/certificate [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	cert, err := h.certificates.Generate(c.Request.Context(), claims.UserID, c.Param("id"), false)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCertificateIssued()
	response.Created(c, cert)
}

// Mine godoc
// @Summary The caller's issued certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates/mine [get]
func (h *CertificateHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	certs, err := h.certificates.MyCertificates(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Download godoc
// @Summary Download a certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, path, err := h.certificates.Download(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificate-`+detail.EventTitle+`.pdf"`)
	c.File(path)
}

// AssignRegistrationPrize godoc
// @Summary Assign a prize to an individual registration
// @Tags Prizes
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.PrizeRequest true "Prize payload"
// @Success 204
// @Security BearerAuth
// @Router /registrations/{id}/prize [put]
func (h *CertificateHandler) AssignRegistrationPrize(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.PrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.certificates.AssignRegistrationPrize(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearRegistrationPrize godoc
// @Summary Remove a prize from an individual registration
// @Tags Prizes
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204
// @Security BearerAuth
// @Router /registrations/{id}/prize [delete]
func (h *CertificateHandler) ClearRegistrationPrize(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.certificates.ClearRegistrationPrize(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignTeamPrize godoc
// @Summary Assign a prize to a team
// @Tags Prizes
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body service.PrizeRequest true "Prize payload"
// @Success 204
// @Security BearerAuth
// @Router /teams/{id}/prize [put]
func (h *CertificateHandler) AssignTeamPrize(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.PrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.certificates.AssignTeamPrize(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearTeamPrize godoc
// @Summary Remove a prize from a team
// @Tags Prizes
// @Produce json
// @Param id path string true "Team ID"
// @Success 204
// @Security BearerAuth
// @Router /teams/{id}/prize [delete]
func (h *CertificateHandler) ClearTeamPrize(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.certificates.ClearTeamPrize(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
