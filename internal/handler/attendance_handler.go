package handler

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/service"
	appErrors "github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/errors"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/response"
)

// AttendanceHandler exposes attendance marking endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	metrics    *service.MetricsService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, metrics: metrics}
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

type manualMarkRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// Scan godoc
// @Summary Mark attendance from a QR code scanned for an event
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body scanRequest true "Scanned code or URL"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	claims := claimsFromContext(c)
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.Scan(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordScan(string(result.Outcome))
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkManual godoc
// @Summary Mark a participant present by email or username
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body manualMarkRequest true "Participant identifier"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/attendance [post]
func (h *AttendanceHandler) MarkManual(c *gin.Context) {
	claims := claimsFromContext(c)
	var req manualMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.MarkManual(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req.Identifier)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordScan(string(result.Outcome))
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkUpload godoc
// @Summary Mark attendance from an uploaded CSV roster
// @Tags Attendance
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Event ID"
// @Param file formData file true "CSV with email or username columns"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/attendance/bulk [post]
func (h *AttendanceHandler) BulkUpload(c *gin.Context) {
	claims := claimsFromContext(c)
	_, data, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := parseAttendanceCSV(data)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.attendance.BulkUpload(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// parseAttendanceCSV reads a roster with a header row naming email and/or
// username columns. Without a recognizable header the first column is
// treated as an email.
func parseAttendanceCSV(data []byte) ([]models.BulkAttendanceRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil && err != io.EOF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster is not valid CSV")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster is empty")
	}

	emailCol, usernameCol := -1, -1
	start := 0
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "email":
			emailCol = i
			start = 1
		case "username":
			usernameCol = i
			start = 1
		}
	}
	if emailCol == -1 && usernameCol == -1 {
		emailCol = 0
	}

	var rows []models.BulkAttendanceRow
	for _, record := range records[start:] {
		var row models.BulkAttendanceRow
		if emailCol >= 0 && emailCol < len(record) {
			row.Email = strings.TrimSpace(record[emailCol])
		}
		if usernameCol >= 0 && usernameCol < len(record) {
			row.Username = strings.TrimSpace(record[usernameCol])
		}
		rows = append(rows, row)
	}
	return rows, nil
}
