package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/internal/service"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
	"github.com/reefdesk/dive-admin-api/pkg/response"
)

// AvailabilityHandler wires the availability service to HTTP routes.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
	metrics      *service.MetricsService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService, metrics *service.MetricsService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, metrics: metrics}
}

// ListRules godoc
// @Summary List availability rules
// @Description Returns the instructor's raw rule set: weekly schedule, overrides and time off
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/availability/rules [get]
func (h *AvailabilityHandler) ListRules(c *gin.Context) {
	rules, err := h.availability.ListRules(c.Request.Context(), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// ResolveDay godoc
// @Summary Resolve availability for one date
// @Description Applies time off, date overrides and the weekly schedule in precedence order
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param location_id query string false "Location scope"
// @Param start query string false "Requested window start (HH:MM)"
// @Param end query string false "Requested window end (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/availability [get]
func (h *AvailabilityHandler) ResolveDay(c *gin.Context) {
	date, err := parseDateParam(c.Query("date"), "date")
	if err != nil {
		response.Error(c, err)
		return
	}

	verdict, err := h.availability.ResolveDay(c.Request.Context(), c.Param("instructorId"), date, locationParam(c), windowParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordResolution(verdict.IsAvailable)
	response.JSON(c, http.StatusOK, verdict, nil)
}

// ResolveRange godoc
// @Summary Resolve availability for a date range
// @Description Evaluates every date in [from, to] independently, e.g. for the calendar month view
// @Tags Availability
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param location_id query string false "Location scope"
// @Param start query string false "Requested window start (HH:MM)"
// @Param end query string false "Requested window end (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/availability/range [get]
func (h *AvailabilityHandler) ResolveRange(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"), "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"), "to")
	if err != nil {
		response.Error(c, err)
		return
	}

	verdicts, err := h.availability.ResolveRange(c.Request.Context(), c.Param("instructorId"), from, to, locationParam(c), windowParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	for _, verdict := range verdicts {
		h.metrics.RecordResolution(verdict.IsAvailable)
	}
	response.JSON(c, http.StatusOK, verdicts, nil)
}

// ReplaceWeeklySchedule godoc
// @Summary Replace the weekly schedule
// @Description Replaces the instructor's entire recurring schedule in one write; any invalid entry rejects the whole batch
// @Tags Availability
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body service.ReplaceWeeklyScheduleRequest true "Weekly grid"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{instructorId}/availability/weekly [put]
func (h *AvailabilityHandler) ReplaceWeeklySchedule(c *gin.Context) {
	var req service.ReplaceWeeklyScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid weekly schedule payload"))
		return
	}
	rules, err := h.availability.ReplaceWeeklySchedule(c.Request.Context(), c.Param("instructorId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// AddOverride godoc
// @Summary Add a date override
// @Description Adds a one-off rule for a specific date, superseding the weekly schedule on that date
// @Tags Availability
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body service.OverrideRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /instructors/{instructorId}/availability/overrides [post]
func (h *AvailabilityHandler) AddOverride(c *gin.Context) {
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	rule, err := h.availability.AddOverride(c.Request.Context(), c.Param("instructorId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// AddTimeOff godoc
// @Summary Add a time-off block
// @Description Blocks the whole date regardless of location; past dates are rejected
// @Tags Availability
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body service.TimeOffRequest true "Time off payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructors/{instructorId}/availability/time-off [post]
func (h *AvailabilityHandler) AddTimeOff(c *gin.Context) {
	var req service.TimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time off payload"))
		return
	}
	rule, err := h.availability.AddTimeOff(c.Request.Context(), c.Param("instructorId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// DeleteOverride godoc
// @Summary Delete a date override
// @Tags Availability
// @Param instructorId path string true "Instructor ID"
// @Param ruleId path string true "Rule ID"
// @Success 204
// @Router /instructors/{instructorId}/availability/overrides/{ruleId} [delete]
func (h *AvailabilityHandler) DeleteOverride(c *gin.Context) {
	if err := h.availability.RemoveRule(c.Request.Context(), c.Param("instructorId"), c.Param("ruleId"), models.RuleTypeOverride); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteTimeOff godoc
// @Summary Delete a time-off block
// @Tags Availability
// @Param instructorId path string true "Instructor ID"
// @Param ruleId path string true "Rule ID"
// @Success 204
// @Router /instructors/{instructorId}/availability/time-off/{ruleId} [delete]
func (h *AvailabilityHandler) DeleteTimeOff(c *gin.Context) {
	if err := h.availability.RemoveRule(c.Request.Context(), c.Param("instructorId"), c.Param("ruleId"), models.RuleTypeTimeOff); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportWeeklySchedule godoc
// @Summary Export the weekly schedule
// @Description Downloads the weekly grid plus time-off list as CSV or PDF
// @Tags Availability
// @Produce octet-stream
// @Param instructorId path string true "Instructor ID"
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} byte
// @Router /instructors/{instructorId}/availability/export [get]
func (h *AvailabilityHandler) ExportWeeklySchedule(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	payload, contentType, err := h.availability.ExportWeeklySchedule(c.Request.Context(), c.Param("instructorId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("schedule-%s.%s", c.Param("instructorId"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func parseDateParam(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, appErrors.Validation("missing query parameter",
			appErrors.FieldError{Field: field, Message: "required, format YYYY-MM-DD"})
	}
	date, err := time.Parse(models.VerdictDateFormat, raw)
	if err != nil {
		return time.Time{}, appErrors.Validation("invalid query parameter",
			appErrors.FieldError{Field: field, Message: "must be a date in YYYY-MM-DD format"})
	}
	return date, nil
}

func locationParam(c *gin.Context) *string {
	if loc := strings.TrimSpace(c.Query("location_id")); loc != "" {
		return &loc
	}
	return nil
}

func windowParams(c *gin.Context) *models.TimeWindow {
	start := strings.TrimSpace(c.Query("start"))
	end := strings.TrimSpace(c.Query("end"))
	if start == "" && end == "" {
		return nil
	}
	return &models.TimeWindow{Start: start, End: end}
}
