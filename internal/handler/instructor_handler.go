package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/internal/service"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
	"github.com/reefdesk/dive-admin-api/pkg/response"
)

// InstructorHandler exposes instructor management endpoints.
type InstructorHandler struct {
	instructors *service.InstructorService
}

// NewInstructorHandler constructs an InstructorHandler.
func NewInstructorHandler(instructors *service.InstructorService) *InstructorHandler {
	return &InstructorHandler{instructors: instructors}
}

// List godoc
// @Summary List instructors
// @Tags Instructors
// @Produce json
// @Param search query string false "Search by name or email"
// @Param active query bool false "Filter by active flag"
// @Param location_id query string false "Filter by assigned location"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *InstructorHandler) List(c *gin.Context) {
	filter := models.InstructorFilter{
		Search:     c.Query("search"),
		Active:     queryBool(c, "active"),
		LocationID: c.Query("location_id"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}

	instructors, pagination, err := h.instructors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// Get godoc
// @Summary Get instructor by ID
// @Tags Instructors
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructors/{instructorId} [get]
func (h *InstructorHandler) Get(c *gin.Context) {
	instructor, err := h.instructors.Get(c.Request.Context(), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Create godoc
// @Summary Create instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param payload body service.CreateInstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /instructors [post]
func (h *InstructorHandler) Create(c *gin.Context) {
	var req service.CreateInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid instructor payload"))
		return
	}
	instructor, err := h.instructors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instructor)
}

// Update godoc
// @Summary Update instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Param payload body service.UpdateInstructorRequest true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId} [put]
func (h *InstructorHandler) Update(c *gin.Context) {
	var req service.UpdateInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid instructor payload"))
		return
	}
	instructor, err := h.instructors.Update(c.Request.Context(), c.Param("instructorId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Deactivate godoc
// @Summary Deactivate instructor
// @Description Soft-deletes the instructor; existing rules and bookings are kept for history
// @Tags Instructors
// @Param instructorId path string true "Instructor ID"
// @Success 204
// @Router /instructors/{instructorId} [delete]
func (h *InstructorHandler) Deactivate(c *gin.Context) {
	if err := h.instructors.Deactivate(c.Request.Context(), c.Param("instructorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListLocations godoc
// @Summary List an instructor's assigned locations
// @Tags Instructors
// @Produce json
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{instructorId}/locations [get]
func (h *InstructorHandler) ListLocations(c *gin.Context) {
	locations, err := h.instructors.ListLocations(c.Request.Context(), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// AssignLocation godoc
// @Summary Assign a location to an instructor
// @Tags Instructors
// @Param instructorId path string true "Instructor ID"
// @Param locationId path string true "Location ID"
// @Success 204
// @Router /instructors/{instructorId}/locations/{locationId} [put]
func (h *InstructorHandler) AssignLocation(c *gin.Context) {
	if err := h.instructors.AssignLocation(c.Request.Context(), c.Param("instructorId"), c.Param("locationId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnassignLocation godoc
// @Summary Remove a location assignment
// @Tags Instructors
// @Param instructorId path string true "Instructor ID"
// @Param locationId path string true "Location ID"
// @Success 204
// @Router /instructors/{instructorId}/locations/{locationId} [delete]
func (h *InstructorHandler) UnassignLocation(c *gin.Context) {
	if err := h.instructors.UnassignLocation(c.Request.Context(), c.Param("instructorId"), c.Param("locationId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
