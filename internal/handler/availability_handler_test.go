package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/internal/service"
	"github.com/reefdesk/dive-admin-api/pkg/config"
)

type ruleRepoStub struct {
	rules    []models.AvailabilityRule
	inserted []models.AvailabilityRule
	replaced [][]models.AvailabilityRule
}

func (r *ruleRepoStub) ListByInstructor(ctx context.Context, instructorID string) ([]models.AvailabilityRule, error) {
	return r.rules, nil
}

func (r *ruleRepoStub) GetByID(ctx context.Context, instructorID, ruleID string) (*models.AvailabilityRule, error) {
	for i := range r.rules {
		if r.rules[i].ID == ruleID {
			return &r.rules[i], nil
		}
	}
	return nil, nil
}

func (r *ruleRepoStub) ReplaceRecurring(ctx context.Context, instructorID string, rules []models.AvailabilityRule) error {
	r.replaced = append(r.replaced, rules)
	return nil
}

func (r *ruleRepoStub) Insert(ctx context.Context, rule *models.AvailabilityRule) error {
	rule.ID = "rule-new"
	r.inserted = append(r.inserted, *rule)
	return nil
}

func (r *ruleRepoStub) Delete(ctx context.Context, instructorID, ruleID string) error {
	return nil
}

func newAvailabilityHandler(repo *ruleRepoStub) *AvailabilityHandler {
	svc := service.NewAvailabilityService(repo, nil, nil, nil, nil, nil,
		config.AvailabilityConfig{MaxRangeDays: 62},
		config.ExportsConfig{Enabled: true, Title: "Weekly Schedule"})
	return NewAvailabilityHandler(svc, service.NewMetricsService())
}

func strPtr(s string) *string { return &s }

func TestAvailabilityHandlerResolveDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &ruleRepoStub{rules: []models.AvailabilityRule{{
		ID:           "rule-1",
		InstructorID: "ins-1",
		Type:         models.RuleTypeRecurring,
		DayOfWeek:    intPtr(3),
		StartTime:    strPtr("08:00"),
		EndTime:      strPtr("17:00"),
		IsAvailable:  true,
	}}}
	handler := newAvailabilityHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/instructors/ins-1/availability?date=2026-03-04", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "instructorId", Value: "ins-1"}}

	handler.ResolveDay(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.DayVerdict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.IsAvailable)
	assert.Equal(t, "2026-03-04", envelope.Data.Date)
}

func TestAvailabilityHandlerResolveDayMissingDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandler(&ruleRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/instructors/ins-1/availability", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "instructorId", Value: "ins-1"}}

	handler.ResolveDay(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerReplaceWeeklyScheduleInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandler(&ruleRepoStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/instructors/ins-1/availability/weekly", bytes.NewBufferString(`{"days":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "instructorId", Value: "ins-1"}}

	handler.ReplaceWeeklySchedule(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerAddTimeOff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &ruleRepoStub{}
	handler := newAvailabilityHandler(repo)

	payload, _ := json.Marshal(service.TimeOffRequest{Date: "2030-07-01", Reason: strPtr("Vacation")})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/instructors/ins-1/availability/time-off", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "instructorId", Value: "ins-1"}}

	handler.AddTimeOff(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, models.RuleTypeTimeOff, repo.inserted[0].Type)
}

func intPtr(v int) *int { return &v }
