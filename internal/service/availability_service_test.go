package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/pkg/config"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
)

type mockAvailabilityRepo struct {
	rules     []models.AvailabilityRule
	listCalls int
	nextID    int
	replaced  [][]models.AvailabilityRule
}

func (m *mockAvailabilityRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.AvailabilityRule, error) {
	m.listCalls++
	var out []models.AvailabilityRule
	for _, rule := range m.rules {
		if rule.InstructorID == instructorID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (m *mockAvailabilityRepo) GetByID(ctx context.Context, instructorID, ruleID string) (*models.AvailabilityRule, error) {
	for _, rule := range m.rules {
		if rule.ID == ruleID && rule.InstructorID == instructorID {
			cp := rule
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailabilityRepo) ReplaceRecurring(ctx context.Context, instructorID string, rules []models.AvailabilityRule) error {
	kept := m.rules[:0]
	for _, rule := range m.rules {
		if rule.InstructorID != instructorID || rule.Type != models.RuleTypeRecurring {
			kept = append(kept, rule)
		}
	}
	m.rules = append(kept, rules...)
	m.replaced = append(m.replaced, rules)
	return nil
}

func (m *mockAvailabilityRepo) Insert(ctx context.Context, rule *models.AvailabilityRule) error {
	m.nextID++
	rule.ID = strings.Repeat("0", m.nextID) // distinct, deterministic
	rule.CreatedAt = time.Now()
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *mockAvailabilityRepo) Delete(ctx context.Context, instructorID, ruleID string) error {
	kept := m.rules[:0]
	for _, rule := range m.rules {
		if rule.ID != ruleID || rule.InstructorID != instructorID {
			kept = append(kept, rule)
		}
	}
	m.rules = kept
	return nil
}

type mockVerdictCache struct {
	store           map[string][]byte
	deletedPatterns []string
}

func newMockVerdictCache() *mockVerdictCache {
	return &mockVerdictCache{store: make(map[string][]byte)}
}

func (m *mockVerdictCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockVerdictCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *mockVerdictCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletedPatterns = append(m.deletedPatterns, pattern)
	m.store = make(map[string][]byte)
	return nil
}

func newAvailabilityService(repo *mockAvailabilityRepo, cache verdictCache) *AvailabilityService {
	svc := NewAvailabilityService(repo, cache, NewAvailabilityResolver(zap.NewNop()), validator.New(), zap.NewNop(), nil,
		config.AvailabilityConfig{CacheTTL: time.Minute, MaxRangeDays: 62},
		config.ExportsConfig{Title: "Instructor Weekly Schedule"})
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestReplaceWeeklySchedule(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	cache := newMockVerdictCache()
	svc := newAvailabilityService(repo, cache)

	days := make([]WeeklyDayInput, 0, 7)
	for day := 0; day < 7; day++ {
		input := WeeklyDayInput{DayOfWeek: day}
		if day >= 1 && day <= 5 {
			input.IsAvailable = true
			input.StartTime = strPtr("08:00")
			input.EndTime = strPtr("17:00")
		}
		days = append(days, input)
	}

	rules, err := svc.ReplaceWeeklySchedule(context.Background(), "ins-1", ReplaceWeeklyScheduleRequest{Days: days})
	require.NoError(t, err)
	assert.Len(t, rules, 7)
	require.Len(t, repo.replaced, 1)
	assert.Equal(t, []string{"availability:ins-1:*"}, cache.deletedPatterns)
}

func TestReplaceWeeklyScheduleRejectsInvertedWindow(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, err := svc.ReplaceWeeklySchedule(context.Background(), "ins-1", ReplaceWeeklyScheduleRequest{
		Days: []WeeklyDayInput{{DayOfWeek: 1, IsAvailable: true, StartTime: strPtr("09:00"), EndTime: strPtr("08:00")}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "days[0].end_time", appErr.Details[0].Field)
}

func TestReplaceWeeklyScheduleRejectsBadDayAndDuplicates(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, err := svc.ReplaceWeeklySchedule(context.Background(), "ins-1", ReplaceWeeklyScheduleRequest{
		Days: []WeeklyDayInput{
			{DayOfWeek: 7},
			{DayOfWeek: 2, IsAvailable: true, StartTime: strPtr("08:00"), EndTime: strPtr("12:00")},
			{DayOfWeek: 2, IsAvailable: true, StartTime: strPtr("13:00"), EndTime: strPtr("17:00")},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	fields := make([]string, len(appErr.Details))
	for i, detail := range appErr.Details {
		fields[i] = detail.Field
	}
	assert.Contains(t, fields, "days[0].day_of_week")
	assert.Contains(t, fields, "days[2].day_of_week")
}

func TestAddTimeOffRejectsPastDate(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, err := svc.AddTimeOff(context.Background(), "ins-1", TimeOffRequest{Date: "2026-03-01"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "date", appErr.Details[0].Field)
}

func TestAddTimeOffAcceptsTodayWestOfUTC(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)
	zone := time.FixedZone("UTC-5", -5*60*60)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 1, 0, 0, 0, zone) }

	rule, err := svc.AddTimeOff(context.Background(), "ins-1", TimeOffRequest{Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, models.RuleTypeTimeOff, rule.Type)
}

func TestAddTimeOff(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	cache := newMockVerdictCache()
	svc := newAvailabilityService(repo, cache)

	rule, err := svc.AddTimeOff(context.Background(), "ins-1", TimeOffRequest{Date: "2026-03-11", Reason: strPtr("Vacation")})
	require.NoError(t, err)
	assert.Equal(t, models.RuleTypeTimeOff, rule.Type)
	assert.False(t, rule.IsAvailable)
	assert.Nil(t, rule.StartTime)
	assert.Len(t, cache.deletedPatterns, 1)
}

func TestAddOverrideConflict(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityService(repo, nil)

	_, err := svc.AddOverride(context.Background(), "ins-1", OverrideRequest{
		Date: "2026-03-07", IsAvailable: true, StartTime: strPtr("10:00"), EndTime: strPtr("14:00"),
	})
	require.NoError(t, err)

	_, err = svc.AddOverride(context.Background(), "ins-1", OverrideRequest{
		Date: "2026-03-07", IsAvailable: false,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRemoveRuleTypeMismatch(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityService(repo, nil)

	rule, err := svc.AddTimeOff(context.Background(), "ins-1", TimeOffRequest{Date: "2026-03-11"})
	require.NoError(t, err)

	err = svc.RemoveRule(context.Background(), "ins-1", rule.ID, models.RuleTypeOverride)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.RemoveRule(context.Background(), "ins-1", rule.ID, models.RuleTypeTimeOff))
}

func TestResolveDayUsesCache(t *testing.T) {
	repo := &mockAvailabilityRepo{rules: weekdayRules("ins-1", nil)}
	cache := newMockVerdictCache()
	svc := newAvailabilityService(repo, cache)

	first, err := svc.ResolveDay(context.Background(), "ins-1", wednesday, nil, nil)
	require.NoError(t, err)
	require.True(t, first.IsAvailable)
	assert.Equal(t, 1, repo.listCalls)

	second, err := svc.ResolveDay(context.Background(), "ins-1", wednesday, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.listCalls)
}

func TestResolveDayWindowThroughCache(t *testing.T) {
	repo := &mockAvailabilityRepo{rules: weekdayRules("ins-1", nil)}
	svc := newAvailabilityService(repo, newMockVerdictCache())

	verdict, err := svc.ResolveDay(context.Background(), "ins-1", wednesday, nil, &models.TimeWindow{Start: "16:00", End: "19:00"})
	require.NoError(t, err)
	require.False(t, verdict.IsAvailable)
	assert.Equal(t, ReasonOutsideWorkingHours, *verdict.Reason)

	verdict, err = svc.ResolveDay(context.Background(), "ins-1", wednesday, nil, &models.TimeWindow{Start: "09:00", End: "12:00"})
	require.NoError(t, err)
	assert.True(t, verdict.IsAvailable)
}

func TestResolveDayRejectsMalformedWindow(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, err := svc.ResolveDay(context.Background(), "ins-1", wednesday, nil, &models.TimeWindow{Start: "9am", End: "11:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResolveRangeValidation(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, err := svc.ResolveRange(context.Background(), "ins-1", saturday, wednesday, nil, nil)
	require.Error(t, err)

	_, err = svc.ResolveRange(context.Background(), "ins-1", wednesday, wednesday.AddDate(0, 0, 100), nil, nil)
	require.Error(t, err)
}

func TestResolveRangeWeek(t *testing.T) {
	repo := &mockAvailabilityRepo{rules: weekdayRules("ins-1", nil)}
	svc := newAvailabilityService(repo, nil)

	from := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC) // Sunday
	verdicts, err := svc.ResolveRange(context.Background(), "ins-1", from, from.AddDate(0, 0, 6), nil, nil)
	require.NoError(t, err)
	require.Len(t, verdicts, 7)
	assert.False(t, verdicts[0].IsAvailable) // Sunday
	for i := 1; i <= 5; i++ {
		assert.True(t, verdicts[i].IsAvailable)
	}
	assert.False(t, verdicts[6].IsAvailable) // Saturday
}

func TestExportWeeklyScheduleCSV(t *testing.T) {
	repo := &mockAvailabilityRepo{rules: append(weekdayRules("ins-1", strPtr("loc-a")),
		models.NewTimeOffRule("ins-1", nextWednesday, strPtr("Vacation")))}
	svc := newAvailabilityService(repo, nil)

	payload, contentType, err := svc.ExportWeeklySchedule(context.Background(), "ins-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.Contains(t, body, "Day,Location,Available,Start,End,Reason")
	assert.Contains(t, body, "Monday,loc-a,yes,08:00,17:00")
	assert.Contains(t, body, "2026-03-11,any,no,,,Vacation")
}

func TestExportWeeklyScheduleBadFormat(t *testing.T) {
	svc := newAvailabilityService(&mockAvailabilityRepo{}, nil)

	_, _, err := svc.ExportWeeklySchedule(context.Background(), "ins-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
