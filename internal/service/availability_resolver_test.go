package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
)

var (
	wednesday     = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	saturday      = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	nextWednesday = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func weekdayRules(instructorID string, locationID *string) []models.AvailabilityRule {
	// Mon-Fri 08:00-17:00
	rules := make([]models.AvailabilityRule, 0, 5)
	for day := 1; day <= 5; day++ {
		rules = append(rules, models.NewRecurringRule(instructorID, day, locationID, &models.TimeWindow{Start: "08:00", End: "17:00"}))
	}
	return rules
}

func TestResolverFixtureWeekdays(t *testing.T) {
	require.Equal(t, time.Wednesday, wednesday.Weekday())
	require.Equal(t, time.Saturday, saturday.Weekday())
	require.Equal(t, time.Wednesday, nextWednesday.Weekday())
}

func TestResolveDayNoRules(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())

	for _, date := range []time.Time{wednesday, saturday, nextWednesday} {
		verdict := resolver.ResolveDay(nil, AvailabilityQuery{Date: date})
		assert.False(t, verdict.IsAvailable)
		assert.Nil(t, verdict.Reason)
		assert.Equal(t, date.Format(models.VerdictDateFormat), verdict.Date)
	}
}

func TestResolveDayRecurringSchedule(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	locA := strPtr("loc-a")
	rules := weekdayRules("ins-1", locA)

	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: locA})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "08:00", *verdict.StartTime)
	assert.Equal(t, "17:00", *verdict.EndTime)
	assert.Equal(t, "loc-a", *verdict.LocationID)

	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: saturday, LocationID: locA})
	assert.False(t, verdict.IsAvailable)
}

func TestResolveDayTimeOffBeatsEverything(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", nil)
	rules = append(rules,
		models.NewOverrideRule("ins-1", nextWednesday, nil, &models.TimeWindow{Start: "06:00", End: "20:00"}, nil),
		models.NewTimeOffRule("ins-1", nextWednesday, strPtr("Vacation")),
	)

	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: nextWednesday})
	require.False(t, verdict.IsAvailable)
	require.NotNil(t, verdict.Reason)
	assert.Equal(t, "Vacation", *verdict.Reason)

	// Other days are untouched.
	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday})
	assert.True(t, verdict.IsAvailable)
}

func TestResolveDayTimeOffIgnoresLocation(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", strPtr("loc-a"))
	rules = append(rules, models.NewTimeOffRule("ins-1", wednesday, nil))

	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-a")})
	assert.False(t, verdict.IsAvailable)

	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-b")})
	assert.False(t, verdict.IsAvailable)
}

func TestResolveDayOverrideReplacesRecurring(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", nil)
	rules = append(rules, models.NewOverrideRule("ins-1", saturday, nil, &models.TimeWindow{Start: "10:00", End: "14:00"}, nil))

	// Saturday is normally off, the override opens it.
	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: saturday})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "10:00", *verdict.StartTime)
	assert.Equal(t, "14:00", *verdict.EndTime)
}

func TestResolveDayBlockingOverride(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", nil)
	rules = append(rules, models.NewOverrideRule("ins-1", wednesday, nil, nil, strPtr("Boat maintenance")))

	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday})
	require.False(t, verdict.IsAvailable)
	assert.Equal(t, "Boat maintenance", *verdict.Reason)
}

func TestResolveDayLocationPrecedence(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	day := int(wednesday.Weekday())
	rules := []models.AvailabilityRule{
		models.NewRecurringRule("ins-1", day, nil, &models.TimeWindow{Start: "08:00", End: "17:00"}),
		models.NewRecurringRule("ins-1", day, strPtr("loc-a"), &models.TimeWindow{Start: "09:00", End: "12:00"}),
	}

	// Exact location beats the any-location rule.
	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-a")})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "09:00", *verdict.StartTime)
	assert.Equal(t, "loc-a", *verdict.LocationID)

	// A different location falls back to the any-location rule.
	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-b")})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "08:00", *verdict.StartTime)
	assert.Equal(t, "loc-b", *verdict.LocationID)

	// No location supplied also falls back to the any-location rule.
	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "08:00", *verdict.StartTime)
	assert.Nil(t, verdict.LocationID)
}

func TestResolveDaySpecificLocationOnly(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	day := int(wednesday.Weekday())
	rules := []models.AvailabilityRule{
		models.NewRecurringRule("ins-1", day, strPtr("loc-a"), &models.TimeWindow{Start: "08:00", End: "17:00"}),
	}

	// A location-scoped rule does not match a query without that location.
	verdict := resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday})
	assert.False(t, verdict.IsAvailable)

	verdict = resolver.ResolveDay(rules, AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-b")})
	assert.False(t, verdict.IsAvailable)
}

func TestResolveDayQueryWindow(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", nil)

	verdict := resolver.ResolveDay(rules, AvailabilityQuery{
		Date:   wednesday,
		Window: &models.TimeWindow{Start: "09:00", End: "11:00"},
	})
	assert.True(t, verdict.IsAvailable)

	verdict = resolver.ResolveDay(rules, AvailabilityQuery{
		Date:   wednesday,
		Window: &models.TimeWindow{Start: "16:00", End: "18:00"},
	})
	require.False(t, verdict.IsAvailable)
	require.NotNil(t, verdict.Reason)
	assert.Equal(t, ReasonOutsideWorkingHours, *verdict.Reason)

	// Window touching the closed end of [start, end) is still contained.
	verdict = resolver.ResolveDay(rules, AvailabilityQuery{
		Date:   wednesday,
		Window: &models.TimeWindow{Start: "08:00", End: "17:00"},
	})
	assert.True(t, verdict.IsAvailable)
}

func TestResolveDayIdempotent(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", strPtr("loc-a"))
	rules = append(rules, models.NewTimeOffRule("ins-1", nextWednesday, strPtr("Vacation")))

	q := AvailabilityQuery{Date: wednesday, LocationID: strPtr("loc-a")}
	first := resolver.ResolveDay(rules, q)
	second := resolver.ResolveDay(rules, q)
	assert.Equal(t, first, second)
}

func TestResolveRangeMatchesPerDayResolution(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	rules := weekdayRules("ins-1", nil)
	rules = append(rules,
		models.NewTimeOffRule("ins-1", nextWednesday, strPtr("Vacation")),
		models.NewOverrideRule("ins-1", saturday, nil, &models.TimeWindow{Start: "10:00", End: "14:00"}, nil),
	)

	from := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC) // Sunday
	to := from.AddDate(0, 0, 6)
	verdicts := resolver.ResolveRange(rules, from, to, nil, nil)
	require.Len(t, verdicts, 7)

	for i, verdict := range verdicts {
		date := from.AddDate(0, 0, i)
		single := resolver.ResolveDay(rules, AvailabilityQuery{Date: date})
		assert.Equal(t, single, verdict)
	}
}

func TestResolveDayAmbiguousRulesPreferMostRecent(t *testing.T) {
	resolver := NewAvailabilityResolver(zap.NewNop())
	day := int(wednesday.Weekday())
	older := models.NewRecurringRule("ins-1", day, nil, &models.TimeWindow{Start: "08:00", End: "12:00"})
	older.ID = "r-old"
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := models.NewRecurringRule("ins-1", day, nil, &models.TimeWindow{Start: "13:00", End: "18:00"})
	newer.ID = "r-new"
	newer.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	verdict := resolver.ResolveDay([]models.AvailabilityRule{older, newer}, AvailabilityQuery{Date: wednesday})
	require.True(t, verdict.IsAvailable)
	assert.Equal(t, "13:00", *verdict.StartTime)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"08:30", 510, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"9:00", 0, false},
		{"ab:cd", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		minutes, ok := parseClock(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.minutes, minutes, tc.raw)
		}
	}
}
