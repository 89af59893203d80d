package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
)

// ReasonOutsideWorkingHours is attached to verdicts downgraded because the
// requested window falls outside the resolved available window.
const ReasonOutsideWorkingHours = "outside working hours"

// AvailabilityQuery describes a single-day availability question.
type AvailabilityQuery struct {
	Date       time.Time
	LocationID *string
	Window     *models.TimeWindow
}

// AvailabilityResolver reconciles an instructor's full rule set into per-day
// verdicts. It holds no state besides a logger and is safe for concurrent use;
// every call evaluates exactly the rule slice it is handed.
type AvailabilityResolver struct {
	logger *zap.Logger
}

// NewAvailabilityResolver constructs a resolver.
func NewAvailabilityResolver(logger *zap.Logger) *AvailabilityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityResolver{logger: logger}
}

// ResolveDay applies the precedence algorithm for one date:
// time off blocks the whole day regardless of location, otherwise a date
// override fully replaces the weekly schedule, otherwise the recurring rule
// for the weekday governs. A missing rule resolves to unavailable rather
// than an error. When the query carries a window, the verdict additionally
// requires the window to be contained in the resolved available window.
func (r *AvailabilityResolver) ResolveDay(rules []models.AvailabilityRule, q AvailabilityQuery) models.DayVerdict {
	verdict := models.DayVerdict{Date: q.Date.Format(models.VerdictDateFormat)}

	if off := r.timeOffFor(rules, q.Date); off != nil {
		verdict.Reason = off.Reason
		return verdict
	}

	governing := r.pickScoped(r.overridesFor(rules, q.Date), q.LocationID)
	if governing == nil {
		governing = r.pickScoped(r.recurringFor(rules, q.Date.Weekday()), q.LocationID)
	}
	if governing == nil || !governing.IsAvailable {
		if governing != nil {
			verdict.Reason = governing.Reason
		}
		return verdict
	}

	verdict.IsAvailable = true
	verdict.StartTime = governing.StartTime
	verdict.EndTime = governing.EndTime
	verdict.LocationID = governing.LocationID
	if verdict.LocationID == nil {
		verdict.LocationID = q.LocationID
	}

	if q.Window != nil && !windowContained(*q.Window, governing.StartTime, governing.EndTime) {
		reason := ReasonOutsideWorkingHours
		return models.DayVerdict{Date: verdict.Date, Reason: &reason}
	}

	return verdict
}

// ResolveRange evaluates each date in [from, to] independently. There is no
// cross-day state, so the result equals resolving every day on its own.
func (r *AvailabilityResolver) ResolveRange(rules []models.AvailabilityRule, from, to time.Time, locationID *string, window *models.TimeWindow) []models.DayVerdict {
	var verdicts []models.DayVerdict
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		verdicts = append(verdicts, r.ResolveDay(rules, AvailabilityQuery{Date: d, LocationID: locationID, Window: window}))
	}
	return verdicts
}

func (r *AvailabilityResolver) timeOffFor(rules []models.AvailabilityRule, date time.Time) *models.AvailabilityRule {
	var found *models.AvailabilityRule
	for i := range rules {
		rule := &rules[i]
		if rule.Type != models.RuleTypeTimeOff || rule.Date == nil || !sameDate(*rule.Date, date) {
			continue
		}
		if found == nil || rule.CreatedAt.After(found.CreatedAt) {
			found = rule
		}
	}
	return found
}

func (r *AvailabilityResolver) overridesFor(rules []models.AvailabilityRule, date time.Time) []models.AvailabilityRule {
	var out []models.AvailabilityRule
	for _, rule := range rules {
		if rule.Type == models.RuleTypeOverride && rule.Date != nil && sameDate(*rule.Date, date) {
			out = append(out, rule)
		}
	}
	return out
}

func (r *AvailabilityResolver) recurringFor(rules []models.AvailabilityRule, weekday time.Weekday) []models.AvailabilityRule {
	var out []models.AvailabilityRule
	for _, rule := range rules {
		if rule.Type == models.RuleTypeRecurring && rule.DayOfWeek != nil && *rule.DayOfWeek == int(weekday) {
			out = append(out, rule)
		}
	}
	return out
}

// pickScoped applies the location matching rule: an unscoped rule matches any
// query location, a scoped rule matches only an equal one, and a scoped match
// beats an unscoped match. Two rules in the same scope class indicate a
// data-integrity fault; the most recently created one wins and the collision
// is logged.
func (r *AvailabilityResolver) pickScoped(candidates []models.AvailabilityRule, locationID *string) *models.AvailabilityRule {
	var exact, unscoped []models.AvailabilityRule
	for _, rule := range candidates {
		switch {
		case rule.LocationID == nil:
			unscoped = append(unscoped, rule)
		case locationID != nil && *rule.LocationID == *locationID:
			exact = append(exact, rule)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = unscoped
	}
	if len(pool) == 0 {
		return nil
	}
	if len(pool) > 1 {
		sort.Slice(pool, func(i, j int) bool { return pool[i].CreatedAt.After(pool[j].CreatedAt) })
		r.logger.Warn("ambiguous availability rules for same scope, preferring most recent",
			zap.String("instructor_id", pool[0].InstructorID),
			zap.String("rule_type", string(pool[0].Type)),
			zap.String("rule_id", pool[0].ID),
		)
	}
	return &pool[0]
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' || s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// windowContained reports whether the requested [start, end) window lies
// entirely within the available [start, end) window.
func windowContained(req models.TimeWindow, availStart, availEnd *string) bool {
	if availStart == nil || availEnd == nil {
		return false
	}
	reqStart, ok := parseClock(req.Start)
	if !ok {
		return false
	}
	reqEnd, ok := parseClock(req.End)
	if !ok {
		return false
	}
	start, ok := parseClock(*availStart)
	if !ok {
		return false
	}
	end, ok := parseClock(*availEnd)
	if !ok {
		return false
	}
	return reqStart >= start && reqEnd <= end && reqStart < reqEnd
}
