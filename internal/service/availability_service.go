package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/pkg/config"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
	"github.com/reefdesk/dive-admin-api/pkg/export"
)

type availabilityRepository interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.AvailabilityRule, error)
	GetByID(ctx context.Context, instructorID, ruleID string) (*models.AvailabilityRule, error)
	ReplaceRecurring(ctx context.Context, instructorID string, rules []models.AvailabilityRule) error
	Insert(ctx context.Context, rule *models.AvailabilityRule) error
	Delete(ctx context.Context, instructorID, ruleID string) error
}

type verdictCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// WeeklyDayInput is one entry of the admin UI's weekly grid.
type WeeklyDayInput struct {
	DayOfWeek   int     `json:"day_of_week"`
	LocationID  *string `json:"location_id"`
	IsAvailable bool    `json:"is_available"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

// ReplaceWeeklyScheduleRequest replaces the full recurring schedule.
type ReplaceWeeklyScheduleRequest struct {
	Days []WeeklyDayInput `json:"days" validate:"required,min=1"`
}

// OverrideRequest appends a one-off rule for a specific date.
type OverrideRequest struct {
	Date        string  `json:"date" validate:"required"`
	LocationID  *string `json:"location_id"`
	IsAvailable bool    `json:"is_available"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Reason      *string `json:"reason"`
}

// TimeOffRequest appends a full-day unavailability block.
type TimeOffRequest struct {
	Date   string  `json:"date" validate:"required"`
	Reason *string `json:"reason"`
}

// AvailabilityService orchestrates rule persistence, write validation and
// verdict resolution for instructor availability.
type AvailabilityService struct {
	repo         availabilityRepository
	cache        verdictCache
	resolver     *AvailabilityResolver
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	cacheTTL     time.Duration
	maxRangeDays int
	exportTitle  string
	now          func() time.Time
}

// NewAvailabilityService constructs the service. The cache and metrics
// may be nil; every query then resolves from the repository unrecorded.
func NewAvailabilityService(repo availabilityRepository, cache verdictCache, resolver *AvailabilityResolver, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg config.AvailabilityConfig, exports config.ExportsConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewAvailabilityResolver(logger)
	}
	maxRange := cfg.MaxRangeDays
	if maxRange <= 0 {
		maxRange = 62
	}
	return &AvailabilityService{
		repo:         repo,
		cache:        cache,
		resolver:     resolver,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		cacheTTL:     cfg.CacheTTL,
		maxRangeDays: maxRange,
		exportTitle:  exports.Title,
		now:          time.Now,
	}
}

// ListRules returns the instructor's raw rule set.
func (s *AvailabilityService) ListRules(ctx context.Context, instructorID string) ([]models.AvailabilityRule, error) {
	rules, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability rules")
	}
	return rules, nil
}

// ResolveDay answers availability for one date. An instructor with no rules
// at all resolves to unavailable; that is a normal result, not an error.
func (s *AvailabilityService) ResolveDay(ctx context.Context, instructorID string, date time.Time, locationID *string, window *models.TimeWindow) (*models.DayVerdict, error) {
	if err := validateQueryWindow(window); err != nil {
		return nil, err
	}

	verdict, err := s.resolveCachedDay(ctx, instructorID, date, locationID)
	if err != nil {
		return nil, err
	}

	applied := applyQueryWindow(*verdict, window)
	return &applied, nil
}

// ResolveRange answers availability for every date in [from, to]. The rule
// set is loaded once and each day is evaluated independently.
func (s *AvailabilityService) ResolveRange(ctx context.Context, instructorID string, from, to time.Time, locationID *string, window *models.TimeWindow) ([]models.DayVerdict, error) {
	if to.Before(from) {
		return nil, appErrors.Validation("invalid date range",
			appErrors.FieldError{Field: "to", Message: "must be on or after from"})
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > s.maxRangeDays {
		return nil, appErrors.Validation("invalid date range",
			appErrors.FieldError{Field: "to", Message: fmt.Sprintf("range exceeds %d days", s.maxRangeDays)})
	}
	if err := validateQueryWindow(window); err != nil {
		return nil, err
	}

	rules, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}
	return s.resolver.ResolveRange(rules, from, to, locationID, window), nil
}

// ReplaceWeeklySchedule validates and replaces the instructor's entire
// recurring schedule in one write. Any invalid entry rejects the whole
// batch; there are no partial writes.
func (s *AvailabilityService) ReplaceWeeklySchedule(ctx context.Context, instructorID string, req ReplaceWeeklyScheduleRequest) ([]models.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly schedule payload")
	}

	var fields []appErrors.FieldError
	seen := make(map[string]bool)
	rules := make([]models.AvailabilityRule, 0, len(req.Days))
	for i, day := range req.Days {
		prefix := fmt.Sprintf("days[%d].", i)
		if day.DayOfWeek < 0 || day.DayOfWeek > 6 {
			fields = append(fields, appErrors.FieldError{Field: prefix + "day_of_week", Message: "must be between 0 (Sunday) and 6 (Saturday)"})
		}
		fields = append(fields, validateRuleWindow(day.IsAvailable, day.StartTime, day.EndTime, prefix)...)

		scope := fmt.Sprintf("%d/%s", day.DayOfWeek, locationScope(day.LocationID))
		if seen[scope] {
			fields = append(fields, appErrors.FieldError{Field: prefix + "day_of_week", Message: "duplicate rule for this day and location scope"})
		}
		seen[scope] = true

		var window *models.TimeWindow
		if day.IsAvailable && day.StartTime != nil && day.EndTime != nil {
			window = &models.TimeWindow{Start: *day.StartTime, End: *day.EndTime}
		}
		rules = append(rules, models.NewRecurringRule(instructorID, day.DayOfWeek, day.LocationID, window))
	}
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid weekly schedule", fields...)
	}

	if err := s.repo.ReplaceRecurring(ctx, instructorID, rules); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace weekly schedule")
	}
	s.invalidate(ctx, instructorID)
	return rules, nil
}

// AddOverride appends a one-off rule for a date, superseding the weekly
// schedule on that date. At most one override may exist per date and
// location scope.
func (s *AvailabilityService) AddOverride(ctx context.Context, instructorID string, req OverrideRequest) (*models.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}

	var fields []appErrors.FieldError
	date, ok := parseDate(req.Date)
	if !ok {
		fields = append(fields, appErrors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	fields = append(fields, validateRuleWindow(req.IsAvailable, req.StartTime, req.EndTime, "")...)
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid override", fields...)
	}

	existing, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}
	for _, rule := range existing {
		if rule.Type == models.RuleTypeOverride && rule.Date != nil && sameDate(*rule.Date, date) &&
			locationScope(rule.LocationID) == locationScope(req.LocationID) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an override already exists for this date and location scope")
		}
	}

	var window *models.TimeWindow
	if req.IsAvailable && req.StartTime != nil && req.EndTime != nil {
		window = &models.TimeWindow{Start: *req.StartTime, End: *req.EndTime}
	}
	rule := models.NewOverrideRule(instructorID, date, req.LocationID, window, req.Reason)
	if err := s.repo.Insert(ctx, &rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create override")
	}
	s.invalidate(ctx, instructorID)
	return &rule, nil
}

// AddTimeOff appends a full-day block. Time off is requested prospectively,
// so past dates are rejected.
func (s *AvailabilityService) AddTimeOff(ctx context.Context, instructorID string, req TimeOffRequest) (*models.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time off payload")
	}

	date, ok := parseDate(req.Date)
	if !ok {
		return nil, appErrors.Validation("invalid time off",
			appErrors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	// parseDate yields UTC midnight while the clock may run in another
	// zone, so compare calendar days rather than instants.
	if req.Date < s.now().Format(models.VerdictDateFormat) {
		return nil, appErrors.Validation("invalid time off",
			appErrors.FieldError{Field: "date", Message: "time off cannot be requested for a past date"})
	}

	rule := models.NewTimeOffRule(instructorID, date, req.Reason)
	if err := s.repo.Insert(ctx, &rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time off")
	}
	s.invalidate(ctx, instructorID)
	return &rule, nil
}

// RemoveRule deletes an override or time-off record outright. Recurring
// rules are edited only through the weekly grid replacement.
func (s *AvailabilityService) RemoveRule(ctx context.Context, instructorID, ruleID string, ruleType models.RuleType) error {
	rule, err := s.repo.GetByID(ctx, instructorID, ruleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rule")
	}
	if rule.Type != ruleType {
		return appErrors.Clone(appErrors.ErrNotFound, "availability rule not found")
	}
	if err := s.repo.Delete(ctx, instructorID, ruleID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability rule")
	}
	s.invalidate(ctx, instructorID)
	return nil
}

// ExportWeeklySchedule renders the instructor's weekly grid plus time-off
// list as CSV or PDF for download.
func (s *AvailabilityService) ExportWeeklySchedule(ctx context.Context, instructorID, format string) ([]byte, string, error) {
	rules, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}

	dataset := buildScheduleDataset(rules)
	switch strings.ToLower(format) {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, s.exportTitle)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Validation("invalid export format",
			appErrors.FieldError{Field: "format", Message: "must be csv or pdf"})
	}
}

func (s *AvailabilityService) resolveCachedDay(ctx context.Context, instructorID string, date time.Time, locationID *string) (*models.DayVerdict, error) {
	key := fmt.Sprintf("availability:%s:%s:%s", instructorID, date.Format(models.VerdictDateFormat), locationScope(locationID))
	if s.cache != nil {
		var cached models.DayVerdict
		lookupStart := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(lookupStart))
		if err == nil {
			return &cached, nil
		}
	}

	queryStart := time.Now()
	rules, err := s.repo.ListByInstructor(ctx, instructorID)
	s.metrics.ObserveDBQuery("availability_rules", time.Since(queryStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}
	verdict := s.resolver.ResolveDay(rules, AvailabilityQuery{Date: date, LocationID: locationID})

	if s.cache != nil {
		writeStart := time.Now()
		if err := s.cache.Set(ctx, key, verdict, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache availability verdict", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(writeStart))
	}
	return &verdict, nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, instructorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("availability:%s:*", instructorID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("instructor_id", instructorID), zap.Error(err))
	}
}

// applyQueryWindow downgrades an available day verdict when the requested
// window is not fully contained in the available window.
func applyQueryWindow(verdict models.DayVerdict, window *models.TimeWindow) models.DayVerdict {
	if window == nil || !verdict.IsAvailable {
		return verdict
	}
	if windowContained(*window, verdict.StartTime, verdict.EndTime) {
		return verdict
	}
	reason := ReasonOutsideWorkingHours
	return models.DayVerdict{Date: verdict.Date, Reason: &reason}
}

func validateQueryWindow(window *models.TimeWindow) error {
	if window == nil {
		return nil
	}
	var fields []appErrors.FieldError
	start, okStart := parseClock(window.Start)
	if !okStart {
		fields = append(fields, appErrors.FieldError{Field: "start", Message: "must be a time in HH:MM format"})
	}
	end, okEnd := parseClock(window.End)
	if !okEnd {
		fields = append(fields, appErrors.FieldError{Field: "end", Message: "must be a time in HH:MM format"})
	}
	if okStart && okEnd && start >= end {
		fields = append(fields, appErrors.FieldError{Field: "end", Message: "must be after start"})
	}
	if len(fields) > 0 {
		return appErrors.Validation("invalid query window", fields...)
	}
	return nil
}

// validateRuleWindow enforces the variant shape of a writable rule: an
// available rule needs a well-formed start < end window, an unavailable
// rule must not carry one.
func validateRuleWindow(isAvailable bool, startTime, endTime *string, prefix string) []appErrors.FieldError {
	var fields []appErrors.FieldError
	if !isAvailable {
		if startTime != nil {
			fields = append(fields, appErrors.FieldError{Field: prefix + "start_time", Message: "must be empty when not available"})
		}
		if endTime != nil {
			fields = append(fields, appErrors.FieldError{Field: prefix + "end_time", Message: "must be empty when not available"})
		}
		return fields
	}

	var start, end int
	okStart, okEnd := false, false
	if startTime == nil {
		fields = append(fields, appErrors.FieldError{Field: prefix + "start_time", Message: "required when available"})
	} else if start, okStart = parseClock(*startTime); !okStart {
		fields = append(fields, appErrors.FieldError{Field: prefix + "start_time", Message: "must be a time in HH:MM format"})
	}
	if endTime == nil {
		fields = append(fields, appErrors.FieldError{Field: prefix + "end_time", Message: "required when available"})
	} else if end, okEnd = parseClock(*endTime); !okEnd {
		fields = append(fields, appErrors.FieldError{Field: prefix + "end_time", Message: "must be a time in HH:MM format"})
	}
	if okStart && okEnd && start >= end {
		fields = append(fields, appErrors.FieldError{Field: prefix + "end_time", Message: "must be after start_time"})
	}
	return fields
}

func locationScope(locationID *string) string {
	if locationID == nil {
		return "any"
	}
	return *locationID
}

func parseDate(raw string) (time.Time, bool) {
	date, err := time.Parse(models.VerdictDateFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func buildScheduleDataset(rules []models.AvailabilityRule) export.Dataset {
	headers := []string{"Day", "Location", "Available", "Start", "End", "Reason"}
	var rows []map[string]string
	appendRow := func(day, loc string, rule models.AvailabilityRule) {
		row := map[string]string{
			"Day": day, "Location": loc,
			"Available": "no", "Start": "", "End": "", "Reason": "",
		}
		if rule.IsAvailable {
			row["Available"] = "yes"
		}
		if rule.StartTime != nil {
			row["Start"] = *rule.StartTime
		}
		if rule.EndTime != nil {
			row["End"] = *rule.EndTime
		}
		if rule.Reason != nil {
			row["Reason"] = *rule.Reason
		}
		rows = append(rows, row)
	}

	for day := 0; day < 7; day++ {
		for _, rule := range rules {
			if rule.Type == models.RuleTypeRecurring && rule.DayOfWeek != nil && *rule.DayOfWeek == day {
				appendRow(weekdayNames[day], locationScope(rule.LocationID), rule)
			}
		}
	}
	for _, rule := range rules {
		if rule.Type == models.RuleTypeTimeOff && rule.Date != nil {
			appendRow(rule.Date.Format(models.VerdictDateFormat), "any", rule)
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
