package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/pkg/export"
	"github.com/reefdesk/dive-admin-api/pkg/storage"
)

type scheduleExporter interface {
	ExportWeeklySchedule(ctx context.Context, instructorID, format string) ([]byte, string, error)
}

type rangeResolver interface {
	ResolveRange(ctx context.Context, instructorID string, from, to time.Time, locationID *string, window *models.TimeWindow) ([]models.DayVerdict, error)
}

type instructorLister interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	schedules   scheduleExporter
	resolver    rangeResolver
	instructors instructorLister
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(schedules scheduleExporter, resolver rangeResolver, instructors instructorLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		schedules:   schedules,
		resolver:    resolver,
		instructors: instructors,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the payload for a report job and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var payload []byte
	var err error
	switch job.Type {
	case models.ReportTypeSchedule:
		payload, err = s.generateSchedule(ctx, job)
	case models.ReportTypeAvailability:
		payload, err = s.generateAvailability(ctx, job)
	default:
		err = fmt.Errorf("unsupported report type %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) generateSchedule(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	if job.Params.InstructorID == nil || *job.Params.InstructorID == "" {
		return nil, fmt.Errorf("schedule report requires instructorId")
	}
	payload, _, err := s.schedules.ExportWeeklySchedule(ctx, *job.Params.InstructorID, string(job.Params.Format))
	return payload, err
}

func (s *ExportService) generateAvailability(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	from, err := time.Parse("2006-01", job.Params.Month)
	if err != nil {
		return nil, fmt.Errorf("invalid report month %q", job.Params.Month)
	}
	to := from.AddDate(0, 1, -1)

	active := true
	filter := models.InstructorFilter{Active: &active, Page: 1, PageSize: 500}
	if job.Params.LocationID != nil {
		filter.LocationID = *job.Params.LocationID
	}
	instructors, _, err := s.instructors.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(instructors)*28)
	for _, instructor := range instructors {
		verdicts, err := s.resolver.ResolveRange(ctx, instructor.ID, from, to, job.Params.LocationID, nil)
		if err != nil {
			return nil, err
		}
		for _, verdict := range verdicts {
			rows = append(rows, map[string]string{
				"Instructor": instructor.FullName,
				"Date":       verdict.Date,
				"Available":  yesNo(verdict.IsAvailable),
				"Start":      deref(verdict.StartTime),
				"End":        deref(verdict.EndTime),
				"Reason":     deref(verdict.Reason),
			})
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Instructor", "Date", "Available", "Start", "End", "Reason"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Availability %s", job.Params.Month)

	switch job.Params.Format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := job.Params.Month
	if job.Type == models.ReportTypeSchedule && job.Params.InstructorID != nil {
		scope = *job.Params.InstructorID
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, sanitizeFilename(scope), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
