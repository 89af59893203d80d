package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/internal/repository"
	"github.com/reefdesk/dive-admin-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs      map[string]*models.ReportJob
	listCalls int
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	r.listCalls++
	var finished []models.ReportJob
	for _, job := range r.jobs {
		if job.Status != models.ReportStatusFinished || job.ResultURL == nil {
			continue
		}
		if job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}
		finished = append(finished, *job)
		if len(finished) == limit {
			break
		}
	}
	return finished, nil
}

func (r *reportRepoStub) ClearResult(ctx context.Context, id string) error {
	if job, ok := r.jobs[id]; ok {
		job.ResultURL = nil
	}
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
}

func instructorClaims(instructorID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleInstructor, InstructorID: &instructorID}
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t)
	svc := NewReportService(repo, queue, exportSvc, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeAvailability,
		Month:  "2026-03",
		Format: models.ReportFormatCSV,
	}, adminClaims())
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestReportServiceCreateJobInstructorScope(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)

	other := "ins-2"
	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:         models.ReportTypeSchedule,
		InstructorID: &other,
		Format:       models.ReportFormatCSV,
	}, instructorClaims("ins-1"))
	require.Error(t, err)

	own := "ins-1"
	resp, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:         models.ReportTypeSchedule,
		InstructorID: &own,
		Format:       models.ReportFormatCSV,
	}, instructorClaims("ins-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
}

func TestReportServiceCreateJobInstructorCannotRequestAvailability(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeAvailability,
		Month:  "2026-03",
		Format: models.ReportFormatCSV,
	}, instructorClaims("ins-1"))
	require.Error(t, err)
}

func TestReportServiceCreateJobValidatesMonth(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t)
	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeAvailability,
		Month:  "03-2026",
		Format: models.ReportFormatCSV,
	}, adminClaims())
	require.Error(t, err)
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeAvailability,
		Params:    models.ReportJobParams{Month: "2026-03", Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	resp, err := svc.GetStatus(context.Background(), job.ID, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)
}

func TestReportServiceGetStatusInstructorOwnership(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	repo.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeSchedule,
		Status:    models.ReportStatusQueued,
		CreatedBy: "someone-else",
	}
	_, err := svc.GetStatus(context.Background(), "job-1", instructorClaims("ins-1"))
	require.Error(t, err)
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	instructorID := "ins-1"
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeSchedule,
		Params:    models.ReportJobParams{InstructorID: &instructorID, Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

func TestReportServiceCleanupTerminatesOnFullBatches(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	expired := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 120; i++ {
		id := fmt.Sprintf("job-%d", i)
		url := "/api/v1/reports/download/stale-token-" + id
		repo.jobs[id] = &models.ReportJob{
			ID:         id,
			Type:       models.ReportTypeSchedule,
			Status:     models.ReportStatusFinished,
			Progress:   100,
			ResultURL:  &url,
			FinishedAt: &expired,
			CreatedBy:  "admin",
		}
	}

	done := make(chan struct{})
	go func() {
		svc.cleanupExpired(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not finish")
	}

	for id, job := range repo.jobs {
		assert.Nilf(t, job.ResultURL, "job %s still holds a result url", id)
	}
	assert.LessOrEqual(t, repo.listCalls, 3)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeAvailability,
				Params:    models.ReportJobParams{Month: "2026-03", Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "admin",
			},
		},
	}
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/reports/download/token"}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeAvailability,
				Params:    models.ReportJobParams{Month: "2026-03", Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "admin",
			},
		},
	}
	exporter := exportStub{err: errors.New("boom")}
	worker := NewReportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	require.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}
