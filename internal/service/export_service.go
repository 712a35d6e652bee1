package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
	"github.com/campushq/helpdesk-api/pkg/export"
	"github.com/campushq/helpdesk-api/pkg/jobs"
	"github.com/campushq/helpdesk-api/pkg/storage"
)

type exportRequestLister interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, int, error)
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

// ExportConfig tunes request-ledger export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
}

// exportJobPayload travels through the queue.
type exportJobPayload struct {
	JobID  string
	Format models.ExportFormat
	Filter models.RequestFilter
}

// exportPageSize is the page size used when walking the request store.
const exportPageSize = 100

// ExportService renders the request ledger to CSV or PDF asynchronously and
// hands out signed download URLs.
type ExportService struct {
	requests exportRequestLister
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	tracked map[string]*models.ExportJob
}

// NewExportService constructs an ExportService.
func NewExportService(requests exportRequestLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	svc := &ExportService{
		requests: requests,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		tracked:  make(map[string]*models.ExportJob),
	}
	svc.queue = jobs.NewQueue("request-exports", svc.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return svc
}

// Start begins background workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains background workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue accepts a new export job for the request ledger.
func (s *ExportService) Enqueue(format models.ExportFormat, requestedBy string, filter models.RequestFilter) (*models.ExportJob, error) {
	switch format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "request-ledger",
		Payload: exportJobPayload{JobID: job.ID, Format: format, Filter: filter},
	})
	if err != nil {
		s.fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	return snapshotJob(job), nil
}

// Job returns the tracked state of an export job.
func (s *ExportService) Job(id string) (*models.ExportJob, error) {
	s.mu.RLock()
	job, ok := s.tracked[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return snapshotJob(job), nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string) (jobID, relPath string, err error) {
	jobID, relPath, _, err = s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return jobID, relPath, nil
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return file, nil
}

// Cleanup removes stored files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportJobPayload)
	if !ok {
		return fmt.Errorf("unexpected export payload %T", job.Payload)
	}

	dataset, err := s.buildDataset(ctx, payload.Filter)
	if err != nil {
		s.fail(payload.JobID, err)
		return err
	}

	var rendered []byte
	switch payload.Format {
	case models.ExportFormatCSV:
		rendered, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(dataset, "Service Request Ledger")
	}
	if err != nil {
		s.fail(payload.JobID, err)
		return err
	}

	filename := fmt.Sprintf("requests_%s.%s", time.Now().UTC().Format("20060102_150405"), payload.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.fail(payload.JobID, err)
		return err
	}

	token, _, err := s.signer.Generate(payload.JobID, relPath)
	if err != nil {
		s.fail(payload.JobID, err)
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.complete(payload.JobID, filename, fmt.Sprintf("%s/exports/%s/download?sig=%s", prefix, payload.JobID, token))
	return nil
}

func (s *ExportService) buildDataset(ctx context.Context, filter models.RequestFilter) (export.Dataset, error) {
	headers := []string{"ID", "Category", "Description", "Priority", "Status", "Student", "Created At", "Resolved At"}
	rows := make([]map[string]string, 0, exportPageSize)

	filter.Page = 1
	filter.PageSize = exportPageSize
	for {
		page, total, err := s.requests.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, err
		}
		for _, request := range page {
			rows = append(rows, map[string]string{
				"ID":          request.ID,
				"Category":    request.Category,
				"Description": request.Description,
				"Priority":    string(request.Priority),
				"Status":      string(request.Status),
				"Student":     derefString(request.StudentName),
				"Created At":  request.CreatedAt.UTC().Format(time.RFC3339),
				"Resolved At": formatOptionalTime(request.ResolvedAt),
			})
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) fail(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tracked[jobID]; ok {
		job.Status = models.ExportStatusFailed
		job.Error = cause.Error()
	}
}

func (s *ExportService) complete(jobID, filename, downloadURL string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.tracked[jobID]; ok {
		job.Status = models.ExportStatusCompleted
		job.FileName = filename
		job.DownloadURL = downloadURL
		job.CompletedAt = &now
	}
}

func snapshotJob(job *models.ExportJob) *models.ExportJob {
	copied := *job
	return &copied
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
