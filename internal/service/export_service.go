package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/shiftwise-api/internal/dto"
	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
	"github.com/shiftwise/shiftwise-api/pkg/export"
	"github.com/shiftwise/shiftwise-api/pkg/jobs"
	"github.com/shiftwise/shiftwise-api/pkg/storage"
)

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
	APIPrefix   string
	ResultTTL   time.Duration
	Concurrency int
	Retries     int
}

type exportJob struct {
	ID          string
	ScheduleID  string
	Format      dto.ExportFormat
	Status      dto.ExportJobStatus
	Error       string
	DownloadURL string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// ExportService renders the committed assignments of a schedule to CSV or
// PDF. Generation runs on a background queue; downloads go through signed
// tokens so files need no auth state of their own.
type ExportService struct {
	schedules   editScheduleReader
	assignments assignmentReader
	employees   employeeLister
	shifts      shiftLister
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	logger      *zap.Logger
	cfg         ExportConfig

	mu      sync.RWMutex
	jobByID map[string]*exportJob
}

// NewExportService constructs an ExportService and its worker queue.
func NewExportService(
	schedules editScheduleReader,
	assignments assignmentReader,
	employees employeeLister,
	shifts shiftLister,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		schedules:   schedules,
		assignments: assignments,
		employees:   employees,
		shifts:      shifts,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(true),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		jobByID:     make(map[string]*exportJob),
	}
	s.queue = jobs.NewQueue("schedule-export", s.process, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// CreateJob validates the request and enqueues the export.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if _, err := s.schedules.FindByID(ctx, req.ScheduleID); err != nil {
		return nil, err
	}

	job := &exportJob{
		ID:         uuid.NewString(),
		ScheduleID: req.ScheduleID,
		Format:     req.Format,
		Status:     dto.ExportJobQueued,
		CreatedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export", Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.jobByID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	s.logger.Info("export job enqueued",
		zap.String("job_id", job.ID),
		zap.String("schedule_id", job.ScheduleID),
		zap.String("format", string(job.Format)),
	)
	return s.jobResponse(job.ID)
}

// JobStatus returns the job's current lifecycle state.
func (s *ExportService) JobStatus(jobID string) (*dto.ExportJobResponse, error) {
	return s.jobResponse(jobID)
}

// OpenDownload validates a signed token and opens the stored file.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	s.logger.Debug("export download opened", zap.String("job_id", jobID), zap.String("path", relPath))
	return file, relPath, nil
}

// Cleanup removes export files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	s.setStatus(jobID, dto.ExportJobRunning, "")

	job, ok := s.job(jobID)
	if !ok {
		return fmt.Errorf("export job %s not found", jobID)
	}

	dataset, title, err := s.buildDataset(ctx, job.ScheduleID)
	if err != nil {
		s.setStatus(jobID, dto.ExportJobFailed, err.Error())
		return err
	}

	var payload []byte
	switch job.Format {
	case dto.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported export format %s", job.Format)
	}
	if err != nil {
		s.setStatus(jobID, dto.ExportJobFailed, err.Error())
		return err
	}

	filename := fmt.Sprintf("schedule_%s_%s.%s", sanitizeFilename(job.ScheduleID), time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.setStatus(jobID, dto.ExportJobFailed, err.Error())
		return err
	}

	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		s.setStatus(jobID, dto.ExportJobFailed, err.Error())
		return err
	}

	url := strings.TrimRight(s.cfg.APIPrefix, "/")
	if url == "" {
		url = "/api/v1"
	}
	url = fmt.Sprintf("%s/exports/download/%s", url, token)

	s.mu.Lock()
	if job, ok := s.jobByID[jobID]; ok {
		job.Status = dto.ExportJobCompleted
		job.DownloadURL = url
		job.ExpiresAt = &expiresAt
	}
	s.mu.Unlock()

	s.logger.Info("export job completed", zap.String("job_id", jobID), zap.String("path", relPath))
	return nil
}

// buildDataset flattens the committed schedule into tabular rows, ordered by
// date, shift, position and surname.
func (s *ExportService) buildDataset(ctx context.Context, scheduleID string) (export.Dataset, string, error) {
	assignments, err := s.assignments.ListActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	shifts, err := s.shifts.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}

	employeeByID := make(map[string]models.Employee, len(employees))
	for _, emp := range employees {
		employeeByID[emp.ID] = emp
	}
	shiftByID := make(map[string]models.Shift, len(shifts))
	for _, shift := range shifts {
		shiftByID[shift.ID] = shift
	}

	sort.Slice(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ShiftID != b.ShiftID {
			return a.ShiftID < b.ShiftID
		}
		if a.PositionID != b.PositionID {
			return a.PositionID < b.PositionID
		}
		return employeeByID[a.EmployeeID].LastName < employeeByID[b.EmployeeID].LastName
	})

	rows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		shiftName := a.ShiftID
		start, end := "", ""
		if shift, ok := shiftByID[a.ShiftID]; ok {
			shiftName = shift.Name
			start = shift.StartTime
			end = shift.EndTime()
		}
		if a.CustomStart != nil {
			start = *a.CustomStart
		}
		if a.CustomEnd != nil {
			end = *a.CustomEnd
		}
		employeeName := a.EmployeeID
		if emp, ok := employeeByID[a.EmployeeID]; ok {
			employeeName = emp.FullName()
		}
		rows = append(rows, map[string]string{
			"Date":     a.Date,
			"Shift":    shiftName,
			"Position": a.PositionID,
			"Employee": employeeName,
			"Start":    start,
			"End":      end,
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Shift", "Position", "Employee", "Start", "End"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Schedule %s", scheduleID)
	return dataset, title, nil
}

func (s *ExportService) job(jobID string) (exportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobByID[jobID]
	if !ok {
		return exportJob{}, false
	}
	return *job, true
}

func (s *ExportService) jobResponse(jobID string) (*dto.ExportJobResponse, error) {
	job, ok := s.job(jobID)
	if !ok {
		return nil, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export job not found")
	}
	return &dto.ExportJobResponse{
		JobID:       job.ID,
		ScheduleID:  job.ScheduleID,
		Format:      job.Format,
		Status:      job.Status,
		Error:       job.Error,
		DownloadURL: job.DownloadURL,
		ExpiresAt:   job.ExpiresAt,
		CreatedAt:   job.CreatedAt,
	}, nil
}

func (s *ExportService) setStatus(jobID string, status dto.ExportJobStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobByID[jobID]; ok {
		job.Status = status
		job.Error = message
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
