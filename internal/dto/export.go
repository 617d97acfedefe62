package dto

import "time"

// ExportFormat enumerates supported finalized-schedule export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportRequest asks for an export of a schedule's committed assignments.
type ExportRequest struct {
	ScheduleID string       `json:"schedule_id" validate:"required"`
	Format     ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobStatus is the lifecycle of an asynchronous export job.
type ExportJobStatus string

const (
	ExportJobQueued    ExportJobStatus = "QUEUED"
	ExportJobRunning   ExportJobStatus = "RUNNING"
	ExportJobCompleted ExportJobStatus = "COMPLETED"
	ExportJobFailed    ExportJobStatus = "FAILED"
)

// ExportJobResponse reports job progress and, once completed, a signed
// download token.
type ExportJobResponse struct {
	JobID       string          `json:"job_id"`
	ScheduleID  string          `json:"schedule_id"`
	Format      ExportFormat    `json:"format"`
	Status      ExportJobStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	DownloadURL string          `json:"download_url,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
