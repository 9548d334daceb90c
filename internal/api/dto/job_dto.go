package dto

import (
	"encoding/json"
	"time"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// CreateJobRequest is the body for POST /api/v1/jobs. Options stays raw
// here; the handler decodes it against the job type.
type CreateJobRequest struct {
	JobType      string          `json:"job_type" binding:"required"`
	InputFileIDs []string        `json:"input_file_ids" binding:"required"`
	Options      json.RawMessage `json:"options"`
}

// ListJobsRequest holds the query parameters for GET /api/v1/jobs
type ListJobsRequest struct {
	Status  string `form:"status"`
	JobType string `form:"job_type"`
	Page    int    `form:"page"`
	Limit   int    `form:"limit"`
	SortBy  string `form:"sort_by"`
	SortDir string `form:"sort_dir"`
}

// ListJobsResponse is a single page of jobs
type ListJobsResponse struct {
	Jobs    []JobDTO `json:"jobs"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	HasMore bool     `json:"has_more"`
}

// JobDTO is the wire representation of a job
type JobDTO struct {
	JobID         string            `json:"job_id"`
	JobType       string            `json:"job_type"`
	Status        string            `json:"status"`
	InputFileIDs  []string          `json:"input_file_ids"`
	OutputFileIDs []string          `json:"output_file_ids"`
	Options       domain.JobOptions `json:"options,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
	StartedAt     string            `json:"started_at,omitempty"`
	CompletedAt   string            `json:"completed_at,omitempty"`
	InputFiles    []FileDTO         `json:"input_files,omitempty"`
	OutputFiles   []FileDTO         `json:"output_files,omitempty"`
}

// NewJobDTO maps a domain job onto its wire representation
func NewJobDTO(job *domain.Job) JobDTO {
	d := JobDTO{
		JobID:         job.ID,
		JobType:       string(job.Type),
		Status:        string(job.Status),
		InputFileIDs:  job.InputFileIDs,
		OutputFileIDs: job.OutputFileIDs,
		Options:       job.Options,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}

	if job.StartedAt != nil {
		d.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	for _, f := range job.InputFiles {
		d.InputFiles = append(d.InputFiles, NewFileDTO(&f))
	}
	for _, f := range job.OutputFiles {
		d.OutputFiles = append(d.OutputFiles, NewFileDTO(&f))
	}

	return d
}

// NewJobDTOs maps a job listing page
func NewJobDTOs(jobs []domain.Job) []JobDTO {
	out := make([]JobDTO, len(jobs))
	for i := range jobs {
		out[i] = NewJobDTO(&jobs[i])
	}
	return out
}
