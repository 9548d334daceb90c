package domain

import (
	"context"
	"time"
)

// JobStatus describes the lifecycle state of a job record
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether the status is COMPLETED or FAILED
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType identifies a file transformation kind. The set is closed:
// every type listed here has exactly one processor and one options struct.
type JobType string

const (
	JobTypeImageToPDF     JobType = "image-to-pdf"
	JobTypeImageConvert   JobType = "image-convert"
	JobTypeImageCompress  JobType = "image-compress"
	JobTypeImageOCR       JobType = "image-ocr"
	JobTypePDFMerge       JobType = "pdf-merge"
	JobTypePDFSplit       JobType = "pdf-split"
	JobTypePDFExtractText JobType = "pdf-extract-text"
	JobTypeVideoCompress  JobType = "video-compress"
)

// JobTypes returns all known job types
func JobTypes() []JobType {
	return []JobType{
		JobTypeImageToPDF,
		JobTypeImageConvert,
		JobTypeImageCompress,
		JobTypeImageOCR,
		JobTypePDFMerge,
		JobTypePDFSplit,
		JobTypePDFExtractText,
		JobTypeVideoCompress,
	}
}

// ParseJobType validates a wire-level job type string
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	for _, known := range JobTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", NewValidationError("unknown job type %q", s)
}

// CancelMessage is the error message recorded when a pending job is cancelled
const CancelMessage = "cancelled by user"

// Job is a single transformation run over one or more input files.
// Status, outputs and timestamps are mutated only by the engine's
// transition methods; everything else is fixed at creation.
type Job struct {
	ID            string
	OwnerID       string
	Type          JobType
	Status        JobStatus
	InputFileIDs  []string
	OutputFileIDs []string
	Options       JobOptions
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time

	// InputFiles and OutputFiles carry hydrated file metadata on read
	// paths. They are never persisted; dangling ids resolve to nothing.
	InputFiles  []File
	OutputFiles []File
}

// ProcessorFunc runs the transformation for a RUNNING job and returns the
// ids of the output files it registered. Any error fails the job with the
// error's message; output files registered before the failure survive.
type ProcessorFunc func(ctx context.Context, job *Job) ([]string, error)

// JobFilter narrows and pages job listings
type JobFilter struct {
	OwnerID string
	Status  JobStatus
	Type    JobType
	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

// JobStats aggregates a user's job history
type JobStats struct {
	Total    int64               `json:"total"`
	ByStatus map[JobStatus]int64 `json:"by_status"`
	ByType   map[JobType]int64   `json:"by_type"`
}
