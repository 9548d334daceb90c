package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/shared/postgresql"
)

const jobColumns = `
		job_id, owner_id, job_type, status,
		input_file_ids, output_file_ids, options, error_message,
		created_at, updated_at, started_at, completed_at
`

// jobRow mirrors the jobs table
type jobRow struct {
	JobID         string         `db:"job_id"`
	OwnerID       string         `db:"owner_id"`
	JobType       string         `db:"job_type"`
	Status        string         `db:"status"`
	InputFileIDs  pq.StringArray `db:"input_file_ids"`
	OutputFileIDs pq.StringArray `db:"output_file_ids"`
	Options       []byte         `db:"options"`
	ErrorMessage  string         `db:"error_message"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	StartedAt     *time.Time     `db:"started_at"`
	CompletedAt   *time.Time     `db:"completed_at"`
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	opts, err := domain.DecodeOptions(domain.JobType(r.JobType), r.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to decode options for job %s: %w", r.JobID, err)
	}

	return &domain.Job{
		ID:            r.JobID,
		OwnerID:       r.OwnerID,
		Type:          domain.JobType(r.JobType),
		Status:        domain.JobStatus(r.Status),
		InputFileIDs:  []string(r.InputFileIDs),
		OutputFileIDs: []string(r.OutputFileIDs),
		Options:       opts,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}, nil
}

// JobStore handles database operations for jobs
type JobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore creates a new job store
func NewJobStore(pg *postgresql.Client, logger *slog.Logger) *JobStore {
	return &JobStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Create inserts a new job record
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal job options: %w", err)
	}

	query := `
		INSERT INTO jobs (
			job_id, owner_id, job_type, status,
			input_file_ids, output_file_ids, options, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.OwnerID,
		job.Type,
		job.Status,
		pq.StringArray(job.InputFileIDs),
		pq.StringArray(job.OutputFileIDs),
		optionsJSON,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID
func (s *JobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT` + jobColumns + `FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// SetRunning moves a job to RUNNING and stamps started_at
func (s *JobStore) SetRunning(ctx context.Context, jobID string, at time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1, started_at = $2, updated_at = $2
		WHERE job_id = $3
	`

	return s.execExpectingRow(ctx, query, domain.JobStatusRunning, at, jobID)
}

// SetCompleted moves a job to COMPLETED with its outputs and stamps completed_at
func (s *JobStore) SetCompleted(ctx context.Context, jobID string, outputFileIDs []string, at time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1, output_file_ids = $2, completed_at = $3, updated_at = $3
		WHERE job_id = $4
	`

	return s.execExpectingRow(ctx, query, domain.JobStatusCompleted, pq.StringArray(outputFileIDs), at, jobID)
}

// SetFailed moves a job to FAILED with the failure message and stamps completed_at
func (s *JobStore) SetFailed(ctx context.Context, jobID string, message string, at time.Time) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
		WHERE job_id = $4
	`

	return s.execExpectingRow(ctx, query, domain.JobStatusFailed, message, at, jobID)
}

// CancelPending fails a job with the given message only while it is still
// PENDING, using the status gate as an optimistic lock. It reports whether
// the transition happened.
func (s *JobStore) CancelPending(ctx context.Context, jobID string, message string, at time.Time) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
		WHERE job_id = $4
		  AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, message, at, jobID, domain.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job cancel skipped - not pending or not found",
			slog.String("job_id", jobID),
		)
		return false, nil
	}

	return true, nil
}

// Delete removes a job record
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// CountActiveByOwner counts an owner's PENDING and RUNNING jobs
func (s *JobStore) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM jobs
		WHERE owner_id = $1
		  AND status IN ($2, $3)
	`

	err := s.db.GetContext(ctx, &count, query, ownerID, domain.JobStatusPending, domain.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}

	return count, nil
}

// List returns jobs matching the filter, fetching one row beyond the limit
// so callers can detect whether more pages exist.
func (s *JobStore) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	query := `SELECT` + jobColumns + `FROM jobs WHERE owner_id = $1`
	args := []interface{}{filter.OwnerID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	query += orderClause(jobSortColumn(filter.SortBy), filter.SortDir, "job_id")

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit+1, (filter.Page-1)*filter.Limit)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// Stats aggregates an owner's jobs by status and type
func (s *JobStore) Stats(ctx context.Context, ownerID string) (*domain.JobStats, error) {
	stats := &domain.JobStats{
		ByStatus: make(map[domain.JobStatus]int64),
		ByType:   make(map[domain.JobType]int64),
	}

	var byStatus []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM jobs WHERE owner_id = $1 GROUP BY status`
	if err := s.db.SelectContext(ctx, &byStatus, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to aggregate jobs by status: %w", err)
	}

	for _, row := range byStatus {
		stats.ByStatus[domain.JobStatus(row.Status)] = row.Count
		stats.Total += row.Count
	}

	var byType []struct {
		JobType string `db:"job_type"`
		Count   int64  `db:"count"`
	}
	query = `SELECT job_type, COUNT(*) AS count FROM jobs WHERE owner_id = $1 GROUP BY job_type`
	if err := s.db.SelectContext(ctx, &byType, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to aggregate jobs by type: %w", err)
	}

	for _, row := range byType {
		stats.ByType[domain.JobType(row.JobType)] = row.Count
	}

	return stats, nil
}

// DeleteTerminalBefore removes COMPLETED and FAILED jobs that finished
// before the cutoff and returns how many were removed.
func (s *JobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status IN ($1, $2)
		  AND completed_at IS NOT NULL
		  AND completed_at < $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusCompleted, domain.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// execExpectingRow runs an update that must touch exactly one job row
func (s *JobStore) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// jobSortColumn whitelists sortable job columns
func jobSortColumn(requested string) string {
	switch requested {
	case "completed_at":
		return "completed_at"
	default:
		return "created_at"
	}
}

// orderClause builds a deterministic ORDER BY from whitelisted inputs,
// using the primary key as a tiebreaker.
func orderClause(column, direction, tiebreaker string) string {
	dir := "DESC"
	if strings.EqualFold(direction, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", column, dir, tiebreaker, dir)
}
