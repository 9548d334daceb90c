package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/internal/events"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// JobStore persists job records. Transition methods return
// domain.ErrJobNotFound when the job row does not exist.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	SetRunning(ctx context.Context, jobID string, at time.Time) error
	SetCompleted(ctx context.Context, jobID string, outputFileIDs []string, at time.Time) error
	SetFailed(ctx context.Context, jobID string, message string, at time.Time) error
	CancelPending(ctx context.Context, jobID string, message string, at time.Time) (bool, error)
	Delete(ctx context.Context, jobID string) error
	CountActiveByOwner(ctx context.Context, ownerID string) (int, error)
	List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error)
	Stats(ctx context.Context, ownerID string) (*domain.JobStats, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FileResolver hydrates the file references jobs carry. Resolution is
// lenient: ids that no longer point at a live owned file are dropped, so
// job reads degrade instead of failing on deleted files.
type FileResolver interface {
	ResolveLenient(ctx context.Context, ownerID string, fileIDs []string) ([]domain.File, error)
}

// Engine owns the job state machine. Every status transition in the system
// goes through here; nothing else writes job statuses.
type Engine struct {
	jobs      JobStore
	files     FileResolver
	sink      events.Sink
	maxActive int
	logger    *slog.Logger
}

// New creates a job engine. A maxActive of 0 disables the per-owner
// admission limit; sink may be nil when no event delivery is wired.
func New(jobs JobStore, files FileResolver, sink events.Sink, maxActive int, logger *slog.Logger) *Engine {
	return &Engine{
		jobs:      jobs,
		files:     files,
		sink:      sink,
		maxActive: maxActive,
		logger:    logger,
	}
}

// CreateSpec describes a job to admit
type CreateSpec struct {
	OwnerID      string
	Type         domain.JobType
	InputFileIDs []string
	Options      domain.JobOptions
}

func (s CreateSpec) validate() error {
	if s.OwnerID == "" {
		return domain.NewValidationError("owner id is required")
	}

	if _, err := domain.ParseJobType(string(s.Type)); err != nil {
		return err
	}

	if len(s.InputFileIDs) == 0 {
		return domain.NewValidationError("at least one input file is required")
	}

	if s.Options == nil {
		return domain.NewValidationError("job options are required")
	}

	if s.Options.Kind() != s.Type {
		return domain.NewValidationError("options are for job type %q, not %q", s.Options.Kind(), s.Type)
	}

	return s.Options.Validate()
}

// Create validates and admits a new PENDING job. Input file ids are taken
// as given: the processor resolves them strictly when the job runs, so a
// missing or foreign file fails the run instead of blocking admission. The
// active-job limit is not checked here either; callers gate admission with
// HasReachedJobLimit first.
func (e *Engine) Create(ctx context.Context, spec CreateSpec) (*domain.Job, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:            uuid.New().String(),
		OwnerID:       spec.OwnerID,
		Type:          spec.Type,
		Status:        domain.JobStatusPending,
		InputFileIDs:  dedupeIDs(spec.InputFileIDs),
		OutputFileIDs: []string{},
		Options:       spec.Options,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	e.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.String("owner_id", job.OwnerID),
		slog.Int("input_count", len(job.InputFileIDs)),
	)
	e.emit(ctx, events.FromJob(events.TypeJobCreated, job))

	return job, nil
}

// Run executes a PENDING job with the given processor and drives it to a
// terminal status. On processor failure the returned job is the FAILED
// record and the error is a *domain.ProcessingError wrapping the cause.
func (e *Engine) Run(ctx context.Context, jobID string, proc domain.ProcessorFunc) (*domain.Job, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusPending {
		return nil, fmt.Errorf("%w: job %s is %s, not %s", domain.ErrConflict, jobID, job.Status, domain.JobStatusPending)
	}

	startedAt := time.Now().UTC()
	if err := e.jobs.SetRunning(ctx, jobID, startedAt); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt
	job.UpdatedAt = startedAt

	e.logger.Info("Job started",
		slog.String("job_id", jobID),
		slog.String("job_type", string(job.Type)),
	)

	outputs, procErr := proc(ctx, job)
	if procErr == nil && len(outputs) == 0 {
		procErr = errors.New("processor produced no output files")
	}

	if procErr != nil {
		return e.fail(ctx, job, procErr)
	}

	return e.complete(ctx, job, outputs)
}

// Execute admits a job and runs it in one go
func (e *Engine) Execute(ctx context.Context, spec CreateSpec, proc domain.ProcessorFunc) (*domain.Job, error) {
	job, err := e.Create(ctx, spec)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, job.ID, proc)
}

// complete finalizes a successful run. Bookkeeping survives request
// cancellation so a finished job is never left RUNNING.
func (e *Engine) complete(ctx context.Context, job *domain.Job, outputFileIDs []string) (*domain.Job, error) {
	ctx = context.WithoutCancel(ctx)

	completedAt := time.Now().UTC()
	if err := e.jobs.SetCompleted(ctx, job.ID, outputFileIDs, completedAt); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusCompleted
	job.OutputFileIDs = outputFileIDs
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt

	e.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.Int("output_count", len(outputFileIDs)),
		slog.Duration("duration", completedAt.Sub(*job.StartedAt)),
	)
	e.emit(ctx, events.FromJob(events.TypeJobCompleted, job))

	return job, nil
}

// fail finalizes a failed run, keeping whatever outputs were already
// registered out of the job record.
func (e *Engine) fail(ctx context.Context, job *domain.Job, procErr error) (*domain.Job, error) {
	ctx = context.WithoutCancel(ctx)

	completedAt := time.Now().UTC()
	if err := e.jobs.SetFailed(ctx, job.ID, procErr.Error(), completedAt); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = procErr.Error()
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt

	e.logger.Error("Job failed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.String("error", procErr.Error()),
	)
	e.emit(ctx, events.FromJob(events.TypeJobFailed, job))

	return job, domain.NewProcessingError(job.ID, procErr)
}

// Get returns an owner's job with its file references hydrated. Dangling
// references are omitted rather than failing the read.
func (e *Engine) Get(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	job, err := e.owned(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	if err := e.hydrate(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// List returns a page of the owner's jobs and whether more pages exist
func (e *Engine) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, bool, error) {
	if filter.Status != "" {
		switch filter.Status {
		case domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusFailed:
		default:
			return nil, false, domain.NewValidationError("unknown job status %q", filter.Status)
		}
	}

	if filter.Type != "" {
		if _, err := domain.ParseJobType(string(filter.Type)); err != nil {
			return nil, false, err
		}
	}

	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	jobs, err := e.jobs.List(ctx, filter)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(jobs) > filter.Limit
	if hasMore {
		jobs = jobs[:filter.Limit]
	}

	return jobs, hasMore, nil
}

// Cancel fails a PENDING job with the standard cancel message. Jobs that
// already left PENDING conflict: a running processor is not interrupted.
func (e *Engine) Cancel(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	job, err := e.owned(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cancelled, err := e.jobs.CancelPending(ctx, jobID, domain.CancelMessage, now)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("%w: job %s is %s and can no longer be cancelled", domain.ErrConflict, jobID, job.Status)
	}

	job.Status = domain.JobStatusFailed
	job.ErrorMessage = domain.CancelMessage
	job.CompletedAt = &now
	job.UpdatedAt = now

	e.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("owner_id", ownerID),
	)
	e.emit(ctx, events.FromJob(events.TypeJobFailed, job))

	return job, nil
}

// Requeue admits a fresh PENDING copy of a FAILED job, leaving the failed
// record in place. Inputs carry over as ids; files trashed since the
// original run will fail the clone when it next runs.
func (e *Engine) Requeue(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	original, err := e.owned(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	if original.Status != domain.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %s is %s; only %s jobs can be requeued",
			domain.ErrConflict, jobID, original.Status, domain.JobStatusFailed)
	}

	clone, err := e.Create(ctx, CreateSpec{
		OwnerID:      ownerID,
		Type:         original.Type,
		InputFileIDs: original.InputFileIDs,
		Options:      original.Options,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Job requeued",
		slog.String("job_id", clone.ID),
		slog.String("original_job_id", jobID),
	)

	return clone, nil
}

// Retry requeues a FAILED job and immediately runs the copy
func (e *Engine) Retry(ctx context.Context, ownerID, jobID string, proc domain.ProcessorFunc) (*domain.Job, error) {
	clone, err := e.Requeue(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, clone.ID, proc)
}

// Delete removes a job record in any status. Output files are not
// touched; they belong to the file lifecycle.
func (e *Engine) Delete(ctx context.Context, ownerID, jobID string) error {
	if _, err := e.owned(ctx, ownerID, jobID); err != nil {
		return err
	}

	if err := e.jobs.Delete(ctx, jobID); err != nil {
		return err
	}

	e.logger.Info("Job deleted",
		slog.String("job_id", jobID),
		slog.String("owner_id", ownerID),
	)

	return nil
}

// HasReachedJobLimit reports whether the owner already holds the maximum
// number of PENDING or RUNNING jobs. The check is advisory: it recomputes
// the count from the store on demand, so two admissions racing past it can
// both land. Create deliberately does not re-check.
func (e *Engine) HasReachedJobLimit(ctx context.Context, ownerID string) (bool, error) {
	if e.maxActive <= 0 {
		return false, nil
	}

	active, err := e.jobs.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}

	return active >= e.maxActive, nil
}

// Stats aggregates the owner's job history
func (e *Engine) Stats(ctx context.Context, ownerID string) (*domain.JobStats, error) {
	return e.jobs.Stats(ctx, ownerID)
}

// CleanupTerminal removes COMPLETED and FAILED jobs older than maxAge
func (e *Engine) CleanupTerminal(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	removed, err := e.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		e.logger.Info("Old jobs removed",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}

	return removed, nil
}

// owned fetches a job and verifies the caller owns it
func (e *Engine) owned(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: job %s", domain.ErrForbidden, jobID)
	}

	return job, nil
}

func (e *Engine) hydrate(ctx context.Context, job *domain.Job) error {
	inputs, err := e.files.ResolveLenient(ctx, job.OwnerID, job.InputFileIDs)
	if err != nil {
		return err
	}

	outputs, err := e.files.ResolveLenient(ctx, job.OwnerID, job.OutputFileIDs)
	if err != nil {
		return err
	}

	job.InputFiles = inputs
	job.OutputFiles = outputs
	return nil
}

// emit delivers an event when a sink is wired; delivery failures are
// logged, never surfaced, since the job transition already happened.
func (e *Engine) emit(ctx context.Context, ev events.Event) {
	if e.sink == nil {
		return
	}

	if err := e.sink.Publish(ctx, ev); err != nil {
		e.logger.Warn("Failed to publish job event",
			slog.String("event_type", ev.Type),
			slog.String("job_id", ev.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// dedupeIDs keeps the first occurrence of each id, preserving order
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// normalizePage clamps pagination inputs to sane bounds
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
