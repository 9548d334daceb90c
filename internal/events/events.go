package events

import (
	"context"
	"errors"
	"time"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// Event types double as broker routing keys
const (
	TypeJobCreated   = "job.created"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
)

// Event is a job lifecycle notification, shaped the same on the broker
// and on websocket pushes.
type Event struct {
	Type          string    `json:"type"`
	JobID         string    `json:"job_id"`
	OwnerID       string    `json:"owner_id"`
	JobType       string    `json:"job_type"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	OutputFileIDs []string  `json:"output_file_ids,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// FromJob snapshots a job into an event of the given type
func FromJob(eventType string, job *domain.Job) Event {
	return Event{
		Type:          eventType,
		JobID:         job.ID,
		OwnerID:       job.OwnerID,
		JobType:       string(job.Type),
		Status:        string(job.Status),
		Error:         job.ErrorMessage,
		OutputFileIDs: job.OutputFileIDs,
		OccurredAt:    time.Now().UTC(),
	}
}

// Sink receives job lifecycle events
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout delivers each event to every sink. All sinks see the event even
// when some fail; their errors are joined.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
