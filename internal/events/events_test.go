package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestFromJob(t *testing.T) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:            "job-1",
		OwnerID:       "owner-1",
		Type:          domain.JobTypePDFMerge,
		Status:        domain.JobStatusCompleted,
		OutputFileIDs: []string{"file-out"},
		CompletedAt:   &now,
	}

	ev := FromJob(TypeJobCompleted, job)

	assert.Equal(t, TypeJobCompleted, ev.Type)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, "owner-1", ev.OwnerID)
	assert.Equal(t, "pdf-merge", ev.JobType)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.Equal(t, []string{"file-out"}, ev.OutputFileIDs)
	assert.Empty(t, ev.Error)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestFanoutPublish(t *testing.T) {
	sinkErr := errors.New("sink down")
	healthy := &recordingSink{}
	broken := &recordingSink{err: sinkErr}
	trailing := &recordingSink{}

	fanout := Fanout{healthy, broken, trailing}
	ev := Event{Type: TypeJobCreated, JobID: "job-1"}

	err := fanout.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)

	// A failing sink must not stop delivery to the others
	assert.Len(t, healthy.events, 1)
	assert.Len(t, broken.events, 1)
	assert.Len(t, trailing.events, 1)
	assert.Equal(t, "job-1", trailing.events[0].JobID)
}

func TestFanoutPublish_Empty(t *testing.T) {
	var fanout Fanout
	assert.NoError(t, fanout.Publish(context.Background(), Event{Type: TypeJobFailed}))
}
