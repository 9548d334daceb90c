package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobSortColumn(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		expected  string
	}{
		{
			name:      "completed_at is sortable",
			requested: "completed_at",
			expected:  "completed_at",
		},
		{
			name:      "empty defaults to created_at",
			requested: "",
			expected:  "created_at",
		},
		{
			name:      "unknown column falls back to created_at",
			requested: "owner_id; DROP TABLE jobs",
			expected:  "created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, jobSortColumn(tt.requested))
		})
	}
}

func TestFileSortColumn(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		expected  string
	}{
		{
			name:      "original_name is sortable",
			requested: "original_name",
			expected:  "original_name",
		},
		{
			name:      "size_bytes is sortable",
			requested: "size_bytes",
			expected:  "size_bytes",
		},
		{
			name:      "size aliases size_bytes",
			requested: "size",
			expected:  "size_bytes",
		},
		{
			name:      "empty defaults to created_at",
			requested: "",
			expected:  "created_at",
		},
		{
			name:      "unknown column falls back to created_at",
			requested: "storage_key",
			expected:  "created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fileSortColumn(tt.requested))
		})
	}
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		expected  string
	}{
		{
			name:      "asc is honored",
			direction: "asc",
			expected:  " ORDER BY created_at ASC, job_id ASC",
		},
		{
			name:      "uppercase ASC is honored",
			direction: "ASC",
			expected:  " ORDER BY created_at ASC, job_id ASC",
		},
		{
			name:      "empty defaults to desc",
			direction: "",
			expected:  " ORDER BY created_at DESC, job_id DESC",
		},
		{
			name:      "anything else defaults to desc",
			direction: "sideways",
			expected:  " ORDER BY created_at DESC, job_id DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, orderClause("created_at", tt.direction, "job_id"))
		})
	}
}
