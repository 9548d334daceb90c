package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "job not found",
			err:  domain.ErrJobNotFound,
			want: http.StatusNotFound,
		},
		{
			name: "wrapped file not found",
			err:  fmt.Errorf("%w: file abc", domain.ErrFileNotFound),
			want: http.StatusNotFound,
		},
		{
			name: "forbidden",
			err:  fmt.Errorf("%w: job abc", domain.ErrForbidden),
			want: http.StatusForbidden,
		},
		{
			name: "conflict",
			err:  fmt.Errorf("%w: job abc is RUNNING, not PENDING", domain.ErrConflict),
			want: http.StatusConflict,
		},
		{
			name: "too many active jobs",
			err:  fmt.Errorf("%w: limit of 3 active jobs reached", domain.ErrTooManyJobs),
			want: http.StatusTooManyRequests,
		},
		{
			name: "validation",
			err:  domain.NewValidationError("unknown job type %q", "wat"),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "processing error",
			err:  domain.NewProcessingError("job-1", errors.New("magick exited with status 1")),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown error",
			err:  errors.New("connection refused"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("domain error carries its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)

		respondError(c, testLogger(), fmt.Errorf("%w: job abc", domain.ErrJobNotFound))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error": "job not found: job abc"}`, w.Body.String())
	})

	t.Run("internal error stays generic", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)

		respondError(c, testLogger(), errors.New("pq: connection refused"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error": "Internal server error"}`, w.Body.String())
	})
}
