package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// respondError translates domain errors into HTTP responses. Errors outside
// the domain taxonomy are logged and reported as a plain 500 so internals
// never leak to clients.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// statusForError maps a domain error to its HTTP status code
func statusForError(err error) int {
	var procErr *domain.ProcessingError

	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooManyJobs):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrValidation), errors.As(err, &procErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
