package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/fileflowhq/fileflow-be/internal/api/ws"
	"github.com/fileflowhq/fileflow-be/internal/engine"
	"github.com/fileflowhq/fileflow-be/internal/files"
	"github.com/fileflowhq/fileflow-be/internal/ops"
	"github.com/fileflowhq/fileflow-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	DBClient       *postgresql.Client
	Engine         *engine.Engine
	Files          *files.Manager
	Registry       *ops.Registry
	Hub            *ws.Hub
	JWTSecret      string
	MaxUploadBytes int64
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	engine   *engine.Engine
	registry *ops.Registry
	hub      *ws.Hub
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		engine:   deps.Engine,
		registry: deps.Registry,
		hub:      deps.Hub,
	}
}

// FileHandler handles file-related HTTP requests
type FileHandler struct {
	logger         *slog.Logger
	files          *files.Manager
	maxUploadBytes int64
}

// NewFileHandler creates a new FileHandler instance
func NewFileHandler(deps *Dependencies) *FileHandler {
	return &FileHandler{
		logger:         deps.Logger,
		files:          deps.Files,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// userID returns the authenticated caller's id, set by the auth middleware
func userID(c *gin.Context) string {
	return c.GetString("user_id")
}
