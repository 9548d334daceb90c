package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fileflowhq/fileflow-be/internal/api/dto"
	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/internal/engine"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin is already open at the CORS layer; the token check in
	// the auth middleware is what gates this endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CreateJob handles POST /api/v1/jobs
// Admits a new job and executes it synchronously; the response carries the
// job in its terminal state.
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.logger.Info("CreateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobType, err := domain.ParseJobType(req.JobType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	opts, err := domain.DecodeOptions(jobType, req.Options)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	proc, err := h.registry.Processor(jobType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !h.admit(c) {
		return
	}

	spec := engine.CreateSpec{
		OwnerID:      userID(c),
		Type:         jobType,
		InputFileIDs: req.InputFileIDs,
		Options:      opts,
	}

	job, err := h.engine.Execute(c.Request.Context(), spec, proc)
	if err != nil {
		h.respondJobError(c, job, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves a job with its input and output file metadata hydrated
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("GetJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.engine.Get(c.Request.Context(), userID(c), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs with optional filtering and pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Info("ListJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = defaultPageLimit
	}
	if req.Limit > maxPageLimit {
		req.Limit = maxPageLimit
	}

	filter := domain.JobFilter{
		OwnerID: userID(c),
		Status:  domain.JobStatus(req.Status),
		Type:    domain.JobType(req.JobType),
		Page:    req.Page,
		Limit:   req.Limit,
		SortBy:  req.SortBy,
		SortDir: req.SortDir,
	}

	jobs, hasMore, err := h.engine.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:    dto.NewJobDTOs(jobs),
		Page:    req.Page,
		Limit:   req.Limit,
		HasMore: hasMore,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not started running yet
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("CancelJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	job, err := h.engine.Cancel(c.Request.Context(), userID(c), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// RequeueJob handles POST /api/v1/jobs/:job_id/requeue
// Clones a failed job into a fresh pending job without running it
func (h *JobHandler) RequeueJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("RequeueJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if !h.admit(c) {
		return
	}

	job, err := h.engine.Requeue(c.Request.Context(), userID(c), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
// Clones a failed job and executes the clone immediately
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("RetryJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if !h.admit(c) {
		return
	}

	job, err := h.engine.Get(c.Request.Context(), userID(c), jobID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	proc, err := h.registry.Processor(job.Type)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	retried, err := h.engine.Retry(c.Request.Context(), userID(c), jobID, proc)
	if err != nil {
		h.respondJobError(c, retried, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewJobDTO(retried))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Removes a job record; output files are not touched
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("DeleteJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	if err := h.engine.Delete(c.Request.Context(), userID(c), jobID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// JobStats handles GET /api/v1/jobs/stats
// Returns the caller's job counts grouped by status and type
func (h *JobHandler) JobStats(c *gin.Context) {
	h.logger.Info("JobStats called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	stats, err := h.engine.Stats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// JobEvents handles GET /api/v1/jobs/events
// Upgrades to a websocket that streams the caller's job lifecycle events
func (h *JobHandler) JobEvents(c *gin.Context) {
	owner := userID(c)

	h.logger.Info("JobEvents called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("owner_id", owner),
	)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.Error("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.hub.Serve(conn, owner)
}

// admit rejects the request when the caller is already at the active-job
// limit. The engine leaves this gate to the API layer.
func (h *JobHandler) admit(c *gin.Context) bool {
	limited, err := h.engine.HasReachedJobLimit(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return false
	}
	if limited {
		respondError(c, h.logger, domain.ErrTooManyJobs)
		return false
	}
	return true
}

// jobIDParam validates the job_id path parameter, responding with 400 when
// it is not a UUID
func (h *JobHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

// respondJobError returns the failed job alongside its error when execution
// got far enough to record one; anything earlier falls back to the plain
// error mapping.
func (h *JobHandler) respondJobError(c *gin.Context, job *domain.Job, err error) {
	var procErr *domain.ProcessingError
	if errors.As(err, &procErr) && job != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": procErr.Error(),
			"job":   dto.NewJobDTO(job),
		})
		return
	}

	respondError(c, h.logger, err)
}
