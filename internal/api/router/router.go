package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fileflowhq/fileflow-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint; probes the database so load balancers see
	// a dead pool as unhealthy, not just a live process
	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "fileflow-api",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "fileflow-api",
		})
	})

	// Initialize handlers
	jobHandler := handler.NewJobHandler(deps)
	fileHandler := handler.NewFileHandler(deps)

	// API v1 routes; everything below requires a valid token
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.JWTSecret))
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a job and run it
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/stats - Job counts by status and type
			jobs.GET("/stats", jobHandler.JobStats)

			// GET /api/v1/jobs/events - Websocket stream of job events
			jobs.GET("/events", jobHandler.JobEvents)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a pending job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// POST /api/v1/jobs/:job_id/requeue - Clone a failed job
			jobs.POST("/:job_id/requeue", jobHandler.RequeueJob)

			// POST /api/v1/jobs/:job_id/retry - Clone a failed job and run it
			jobs.POST("/:job_id/retry", jobHandler.RetryJob)

			// DELETE /api/v1/jobs/:job_id - Delete a job record
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		files := v1.Group("/files")
		{
			// POST /api/v1/files - Upload a file
			files.POST("", fileHandler.UploadFile)

			// GET /api/v1/files - List live files with filtering and pagination
			files.GET("", fileHandler.ListFiles)

			// GET /api/v1/files/stats - Storage usage by file type
			files.GET("/stats", fileHandler.FileStats)

			// GET /api/v1/files/:file_id - Get file metadata
			files.GET("/:file_id", fileHandler.GetFile)

			// GET /api/v1/files/:file_id/download - Stream file content
			files.GET("/:file_id/download", fileHandler.DownloadFile)

			// PATCH /api/v1/files/:file_id - Rename or favorite a file
			files.PATCH("/:file_id", fileHandler.UpdateFile)

			// DELETE /api/v1/files/:file_id - Trash a file (?permanent=true purges)
			files.DELETE("/:file_id", fileHandler.DeleteFile)
		}
	}

	return r
}
