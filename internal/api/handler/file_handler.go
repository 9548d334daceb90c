package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fileflowhq/fileflow-be/internal/api/dto"
	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// UploadFile handles POST /api/v1/files
// Accepts a multipart upload and stores it as a new live file
func (h *FileHandler) UploadFile(c *gin.Context) {
	h.logger.Info("UploadFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Error("Invalid multipart form", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A file form field is required",
		})
		return
	}

	if fileHeader.Size > h.maxUploadBytes {
		respondError(c, h.logger, domain.NewValidationError(
			"file size %d exceeds the upload limit of %d bytes", fileHeader.Size, h.maxUploadBytes))
		return
	}

	// The upload lands on a scratch path first; the manager moves the
	// bytes into blob storage and owns them from there.
	tempPath := h.files.TempPath(filepath.Ext(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		respondError(c, h.logger, fmt.Errorf("failed to save upload: %w", err))
		return
	}
	defer os.Remove(tempPath)

	file, err := h.files.CreateFromUpload(
		c.Request.Context(),
		userID(c),
		tempPath,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewFileDTO(file))
}

// GetFile handles GET /api/v1/files/:file_id
// Retrieves a file's metadata; trashed files are still visible here
func (h *FileHandler) GetFile(c *gin.Context) {
	fileID, ok := h.fileIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("GetFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_id", fileID),
	)

	file, err := h.files.Get(c.Request.Context(), userID(c), fileID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewFileDTO(file))
}

// DownloadFile handles GET /api/v1/files/:file_id/download
// Streams the file content with its stored name and MIME type
func (h *FileHandler) DownloadFile(c *gin.Context) {
	fileID, ok := h.fileIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("DownloadFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_id", fileID),
	)

	file, err := h.files.Get(c.Request.Context(), userID(c), fileID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	reader, err := h.files.Open(c.Request.Context(), file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer reader.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.OriginalName),
	}
	c.DataFromReader(http.StatusOK, file.Size, file.MimeType, reader, extraHeaders)
}

// ListFiles handles GET /api/v1/files
// Lists the caller's live files with optional filtering and pagination
func (h *FileHandler) ListFiles(c *gin.Context) {
	h.logger.Info("ListFiles called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListFilesRequest
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

	filter := domain.FileFilter{
		OwnerID:  userID(c),
		Type:     domain.FileType(req.Type),
		Favorite: req.Favorite,
		Page:     req.Page,
		Limit:    req.Limit,
		SortBy:   req.SortBy,
		SortDir:  req.SortDir,
	}

	files, hasMore, err := h.files.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListFilesResponse{
		Files:   dto.NewFileDTOs(files),
		Page:    req.Page,
		Limit:   req.Limit,
		HasMore: hasMore,
	})
}

// UpdateFile handles PATCH /api/v1/files/:file_id
// Renames a file and/or toggles its favorite flag
func (h *FileHandler) UpdateFile(c *gin.Context) {
	fileID, ok := h.fileIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("UpdateFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_id", fileID),
	)

	var req dto.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.Name == nil && req.Favorite == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "At least one of name or favorite is required",
		})
		return
	}

	var (
		file *domain.File
		err  error
	)
	if req.Name != nil {
		file, err = h.files.Rename(c.Request.Context(), userID(c), fileID, *req.Name)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	if req.Favorite != nil {
		file, err = h.files.SetFavorite(c.Request.Context(), userID(c), fileID, *req.Favorite)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	c.JSON(http.StatusOK, dto.NewFileDTO(file))
}

// DeleteFile handles DELETE /api/v1/files/:file_id
// Moves a file to the trash, or purges it for good with ?permanent=true
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID, ok := h.fileIDParam(c)
	if !ok {
		return
	}

	permanent := c.Query("permanent") == "true"

	h.logger.Info("DeleteFile called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("file_id", fileID),
		slog.Bool("permanent", permanent),
	)

	var err error
	if permanent {
		err = h.files.Purge(c.Request.Context(), userID(c), fileID)
	} else {
		err = h.files.SoftDelete(c.Request.Context(), userID(c), fileID)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FileStats handles GET /api/v1/files/stats
// Returns the caller's live storage usage grouped by file type
func (h *FileHandler) FileStats(c *gin.Context) {
	h.logger.Info("FileStats called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	stats, err := h.files.UsageStats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// fileIDParam validates the file_id path parameter, responding with 400
// when it is not a UUID
func (h *FileHandler) fileIDParam(c *gin.Context) (string, bool) {
	fileID := c.Param("file_id")
	if _, err := uuid.Parse(fileID); err != nil {
		h.logger.Error("Invalid file_id format", slog.String("file_id", fileID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file_id must be a valid UUID",
		})
		return "", false
	}
	return fileID, true
}
