package dto

import (
	"time"

	"github.com/fileflowhq/fileflow-be/internal/domain"
)

// ListFilesRequest holds the query parameters for GET /api/v1/files
type ListFilesRequest struct {
	Type     string `form:"type"`
	Favorite *bool  `form:"favorite"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	SortBy   string `form:"sort_by"`
	SortDir  string `form:"sort_dir"`
}

// UpdateFileRequest is the body for PATCH /api/v1/files/:file_id. Both
// fields are optional but at least one must be present.
type UpdateFileRequest struct {
	Name     *string `json:"name"`
	Favorite *bool   `json:"favorite"`
}

// ListFilesResponse is a single page of files
type ListFilesResponse struct {
	Files   []FileDTO `json:"files"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
	HasMore bool      `json:"has_more"`
}

// FileDTO is the wire representation of a stored file
type FileDTO struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	FileType    string `json:"file_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Favorite    bool   `json:"favorite"`
	SourceJobID string `json:"source_job_id,omitempty"`
	IsDeleted   bool   `json:"is_deleted"`
	DeletedAt   string `json:"deleted_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// NewFileDTO maps a domain file onto its wire representation
func NewFileDTO(f *domain.File) FileDTO {
	d := FileDTO{
		FileID:      f.ID,
		Name:        f.OriginalName,
		MimeType:    f.MimeType,
		FileType:    string(f.FileType),
		SizeBytes:   f.Size,
		Favorite:    f.Favorite,
		SourceJobID: f.SourceJobID,
		IsDeleted:   f.IsDeleted,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   f.UpdatedAt.Format(time.RFC3339),
	}

	if f.DeletedAt != nil {
		d.DeletedAt = f.DeletedAt.Format(time.RFC3339)
	}

	return d
}

// NewFileDTOs maps a file listing page
func NewFileDTOs(files []domain.File) []FileDTO {
	out := make([]FileDTO, len(files))
	for i := range files {
		out[i] = NewFileDTO(&files[i])
	}
	return out
}
