package domain

import (
	"fmt"
	"strings"
	"time"
)

// FileType is the coarse classification derived from a file's MIME type
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypePDF      FileType = "pdf"
	FileTypeVideo    FileType = "video"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// FileTypeFromMime derives the stored file type from a MIME type.
// Parameters after ";" are ignored; unknown types map to "other".
func FileTypeFromMime(mime string) FileType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == "application/pdf":
		return FileTypePDF
	case strings.HasPrefix(mime, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mime, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mime, "text/"), isDocumentMime(mime):
		return FileTypeDocument
	default:
		return FileTypeOther
	}
}

func isDocumentMime(mime string) bool {
	switch mime {
	case "application/rtf",
		"application/msword",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	return false
}

// File is a stored blob plus its metadata record. The record moves
// Live -> Trashed (soft delete) -> Purged (hard delete); a trashed file
// stays fetchable by id for history but is excluded from listings,
// strict resolution and usage stats.
type File struct {
	ID           string
	OwnerID      string
	OriginalName string
	StorageKey   string
	MimeType     string
	FileType     FileType
	Size         int64
	Favorite     bool
	SourceJobID  string
	IsDeleted    bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLive reports whether the file has not been soft deleted
func (f *File) IsLive() bool {
	return !f.IsDeleted
}

// SoftDelete moves a live file to the trashed state
func (f *File) SoftDelete(at time.Time) error {
	if f.IsDeleted {
		return fmt.Errorf("%w: file %s is already deleted", ErrConflict, f.ID)
	}
	f.IsDeleted = true
	f.DeletedAt = &at
	f.UpdatedAt = at
	return nil
}

// FileFilter narrows and pages file listings. Only live files are listed.
type FileFilter struct {
	OwnerID  string
	Type     FileType
	Favorite *bool
	Page     int
	Limit    int
	SortBy   string
	SortDir  string
}

// TypeUsage is the per-type slice of a user's storage usage
type TypeUsage struct {
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size_bytes"`
}

// UsageStats aggregates a user's live files by type
type UsageStats struct {
	TotalFiles int64                  `json:"total_files"`
	TotalSize  int64                  `json:"total_size_bytes"`
	ByType     map[FileType]TypeUsage `json:"by_type"`
}
