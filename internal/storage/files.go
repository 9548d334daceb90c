package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/shared/postgresql"
)

const fileColumns = `
		file_id, owner_id, original_name, storage_key, mime_type, file_type,
		size_bytes, favorite, source_job_id, is_deleted,
		deleted_at, created_at, updated_at
`

// fileRow mirrors the files table
type fileRow struct {
	FileID       string     `db:"file_id"`
	OwnerID      string     `db:"owner_id"`
	OriginalName string     `db:"original_name"`
	StorageKey   string     `db:"storage_key"`
	MimeType     string     `db:"mime_type"`
	FileType     string     `db:"file_type"`
	SizeBytes    int64      `db:"size_bytes"`
	Favorite     bool       `db:"favorite"`
	SourceJobID  string     `db:"source_job_id"`
	IsDeleted    bool       `db:"is_deleted"`
	DeletedAt    *time.Time `db:"deleted_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *fileRow) toDomain() *domain.File {
	return &domain.File{
		ID:           r.FileID,
		OwnerID:      r.OwnerID,
		OriginalName: r.OriginalName,
		StorageKey:   r.StorageKey,
		MimeType:     r.MimeType,
		FileType:     domain.FileType(r.FileType),
		Size:         r.SizeBytes,
		Favorite:     r.Favorite,
		SourceJobID:  r.SourceJobID,
		IsDeleted:    r.IsDeleted,
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// FileStore handles database operations for file records
type FileStore struct {
	db *sqlx.DB
}

// NewFileStore creates a new file store
func NewFileStore(pg *postgresql.Client) *FileStore {
	return &FileStore{
		db: pg.GetDB(),
	}
}

// Create inserts a new file record
func (s *FileStore) Create(ctx context.Context, file *domain.File) error {
	query := `
		INSERT INTO files (
			file_id, owner_id, original_name, storage_key, mime_type, file_type,
			size_bytes, favorite, source_job_id, is_deleted,
			deleted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.OwnerID,
		file.OriginalName,
		file.StorageKey,
		file.MimeType,
		file.FileType,
		file.Size,
		file.Favorite,
		file.SourceJobID,
		file.IsDeleted,
		file.DeletedAt,
		file.CreatedAt,
		file.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}

	return nil
}

// GetByID retrieves a file record by its ID, including trashed files
func (s *FileStore) GetByID(ctx context.Context, fileID string) (*domain.File, error) {
	var row fileRow
	query := `SELECT` + fileColumns + `FROM files WHERE file_id = $1`

	if err := s.db.GetContext(ctx, &row, query, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return row.toDomain(), nil
}

// GetLiveByIDs retrieves the non-trashed files among the given IDs. IDs
// that are missing or trashed are simply absent from the result.
func (s *FileStore) GetLiveByIDs(ctx context.Context, fileIDs []string) ([]domain.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	var rows []fileRow
	query := `SELECT` + fileColumns + `FROM files WHERE file_id = ANY($1) AND is_deleted = FALSE`

	if err := s.db.SelectContext(ctx, &rows, query, pq.StringArray(fileIDs)); err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	files := make([]domain.File, 0, len(rows))
	for i := range rows {
		files = append(files, *rows[i].toDomain())
	}

	return files, nil
}

// Update persists the mutable columns of a file record
func (s *FileStore) Update(ctx context.Context, file *domain.File) error {
	query := `
		UPDATE files
		SET original_name = $1, favorite = $2, is_deleted = $3, deleted_at = $4, updated_at = $5
		WHERE file_id = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		file.OriginalName,
		file.Favorite,
		file.IsDeleted,
		file.DeletedAt,
		file.UpdatedAt,
		file.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrFileNotFound
	}

	return nil
}

// Delete removes a file record permanently
func (s *FileStore) Delete(ctx context.Context, fileID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrFileNotFound
	}

	return nil
}

// List returns live files matching the filter, fetching one row beyond the
// limit so callers can detect whether more pages exist.
func (s *FileStore) List(ctx context.Context, filter domain.FileFilter) ([]domain.File, error) {
	query := `SELECT` + fileColumns + `FROM files WHERE owner_id = $1 AND is_deleted = FALSE`
	args := []interface{}{filter.OwnerID}
	argIdx := 2

	if filter.Type != "" {
		query += fmt.Sprintf(" AND file_type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	if filter.Favorite != nil {
		query += fmt.Sprintf(" AND favorite = $%d", argIdx)
		args = append(args, *filter.Favorite)
		argIdx++
	}

	query += orderClause(fileSortColumn(filter.SortBy), filter.SortDir, "file_id")

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit+1, (filter.Page-1)*filter.Limit)

	var rows []fileRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]domain.File, 0, len(rows))
	for i := range rows {
		files = append(files, *rows[i].toDomain())
	}

	return files, nil
}

// UsageStats aggregates an owner's live files by type
func (s *FileStore) UsageStats(ctx context.Context, ownerID string) (*domain.UsageStats, error) {
	var rows []struct {
		FileType  string `db:"file_type"`
		Count     int64  `db:"count"`
		TotalSize int64  `db:"total_size"`
	}
	query := `
		SELECT file_type, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS total_size
		FROM files
		WHERE owner_id = $1
		  AND is_deleted = FALSE
		GROUP BY file_type
	`

	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to aggregate file usage: %w", err)
	}

	stats := &domain.UsageStats{
		ByType: make(map[domain.FileType]domain.TypeUsage),
	}

	for _, row := range rows {
		stats.ByType[domain.FileType(row.FileType)] = domain.TypeUsage{
			Count:     row.Count,
			TotalSize: row.TotalSize,
		}
		stats.TotalFiles += row.Count
		stats.TotalSize += row.TotalSize
	}

	return stats, nil
}

// fileSortColumn whitelists sortable file columns
func fileSortColumn(requested string) string {
	switch requested {
	case "original_name":
		return "original_name"
	case "size_bytes", "size":
		return "size_bytes"
	default:
		return "created_at"
	}
}
