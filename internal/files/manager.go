package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/shared/blobstore"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	fallbackMimeType = "application/octet-stream"

	maxFileNameLength = 255
)

// FileStore persists file records
type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, fileID string) (*domain.File, error)
	GetLiveByIDs(ctx context.Context, fileIDs []string) ([]domain.File, error)
	Update(ctx context.Context, file *domain.File) error
	Delete(ctx context.Context, fileID string) error
	List(ctx context.Context, filter domain.FileFilter) ([]domain.File, error)
	UsageStats(ctx context.Context, ownerID string) (*domain.UsageStats, error)
}

// Manager owns the file lifecycle: content lives in the blob store, metadata
// in the file store, and the two are kept consistent here.
type Manager struct {
	store   FileStore
	blobs   blobstore.Store
	tempDir string
	logger  *slog.Logger
}

// NewManager creates a new file manager
func NewManager(store FileStore, blobs blobstore.Store, tempDir string, logger *slog.Logger) *Manager {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Manager{
		store:   store,
		blobs:   blobs,
		tempDir: tempDir,
		logger:  logger,
	}
}

// CreateFromUpload ingests an uploaded file from a local path. The declared
// MIME type is trusted unless it is empty or the generic octet-stream, in
// which case the content is sniffed.
func (m *Manager) CreateFromUpload(ctx context.Context, ownerID, srcPath, originalName, declaredMime string) (*domain.File, error) {
	name, err := sanitizeFileName(originalName)
	if err != nil {
		return nil, err
	}

	mime := detectMime(srcPath, declaredMime)
	key := m.storageKey(ownerID, "uploads", name)

	return m.ingest(ctx, srcPath, &domain.File{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		OriginalName: name,
		StorageKey:   key,
		MimeType:     mime,
		FileType:     domain.FileTypeFromMime(mime),
	})
}

// CreateOutput registers a file produced by a job. The MIME type is always
// sniffed from the produced content.
func (m *Manager) CreateOutput(ctx context.Context, ownerID, jobID, srcPath, outputName string) (*domain.File, error) {
	name, err := sanitizeFileName(outputName)
	if err != nil {
		return nil, err
	}

	mime := detectMime(srcPath, "")
	key := m.storageKey(ownerID, "outputs", name)

	return m.ingest(ctx, srcPath, &domain.File{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		OriginalName: name,
		StorageKey:   key,
		MimeType:     mime,
		FileType:     domain.FileTypeFromMime(mime),
		SourceJobID:  jobID,
	})
}

// ingest uploads the content and persists the record, removing the blob
// again if the record cannot be saved.
func (m *Manager) ingest(ctx context.Context, srcPath string, file *domain.File) (*domain.File, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}
	file.Size = info.Size()

	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now

	if err := m.blobs.Upload(ctx, file.StorageKey, srcPath, file.MimeType); err != nil {
		return nil, fmt.Errorf("failed to upload file content: %w", err)
	}

	if err := m.store.Create(ctx, file); err != nil {
		if rmErr := m.blobs.Remove(ctx, file.StorageKey); rmErr != nil {
			m.logger.Error("Failed to remove orphaned blob",
				slog.String("storage_key", file.StorageKey),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	m.logger.Info("File stored",
		slog.String("file_id", file.ID),
		slog.String("owner_id", file.OwnerID),
		slog.String("file_type", string(file.FileType)),
		slog.Int64("size_bytes", file.Size),
	)

	return file, nil
}

// Get fetches a single file with an ownership check. Trashed files are
// returned too so their history stays inspectable.
func (m *Manager) Get(ctx context.Context, ownerID, fileID string) (*domain.File, error) {
	file, err := m.store.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: file %s", domain.ErrForbidden, fileID)
	}

	return file, nil
}

// Resolve fetches the live files behind the given IDs, in the order given
// with duplicates collapsed. A file owned by someone else fails the whole
// resolution before any missing ID is reported.
func (m *Manager) Resolve(ctx context.Context, ownerID string, fileIDs []string) ([]domain.File, error) {
	unique := dedupe(fileIDs)
	if len(unique) == 0 {
		return nil, nil
	}

	fetched, err := m.store.GetLiveByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.File, len(fetched))
	for _, f := range fetched {
		if f.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: file %s", domain.ErrForbidden, f.ID)
		}
		byID[f.ID] = f
	}

	files := make([]domain.File, 0, len(unique))
	for _, id := range unique {
		f, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: file %s", domain.ErrFileNotFound, id)
		}
		files = append(files, f)
	}

	return files, nil
}

// ResolveLenient fetches whichever of the given IDs still resolve to live
// files owned by the caller, preserving order and skipping the rest. Used
// to hydrate job views, where inputs may have been trashed since.
func (m *Manager) ResolveLenient(ctx context.Context, ownerID string, fileIDs []string) ([]domain.File, error) {
	unique := dedupe(fileIDs)
	if len(unique) == 0 {
		return nil, nil
	}

	fetched, err := m.store.GetLiveByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.File, len(fetched))
	for _, f := range fetched {
		if f.OwnerID == ownerID {
			byID[f.ID] = f
		}
	}

	files := make([]domain.File, 0, len(byID))
	for _, id := range unique {
		if f, ok := byID[id]; ok {
			files = append(files, f)
		}
	}

	return files, nil
}

// Rename changes a file's display name. Trashed files cannot be renamed.
func (m *Manager) Rename(ctx context.Context, ownerID, fileID, newName string) (*domain.File, error) {
	name, err := sanitizeFileName(newName)
	if err != nil {
		return nil, err
	}

	file, err := m.mutableFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	file.OriginalName = name
	file.UpdatedAt = time.Now().UTC()

	if err := m.store.Update(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// SetFavorite flags or unflags a file. Trashed files cannot be changed.
func (m *Manager) SetFavorite(ctx context.Context, ownerID, fileID string, favorite bool) (*domain.File, error) {
	file, err := m.mutableFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	file.Favorite = favorite
	file.UpdatedAt = time.Now().UTC()

	if err := m.store.Update(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// SoftDelete moves a file to the trash. The blob stays in place so the
// record remains inspectable; only a purge removes content.
func (m *Manager) SoftDelete(ctx context.Context, ownerID, fileID string) error {
	file, err := m.Get(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := file.SoftDelete(time.Now().UTC()); err != nil {
		return err
	}

	if err := m.store.Update(ctx, file); err != nil {
		return err
	}

	m.logger.Info("File trashed",
		slog.String("file_id", fileID),
		slog.String("owner_id", ownerID),
	)

	return nil
}

// Purge permanently removes a file. Blob removal is best effort: a failure
// is logged and the record is deleted regardless, so purge never leaves a
// visible file behind.
func (m *Manager) Purge(ctx context.Context, ownerID, fileID string) error {
	file, err := m.Get(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := m.blobs.Remove(ctx, file.StorageKey); err != nil {
		m.logger.Error("Failed to remove blob during purge",
			slog.String("file_id", fileID),
			slog.String("storage_key", file.StorageKey),
			slog.String("error", err.Error()),
		)
	}

	if err := m.store.Delete(ctx, fileID); err != nil {
		return err
	}

	m.logger.Info("File purged",
		slog.String("file_id", fileID),
		slog.String("owner_id", ownerID),
	)

	return nil
}

// List returns a page of the owner's live files and whether more pages
// exist beyond it.
func (m *Manager) List(ctx context.Context, filter domain.FileFilter) ([]domain.File, bool, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	files, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(files) > filter.Limit
	if hasMore {
		files = files[:filter.Limit]
	}

	return files, hasMore, nil
}

// UsageStats aggregates the owner's live files by type
func (m *Manager) UsageStats(ctx context.Context, ownerID string) (*domain.UsageStats, error) {
	return m.store.UsageStats(ctx, ownerID)
}

// Stage makes a file's content available at a local path for processing.
// The cleanup func must always be called; it is a no-op when the store
// handed out its own on-disk path.
func (m *Manager) Stage(ctx context.Context, file *domain.File) (string, func(), error) {
	path, isTemp, err := m.blobs.Stage(ctx, file.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stage file %s: %w", file.ID, err)
	}

	cleanup := func() {}
	if isTemp {
		cleanup = func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("Failed to remove staged file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return path, cleanup, nil
}

// TempPath returns a fresh scratch path with the given extension under the
// manager's temp directory. The caller owns the path.
func (m *Manager) TempPath(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(m.tempDir, uuid.New().String()+ext)
}

// Open streams a file's content for download
func (m *Manager) Open(ctx context.Context, file *domain.File) (io.ReadCloser, error) {
	return m.blobs.Open(ctx, file.StorageKey)
}

// mutableFile fetches a file for modification, rejecting trashed ones
func (m *Manager) mutableFile(ctx context.Context, ownerID, fileID string) (*domain.File, error) {
	file, err := m.Get(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	if file.IsDeleted {
		return nil, fmt.Errorf("%w: file %s is in the trash", domain.ErrConflict, fileID)
	}

	return file, nil
}

// storageKey builds the blob key for a new file, keeping the original
// extension so staged copies keep a meaningful suffix.
func (m *Manager) storageKey(ownerID, kind, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return fmt.Sprintf("users/%s/%s/%s%s", ownerID, kind, uuid.New().String(), ext)
}

// detectMime trusts a concrete declared type and sniffs the content
// otherwise. Sniffing failures fall back to the generic octet-stream.
func detectMime(path, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, fallbackMimeType) {
		return declared
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		if declared != "" {
			return declared
		}
		return fallbackMimeType
	}

	return mtype.String()
}

// sanitizeFileName strips any path components from a client-supplied name
// and rejects empty or oversized results. Backslashes are treated as
// separators too since the name comes from arbitrary clients.
func sanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = path.Base(name)
	if name == "." || name == ".." || name == "/" {
		name = ""
	}

	if name == "" {
		return "", domain.NewValidationError("file name must not be empty")
	}

	if len(name) > maxFileNameLength {
		return "", domain.NewValidationError("file name must not exceed %d characters", maxFileNameLength)
	}

	return name, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// normalizePage clamps pagination inputs to sane bounds
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
