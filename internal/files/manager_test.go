package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflowhq/fileflow-be/internal/domain"
	"github.com/fileflowhq/fileflow-be/shared/blobstore"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type fakeFileStore struct {
	mu         sync.Mutex
	files      map[string]*domain.File
	createErr  error
	lastFilter domain.FileFilter
	listResult []domain.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string]*domain.File)}
}

func (s *fakeFileStore) Create(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	clone := *file
	s.files[file.ID] = &clone
	return nil
}

func (s *fakeFileStore) GetByID(_ context.Context, fileID string) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	clone := *file
	return &clone, nil
}

func (s *fakeFileStore) GetLiveByIDs(_ context.Context, fileIDs []string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.File
	for _, id := range fileIDs {
		if file, ok := s.files[id]; ok && !file.IsDeleted {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (s *fakeFileStore) Update(_ context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return domain.ErrFileNotFound
	}
	clone := *file
	s.files[file.ID] = &clone
	return nil
}

func (s *fakeFileStore) Delete(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[fileID]; !ok {
		return domain.ErrFileNotFound
	}
	delete(s.files, fileID)
	return nil
}

func (s *fakeFileStore) List(_ context.Context, filter domain.FileFilter) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return s.listResult, nil
}

func (s *fakeFileStore) UsageStats(_ context.Context, ownerID string) (*domain.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &domain.UsageStats{ByType: make(map[domain.FileType]domain.TypeUsage)}
	for _, file := range s.files {
		if file.OwnerID != ownerID || file.IsDeleted {
			continue
		}
		usage := stats.ByType[file.FileType]
		usage.Count++
		usage.TotalSize += file.Size
		stats.ByType[file.FileType] = usage
		stats.TotalFiles++
		stats.TotalSize += file.Size
	}
	return stats, nil
}

func (s *fakeFileStore) seed(file domain.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := file
	s.files[file.ID] = &clone
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *fakeFileStore) {
	t.Helper()

	store := newFakeFileStore()
	blobs, err := blobstore.NewLocalStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	return NewManager(store, blobs, t.TempDir(), testLogger()), store
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func seededFile(id, ownerID string, deleted bool) domain.File {
	file := domain.File{
		ID:           id,
		OwnerID:      ownerID,
		OriginalName: id + ".png",
		StorageKey:   "users/" + ownerID + "/uploads/" + id + ".png",
		MimeType:     "image/png",
		FileType:     domain.FileTypeImage,
		Size:         int64(len(pngBytes)),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if deleted {
		now := time.Now().UTC()
		file.IsDeleted = true
		file.DeletedAt = &now
	}
	return file
}

func TestManagerCreateFromUpload(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	src := writeTempFile(t, "upload.bin", pngBytes)

	file, err := manager.CreateFromUpload(ctx, "owner-1", src, "holiday photo.png", "application/octet-stream")
	require.NoError(t, err)

	assert.NotEmpty(t, file.ID)
	assert.Equal(t, "owner-1", file.OwnerID)
	assert.Equal(t, "holiday photo.png", file.OriginalName)
	assert.Equal(t, "image/png", file.MimeType, "octet-stream should be replaced by the sniffed type")
	assert.Equal(t, domain.FileTypeImage, file.FileType)
	assert.Equal(t, int64(len(pngBytes)), file.Size)
	assert.Empty(t, file.SourceJobID)
	assert.False(t, file.IsDeleted)
	assert.True(t, strings.HasPrefix(file.StorageKey, "users/owner-1/uploads/"))
	assert.True(t, strings.HasSuffix(file.StorageKey, ".png"))

	// Content must be readable back from the blob store
	reader, err := manager.Open(ctx, file)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, content)
}

func TestManagerCreateFromUpload_TrustsDeclaredMime(t *testing.T) {
	manager, _ := newTestManager(t)

	src := writeTempFile(t, "upload.bin", pdfBytes)

	file, err := manager.CreateFromUpload(context.Background(), "owner-1", src, "report.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, domain.FileTypePDF, file.FileType)
}

func TestManagerCreateFromUpload_NameValidation(t *testing.T) {
	manager, _ := newTestManager(t)
	src := writeTempFile(t, "upload.bin", pngBytes)

	tests := []struct {
		name     string
		fileName string
		wantErr  bool
		want     string
	}{
		{
			name:     "empty name rejected",
			fileName: "   ",
			wantErr:  true,
		},
		{
			name:     "oversized name rejected",
			fileName: strings.Repeat("a", 300) + ".png",
			wantErr:  true,
		},
		{
			name:     "path components stripped",
			fileName: "../../etc/passwd",
			want:     "passwd",
		},
		{
			name:     "backslash components stripped",
			fileName: `C:\Users\victim\photo.png`,
			want:     "photo.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := manager.CreateFromUpload(context.Background(), "owner-1", src, tt.fileName, "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, file.OriginalName)
		})
	}
}

func TestManagerCreateOutput(t *testing.T) {
	manager, _ := newTestManager(t)

	src := writeTempFile(t, "result.bin", pdfBytes)

	file, err := manager.CreateOutput(context.Background(), "owner-1", "job-123", src, "merged.pdf")
	require.NoError(t, err)

	assert.Equal(t, "job-123", file.SourceJobID)
	assert.Equal(t, "merged.pdf", file.OriginalName)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, domain.FileTypePDF, file.FileType)
	assert.True(t, strings.HasPrefix(file.StorageKey, "users/owner-1/outputs/"))
}

func TestManagerCreateFromUpload_RemovesBlobWhenRecordFails(t *testing.T) {
	manager, store := newTestManager(t)
	store.createErr = fmt.Errorf("boom")

	src := writeTempFile(t, "upload.bin", pngBytes)

	_, err := manager.CreateFromUpload(context.Background(), "owner-1", src, "photo.png", "")
	require.Error(t, err)
	assert.Empty(t, store.files)
}

func TestManagerResolve(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantIDs []string
		wantErr error
	}{
		{
			name:    "returns files in caller order",
			ids:     []string{"file-b", "file-a"},
			wantIDs: []string{"file-b", "file-a"},
		},
		{
			name:    "collapses duplicates",
			ids:     []string{"file-a", "file-a", "file-b"},
			wantIDs: []string{"file-a", "file-b"},
		},
		{
			name:    "missing id",
			ids:     []string{"file-a", "file-missing"},
			wantErr: domain.ErrFileNotFound,
		},
		{
			name:    "trashed file treated as missing",
			ids:     []string{"file-trashed"},
			wantErr: domain.ErrFileNotFound,
		},
		{
			name:    "foreign file reported before missing one",
			ids:     []string{"file-foreign", "file-missing"},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "no ids",
			ids:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, store := newTestManager(t)
			store.seed(seededFile("file-a", "owner-1", false))
			store.seed(seededFile("file-b", "owner-1", false))
			store.seed(seededFile("file-trashed", "owner-1", true))
			store.seed(seededFile("file-foreign", "owner-2", false))

			files, err := manager.Resolve(context.Background(), "owner-1", tt.ids)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			gotIDs := make([]string, 0, len(files))
			for _, f := range files {
				gotIDs = append(gotIDs, f.ID)
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}
}

func TestManagerResolveLenient(t *testing.T) {
	manager, store := newTestManager(t)
	store.seed(seededFile("file-a", "owner-1", false))
	store.seed(seededFile("file-b", "owner-1", false))
	store.seed(seededFile("file-trashed", "owner-1", true))
	store.seed(seededFile("file-foreign", "owner-2", false))

	files, err := manager.ResolveLenient(context.Background(), "owner-1",
		[]string{"file-a", "file-trashed", "file-foreign", "file-missing", "file-b"})
	require.NoError(t, err)

	gotIDs := make([]string, 0, len(files))
	for _, f := range files {
		gotIDs = append(gotIDs, f.ID)
	}
	assert.Equal(t, []string{"file-a", "file-b"}, gotIDs)
}

func TestManagerSoftDeleteLifecycle(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	src := writeTempFile(t, "upload.bin", pngBytes)
	file, err := manager.CreateFromUpload(ctx, "owner-1", src, "photo.png", "")
	require.NoError(t, err)

	require.NoError(t, manager.SoftDelete(ctx, "owner-1", file.ID))

	// Trashed files stay fetchable by ID for history
	trashed, err := manager.Get(ctx, "owner-1", file.ID)
	require.NoError(t, err)
	assert.True(t, trashed.IsDeleted)
	require.NotNil(t, trashed.DeletedAt)

	// Content is untouched by a soft delete
	reader, err := manager.Open(ctx, trashed)
	require.NoError(t, err)
	reader.Close()

	// Second soft delete conflicts
	err = manager.SoftDelete(ctx, "owner-1", file.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Trashed files cannot be renamed or flagged
	_, err = manager.Rename(ctx, "owner-1", file.ID, "other.png")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = manager.SetFavorite(ctx, "owner-1", file.ID, true)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestManagerPurge(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	src := writeTempFile(t, "upload.bin", pngBytes)
	file, err := manager.CreateFromUpload(ctx, "owner-1", src, "photo.png", "")
	require.NoError(t, err)

	require.NoError(t, manager.Purge(ctx, "owner-1", file.ID))

	_, err = store.GetByID(ctx, file.ID)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, err = manager.Open(ctx, file)
	assert.Error(t, err, "blob should be gone after purge")
}

func TestManagerPurge_RecordRemovedEvenWhenBlobMissing(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	src := writeTempFile(t, "upload.bin", pngBytes)
	file, err := manager.CreateFromUpload(ctx, "owner-1", src, "photo.png", "")
	require.NoError(t, err)

	// Drop the blob behind the manager's back
	path, _, err := manager.blobs.Stage(ctx, file.StorageKey)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	require.NoError(t, manager.Purge(ctx, "owner-1", file.ID))

	_, err = store.GetByID(ctx, file.ID)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestManagerOwnershipChecks(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	store.seed(seededFile("file-a", "owner-1", false))

	_, err := manager.Get(ctx, "owner-2", "file-a")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = manager.Rename(ctx, "owner-2", "file-a", "stolen.png")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = manager.SetFavorite(ctx, "owner-2", "file-a", true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = manager.SoftDelete(ctx, "owner-2", "file-a")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = manager.Purge(ctx, "owner-2", "file-a")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestManagerRename(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	store.seed(seededFile("file-a", "owner-1", false))

	renamed, err := manager.Rename(ctx, "owner-1", "file-a", "sub/dir/new name.png")
	require.NoError(t, err)
	assert.Equal(t, "new name.png", renamed.OriginalName)

	stored, err := store.GetByID(ctx, "file-a")
	require.NoError(t, err)
	assert.Equal(t, "new name.png", stored.OriginalName)

	_, err = manager.Rename(ctx, "owner-1", "file-a", "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestManagerSetFavorite(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	store.seed(seededFile("file-a", "owner-1", false))

	file, err := manager.SetFavorite(ctx, "owner-1", "file-a", true)
	require.NoError(t, err)
	assert.True(t, file.Favorite)

	file, err = manager.SetFavorite(ctx, "owner-1", "file-a", false)
	require.NoError(t, err)
	assert.False(t, file.Favorite)
}

func TestManagerList_NormalizesPagination(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	// 21 canned rows simulate the store returning limit+1
	store.listResult = make([]domain.File, 21)
	for i := range store.listResult {
		store.listResult[i] = seededFile(fmt.Sprintf("file-%02d", i), "owner-1", false)
	}

	files, hasMore, err := manager.List(ctx, domain.FileFilter{OwnerID: "owner-1"})
	require.NoError(t, err)

	assert.Len(t, files, 20, "page should be trimmed to the limit")
	assert.True(t, hasMore)
	assert.Equal(t, 1, store.lastFilter.Page)
	assert.Equal(t, 20, store.lastFilter.Limit)

	store.listResult = store.listResult[:5]
	files, hasMore, err = manager.List(ctx, domain.FileFilter{OwnerID: "owner-1", Page: 3, Limit: 500})
	require.NoError(t, err)

	assert.Len(t, files, 5)
	assert.False(t, hasMore)
	assert.Equal(t, 3, store.lastFilter.Page)
	assert.Equal(t, 100, store.lastFilter.Limit, "limit should be capped")
}

func TestManagerUsageStats(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	pngSrc := writeTempFile(t, "a.bin", pngBytes)
	pdfSrc := writeTempFile(t, "b.bin", pdfBytes)

	_, err := manager.CreateFromUpload(ctx, "owner-1", pngSrc, "a.png", "")
	require.NoError(t, err)
	pdfFile, err := manager.CreateFromUpload(ctx, "owner-1", pdfSrc, "b.pdf", "")
	require.NoError(t, err)
	trashMe, err := manager.CreateFromUpload(ctx, "owner-1", pngSrc, "c.png", "")
	require.NoError(t, err)

	require.NoError(t, manager.SoftDelete(ctx, "owner-1", trashMe.ID))

	stats, err := manager.UsageStats(ctx, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalFiles, "trashed files do not count")
	assert.Equal(t, int64(len(pngBytes))+pdfFile.Size, stats.TotalSize)
	assert.Equal(t, int64(1), stats.ByType[domain.FileTypeImage].Count)
	assert.Equal(t, int64(1), stats.ByType[domain.FileTypePDF].Count)
}

func TestManagerStage(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	src := writeTempFile(t, "upload.bin", pngBytes)
	file, err := manager.CreateFromUpload(ctx, "owner-1", src, "photo.png", "")
	require.NoError(t, err)

	path, cleanup, err := manager.Stage(ctx, file)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, content)

	// Local staging hands out the stored path; cleanup must not remove it
	cleanup()
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestManagerTempPath(t *testing.T) {
	manager, _ := newTestManager(t)

	withDot := manager.TempPath(".pdf")
	withoutDot := manager.TempPath("png")
	bare := manager.TempPath("")

	assert.True(t, strings.HasSuffix(withDot, ".pdf"))
	assert.True(t, strings.HasSuffix(withoutDot, ".png"))
	assert.NotContains(t, filepath.Base(bare), ".")
	assert.Equal(t, manager.tempDir, filepath.Dir(withDot))

	assert.NotEqual(t, manager.TempPath(".pdf"), manager.TempPath(".pdf"))
}
