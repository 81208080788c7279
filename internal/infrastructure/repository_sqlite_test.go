package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestDownload(url string) *domain.Download {
	req := domain.CompileDownloadRequest(&domain.MediaMetadata{ID: "id", Title: "Title"}, url, domain.DefaultSelection())
	return domain.NewDownload(req, domain.DefaultSelection())
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://example.com/a")
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, dl.URL, found.URL)
	assert.Equal(t, dl.Args, found.Args)
	assert.Equal(t, domain.DefaultSelection(), found.Selection)
	assert.Equal(t, domain.StatusQueued, found.Status)

	missing, err := repo.FindByID("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://example.com/a")
	require.NoError(t, repo.Create(dl))

	dl.MarkCompleted("/tmp/Title [id].mp4")
	dl.ProcessLog = "[download] 100%"
	require.NoError(t, repo.Update(dl))

	found, err := repo.FindByID(dl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, found.Status)
	assert.Equal(t, "/tmp/Title [id].mp4", found.FilePath)
	assert.Equal(t, "[download] 100%", found.ProcessLog)

	require.NoError(t, repo.Delete(dl.ID))
	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRepository_FindByURL(t *testing.T) {
	repo := setupTestRepo(t)

	dl := newTestDownload("https://example.com/a")
	dl.MarkCompleted("/path/file.mp4")
	require.NoError(t, repo.Create(dl))

	found, err := repo.FindByURL("https://example.com/a", []domain.DownloadStatus{domain.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, dl.ID, found.ID)

	found, err = repo.FindByURL("https://example.com/a", []domain.DownloadStatus{domain.StatusQueued})
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByURL("https://example.com/none", []domain.DownloadStatus{domain.StatusCompleted})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_FindPendingOrder(t *testing.T) {
	repo := setupTestRepo(t)

	low := newTestDownload("https://example.com/low")
	low.CreatedAt = time.Now().Add(-2 * time.Minute)
	high := newTestDownload("https://example.com/high")
	high.Priority = 5
	older := newTestDownload("https://example.com/older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	done := newTestDownload("https://example.com/done")
	done.MarkCompleted("/x")

	for _, dl := range []*domain.Download{low, high, older, done} {
		require.NoError(t, repo.Create(dl))
	}

	pending, err := repo.FindPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, high.ID, pending[0].ID)
	assert.Equal(t, older.ID, pending[1].ID)
	assert.Equal(t, low.ID, pending[2].ID)
}

func TestRepository_FindAllFilters(t *testing.T) {
	repo := setupTestRepo(t)

	a := newTestDownload("https://example.com/a")
	b := newTestDownload("https://example.com/b")
	b.MarkFailed(assert.AnError)
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := repo.FindAll(map[string]interface{}{"status": domain.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	_, err = repo.FindAll(map[string]interface{}{"1=1; DROP TABLE downloads; --": 1})
	assert.Error(t, err)
}

func TestRepository_StatsAndReset(t *testing.T) {
	repo := setupTestRepo(t)

	queued := newTestDownload("https://example.com/q")
	running := newTestDownload("https://example.com/r")
	running.MarkDownloading()
	failed := newTestDownload("https://example.com/f")
	failed.MarkFailed(assert.AnError)
	for _, dl := range []*domain.Download{queued, running, failed} {
		require.NoError(t, repo.Create(dl))
	}

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(1), stats.Downloading)
	assert.Equal(t, int64(1), stats.Failed)

	active, err := repo.CountActive()
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	reset, err := repo.ResetInterrupted()
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	count, err := repo.CountByStatus(domain.StatusQueued)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_Preferences(t *testing.T) {
	repo := setupTestRepo(t)

	_, ok, err := repo.GetPreference(domain.PrefDefaultRemux)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetPreference(domain.PrefDefaultRemux, "mkv"))
	require.NoError(t, repo.SetPreference(domain.PrefDefaultRemux, "webm"))
	require.NoError(t, repo.SetPreferences(map[string]string{
		domain.PrefEmbedChapters: "false",
		domain.PrefEmbedSubtitles: "true",
	}))

	value, ok, err := repo.GetPreference(domain.PrefDefaultRemux)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "webm", value)

	prefs, err := repo.ListPreferences()
	require.NoError(t, err)
	require.Len(t, prefs, 3)
	assert.Equal(t, domain.PrefDefaultRemux, prefs[0].Key)
	assert.Equal(t, domain.PrefEmbedChapters, prefs[1].Key)

	require.NoError(t, repo.DeletePreference(domain.PrefDefaultRemux))
	require.NoError(t, repo.DeletePreference("never-set"))
	_, ok, err = repo.GetPreference(domain.PrefDefaultRemux)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_MetadataCache(t *testing.T) {
	repo := setupTestRepo(t)

	entry, err := repo.GetMetadata("https://example.com/a")
	require.NoError(t, err)
	assert.Nil(t, entry)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.SaveMetadata(&domain.MetadataCacheEntry{URL: "https://example.com/old", MediaID: "o", Payload: "{}", CachedAt: old}))
	require.NoError(t, repo.SaveMetadata(&domain.MetadataCacheEntry{URL: "https://example.com/a", MediaID: "a", Title: "first", Payload: "{}"}))
	require.NoError(t, repo.SaveMetadata(&domain.MetadataCacheEntry{URL: "https://example.com/a", MediaID: "a", Title: "second", Payload: `{"id":"a"}`}))

	entry, err = repo.GetMetadata("https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "second", entry.Title)
	assert.Equal(t, `{"id":"a"}`, entry.Payload)

	purged, err := repo.PurgeMetadata(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	entry, err = repo.GetMetadata("https://example.com/old")
	require.NoError(t, err)
	assert.Nil(t, entry)
}
