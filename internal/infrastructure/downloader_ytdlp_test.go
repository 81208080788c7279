package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedDownload(url string) *domain.Download {
	req := domain.CompileDownloadRequest(nil, url, domain.DefaultSelection())
	return domain.NewDownload(req, domain.DefaultSelection())
}

func TestYtDlpDownloader_Success(t *testing.T) {
	base := filepath.Join(t.TempDir(), "media dir")
	logs := t.TempDir()
	binary := fakeYtDlp(t, `
echo "[youtube] abc: Downloading webpage"
echo "[download] Destination: Clip [abc].f137.mp4"
echo "[download] 100% of 1.00MiB"
echo "WARNING: falling back" >&2
echo "[Merger] Merging formats into \"Clip [abc].mp4\""
touch "Clip [abc].mp4"
`)
	downloader := NewYtDlpDownloader(binary, "", base, logs, newTestRunner(), nil)

	var seen []string
	result, err := downloader.Download(context.Background(), newQueuedDownload("https://example.com/v"), func(line string) {
		seen = append(seen, line)
	})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "Clip [abc].mp4"), result.FilePath)
	assert.Contains(t, seen, "WARNING: falling back")
	assert.Len(t, result.Log, 5)

	raw, err := os.ReadFile(logger.CategoryLogPath(logs, logger.CategoryDownload, time.Now()))
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "$ "+binary+" --newline -f bestvideo+bestaudio/best")
	assert.Contains(t, text, "[download] 100% of 1.00MiB")
	assert.Contains(t, text, "SUCCESS: Downloaded: ")
	assert.True(t, strings.HasSuffix(text, "=== END ===\n\n"))
}

func TestYtDlpDownloader_AlreadyDownloaded(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "Old [x].mp4"), nil, 0644))
	binary := fakeYtDlp(t, `echo "[download] Old [x].mp4 has already been downloaded"`)
	downloader := NewYtDlpDownloader(binary, "", base, t.TempDir(), newTestRunner(), nil)

	result, err := downloader.Download(context.Background(), newQueuedDownload("https://example.com/v"), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "Old [x].mp4"), result.FilePath)
}

func TestYtDlpDownloader_ProcessFailure(t *testing.T) {
	logs := t.TempDir()
	binary := fakeYtDlp(t, `echo "ERROR: Video unavailable" >&2; exit 1`)
	downloader := NewYtDlpDownloader(binary, "", t.TempDir(), logs, newTestRunner(), nil)

	result, err := downloader.Download(context.Background(), newQueuedDownload("https://example.com/v"), nil)

	require.Error(t, err)
	assert.True(t, domain.IsProcessFailed(err))
	require.NotNil(t, result)
	assert.Equal(t, []string{"ERROR: Video unavailable"}, result.Log)

	raw, err := os.ReadFile(logger.CategoryLogPath(logs, logger.CategoryDownload, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "FAILED: yt-dlp failed")
}

func TestYtDlpDownloader_NoOutputFile(t *testing.T) {
	binary := fakeYtDlp(t, `echo "[download] Destination: ghost.mp4"`)
	downloader := NewYtDlpDownloader(binary, "", t.TempDir(), t.TempDir(), newTestRunner(), nil)

	_, err := downloader.Download(context.Background(), newQueuedDownload("https://example.com/v"), nil)
	assert.ErrorContains(t, err, "no output file")
}

func TestYtDlpDownloader_MissingBinary(t *testing.T) {
	downloader := NewYtDlpDownloader(filepath.Join(t.TempDir(), "yt-dlp"), "", t.TempDir(), t.TempDir(), newTestRunner(), nil)

	_, err := downloader.Download(context.Background(), newQueuedDownload("https://example.com/v"), nil)
	assert.True(t, domain.IsToolNotFound(err))
}

func TestYtDlpDownloader_Args(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("#"), 0600))
	dl := newQueuedDownload("https://example.com/v")

	args := NewYtDlpDownloader("yt-dlp", cookies, "", "", nil, nil).Args(dl)
	assert.Equal(t, []string{"--cookies", cookies, "--newline"}, args[:3])
	assert.Equal(t, dl.Args, args[3:])
	assert.Equal(t, "https://example.com/v", args[len(args)-1])
}

func TestMatchDestination(t *testing.T) {
	cases := map[string]string{
		"[download] Destination: a.webm":                                        "a.webm",
		`[Merger] Merging formats into "b c.mp4"`:                               "b c.mp4",
		"[VideoRemuxer] Remuxing video from webm to mp4; Destination: d.mp4":    "d.mp4",
		"[download] e.mkv has already been downloaded":                          "e.mkv",
		"[download]  42.0% of 10.00MiB at 1.00MiB/s ETA 00:05":                  "",
		"[VideoConvertor] Converting video from mkv to avi; Destination: f.avi": "f.avi",
	}
	for line, want := range cases {
		assert.Equal(t, want, matchDestination(line), line)
	}
}
