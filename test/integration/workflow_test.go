//go:build integration && !windows

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nitrodl/nitro-downloader/api"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/infrastructure"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

// fakeYtDlp answers --dump-json from meta.json next to it and otherwise
// "downloads" clip.mp4 into the working directory. URLs containing
// "broken" fail like an unsupported site.
const fakeYtDlp = `#!/bin/sh
for a in "$@"; do last="$a"; done
case " $* " in
  *" --dump-json "*) cat "$(dirname "$0")/meta.json"; exit 0 ;;
esac
case "$last" in
  *broken*) echo "ERROR: Unsupported URL: $last" >&2; exit 1 ;;
esac
echo "[download] Destination: clip.mp4"
echo "data" > clip.mp4
echo "[download] 100% of 5.00B"
`

const metaJSON = `{
  "id": "abc123",
  "title": "Integration Clip",
  "duration": 65,
  "formats": [
    {"format_id": "137", "ext": "mp4", "resolution": "1920x1080", "vcodec": "avc1.640028", "acodec": "none", "tbr": 4500},
    {"format_id": "140", "ext": "m4a", "resolution": "audio only", "vcodec": "none", "acodec": "mp4a.40.2", "tbr": 129.5}
  ]
}`

type absentBrew struct{}

func (absentBrew) Name() string                                          { return "Homebrew" }
func (absentBrew) Locate() (string, bool)                                { return "", false }
func (absentBrew) Prefix(path string) string                             { return "" }
func (absentBrew) ToolPath(path string, spec domain.ToolSpec) string     { return "" }
func (absentBrew) FailureHint(spec domain.ToolSpec, log []string) string { return "" }
func (absentBrew) BootstrapCommand() domain.Command                      { return domain.ShellCommand("false") }
func (absentBrew) InstallCommand(path string, spec domain.ToolSpec) domain.Command {
	return domain.ExecCommand(path, "install", spec.Package)
}

type workflow struct {
	server   *httptest.Server
	queueMgr *app.QueueManager
	baseDir  string
}

func setupWorkflow(t *testing.T) *workflow {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	binDir := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	ytdlp := filepath.Join(binDir, "yt-dlp")
	require.NoError(t, os.WriteFile(ytdlp, []byte(fakeYtDlp), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "meta.json"), []byte(metaJSON), 0644))

	config := domain.DefaultConfig()
	config.Download.BaseDir = filepath.Join(dir, "media")
	config.Download.LogsDir = filepath.Join(dir, "logs")
	config.Download.MaxRetries = 1
	config.Download.RetryDelay = 10 * time.Millisecond
	config.Queue.CheckInterval = 50 * time.Millisecond

	repo, err := infrastructure.NewSQLiteRepository(filepath.Join(dir, "nitro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log := zap.NewNop()
	runner := infrastructure.NewExecRunner("/bin/sh", log)
	fetcher := infrastructure.NewYtDlpFetcher(ytdlp, "", runner, log)
	downloader := infrastructure.NewYtDlpDownloader(ytdlp, "", config.Download.BaseDir, config.Download.LogsDir, runner, nil)

	media := app.NewMediaService(fetcher, repo, repo, &config.Media, log)
	downloadMgr := app.NewDownloadManager(repo, downloader, nil, &config.Download, log)
	queueMgr := app.NewQueueManager(repo, downloadMgr, &config.Queue, nil, nil)
	provisioner := app.NewProvisioner(domain.DefaultCatalog(), absentBrew{}, runner, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	router := api.SetupRouter(api.Dependencies{
		Provisioner: provisioner,
		Media:       media,
		QueueMgr:    queueMgr,
		DownloadMgr: downloadMgr,
		Preferences: repo,
		LogAdapter:  logger.NewSingleLoggerAdapter(log),
		LogsDir:     config.Download.LogsDir,
		RunCtx:      ctx,
	})
	server := httptest.NewServer(router)

	require.NoError(t, queueMgr.Start(ctx))
	t.Cleanup(func() {
		cancel()
		queueMgr.Stop()
		server.Close()
	})

	return &workflow{server: server, queueMgr: queueMgr, baseDir: config.Download.BaseDir}
}

func (w *workflow) post(t *testing.T, path string, body interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(w.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (w *workflow) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(w.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (w *workflow) waitForStatus(t *testing.T, id string, status domain.DownloadStatus) *domain.Download {
	t.Helper()
	var download domain.Download
	require.Eventually(t, func() bool {
		download = domain.Download{}
		w.get(t, "/api/v1/downloads/"+id, &download)
		return download.Status == status
	}, 10*time.Second, 50*time.Millisecond, "download never reached %s", status)
	return &download
}

func TestWorkflow_InspectAndDownload(t *testing.T) {
	w := setupWorkflow(t)

	var inspection app.Inspection
	status := w.post(t, "/api/v1/media/inspect", map[string]string{"url": "https://example.com/watch"}, &inspection)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Integration Clip", inspection.Title)
	assert.Equal(t, "1:05", inspection.Duration)
	require.Len(t, inspection.VideoFormats, 1)
	require.Len(t, inspection.AudioFormats, 1)

	var created domain.Download
	status = w.post(t, "/api/v1/downloads", map[string]interface{}{
		"url":       "https://example.com/watch",
		"selection": map[string]string{"video_format_id": "137"},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Integration Clip", created.Title)

	done := w.waitForStatus(t, created.ID, domain.StatusCompleted)
	assert.Equal(t, filepath.Join(w.baseDir, "clip.mp4"), done.FilePath)
	assert.FileExists(t, done.FilePath)
	assert.Contains(t, done.ProcessLog, "[download] Destination: clip.mp4")

	// a completed download whose file still exists is not queued again
	var again domain.Download
	status = w.post(t, "/api/v1/downloads", map[string]string{"url": "https://example.com/watch"}, &again)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, again.ID)

	var logs struct {
		Entries []logger.LogEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, w.get(t, "/api/v1/logs/download", &logs))
	messages := make([]string, 0, len(logs.Entries))
	for _, e := range logs.Entries {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "[download] Destination: clip.mp4")
}

func TestWorkflow_FailedDownloadRetries(t *testing.T) {
	w := setupWorkflow(t)

	var created domain.Download
	status := w.post(t, "/api/v1/downloads", map[string]string{"url": "https://example.com/broken"}, &created)
	require.Equal(t, http.StatusCreated, status)

	failed := w.waitForStatus(t, created.ID, domain.StatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.NotEmpty(t, failed.ErrorMessage)
	assert.Contains(t, failed.ProcessLog, "ERROR: Unsupported URL")

	var stats domain.DownloadStats
	require.Equal(t, http.StatusOK, w.get(t, "/api/v1/downloads/stats", &stats))
	assert.Equal(t, int64(1), stats.Failed)

	// a failed URL can be queued again
	var second domain.Download
	status = w.post(t, "/api/v1/downloads", map[string]string{"url": "https://example.com/broken"}, &second)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEqual(t, created.ID, second.ID)
}
