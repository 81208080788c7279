package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
	"go.uber.org/zap"
)

// maxKeptLogLines bounds the output kept on the download record
const maxKeptLogLines = 200

// yt-dlp output lines naming the file on disk; later matches win
var destinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[download\] Destination: (.+)$`),
	regexp.MustCompile(`^\[download\] (.+) has already been downloaded`),
	regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`),
	regexp.MustCompile(`^\[VideoRemuxer\] Remuxing video from \S+ to \S+; Destination: (.+)$`),
	regexp.MustCompile(`^\[VideoConvertor\] Converting video from \S+ to \S+; Destination: (.+)$`),
}

// YtDlpDownloader runs a compiled download request through yt-dlp
type YtDlpDownloader struct {
	binary      string
	cookieFile  string
	baseDir     string
	logsDir     string
	runner      domain.ProcessRunner
	eventLogger *logger.MultiLogger
}

// NewYtDlpDownloader creates a downloader writing media into baseDir and raw
// output into logsDir/download-YYYYMMDD.log
func NewYtDlpDownloader(binary, cookieFile, baseDir, logsDir string, runner domain.ProcessRunner, eventLogger *logger.MultiLogger) *YtDlpDownloader {
	return &YtDlpDownloader{
		binary:      binary,
		cookieFile:  cookieFile,
		baseDir:     baseDir,
		logsDir:     logsDir,
		runner:      runner,
		eventLogger: eventLogger,
	}
}

// Args returns the full argument list for download
func (d *YtDlpDownloader) Args(download *domain.Download) []string {
	var args []string
	if d.cookieFile != "" && fileExists(d.cookieFile) {
		args = append(args, "--cookies", d.cookieFile)
	}
	args = append(args, "--newline")
	return append(args, download.Args...)
}

// Download implements domain.Downloader
func (d *YtDlpDownloader) Download(ctx context.Context, download *domain.Download, onLine domain.LineHandler) (*domain.DownloadResult, error) {
	if len(download.Args) == 0 {
		return nil, fmt.Errorf("download %s has no arguments", download.ID)
	}
	if d.binary == "" {
		return nil, &domain.ToolNotFoundError{}
	}

	if err := os.MkdirAll(d.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	downloadLog, err := d.openLogFile()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer downloadLog.Close()

	cmd := domain.ExecCommand(d.binary, d.Args(download)...)
	cmd.Dir = d.baseDir
	writeLogHeader(downloadLog, download.ID, JoinArgs(cmd.Path, cmd.Args...))

	var (
		mu          sync.Mutex
		lines       []string
		destination string
	)
	record := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(downloadLog, line)
		lines = append(lines, line)
		if len(lines) > maxKeptLogLines {
			lines = lines[len(lines)-maxKeptLogLines:]
		}
		if path := matchDestination(line); path != "" {
			destination = path
		}
		if onLine != nil {
			onLine(line)
		}
	}

	// yt-dlp tags its own stderr lines (WARNING:, ERROR:), so both streams are kept raw
	runErr := d.runner.RunStreaming(ctx, cmd, record, record)
	result := &domain.DownloadResult{Log: lines}

	if runErr != nil {
		writeLogFooter(downloadLog, false, fmt.Sprintf("yt-dlp failed: %v", runErr))
		if d.eventLogger != nil {
			d.eventLogger.LogAppError("yt-dlp failed", zap.String("download_id", download.ID), zap.Error(runErr))
		}
		return result, fmt.Errorf("yt-dlp failed: %w", runErr)
	}

	result.FilePath = d.resolvePath(destination)
	if result.FilePath == "" {
		writeLogFooter(downloadLog, false, "No output file reported")
		return result, fmt.Errorf("yt-dlp finished but reported no output file")
	}

	writeLogFooter(downloadLog, true, fmt.Sprintf("Downloaded: %s", result.FilePath))
	return result, nil
}

// resolvePath makes a reported destination absolute and checks it exists
func (d *YtDlpDownloader) resolvePath(path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.baseDir, path)
	}
	if !fileExists(path) {
		return ""
	}
	return path
}

func matchDestination(line string) string {
	for _, re := range destinationPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// openLogFile opens today's raw download log
func (d *YtDlpDownloader) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(d.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := logger.CategoryLogPath(d.logsDir, logger.CategoryDownload, time.Now())
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the download start marker
func writeLogHeader(w io.Writer, downloadID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n", timestamp, downloadID)
	fmt.Fprintf(w, "$ %s\n", cmdLine)
}

// writeLogFooter writes the download end marker
func writeLogFooter(w io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(w, "=== END ===\n\n")
}
