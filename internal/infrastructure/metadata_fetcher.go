package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

// YtDlpFetcher implements domain.MetadataFetcher with `yt-dlp --dump-json`
type YtDlpFetcher struct {
	binary     string
	cookieFile string
	runner     domain.ProcessRunner
	logger     *zap.Logger
}

// NewYtDlpFetcher creates a fetcher invoking the yt-dlp executable at binary
func NewYtDlpFetcher(binary, cookieFile string, runner domain.ProcessRunner, logger *zap.Logger) *YtDlpFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YtDlpFetcher{
		binary:     binary,
		cookieFile: cookieFile,
		runner:     runner,
		logger:     logger,
	}
}

// Binary returns the configured executable path
func (f *YtDlpFetcher) Binary() string {
	return f.binary
}

// Fetch runs yt-dlp without downloading and decodes the metadata document
func (f *YtDlpFetcher) Fetch(ctx context.Context, url string) (*domain.MediaMetadata, error) {
	if f.binary == "" {
		return nil, &domain.ToolNotFoundError{}
	}
	if _, err := os.Stat(f.binary); err != nil {
		return nil, &domain.ToolNotFoundError{Path: f.binary}
	}

	result, err := f.runner.RunBuffered(ctx, domain.ExecCommand(f.binary, f.Args(url)...))
	if err != nil {
		f.logger.Warn("Metadata fetch failed",
			zap.String("url", url),
			zap.Int("exit_code", result.ExitCode),
			zap.Error(err))
		return nil, err
	}

	metadata, err := DecodeMetadata([]byte(result.Stdout))
	if err != nil {
		f.logger.Warn("Metadata decode failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	f.logger.Info("Fetched metadata",
		zap.String("url", url),
		zap.String("id", metadata.ID),
		zap.Int("formats", len(metadata.Formats)))
	return metadata, nil
}

// Args returns the yt-dlp arguments used to fetch url
func (f *YtDlpFetcher) Args(url string) []string {
	var args []string
	if f.cookieFile != "" && fileExists(f.cookieFile) {
		args = append(args, "--cookies", f.cookieFile)
	}
	return append(args, "--dump-json", url)
}

// DecodeMetadata parses one yt-dlp JSON document. Unknown fields are ignored.
func DecodeMetadata(data []byte) (*domain.MediaMetadata, error) {
	if len(data) == 0 {
		return nil, &domain.DecodeFailedError{Cause: errors.New("empty output")}
	}
	var metadata domain.MediaMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, &domain.DecodeFailedError{Cause: err}
	}
	if metadata.ID == "" {
		return nil, &domain.DecodeFailedError{Cause: fmt.Errorf("document has no id")}
	}
	return &metadata, nil
}

// EncodeMetadata serializes metadata for caching
func EncodeMetadata(metadata *domain.MediaMetadata) (string, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
