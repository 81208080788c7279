package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/infrastructure"
	"go.uber.org/zap"
)

// DownloadManager runs queued downloads through the downloader
type DownloadManager struct {
	repo       domain.DownloadRepository
	downloader domain.Downloader
	notifier   *infrastructure.NotificationService
	config     *domain.DownloadConfig
	logger     *zap.Logger
	semaphore  chan struct{}

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	repo domain.DownloadRepository,
	downloader domain.Downloader,
	notifier *infrastructure.NotificationService,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *DownloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	return &DownloadManager{
		repo:       repo,
		downloader: downloader,
		notifier:   notifier,
		config:     config,
		logger:     logger,
		semaphore:  make(chan struct{}, limit),
		active:     make(map[string]context.CancelFunc),
	}
}

// ProcessDownload runs one download with retries. A download cancelled while
// it waited for a slot is skipped.
func (dm *DownloadManager) ProcessDownload(ctx context.Context, download *domain.Download) error {
	select {
	case dm.semaphore <- struct{}{}:
		defer func() { <-dm.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	download, runCtx, err := dm.claim(ctx, download.ID)
	if err != nil || download == nil {
		return err
	}
	defer dm.release(download.ID)

	dm.logger.Info("Processing download",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("title", download.Title))

	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download status: %w", err)
	}

	onLine := func(line string) {
		dm.logger.Debug("yt-dlp", zap.String("id", download.ID), zap.String("line", line))
	}

	var lastErr error
	for attempt := 0; attempt <= dm.config.MaxRetries; attempt++ {
		if attempt > 0 {
			dm.logger.Info("Retrying download",
				zap.String("id", download.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", dm.config.MaxRetries))

			select {
			case <-time.After(dm.config.RetryDelay):
			case <-runCtx.Done():
			}
			if runCtx.Err() != nil {
				break
			}

			download.IncrementRetry()
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update retry count", zap.String("id", download.ID), zap.Error(err))
			}
		}

		result, err := dm.downloader.Download(runCtx, download, onLine)
		if result != nil {
			download.ProcessLog = strings.Join(result.Log, "\n")
		}
		if err == nil {
			download.MarkCompleted(result.FilePath)
			if err := dm.repo.Update(download); err != nil {
				dm.logger.Error("Failed to update download status", zap.Error(err))
			}
			dm.logger.Info("Download completed",
				zap.String("id", download.ID),
				zap.String("file", download.FilePath))
			dm.notifier.NotifyDownloadCompleted(download.Title)
			return nil
		}

		lastErr = err
		dm.logger.Warn("Download attempt failed",
			zap.String("id", download.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if runCtx.Err() != nil || domain.IsToolNotFound(err) {
			break
		}
	}

	switch {
	case ctx.Err() != nil:
		// shutdown: leave it for the next start
		download.Requeue()
		if err := dm.repo.Update(download); err != nil {
			dm.logger.Error("Failed to requeue interrupted download", zap.String("id", download.ID), zap.Error(err))
		}
		return ctx.Err()
	case runCtx.Err() != nil:
		download.MarkCancelled()
		if err := dm.repo.Update(download); err != nil {
			dm.logger.Error("Failed to update download status", zap.Error(err))
		}
		dm.logger.Info("Download cancelled", zap.String("id", download.ID))
		return nil
	}

	download.MarkFailed(lastErr)
	if err := dm.repo.Update(download); err != nil {
		dm.logger.Error("Failed to update download status", zap.Error(err))
	}
	dm.logger.Error("Download failed after retries",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.Error(lastErr))
	dm.notifier.NotifyDownloadFailed(download.Title, lastErr)
	return lastErr
}

// claim marks a still-queued download as downloading and registers its
// cancel func. A nil download means it left the queue while waiting.
func (dm *DownloadManager) claim(ctx context.Context, id string) (*domain.Download, context.Context, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	current, err := dm.find(id)
	if err != nil {
		return nil, nil, err
	}
	if !current.IsPending() {
		dm.logger.Info("Skipping download no longer queued",
			zap.String("id", current.ID),
			zap.String("status", string(current.Status)))
		return nil, nil, nil
	}

	current.MarkDownloading()
	runCtx, cancel := context.WithCancel(ctx)
	dm.active[id] = cancel
	return current, runCtx, nil
}

// find loads id, telling a missing record apart from a storage failure
func (dm *DownloadManager) find(id string) (*domain.Download, error) {
	download, err := dm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load download %s: %w", id, err)
	}
	if download == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return download, nil
}

func (dm *DownloadManager) release(id string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if cancel, ok := dm.active[id]; ok {
		cancel()
		delete(dm.active, id)
	}
}

// IsActive reports whether id is currently being downloaded
func (dm *DownloadManager) IsActive(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, ok := dm.active[id]
	return ok
}

// CancelDownload cancels a queued or running download. A running yt-dlp
// process is killed and the record is marked cancelled when it exits.
func (dm *DownloadManager) CancelDownload(id string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if cancel, running := dm.active[id]; running {
		cancel()
		dm.logger.Info("Cancelling running download", zap.String("id", id))
		return nil
	}

	download, err := dm.find(id)
	if err != nil {
		return err
	}

	if download.IsTerminal() {
		return fmt.Errorf("%w: download already %s", ErrInvalidState, download.Status)
	}

	download.MarkCancelled()
	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download cancelled", zap.String("id", id))
	return nil
}

// RetryDownload requeues a failed or cancelled download
func (dm *DownloadManager) RetryDownload(ctx context.Context, id string) error {
	download, err := dm.find(id)
	if err != nil {
		return err
	}

	switch download.Status {
	case domain.StatusFailed, domain.StatusCancelled:
	case domain.StatusQueued:
		return fmt.Errorf("%w: download already queued", ErrInvalidState)
	case domain.StatusDownloading:
		return fmt.Errorf("%w: download is currently downloading", ErrInvalidState)
	default:
		return fmt.Errorf("%w: download already %s", ErrInvalidState, download.Status)
	}

	download.Requeue()
	download.RetryCount = 0
	download.StartedAt = nil
	download.CompletedAt = nil

	if err := dm.repo.Update(download); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	dm.logger.Info("Download queued for retry", zap.String("id", id))
	return nil
}

// DeleteDownload removes a download record. Running downloads must be
// cancelled first.
func (dm *DownloadManager) DeleteDownload(id string) error {
	_, err := dm.find(id)
	if err != nil {
		return err
	}

	if dm.IsActive(id) {
		return fmt.Errorf("%w: cancel the running download before deleting it", ErrInvalidState)
	}

	if err := dm.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	dm.logger.Info("Download deleted", zap.String("id", id))
	return nil
}

// Sentinel errors mapped to HTTP status codes by the API
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)
