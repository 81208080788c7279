package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/infrastructure"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

// QueueManager manages the download queue
type QueueManager struct {
	repo        domain.DownloadRepository
	downloadMgr *DownloadManager
	config      *domain.QueueConfig
	notifier    *infrastructure.NotificationService
	multiLogger *logger.MultiLogger
	mu          sync.RWMutex
	running     bool
	stopChan    chan struct{}
	wake        chan struct{}
	exitChan    chan struct{}
	workerWg    sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[string]bool
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.DownloadRepository,
	downloadMgr *DownloadManager,
	config *domain.QueueConfig,
	notifier *infrastructure.NotificationService,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	return &QueueManager{
		repo:        repo,
		downloadMgr: downloadMgr,
		config:      config,
		notifier:    notifier,
		multiLogger: multiLogger,
		stopChan:    make(chan struct{}),
		wake:        make(chan struct{}, 1),
		exitChan:    make(chan struct{}),
		inflight:    make(map[string]bool),
	}
}

// Start requeues downloads interrupted by a previous run and starts the
// queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	if n, err := qm.repo.ResetInterrupted(); err != nil {
		qm.logAppError("Failed to reset interrupted downloads", zap.Error(err))
	} else if n > 0 {
		qm.logEvent("downloads_requeued", zap.Int64("count", n))
	}

	qm.logEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue processor and waits for running downloads
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	qm.logEvent("queue_stopped")
	close(qm.stopChan)
	qm.workerWg.Wait()

	return nil
}

// WaitForExit is closed when the processor exits because the queue stayed
// empty for EmptyWaitTime
func (qm *QueueManager) WaitForExit() <-chan struct{} {
	return qm.exitChan
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// AddDownload queues a compiled request. A queued or downloading record for
// the same URL is returned as is, as is a completed one whose file still
// exists. Anything else gets a new record; the bool reports which happened.
func (qm *QueueManager) AddDownload(req domain.DownloadRequest, sel domain.Selection) (*domain.Download, bool, error) {
	if err := domain.ValidateURL(req.SourceURL); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(req.Args) == 0 {
		return nil, false, fmt.Errorf("%w: request has no arguments", ErrInvalidInput)
	}

	existing, err := qm.repo.FindByURL(req.SourceURL, []domain.DownloadStatus{
		domain.StatusQueued,
		domain.StatusDownloading,
		domain.StatusCompleted,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up download: %w", err)
	}
	if existing != nil {
		if existing.Status != domain.StatusCompleted {
			qm.logEvent("download_duplicate",
				zap.String("id", existing.ID),
				zap.String("status", string(existing.Status)))
			return existing, false, nil
		}
		if existing.FilePath != "" {
			if _, err := os.Stat(existing.FilePath); err == nil {
				qm.logEvent("download_already_completed",
					zap.String("id", existing.ID),
					zap.String("file_path", existing.FilePath))
				return existing, false, nil
			}
		}
	}

	download := domain.NewDownload(req, sel)
	if err := qm.repo.Create(download); err != nil {
		return nil, false, fmt.Errorf("failed to create download: %w", err)
	}

	qm.logEvent("download_added",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("title", download.Title))
	qm.notifier.NotifyDownloadQueued(download.Title)
	qm.Wake()

	return download, true, nil
}

// Wake asks the processor to check the queue now instead of at the next tick
func (qm *QueueManager) Wake() {
	select {
	case qm.wake <- struct{}{}:
	default:
	}
}

// GetDownload retrieves a download by ID
func (qm *QueueManager) GetDownload(id string) (*domain.Download, error) {
	download, err := qm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load download %s: %w", id, err)
	}
	if download == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return download, nil
}

// ListDownloads lists all downloads with optional filters
func (qm *QueueManager) ListDownloads(filters map[string]interface{}) ([]*domain.Download, error) {
	return qm.repo.FindAll(filters)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.DownloadStats, error) {
	return qm.repo.GetStats()
}

// processQueue processes the download queue
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	interval := qm.config.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emptyStartTime := time.Time{}
	sawWork := false

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
		case <-qm.wake:
		}

		pending, err := qm.repo.FindPending()
		if err != nil {
			qm.logAppError("Failed to fetch pending downloads", zap.Error(err))
			continue
		}

		if len(pending) == 0 {
			if qm.inflightCount() > 0 {
				continue
			}
			if emptyStartTime.IsZero() {
				emptyStartTime = time.Now()
				qm.logEvent("queue_empty")
				if sawWork {
					qm.notifier.NotifyQueueEmpty()
					sawWork = false
				}
			} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) > qm.config.EmptyWaitTime {
				qm.logEvent("queue_auto_exit", zap.String("reason", "empty_timeout"))
				close(qm.exitChan)
				return
			}
			continue
		}

		emptyStartTime = time.Time{}
		sawWork = true

		for _, download := range pending {
			if !qm.markInflight(download.ID) {
				continue
			}

			qm.logEvent("download_started",
				zap.String("id", download.ID),
				zap.String("url", download.URL))

			// the semaphore in DownloadManager bounds actual concurrency
			qm.workerWg.Add(1)
			go func(download *domain.Download) {
				defer qm.workerWg.Done()
				defer qm.clearInflight(download.ID)

				if err := qm.downloadMgr.ProcessDownload(ctx, download); err != nil {
					qm.logEvent("download_failed",
						zap.String("id", download.ID),
						zap.Error(err))
					qm.logAppError("Failed to process download",
						zap.String("id", download.ID),
						zap.Error(err))
					return
				}
				qm.logEvent("download_finished", zap.String("id", download.ID))
				qm.Wake()
			}(download)
		}
	}
}

// markInflight claims id for one worker goroutine
func (qm *QueueManager) markInflight(id string) bool {
	qm.inflightMu.Lock()
	defer qm.inflightMu.Unlock()
	if qm.inflight[id] {
		return false
	}
	qm.inflight[id] = true
	return true
}

func (qm *QueueManager) clearInflight(id string) {
	qm.inflightMu.Lock()
	defer qm.inflightMu.Unlock()
	delete(qm.inflight, id)
}

func (qm *QueueManager) inflightCount() int {
	qm.inflightMu.Lock()
	defer qm.inflightMu.Unlock()
	return len(qm.inflight)
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent(event, fields...)
	}
}

func (qm *QueueManager) logAppError(msg string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogAppError(msg, fields...)
	}
}
