package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	media       *app.MediaService
	queueMgr    *app.QueueManager
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(media *app.MediaService, queueMgr *app.QueueManager, downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		media:       media,
		queueMgr:    queueMgr,
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// AddDownload handles POST /api/v1/downloads. The URL is inspected, the
// selection compiled against its formats and the result queued.
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	req, ok := bindSelection(c, h.media)
	if !ok {
		return
	}

	compiled, sel, err := h.media.Compile(c.Request.Context(), req.URL, req.Selection)
	if err != nil {
		h.logger.Warn("Failed to compile download", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	download, created, err := h.queueMgr.AddDownload(compiled, sel)
	if err != nil {
		h.logger.Error("Failed to add download", zap.Error(err))
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, download)
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	download, err := h.queueMgr.GetDownload(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, download)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateStatus(domain.DownloadStatus(status)) {
			badRequest(c, "invalid status: "+status)
			return
		}
		filters["status"] = status
	}
	if url := c.Query("url"); url != "" {
		filters["url"] = url
	}

	downloads, err := h.queueMgr.ListDownloads(filters)
	if err != nil {
		h.logger.Error("Failed to list downloads", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.CancelDownload(id); err != nil {
		h.logger.Warn("Failed to cancel download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// RetryDownload handles POST /api/v1/downloads/:id/retry
func (h *DownloadHandler) RetryDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.RetryDownload(c.Request.Context(), id); err != nil {
		h.logger.Warn("Failed to retry download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	h.queueMgr.Wake()
	c.JSON(http.StatusOK, gin.H{"message": "download queued for retry"})
}

// DeleteDownload handles DELETE /api/v1/downloads/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.DeleteDownload(id); err != nil {
		h.logger.Warn("Failed to delete download", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download deleted"})
}
