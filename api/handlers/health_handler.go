package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	queueMgr    *app.QueueManager
	provisioner *app.Provisioner
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager, provisioner *app.Provisioner) *HealthHandler {
	return &HealthHandler{
		queueMgr:    queueMgr,
		provisioner: provisioner,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
	} `json:"queue"`
	Provisioning struct {
		Running   bool `json:"running"`
		Completed bool `json:"completed"`
	} `json:"provisioning"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Queue.Running = h.queueMgr.IsRunning()
	snap := h.provisioner.Snapshot()
	response.Provisioning.Running = snap.Running
	response.Provisioning.Completed = snap.Completed

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready. The server is ready once a provisioning run has
// finished with yt-dlp installed.
func (h *HealthHandler) Ready(c *gin.Context) {
	snap := h.provisioner.Snapshot()
	if snap.Running || !snap.Completed {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "tool check has not finished",
		})
		return
	}

	if _, ok := h.provisioner.ToolPath(domain.ToolYtDlp); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "yt-dlp is not installed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
