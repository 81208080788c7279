package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local daemon, clients are the CLI and local tooling
	},
}

// pingInterval keeps idle websocket connections alive
const pingInterval = 30 * time.Second

// ToolsHandler exposes the provisioning state machine
type ToolsHandler struct {
	provisioner *app.Provisioner
	runCtx      context.Context
	logger      *zap.Logger
}

// NewToolsHandler creates a tools handler. Checks started over HTTP run
// under runCtx so they outlive the request that began them.
func NewToolsHandler(provisioner *app.Provisioner, runCtx context.Context, logger *zap.Logger) *ToolsHandler {
	return &ToolsHandler{
		provisioner: provisioner,
		runCtx:      runCtx,
		logger:      logger,
	}
}

// GetTools handles GET /api/v1/tools
func (h *ToolsHandler) GetTools(c *gin.Context) {
	c.JSON(http.StatusOK, h.provisioner.Snapshot())
}

// Check handles POST /api/v1/tools/check
func (h *ToolsHandler) Check(c *gin.Context) {
	if !h.provisioner.BeginCheck(h.runCtx) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: app.ErrProvisioningInProgress.Error(),
			Kind:  "invalid_state",
		})
		return
	}

	h.logger.Info("Tool check started over API", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusAccepted, h.provisioner.Snapshot())
}

// Stream handles GET /api/v1/tools/stream. Every state change is pushed as
// a full snapshot, starting with the current one.
func (h *ToolsHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := h.provisioner.Subscribe()
	defer unsubscribe()

	h.logger.Debug("Tool stream client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	// reads only detect the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Error("Failed to marshal snapshot", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return

		case <-h.runCtx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
