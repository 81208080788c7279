package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
	"go.uber.org/zap"
)

// initialLogEntries is how much history a new log stream starts with
const initialLogEntries = 50

// LogWebSocketHandler streams a category log file over a websocket
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/logs/:category/stream
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	category, err := logger.ParseCategory(c.Param("category"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Log stream client connected",
		zap.String("category", string(category)),
		zap.String("remote_addr", c.Request.RemoteAddr))

	send := func(entry logger.LogEntry) error {
		data, err := json.Marshal(entry)
		if err != nil {
			h.logger.Error("Failed to marshal log entry", zap.Error(err))
			return nil
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	entries, err := h.logReader.ReadTodayLogs(category, initialLogEntries)
	if err == nil {
		for _, entry := range entries {
			if err := send(entry); err != nil {
				return
			}
		}
	}

	entryChan := make(chan logger.LogEntry, 100)
	stopChan := make(chan struct{})
	defer close(stopChan)

	go func() {
		if err := h.logReader.TailLogs(category, entryChan, stopChan); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
		}
	}()

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
		case entry := <-entryChan:
			if err := send(entry); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
