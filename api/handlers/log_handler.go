package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// LogHandler handles log-related requests
type LogHandler struct {
	logReader *logger.LogReader
}

// NewLogHandler creates a new log handler
func NewLogHandler(logsDir string) *LogHandler {
	return &LogHandler{
		logReader: logger.NewLogReader(logsDir),
	}
}

// logQuery holds the parsed common query parameters
type logQuery struct {
	category logger.LogCategory
	date     time.Time
	limit    int
}

func parseLogQuery(c *gin.Context) (logQuery, bool) {
	category, err := logger.ParseCategory(c.Param("category"))
	if err != nil {
		badRequest(c, err.Error())
		return logQuery{}, false
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)))
	if err != nil || limit < 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	date := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		date, err = time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			badRequest(c, "invalid date format, use YYYY-MM-DD")
			return logQuery{}, false
		}
	}

	return logQuery{category: category, date: date, limit: limit}, true
}

// GetLogs handles GET /api/v1/logs/:category
func (h *LogHandler) GetLogs(c *gin.Context) {
	q, ok := parseLogQuery(c)
	if !ok {
		return
	}

	entries, err := h.logReader.ReadLogs(q.category, q.date, q.limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": q.category,
		"date":     q.date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// SearchLogs handles GET /api/v1/logs/:category/search
func (h *LogHandler) SearchLogs(c *gin.Context) {
	q, ok := parseLogQuery(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		badRequest(c, "query parameter 'q' is required")
		return
	}

	entries, err := h.logReader.SearchLogs(q.category, q.date, query, q.limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to search logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": q.category,
		"query":    query,
		"count":    len(entries),
		"entries":  entries,
	})
}

// GetCategories handles GET /api/v1/logs/categories
func (h *LogHandler) GetCategories(c *gin.Context) {
	categories := make([]string, 0, len(logger.Categories))
	for _, category := range logger.Categories {
		categories = append(categories, string(category))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}

// ExportLogs handles GET /api/v1/logs/:category/export
func (h *LogHandler) ExportLogs(c *gin.Context) {
	q, ok := parseLogQuery(c)
	if !ok {
		return
	}

	logPath := h.logReader.GetLogPath(q.category, q.date)
	if _, err := os.Stat(logPath); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no log for that date", Kind: "not_found"})
		return
	}

	filename := string(q.category) + "-" + q.date.Format("20060102") + ".log"
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/octet-stream")

	c.File(logPath)
}
