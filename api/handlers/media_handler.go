package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

// MediaHandler handles metadata inspection and request compilation
type MediaHandler struct {
	media  *app.MediaService
	logger *zap.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(media *app.MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		media:  media,
		logger: logger,
	}
}

// InspectRequest represents a request to inspect a media URL
type InspectRequest struct {
	URL     string `json:"url" binding:"required"`
	Refresh bool   `json:"refresh,omitempty"`
}

// SelectionRequest carries a URL and an optional selection. Fields missing
// from the selection keep their stored defaults.
type SelectionRequest struct {
	URL       string            `json:"url" binding:"required"`
	Selection *domain.Selection `json:"selection,omitempty"`
}

// CompileResponse is a compiled request with the selection it was built from
type CompileResponse struct {
	Request   domain.DownloadRequest `json:"request"`
	Selection domain.Selection       `json:"selection"`
}

// bindSelection decodes a SelectionRequest on top of the default selection
func bindSelection(c *gin.Context, media *app.MediaService) (*SelectionRequest, bool) {
	defaults := media.DefaultSelection()
	req := SelectionRequest{Selection: &defaults}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return &req, true
}

// Inspect handles POST /api/v1/media/inspect
func (h *MediaHandler) Inspect(c *gin.Context) {
	var req InspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inspection, err := h.media.Inspect(c.Request.Context(), req.URL, req.Refresh)
	if err != nil {
		h.logger.Warn("Inspect failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inspection)
}

// Compile handles POST /api/v1/media/compile
func (h *MediaHandler) Compile(c *gin.Context) {
	req, ok := bindSelection(c, h.media)
	if !ok {
		return
	}

	compiled, sel, err := h.media.Compile(c.Request.Context(), req.URL, req.Selection)
	if err != nil {
		h.logger.Warn("Compile failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CompileResponse{Request: compiled, Selection: sel})
}
