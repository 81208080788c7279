package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

// PreferenceHandler handles the persisted user settings
type PreferenceHandler struct {
	prefs  domain.PreferenceRepository
	logger *zap.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(prefs domain.PreferenceRepository, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:  prefs,
		logger: logger,
	}
}

// SetPreferenceRequest represents a request to store one value
type SetPreferenceRequest struct {
	Value string `json:"value"`
}

// ListPreferences handles GET /api/v1/preferences
func (h *PreferenceHandler) ListPreferences(c *gin.Context) {
	prefs, err := h.prefs.ListPreferences()
	if err != nil {
		h.logger.Error("Failed to list preferences", zap.Error(err))
		respondError(c, err)
		return
	}
	if prefs == nil {
		prefs = []*domain.Preference{}
	}

	c.JSON(http.StatusOK, prefs)
}

// GetPreference handles GET /api/v1/preferences/:key
func (h *PreferenceHandler) GetPreference(c *gin.Context) {
	key := c.Param("key")

	value, ok, err := h.prefs.GetPreference(key)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "preference not set: " + key, Kind: "not_found"})
		return
	}

	c.JSON(http.StatusOK, domain.Preference{Key: key, Value: value})
}

// SetPreference handles PUT /api/v1/preferences/:key
func (h *PreferenceHandler) SetPreference(c *gin.Context) {
	key := c.Param("key")

	var req SetPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	value, err := normalizePreference(key, req.Value)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.prefs.SetPreference(key, value); err != nil {
		h.logger.Error("Failed to save preference", zap.String("key", key), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.Preference{Key: key, Value: value})
}

// DeletePreference handles DELETE /api/v1/preferences/:key
func (h *PreferenceHandler) DeletePreference(c *gin.Context) {
	key := c.Param("key")

	if err := h.prefs.DeletePreference(key); err != nil {
		h.logger.Error("Failed to delete preference", zap.String("key", key), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "preference removed"})
}

// normalizePreference validates values of the well-known keys. Other keys
// are stored as given.
func normalizePreference(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case domain.PrefDefaultRemux:
		value = strings.ToLower(value)
		if value != "none" && !domain.IsRemuxContainer(value) {
			return "", fmt.Errorf("%s must be one of %s or none", key, strings.Join(domain.RemuxContainers, ", "))
		}
	case domain.PrefEmbedSubtitles, domain.PrefEmbedThumbnail, domain.PrefEmbedMetadata, domain.PrefEmbedChapters:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s must be true or false", key)
		}
		value = strconv.FormatBool(b)
	}
	return value, nil
}
