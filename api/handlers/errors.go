package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps application and process errors to HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, app.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case domain.IsToolNotFound(err):
		return http.StatusServiceUnavailable, "tool_not_found"
	case domain.IsProcessFailed(err):
		return http.StatusBadGateway, "process_failed"
	case domain.IsDecodeFailed(err):
		return http.StatusUnprocessableEntity, "decode_failed"
	}
	return http.StatusInternalServerError, ""
}

func respondError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: "invalid_input"})
}
