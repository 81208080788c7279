package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// Download is a compiled download request tracked through the queue
type Download struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	URL          string         `json:"url" gorm:"not null"`
	Title        string         `json:"title"`
	Args         []string       `json:"args" gorm:"serializer:json;type:text"` // yt-dlp arguments, URL last
	Selection    Selection      `json:"selection" gorm:"serializer:json;type:text"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	Priority     int            `json:"priority" gorm:"default:0;index"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	ErrorMessage string         `json:"error_message,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	ProcessLog   string         `json:"process_log,omitempty" gorm:"type:text"` // yt-dlp output
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a queued download from a compiled request
func NewDownload(req DownloadRequest, sel Selection) *Download {
	return &Download{
		ID:         uuid.New().String(),
		URL:        req.SourceURL,
		Title:      req.Title,
		Args:       append([]string(nil), req.Args...),
		Selection:  sel,
		Status:     StatusQueued,
		Priority:   0,
		RetryCount: 0,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

// Request returns the compiled request the download was created from
func (d *Download) Request() DownloadRequest {
	return DownloadRequest{
		Args:      append([]string(nil), d.Args...),
		Title:     d.Title,
		SourceURL: d.URL,
	}
}

// MarkDownloading marks the download as running
func (d *Download) MarkDownloading() {
	d.Status = StatusDownloading
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.ErrorMessage = ""
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorMessage = err.Error()
	d.UpdatedAt = time.Now()
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled() {
	d.Status = StatusCancelled
	d.UpdatedAt = time.Now()
}

// Requeue puts a failed or cancelled download back in the queue
func (d *Download) Requeue() {
	d.Status = StatusQueued
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// IncrementRetry increments the retry count
func (d *Download) IncrementRetry() {
	d.RetryCount++
	d.UpdatedAt = time.Now()
}

// CanRetry checks if the download can be retried
func (d *Download) CanRetry(maxRetries int) bool {
	return d.RetryCount < maxRetries && d.Status == StatusFailed
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusCancelled
}

// IsPending checks if the download is pending
func (d *Download) IsPending() bool {
	return d.Status == StatusQueued
}

// IsDownloading checks if the download is currently running
func (d *Download) IsDownloading() bool {
	return d.Status == StatusDownloading
}

// ValidateURL checks that raw is an absolute http(s) URL
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

// ValidateStatus checks if a status is valid
func ValidateStatus(status DownloadStatus) bool {
	switch status {
	case StatusQueued, StatusDownloading, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
