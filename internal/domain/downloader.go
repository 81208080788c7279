package domain

import "context"

// Downloader executes a queued download
type Downloader interface {
	// Download runs the download, delivering each output line to onLine
	Download(ctx context.Context, download *Download, onLine LineHandler) (*DownloadResult, error)
}

// DownloadResult represents the result of a download operation
type DownloadResult struct {
	FilePath string
	Log      []string
}
