package domain

import (
	"time"
)

// MetadataCacheEntry stores a fetched metadata document so repeated
// inspections of the same URL skip the yt-dlp round trip
type MetadataCacheEntry struct {
	URL      string    `json:"url" gorm:"primaryKey"`
	MediaID  string    `json:"media_id" gorm:"index"`
	Title    string    `json:"title"`
	Payload  string    `json:"payload" gorm:"type:text"` // encoded MediaMetadata
	CachedAt time.Time `json:"cached_at" gorm:"index"`
}

// TableName specifies the table name for GORM
func (MetadataCacheEntry) TableName() string {
	return "metadata_cache"
}

// IsFresh reports whether the entry is younger than ttl. A zero ttl never expires.
func (e *MetadataCacheEntry) IsFresh(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.CachedAt) < ttl
}

// MetadataCacheRepository defines the interface for metadata cache persistence
type MetadataCacheRepository interface {
	// GetMetadata returns the cached entry for url, or nil if not found
	GetMetadata(url string) (*MetadataCacheEntry, error)

	// SaveMetadata inserts or replaces the entry for its URL
	SaveMetadata(entry *MetadataCacheEntry) error

	// PurgeMetadata deletes entries cached before cutoff and returns how many
	PurgeMetadata(cutoff time.Time) (int64, error)
}
