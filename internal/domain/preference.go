package domain

import (
	"time"
)

// Preference is one persisted user setting
type Preference struct {
	Key       string    `json:"key" gorm:"primaryKey;column:name"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Preference) TableName() string {
	return "preferences"
}

// Well-known preference keys
const (
	PrefDefaultRemux   = "default_remux"
	PrefEmbedSubtitles = "embed_subtitles"
	PrefEmbedThumbnail = "embed_thumbnail"
	PrefEmbedMetadata  = "embed_metadata"
	PrefEmbedChapters  = "embed_chapters"
)

// PreferenceRepository defines the interface for preference persistence
type PreferenceRepository interface {
	// GetPreference returns the value for key; ok is false when unset
	GetPreference(key string) (value string, ok bool, err error)

	// SetPreference inserts or replaces a value
	SetPreference(key, value string) error

	// SetPreferences upserts several values in one transaction
	SetPreferences(values map[string]string) error

	// DeletePreference removes key; deleting a missing key is not an error
	DeletePreference(key string) error

	// ListPreferences returns all preferences ordered by key
	ListPreferences() ([]*Preference, error)
}
