package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// filterable columns accepted by FindAll
var downloadFilterColumns = map[string]bool{
	"status":   true,
	"url":      true,
	"priority": true,
}

// SQLiteRepository implements DownloadRepository, PreferenceRepository and
// MetadataCacheRepository on one SQLite database
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Download{}, &domain.Preference{}, &domain.MetadataCacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Create creates a new download
func (r *SQLiteRepository) Create(download *domain.Download) error {
	return r.db.Create(download).Error
}

// Update updates an existing download
func (r *SQLiteRepository) Update(download *domain.Download) error {
	return r.db.Save(download).Error
}

// Delete deletes a download by ID
func (r *SQLiteRepository) Delete(id string) error {
	return r.db.Delete(&domain.Download{}, "id = ?", id).Error
}

// FindByID finds a download by ID, or nil when there is none
func (r *SQLiteRepository) FindByID(id string) (*domain.Download, error) {
	var download domain.Download
	err := r.db.First(&download, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &download, nil
}

// FindByURL returns the newest download for url in one of statuses, or nil
func (r *SQLiteRepository) FindByURL(url string, statuses []domain.DownloadStatus) (*domain.Download, error) {
	var download domain.Download
	err := r.db.Where("url = ? AND status IN ?", url, statuses).
		Order("created_at DESC").
		First(&download).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &download, nil
}

// FindByStatus finds downloads by status
func (r *SQLiteRepository) FindByStatus(status domain.DownloadStatus) ([]*domain.Download, error) {
	var downloads []*domain.Download
	err := r.db.Where("status = ?", status).Order("created_at ASC").Find(&downloads).Error
	return downloads, err
}

// FindPending finds all pending downloads ordered by priority and creation time
func (r *SQLiteRepository) FindPending() ([]*domain.Download, error) {
	var downloads []*domain.Download
	err := r.db.Where("status = ?", domain.StatusQueued).
		Order("priority DESC, created_at ASC").
		Find(&downloads).Error
	return downloads, err
}

// FindAll finds all downloads with optional column filters
func (r *SQLiteRepository) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	var downloads []*domain.Download
	query := r.db

	for key, value := range filters {
		if !downloadFilterColumns[key] {
			return nil, fmt.Errorf("unsupported filter %q", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&downloads).Error
	return downloads, err
}

// Count returns the total number of downloads
func (r *SQLiteRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Download{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of downloads by status
func (r *SQLiteRepository) CountByStatus(status domain.DownloadStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Download{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// CountActive returns the number of queued and downloading records
func (r *SQLiteRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Download{}).
		Where("status IN ?", []domain.DownloadStatus{domain.StatusQueued, domain.StatusDownloading}).
		Count(&count).Error
	return count, err
}

// GetStats returns download statistics
func (r *SQLiteRepository) GetStats() (*domain.DownloadStats, error) {
	stats := &domain.DownloadStats{}

	if err := r.db.Model(&domain.Download{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.DownloadStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.Download{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusQueued:
			stats.Queued = sc.Count
		case domain.StatusDownloading:
			stats.Downloading = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// ResetInterrupted requeues downloads left running by a previous process
func (r *SQLiteRepository) ResetInterrupted() (int64, error) {
	res := r.db.Model(&domain.Download{}).
		Where("status = ?", domain.StatusDownloading).
		Updates(map[string]interface{}{"status": domain.StatusQueued, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// PreferenceRepository implementation
// ============================================================================

// GetPreference returns the stored value for key
func (r *SQLiteRepository) GetPreference(key string) (string, bool, error) {
	var pref domain.Preference
	err := r.db.Where("name = ?", key).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return pref.Value, true, nil
}

// SetPreference inserts or replaces a value
func (r *SQLiteRepository) SetPreference(key, value string) error {
	return r.SetPreferences(map[string]string{key: value})
}

// SetPreferences upserts several values in one statement
func (r *SQLiteRepository) SetPreferences(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	now := time.Now()
	prefs := make([]*domain.Preference, 0, len(values))
	for key, value := range values {
		prefs = append(prefs, &domain.Preference{Key: key, Value: value, UpdatedAt: now})
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&prefs).Error
}

// DeletePreference removes key
func (r *SQLiteRepository) DeletePreference(key string) error {
	return r.db.Delete(&domain.Preference{}, "name = ?", key).Error
}

// ListPreferences returns all preferences ordered by key
func (r *SQLiteRepository) ListPreferences() ([]*domain.Preference, error) {
	var prefs []*domain.Preference
	err := r.db.Order("name ASC").Find(&prefs).Error
	return prefs, err
}

// ============================================================================
// MetadataCacheRepository implementation
// ============================================================================

// GetMetadata returns the cached entry for url, or nil if not found
func (r *SQLiteRepository) GetMetadata(url string) (*domain.MetadataCacheEntry, error) {
	var entry domain.MetadataCacheEntry
	err := r.db.Where("url = ?", url).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// SaveMetadata inserts or replaces the entry for its URL
func (r *SQLiteRepository) SaveMetadata(entry *domain.MetadataCacheEntry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"media_id", "title", "payload", "cached_at"}),
	}).Create(entry).Error
}

// PurgeMetadata deletes entries cached before cutoff
func (r *SQLiteRepository) PurgeMetadata(cutoff time.Time) (int64, error) {
	res := r.db.Where("cached_at < ?", cutoff).Delete(&domain.MetadataCacheEntry{})
	return res.RowsAffected, res.Error
}
