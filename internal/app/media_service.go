package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/infrastructure"
	"go.uber.org/zap"
)

// FormatOption is a ranked variant with its display label
type FormatOption struct {
	FormatID string `json:"format_id"`
	Label    string `json:"label"`
	Ext      string `json:"ext"`
	Height   int    `json:"height,omitempty"`
	Kbps     int    `json:"kbps,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Inspection is what the user chooses a selection from
type Inspection struct {
	URL          string                `json:"url"`
	Title        string                `json:"title"`
	Duration     string                `json:"duration,omitempty"`
	Thumbnail    string                `json:"thumbnail,omitempty"`
	VideoFormats []FormatOption        `json:"video_formats"`
	AudioFormats []FormatOption        `json:"audio_formats"`
	Defaults     domain.Selection      `json:"defaults"`
	Cached       bool                  `json:"cached"`
	Metadata     *domain.MediaMetadata `json:"metadata"`
}

// MediaService inspects media URLs and compiles download requests
type MediaService struct {
	fetcher domain.MetadataFetcher
	cache   domain.MetadataCacheRepository
	prefs   domain.PreferenceRepository
	config  *domain.MediaConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewMediaService creates a media service. cache and prefs may be nil.
func NewMediaService(
	fetcher domain.MetadataFetcher,
	cache domain.MetadataCacheRepository,
	prefs domain.PreferenceRepository,
	config *domain.MediaConfig,
	logger *zap.Logger,
) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{
		fetcher: fetcher,
		cache:   cache,
		prefs:   prefs,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Metadata returns the metadata for url, from the cache when fresh
func (s *MediaService) Metadata(ctx context.Context, url string, refresh bool) (*domain.MediaMetadata, bool, error) {
	if err := domain.ValidateURL(url); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !refresh {
		if metadata := s.cached(url); metadata != nil {
			return metadata, true, nil
		}
	}

	if s.fetcher == nil {
		return nil, false, &domain.ToolNotFoundError{}
	}
	metadata, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, false, err
	}
	s.store(url, metadata)
	return metadata, false, nil
}

// Inspect fetches metadata and ranks the selectable formats
func (s *MediaService) Inspect(ctx context.Context, url string, refresh bool) (*Inspection, error) {
	metadata, cached, err := s.Metadata(ctx, url, refresh)
	if err != nil {
		return nil, err
	}

	resolved := domain.ResolveFormats(metadata)
	inspection := &Inspection{
		URL:          url,
		Title:        metadata.DisplayTitle(),
		Duration:     metadata.FormattedDuration(),
		VideoFormats: make([]FormatOption, 0, len(resolved.Video)),
		AudioFormats: make([]FormatOption, 0, len(resolved.Audio)),
		Defaults:     s.DefaultSelection(),
		Cached:       cached,
		Metadata:     metadata,
	}
	if metadata.Thumbnail != nil {
		inspection.Thumbnail = *metadata.Thumbnail
	}
	for _, f := range resolved.Video {
		inspection.VideoFormats = append(inspection.VideoFormats, formatOption(f, f.DetailedDisplayName()))
	}
	for _, f := range resolved.Audio {
		inspection.AudioFormats = append(inspection.AudioFormats, formatOption(f, f.AudioDisplayName()))
	}
	return inspection, nil
}

// Compile builds the yt-dlp request for url. A nil selection uses the
// stored defaults.
func (s *MediaService) Compile(ctx context.Context, url string, sel *domain.Selection) (domain.DownloadRequest, domain.Selection, error) {
	selection := s.DefaultSelection()
	if sel != nil {
		selection = *sel
	}

	metadata, _, err := s.Metadata(ctx, url, false)
	if err != nil {
		return domain.DownloadRequest{}, selection, err
	}

	req := domain.CompileDownloadRequest(metadata, url, selection)
	s.logger.Debug("Compiled download request",
		zap.String("url", url),
		zap.Strings("args", req.Args))
	return req, selection, nil
}

// DefaultSelection is the built-in selection overlaid with configuration and
// stored preferences
func (s *MediaService) DefaultSelection() domain.Selection {
	sel := domain.DefaultSelection()
	if s.config != nil {
		switch remux := strings.ToLower(s.config.DefaultRemux); {
		case remux == "none":
			sel.RemuxTo = ""
		case domain.IsRemuxContainer(remux):
			sel.RemuxTo = remux
		}
	}
	if s.prefs == nil {
		return sel
	}

	if v, ok := s.preference(domain.PrefDefaultRemux); ok {
		switch {
		case v == "none":
			sel.RemuxTo = ""
		case domain.IsRemuxContainer(v):
			sel.RemuxTo = strings.ToLower(v)
		}
	}
	s.boolPreference(domain.PrefEmbedSubtitles, &sel.EmbedSubtitles)
	s.boolPreference(domain.PrefEmbedThumbnail, &sel.EmbedThumbnail)
	s.boolPreference(domain.PrefEmbedMetadata, &sel.EmbedMetadata)
	s.boolPreference(domain.PrefEmbedChapters, &sel.EmbedChapters)
	return sel
}

// PurgeCache drops cache entries older than the configured TTL
func (s *MediaService) PurgeCache() (int64, error) {
	if s.cache == nil || s.config == nil || s.config.CacheTTL <= 0 {
		return 0, nil
	}
	return s.cache.PurgeMetadata(s.now().Add(-s.config.CacheTTL))
}

func (s *MediaService) cached(url string) *domain.MediaMetadata {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.GetMetadata(url)
	if err != nil {
		s.logger.Warn("Metadata cache lookup failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	if entry == nil || !entry.IsFresh(s.cacheTTL(), s.now()) {
		return nil
	}
	metadata, err := infrastructure.DecodeMetadata([]byte(entry.Payload))
	if err != nil {
		s.logger.Warn("Discarding unreadable cache entry", zap.String("url", url), zap.Error(err))
		return nil
	}
	return metadata
}

func (s *MediaService) store(url string, metadata *domain.MediaMetadata) {
	if s.cache == nil {
		return
	}
	payload, err := infrastructure.EncodeMetadata(metadata)
	if err != nil {
		s.logger.Warn("Failed to encode metadata", zap.String("url", url), zap.Error(err))
		return
	}
	entry := &domain.MetadataCacheEntry{
		URL:      url,
		MediaID:  metadata.ID,
		Title:    metadata.Title,
		Payload:  payload,
		CachedAt: s.now(),
	}
	if err := s.cache.SaveMetadata(entry); err != nil {
		s.logger.Warn("Failed to cache metadata", zap.String("url", url), zap.Error(err))
	}
}

func (s *MediaService) cacheTTL() time.Duration {
	if s.config == nil {
		return 0
	}
	return s.config.CacheTTL
}

func (s *MediaService) preference(key string) (string, bool) {
	v, ok, err := s.prefs.GetPreference(key)
	if err != nil {
		s.logger.Warn("Failed to read preference", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return strings.TrimSpace(v), ok
}

func (s *MediaService) boolPreference(key string, dst *bool) {
	v, ok := s.preference(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		s.logger.Warn("Ignoring non-boolean preference", zap.String("key", key), zap.String("value", v))
		return
	}
	*dst = b
}

func formatOption(f domain.FormatVariant, label string) FormatOption {
	return FormatOption{
		FormatID: f.FormatID,
		Label:    label,
		Ext:      f.Ext,
		Height:   f.Height(),
		Kbps:     int(f.Bitrate() + 0.5),
		Size:     f.Size(),
	}
}
