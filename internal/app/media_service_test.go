package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	metadata *domain.MediaMetadata
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*domain.MediaMetadata, error) {
	f.calls++
	return f.metadata, f.err
}

type memoryCache struct {
	entries map[string]*domain.MetadataCacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*domain.MetadataCacheEntry)}
}

func (c *memoryCache) GetMetadata(url string) (*domain.MetadataCacheEntry, error) {
	return c.entries[url], nil
}

func (c *memoryCache) SaveMetadata(entry *domain.MetadataCacheEntry) error {
	c.entries[entry.URL] = entry
	return nil
}

func (c *memoryCache) PurgeMetadata(cutoff time.Time) (int64, error) {
	var n int64
	for url, e := range c.entries {
		if e.CachedAt.Before(cutoff) {
			delete(c.entries, url)
			n++
		}
	}
	return n, nil
}

type memoryPrefs map[string]string

func (p memoryPrefs) GetPreference(key string) (string, bool, error) {
	v, ok := p[key]
	return v, ok, nil
}

func (p memoryPrefs) SetPreference(key, value string) error {
	p[key] = value
	return nil
}

func (p memoryPrefs) SetPreferences(values map[string]string) error {
	for k, v := range values {
		p[k] = v
	}
	return nil
}

func (p memoryPrefs) DeletePreference(key string) error {
	delete(p, key)
	return nil
}

func (p memoryPrefs) ListPreferences() ([]*domain.Preference, error) {
	var out []*domain.Preference
	for k, v := range p {
		out = append(out, &domain.Preference{Key: k, Value: v})
	}
	return out, nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }
func i64Ptr(v int64) *int64     { return &v }

func sampleMetadata() *domain.MediaMetadata {
	return &domain.MediaMetadata{
		ID:    "abc",
		Title: "Clip",
		Formats: []domain.FormatVariant{
			{FormatID: "137", Ext: "mp4", Resolution: strPtr("1920x1080"), VCodec: strPtr("avc1.640028"), ACodec: strPtr("none"), TBR: f64Ptr(4500)},
			{FormatID: "136", Ext: "mp4", Resolution: strPtr("1280x720"), VCodec: strPtr("avc1.4d401f"), ACodec: strPtr("none"), TBR: f64Ptr(2500)},
			{FormatID: "140", Ext: "m4a", Resolution: strPtr("audio only"), VCodec: strPtr("none"), ACodec: strPtr("mp4a.40.2"), TBR: f64Ptr(129.5), FileSize: i64Ptr(3400000), Language: strPtr("en")},
			{FormatID: "18", Ext: "mp4", Resolution: strPtr("640x360"), VCodec: strPtr("avc1"), ACodec: strPtr("mp4a.40.2")},
		},
	}
}

func newTestMediaService(fetcher domain.MetadataFetcher, cache domain.MetadataCacheRepository, prefs domain.PreferenceRepository) *MediaService {
	cfg := domain.DefaultConfig().Media
	return NewMediaService(fetcher, cache, prefs, &cfg, nil)
}

func TestMediaService_Inspect(t *testing.T) {
	fetcher := &fakeFetcher{metadata: sampleMetadata()}
	svc := newTestMediaService(fetcher, nil, nil)

	inspection, err := svc.Inspect(context.Background(), "https://example.com/v", false)
	require.NoError(t, err)

	assert.Equal(t, "Clip", inspection.Title)
	require.Len(t, inspection.VideoFormats, 2)
	assert.Equal(t, "137", inspection.VideoFormats[0].FormatID)
	assert.Equal(t, 1080, inspection.VideoFormats[0].Height)
	assert.Equal(t, "1920x1080 - H.264 - 4500 kbps", inspection.VideoFormats[0].Label)
	require.Len(t, inspection.AudioFormats, 1)
	assert.Equal(t, 130, inspection.AudioFormats[0].Kbps)
	assert.Equal(t, domain.DefaultSelection(), inspection.Defaults)
	assert.False(t, inspection.Cached)
}

func TestMediaService_InvalidURL(t *testing.T) {
	fetcher := &fakeFetcher{metadata: sampleMetadata()}
	svc := newTestMediaService(fetcher, nil, nil)

	_, err := svc.Inspect(context.Background(), "not a url", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, fetcher.calls)
}

func TestMediaService_FetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: &domain.DecodeFailedError{Cause: errors.New("bad json")}}
	svc := newTestMediaService(fetcher, nil, nil)

	_, err := svc.Inspect(context.Background(), "https://example.com/v", false)
	assert.True(t, domain.IsDecodeFailed(err))
}

func TestMediaService_CachesMetadata(t *testing.T) {
	fetcher := &fakeFetcher{metadata: sampleMetadata()}
	cache := newMemoryCache()
	svc := newTestMediaService(fetcher, cache, nil)
	ctx := context.Background()

	_, err := svc.Inspect(ctx, "https://example.com/v", false)
	require.NoError(t, err)
	second, err := svc.Inspect(ctx, "https://example.com/v", false)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.True(t, second.Cached)
	assert.Len(t, second.VideoFormats, 2)

	_, err = svc.Inspect(ctx, "https://example.com/v", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestMediaService_ExpiredCacheRefetches(t *testing.T) {
	fetcher := &fakeFetcher{metadata: sampleMetadata()}
	cache := newMemoryCache()
	svc := newTestMediaService(fetcher, cache, nil)
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.Inspect(context.Background(), "https://example.com/v", false)
	require.NoError(t, err)

	now = now.Add(svc.config.CacheTTL + time.Second)
	inspection, err := svc.Inspect(context.Background(), "https://example.com/v", false)
	require.NoError(t, err)
	assert.False(t, inspection.Cached)
	assert.Equal(t, 2, fetcher.calls)

	purged, err := svc.PurgeCache()
	require.NoError(t, err)
	assert.Zero(t, purged)
	now = now.Add(svc.config.CacheTTL + time.Second)
	purged, err = svc.PurgeCache()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestMediaService_DefaultSelectionFromPreferences(t *testing.T) {
	prefs := memoryPrefs{
		domain.PrefDefaultRemux:   "MKV",
		domain.PrefEmbedThumbnail: "false",
		domain.PrefEmbedChapters:  "maybe",
	}
	svc := newTestMediaService(&fakeFetcher{}, nil, prefs)

	sel := svc.DefaultSelection()
	assert.Equal(t, "mkv", sel.RemuxTo)
	assert.False(t, sel.EmbedThumbnail)
	assert.True(t, sel.EmbedChapters)
	assert.True(t, sel.EmbedSubtitles)

	prefs[domain.PrefDefaultRemux] = "none"
	assert.Empty(t, svc.DefaultSelection().RemuxTo)
}

func TestMediaService_DefaultSelectionFromConfig(t *testing.T) {
	cfg := domain.DefaultConfig().Media

	cfg.DefaultRemux = "webm"
	svc := NewMediaService(&fakeFetcher{}, nil, nil, &cfg, nil)
	assert.Equal(t, "webm", svc.DefaultSelection().RemuxTo)

	cfg.DefaultRemux = "none"
	assert.Empty(t, svc.DefaultSelection().RemuxTo)

	cfg.DefaultRemux = ""
	assert.Equal(t, domain.DefaultRemuxContainer, svc.DefaultSelection().RemuxTo)

	// a stored preference wins over the config
	svc = NewMediaService(&fakeFetcher{}, nil, memoryPrefs{domain.PrefDefaultRemux: "mkv"}, &cfg, nil)
	assert.Equal(t, "mkv", svc.DefaultSelection().RemuxTo)
}

func TestMediaService_Compile(t *testing.T) {
	svc := newTestMediaService(&fakeFetcher{metadata: sampleMetadata()}, nil, nil)

	req, sel, err := svc.Compile(context.Background(), "https://example.com/v", &domain.Selection{
		VideoFormatID: "136",
		AudioFormatID: "999",
		RemuxTo:       "mkv",
	})
	require.NoError(t, err)

	assert.Equal(t, "mkv", sel.RemuxTo)
	assert.Equal(t, "Clip", req.Title)
	assert.Equal(t, []string{
		"-f", "136+bestaudio",
		"--remux-video", "mkv",
		"--restrict-filenames", "-o", domain.OutputTemplate,
		"https://example.com/v",
	}, req.Args)
}

func TestMediaService_CompileDefaults(t *testing.T) {
	svc := newTestMediaService(&fakeFetcher{metadata: sampleMetadata()}, nil, nil)

	req, sel, err := svc.Compile(context.Background(), "https://example.com/v", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSelection(), sel)
	assert.Equal(t, domain.BestFormatSelector, req.Args[1])
}
