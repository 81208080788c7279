package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestFormatVariant_Classification(t *testing.T) {
	tests := []struct {
		name      string
		vcodec    *string
		acodec    *string
		videoOnly bool
		audioOnly bool
	}{
		{"video only", ptr("avc1.640028"), ptr("none"), true, false},
		{"audio only", ptr("none"), ptr("opus"), false, true},
		{"muxed", ptr("avc1.42001E"), ptr("mp4a.40.2"), false, false},
		{"storyboard", ptr("none"), ptr("none"), false, false},
		{"missing vcodec", nil, ptr("none"), false, false},
		{"missing acodec", ptr("vp9"), nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FormatVariant{FormatID: "1", VCodec: tt.vcodec, ACodec: tt.acodec}
			assert.Equal(t, tt.videoOnly, f.IsVideoOnly())
			assert.Equal(t, tt.audioOnly, f.IsAudioOnly())
		})
	}
}

func TestFormatVariant_Dimensions(t *testing.T) {
	tests := []struct {
		resolution *string
		w, h       int
	}{
		{ptr("1920x1080"), 1920, 1080},
		{ptr("256x144"), 256, 144},
		{ptr("audio only"), 0, 0},
		{ptr("axb"), 0, 0},
		{ptr("1920x1080x2"), 0, 0},
		{nil, 0, 0},
	}

	for _, tt := range tests {
		w, h := FormatVariant{Resolution: tt.resolution}.Dimensions()
		assert.Equal(t, tt.w, w)
		assert.Equal(t, tt.h, h)
	}
}

func TestFormatVariant_PrettyCodec(t *testing.T) {
	tests := map[string]string{
		"avc1.640028":   "H.264",
		"vp09.00.40.08": "VP9",
		"vp9":           "VP9",
		"av01.0.08M.08": "AV1",
		"hev1.1.6.L93":  "H.265 (HEVC)",
		"hvc1.2.4.L120": "H.265 (HEVC)",
		"theora":        "THEORA",
		"none":          "N/A",
	}

	for codec, want := range tests {
		assert.Equal(t, want, FormatVariant{VCodec: ptr(codec)}.PrettyCodec(), codec)
	}
	assert.Equal(t, "N/A", FormatVariant{}.PrettyCodec())
}

func TestFormatVariant_PrettyAudioCodec(t *testing.T) {
	assert.Equal(t, "AAC", FormatVariant{ACodec: ptr("mp4a.40.2")}.PrettyAudioCodec())
	assert.Equal(t, "Opus", FormatVariant{ACodec: ptr("opus")}.PrettyAudioCodec())
	assert.Equal(t, "FLAC", FormatVariant{ACodec: ptr("flac")}.PrettyAudioCodec())
	assert.Equal(t, "M4A", FormatVariant{ACodec: ptr("none"), Ext: "m4a"}.PrettyAudioCodec())
}

func TestFormatVariant_DetailedDisplayName(t *testing.T) {
	withBitrate := FormatVariant{
		Resolution: ptr("1920x1080"),
		VCodec:     ptr("avc1.640028"),
		ACodec:     ptr("none"),
		TBR:        ptr(4500.4),
		Ext:        "mp4",
	}
	assert.Equal(t, "1920x1080 - H.264 - 4500 kbps", withBitrate.DetailedDisplayName())

	withSize := FormatVariant{
		Resolution: ptr("1280x720"),
		VCodec:     ptr("vp09.00.31.08"),
		FileSize:   ptr(int64(2_500_000)),
		Ext:        "webm",
	}
	assert.Equal(t, "1280x720 - VP9 - 2.5 MB", withSize.DetailedDisplayName())

	bare := FormatVariant{Resolution: ptr("256x144"), VCodec: ptr("av01.0.00M.08"), Ext: "mp4"}
	assert.Equal(t, "256x144 - AV1 - MP4", bare.DetailedDisplayName())

	noted := FormatVariant{Resolution: ptr("audio only"), FormatNote: ptr("medium"), VCodec: ptr("none"), Ext: "m4a"}
	assert.Equal(t, "medium - N/A - M4A", noted.DetailedDisplayName())
}

func TestFormatVariant_AudioDisplayName(t *testing.T) {
	full := FormatVariant{
		Language: ptr("en"),
		ACodec:   ptr("mp4a.40.2"),
		VCodec:   ptr("none"),
		TBR:      ptr(128.0),
		FileSize: ptr(int64(3_400_000)),
		Ext:      "m4a",
	}
	assert.Equal(t, "English - 128 kbps - AAC - 3.4 MB", full.AudioDisplayName())

	generic := FormatVariant{ACodec: ptr("opus"), VCodec: ptr("none"), TBR: ptr(160.2), Ext: "webm"}
	assert.Equal(t, "160 kbps - Opus", generic.AudioDisplayName())

	dubbed := FormatVariant{
		FormatNote: ptr("Deutsch (Deutschland) - dubbed-auto"),
		ACodec:     ptr("opus"),
		VCodec:     ptr("none"),
		Ext:        "webm",
	}
	assert.Equal(t, "Deutsch (Deutschland) - Opus", dubbed.AudioDisplayName())
}

func TestMediaMetadata_Helpers(t *testing.T) {
	m := &MediaMetadata{
		ID:       "abc",
		Title:    "Clip",
		Duration: ptr(3725.0),
		Formats: []FormatVariant{
			{FormatID: "140", Ext: "m4a"},
		},
	}

	assert.Equal(t, "Clip", m.DisplayTitle())
	assert.Equal(t, "1:02:05", m.FormattedDuration())

	f, ok := m.Format("140")
	assert.True(t, ok)
	assert.Equal(t, "m4a", f.Ext)

	_, ok = m.Format("137")
	assert.False(t, ok)

	m.DurationString = ptr("1:02:05")
	m.FullTitle = ptr("Clip (Full)")
	assert.Equal(t, "1:02:05", m.FormattedDuration())
	assert.Equal(t, "Clip (Full)", m.DisplayTitle())
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 bytes", FormatFileSize(512))
	assert.Equal(t, "12 KB", FormatFileSize(12_345))
	assert.Equal(t, "3.4 MB", FormatFileSize(3_400_000))
	assert.Equal(t, "1.50 GB", FormatFileSize(1_500_000_000))
}
