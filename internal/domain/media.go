package domain

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// NoCodec is the sentinel yt-dlp reports for an absent stream
const NoCodec = "none"

// MetadataFetcher retrieves the metadata document for a media URL
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) (*MediaMetadata, error)
}

// MediaMetadata is the result of one metadata fetch
type MediaMetadata struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	FullTitle   *string         `json:"fulltitle,omitempty"`
	Description *string         `json:"description,omitempty"`
	Thumbnail   *string         `json:"thumbnail,omitempty"`
	Formats     []FormatVariant `json:"formats"`

	Duration       *float64 `json:"duration,omitempty"`
	DurationString *string  `json:"duration_string,omitempty"`

	Channel              *string `json:"channel,omitempty"`
	ChannelURL           *string `json:"channel_url,omitempty"`
	ChannelFollowerCount *int64  `json:"channel_follower_count,omitempty"`
	Uploader             *string `json:"uploader,omitempty"`
	UploaderID           *string `json:"uploader_id,omitempty"`
	UploaderURL          *string `json:"uploader_url,omitempty"`

	ViewCount    *int64  `json:"view_count,omitempty"`
	LikeCount    *int64  `json:"like_count,omitempty"`
	CommentCount *int64  `json:"comment_count,omitempty"`
	UploadDate   *string `json:"upload_date,omitempty"` // YYYYMMDD

	IsLive       *bool   `json:"is_live,omitempty"`
	WasLive      *bool   `json:"was_live,omitempty"`
	Availability *string `json:"availability,omitempty"`
}

// Format returns the variant with the given format id
func (m *MediaMetadata) Format(id string) (FormatVariant, bool) {
	if m == nil {
		return FormatVariant{}, false
	}
	for _, f := range m.Formats {
		if f.FormatID == id {
			return f, true
		}
	}
	return FormatVariant{}, false
}

// DisplayTitle prefers the full title when present
func (m *MediaMetadata) DisplayTitle() string {
	if m.FullTitle != nil && *m.FullTitle != "" {
		return *m.FullTitle
	}
	return m.Title
}

// FormattedDuration returns yt-dlp's duration string, or one derived from seconds
func (m *MediaMetadata) FormattedDuration() string {
	if m.DurationString != nil && *m.DurationString != "" {
		return *m.DurationString
	}
	if m.Duration == nil {
		return ""
	}
	total := int(*m.Duration)
	h, rem := total/3600, total%3600
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, rem/60, rem%60)
	}
	return fmt.Sprintf("%d:%02d", rem/60, rem%60)
}

// FormatVariant is one downloadable encoding of a media item
type FormatVariant struct {
	FormatID   string   `json:"format_id"`
	FormatNote *string  `json:"format_note,omitempty"`
	Ext        string   `json:"ext"`
	Resolution *string  `json:"resolution,omitempty"` // "1920x1080" or "audio only"
	VCodec     *string  `json:"vcodec,omitempty"`
	ACodec     *string  `json:"acodec,omitempty"`
	FileSize   *int64   `json:"filesize,omitempty"`
	TBR        *float64 `json:"tbr,omitempty"` // kbit/s
	Language   *string  `json:"language,omitempty"`
}

// IsVideoOnly reports a present video codec paired with no audio
func (f FormatVariant) IsVideoOnly() bool {
	return hasCodec(f.VCodec) && f.ACodec != nil && *f.ACodec == NoCodec
}

// IsAudioOnly reports a present audio codec paired with no video
func (f FormatVariant) IsAudioOnly() bool {
	return hasCodec(f.ACodec) && f.VCodec != nil && *f.VCodec == NoCodec
}

// Dimensions parses the resolution; malformed or absent values yield (0, 0)
func (f FormatVariant) Dimensions() (width, height int) {
	if f.Resolution == nil {
		return 0, 0
	}
	parts := strings.Split(*f.Resolution, "x")
	if len(parts) != 2 {
		return 0, 0
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil {
		return 0, 0
	}
	return w, h
}

// Height is the parsed vertical resolution
func (f FormatVariant) Height() int {
	_, h := f.Dimensions()
	return h
}

// Bitrate returns tbr, zero when absent
func (f FormatVariant) Bitrate() float64 {
	if f.TBR == nil {
		return 0
	}
	return *f.TBR
}

// Size returns the file size, zero when absent
func (f FormatVariant) Size() int64 {
	if f.FileSize == nil {
		return 0
	}
	return *f.FileSize
}

// PrettyCodec is the human name of the video codec
func (f FormatVariant) PrettyCodec() string {
	if !hasCodec(f.VCodec) {
		return "N/A"
	}
	codec := *f.VCodec
	switch {
	case strings.HasPrefix(codec, "avc1"):
		return "H.264"
	case strings.HasPrefix(codec, "vp09"), strings.HasPrefix(codec, "vp9"):
		return "VP9"
	case strings.HasPrefix(codec, "av01"):
		return "AV1"
	case strings.HasPrefix(codec, "hev1"), strings.HasPrefix(codec, "hvc1"):
		return "H.265 (HEVC)"
	}
	return strings.ToUpper(codec)
}

// PrettyAudioCodec is the human name of the audio codec, or the container
// extension when there is none
func (f FormatVariant) PrettyAudioCodec() string {
	if !hasCodec(f.ACodec) {
		return strings.ToUpper(f.Ext)
	}
	codec := *f.ACodec
	switch {
	case strings.HasPrefix(codec, "mp4a"):
		return "AAC"
	case strings.HasPrefix(codec, "opus"):
		return "Opus"
	}
	return strings.ToUpper(codec)
}

// DetailedDisplayName labels a video variant, e.g. "1920x1080 - H.264 - 4500 kbps"
func (f FormatVariant) DetailedDisplayName() string {
	var parts []string

	if f.Resolution != nil && *f.Resolution != "audio only" {
		parts = append(parts, *f.Resolution)
	} else if f.FormatNote != nil {
		parts = append(parts, *f.FormatNote)
	}

	parts = append(parts, f.PrettyCodec())

	switch {
	case f.Bitrate() > 0:
		parts = append(parts, formatKbps(f.Bitrate()))
	case f.FileSize != nil:
		parts = append(parts, FormatFileSize(*f.FileSize))
	default:
		parts = append(parts, strings.ToUpper(f.Ext))
	}

	return strings.Join(parts, " - ")
}

var noteReplacer = strings.NewReplacer(
	"American English - ", "",
	"original, ", "",
	"(default)", "",
)

// AudioDisplayName labels an audio variant, e.g. "English - 129 kbps - AAC - 3.4 MB"
func (f FormatVariant) AudioDisplayName() string {
	var parts []string
	note := ""
	if f.FormatNote != nil {
		note = *f.FormatNote
	}

	if name, ok := languageName(f.Language); ok {
		parts = append(parts, name)
	} else if strings.Contains(note, "dubbed-auto") || strings.Contains(note, "original") {
		lang, _, _ := strings.Cut(note, " - ")
		if lang != "" {
			parts = append(parts, lang)
		}
	}

	if f.Bitrate() > 0 {
		parts = append(parts, formatKbps(f.Bitrate()))
	} else if f.FormatNote != nil && !slices.Contains(parts, note) {
		quality := strings.TrimSpace(noteReplacer.Replace(note))
		if quality != "" && quality != note {
			parts = append(parts, cases.Title(language.Und).String(quality))
		}
	}

	parts = append(parts, f.PrettyAudioCodec())

	if f.FileSize != nil {
		parts = append(parts, FormatFileSize(*f.FileSize))
	}

	if len(parts) <= 2 && (slices.Contains(parts, "AAC") || slices.Contains(parts, "Opus")) && f.Bitrate() > 0 {
		return formatKbps(f.Bitrate()) + " - " + parts[len(parts)-1]
	}

	return strings.Join(parts, " - ")
}

// NormalizedAudioCodec is the codec label used to group equivalent audio encodes
func (f FormatVariant) NormalizedAudioCodec() string {
	return f.PrettyAudioCodec()
}

func languageName(code *string) (string, bool) {
	if code == nil || *code == "" {
		return "", false
	}
	tag, err := language.Parse(*code)
	if err != nil {
		return "", false
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return "", false
	}
	return name, true
}

func hasCodec(codec *string) bool {
	return codec != nil && *codec != "" && *codec != NoCodec
}

func formatKbps(v float64) string {
	return fmt.Sprintf("%.0f kbps", v)
}

// FormatFileSize renders a byte count with decimal units
func FormatFileSize(bytes int64) string {
	const (
		KB = 1000
		MB = KB * 1000
		GB = MB * 1000
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%d KB", bytes/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
