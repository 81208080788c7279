package domain

import (
	"math"
	"sort"
	"strings"
)

// Sentinel selections that let yt-dlp pick the stream itself
const (
	BestVideo = "bestvideo"
	BestAudio = "bestaudio"

	// BestFormatSelector is used when neither stream was chosen explicitly
	BestFormatSelector = "bestvideo+bestaudio/best"

	// OutputTemplate keeps filenames unique and free of path separators
	OutputTemplate = "%(title)s [%(id)s].%(ext)s"

	// DefaultRemuxContainer is applied unless the caller opts out
	DefaultRemuxContainer = "mp4"
)

// AudioDedupToleranceKbps is how close two rounded bitrates of the same
// language and codec must be for the lower one to count as a duplicate
const AudioDedupToleranceKbps = 5

// RemuxContainers lists the containers yt-dlp can remux into
var RemuxContainers = []string{"mp4", "mkv", "mov", "webm", "avi", "flv"}

// IsRemuxContainer reports whether ext is a supported remux target
func IsRemuxContainer(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, c := range RemuxContainers {
		if c == ext {
			return true
		}
	}
	return false
}

// ResolvedFormats holds the ranked selectable variants of one media item
type ResolvedFormats struct {
	Video []FormatVariant `json:"video"`
	Audio []FormatVariant `json:"audio"`
}

// ResolveFormats classifies and ranks the variants of m
func ResolveFormats(m *MediaMetadata) ResolvedFormats {
	return ResolvedFormats{
		Video: VideoFormats(m),
		Audio: AudioFormats(m),
	}
}

// VideoFormats returns the video-only variants ordered by height, then
// bitrate, then file size, all descending. Ties keep their input order.
func VideoFormats(m *MediaMetadata) []FormatVariant {
	if m == nil {
		return nil
	}
	var out []FormatVariant
	for _, f := range m.Formats {
		if f.IsVideoOnly() {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return videoRanksBefore(out[i], out[j])
	})
	return out
}

func videoRanksBefore(a, b FormatVariant) bool {
	if ha, hb := a.Height(), b.Height(); ha != hb {
		return ha > hb
	}
	if ba, bb := a.Bitrate(), b.Bitrate(); ba != bb {
		return ba > bb
	}
	return a.Size() > b.Size()
}

// AudioFormats returns the audio-only variants with a usable bitrate,
// highest bitrate first, keeping one representative per language, codec
// and bitrate tier.
func AudioFormats(m *MediaMetadata) []FormatVariant {
	if m == nil {
		return nil
	}
	var candidates []FormatVariant
	for _, f := range m.Formats {
		if f.IsAudioOnly() && f.Bitrate() > 0 {
			candidates = append(candidates, f)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bitrate() > candidates[j].Bitrate()
	})

	var out []FormatVariant
	var kept []audioKey
	for _, f := range candidates {
		key := audioKeyOf(f)
		if key.duplicates(kept) {
			continue
		}
		kept = append(kept, key)
		out = append(out, f)
	}
	return out
}

type audioKey struct {
	language string
	codec    string
	kbps     int
}

func audioKeyOf(f FormatVariant) audioKey {
	lang := "unknown"
	if f.Language != nil && *f.Language != "" {
		lang = *f.Language
	}
	return audioKey{
		language: lang,
		codec:    f.NormalizedAudioCodec(),
		kbps:     int(math.Round(f.Bitrate())),
	}
}

func (k audioKey) duplicates(kept []audioKey) bool {
	for _, other := range kept {
		if other.language != k.language || other.codec != k.codec {
			continue
		}
		diff := other.kbps - k.kbps
		if diff < 0 {
			diff = -diff
		}
		if diff <= AudioDedupToleranceKbps {
			return true
		}
	}
	return false
}

// Selection is the user's choice of streams and post-processing
type Selection struct {
	VideoFormatID  string `json:"video_format_id" mapstructure:"video_format_id"`
	AudioFormatID  string `json:"audio_format_id" mapstructure:"audio_format_id"`
	RemuxTo        string `json:"remux_to" mapstructure:"remux_to"`
	EmbedSubtitles bool   `json:"embed_subtitles" mapstructure:"embed_subtitles"`
	EmbedThumbnail bool   `json:"embed_thumbnail" mapstructure:"embed_thumbnail"`
	EmbedMetadata  bool   `json:"embed_metadata" mapstructure:"embed_metadata"`
	EmbedChapters  bool   `json:"embed_chapters" mapstructure:"embed_chapters"`
}

// DefaultSelection picks the best streams, remuxes to mp4 and embeds everything
func DefaultSelection() Selection {
	return Selection{
		VideoFormatID:  BestVideo,
		AudioFormatID:  BestAudio,
		RemuxTo:        DefaultRemuxContainer,
		EmbedSubtitles: true,
		EmbedThumbnail: true,
		EmbedMetadata:  true,
		EmbedChapters:  true,
	}
}

// DownloadRequest is a compiled yt-dlp invocation ready to hand off
type DownloadRequest struct {
	Args      []string `json:"args"`
	Title     string   `json:"title"`
	SourceURL string   `json:"source_url"`
}

// CompileDownloadRequest turns a selection into yt-dlp arguments. It never
// fails: empty or unknown format ids fall back to the best-available sentinels.
// When m is nil, non-empty ids are trusted as given.
func CompileDownloadRequest(m *MediaMetadata, url string, sel Selection) DownloadRequest {
	video := resolveSelectionID(m, sel.VideoFormatID, BestVideo)
	audio := resolveSelectionID(m, sel.AudioFormatID, BestAudio)

	args := []string{"-f"}
	if video == BestVideo && audio == BestAudio {
		args = append(args, BestFormatSelector)
	} else {
		args = append(args, video+"+"+audio)
	}

	if remux := strings.ToLower(strings.TrimSpace(sel.RemuxTo)); remux != "" && IsRemuxContainer(remux) {
		args = append(args, "--remux-video", remux)
	}
	if sel.EmbedSubtitles {
		args = append(args, "--embed-subs")
	}
	if sel.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if sel.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if sel.EmbedChapters {
		args = append(args, "--embed-chapters")
	}
	args = append(args, "--restrict-filenames", "-o", OutputTemplate, url)

	req := DownloadRequest{Args: args, SourceURL: url}
	if m != nil {
		req.Title = m.Title
	}
	if req.Title == "" {
		req.Title = url
	}
	return req
}

func resolveSelectionID(m *MediaMetadata, id, sentinel string) string {
	id = strings.TrimSpace(id)
	if id == "" || id == sentinel {
		return sentinel
	}
	if m == nil {
		return id
	}
	if _, ok := m.Format(id); !ok {
		return sentinel
	}
	return id
}
