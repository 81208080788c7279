package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDumpJSON = `{
  "id": "dQw4w9WgXcQ",
  "title": "Never Gonna Give You Up",
  "fulltitle": "Never Gonna Give You Up (Official Video)",
  "duration": 213,
  "duration_string": "3:33",
  "channel": "Rick Astley",
  "view_count": 1500000000,
  "upload_date": "20091025",
  "is_live": false,
  "extractor": "youtube",
  "requested_formats": null,
  "formats": [
    {"format_id": "sb0", "ext": "mhtml", "resolution": "48x27", "vcodec": "none", "acodec": "none", "format_note": "storyboard"},
    {"format_id": "140", "ext": "m4a", "resolution": "audio only", "vcodec": "none", "acodec": "mp4a.40.2", "tbr": 129.5, "filesize": 3449447, "language": "en"},
    {"format_id": "137", "ext": "mp4", "resolution": "1920x1080", "vcodec": "avc1.640028", "acodec": "none", "tbr": 4400.1, "filesize": null},
    {"format_id": "18", "ext": "mp4", "resolution": "640x360", "vcodec": "avc1.42001E", "acodec": "mp4a.40.2", "tbr": 500}
  ]
}`

func fakeYtDlp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	writeExecutable(t, path, body)
	return path
}

func TestDecodeMetadata(t *testing.T) {
	metadata, err := DecodeMetadata([]byte(sampleDumpJSON))
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", metadata.ID)
	assert.Equal(t, "Never Gonna Give You Up (Official Video)", metadata.DisplayTitle())
	assert.Equal(t, "3:33", metadata.FormattedDuration())
	require.NotNil(t, metadata.ViewCount)
	assert.Equal(t, int64(1500000000), *metadata.ViewCount)
	require.Len(t, metadata.Formats, 4)
	assert.Nil(t, metadata.Formats[2].FileSize)
	assert.True(t, metadata.Formats[2].IsVideoOnly())
	assert.True(t, metadata.Formats[1].IsAudioOnly())
	assert.Nil(t, metadata.Description)
}

func TestDecodeMetadata_EmptyFormats(t *testing.T) {
	metadata, err := DecodeMetadata([]byte(`{"id":"x","title":"t","formats":[]}`))
	require.NoError(t, err)
	assert.Empty(t, metadata.Formats)
}

func TestDecodeMetadata_Failures(t *testing.T) {
	for _, input := range []string{"", "not json", `{"title": "no id"}`, `{"id": 5}`} {
		_, err := DecodeMetadata([]byte(input))
		assert.True(t, domain.IsDecodeFailed(err), "input %q", input)
	}
}

func TestEncodeMetadata_RoundTrip(t *testing.T) {
	metadata, err := DecodeMetadata([]byte(sampleDumpJSON))
	require.NoError(t, err)

	payload, err := EncodeMetadata(metadata)
	require.NoError(t, err)

	decoded, err := DecodeMetadata([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, metadata, decoded)
}

func TestYtDlpFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "dump.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleDumpJSON), 0644))
	argsPath := filepath.Join(dir, "args")

	binary := fakeYtDlp(t, `echo "$@" > `+argsPath+`; cat `+jsonPath)
	fetcher := NewYtDlpFetcher(binary, "", newTestRunner(), nil)

	metadata, err := fetcher.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", metadata.Title)

	args, err := os.ReadFile(argsPath)
	require.NoError(t, err)
	assert.Equal(t, "--dump-json https://www.youtube.com/watch?v=dQw4w9WgXcQ\n", string(args))
}

func TestYtDlpFetcher_Args(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File"), 0600))

	withCookies := NewYtDlpFetcher("/bin/yt-dlp", cookies, nil, nil)
	assert.Equal(t, []string{"--cookies", cookies, "--dump-json", "u"}, withCookies.Args("u"))

	missingCookies := NewYtDlpFetcher("/bin/yt-dlp", "/nope/cookies.txt", nil, nil)
	assert.Equal(t, []string{"--dump-json", "u"}, missingCookies.Args("u"))
}

func TestYtDlpFetcher_ToolNotFound(t *testing.T) {
	fetcher := NewYtDlpFetcher(filepath.Join(t.TempDir(), "yt-dlp"), "", newTestRunner(), nil)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	assert.True(t, domain.IsToolNotFound(err))

	_, err = NewYtDlpFetcher("", "", newTestRunner(), nil).Fetch(context.Background(), "https://example.com/v")
	assert.True(t, domain.IsToolNotFound(err))
}

func TestYtDlpFetcher_ProcessFailed(t *testing.T) {
	binary := fakeYtDlp(t, `echo "ERROR: Unsupported URL" >&2; exit 1`)
	fetcher := NewYtDlpFetcher(binary, "", newTestRunner(), nil)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")

	var failed *domain.ProcessFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 1, failed.ExitCode)
	assert.Equal(t, "ERROR: Unsupported URL", failed.Detail)
}

func TestYtDlpFetcher_DecodeFailed(t *testing.T) {
	binary := fakeYtDlp(t, `echo "this is not json"`)
	fetcher := NewYtDlpFetcher(binary, "", newTestRunner(), nil)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/v")
	assert.True(t, domain.IsDecodeFailed(err))
}
