package infrastructure

import (
	"testing"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain flag", "--dump-json", "--dump-json"},
		{"plain path", "/opt/homebrew/bin/yt-dlp", "/opt/homebrew/bin/yt-dlp"},
		{"empty", "", "''"},
		{"spaces", "/Users/me/Movies/My Clips", "'/Users/me/Movies/My Clips'"},
		{"output template", "%(title)s [%(id)s].%(ext)s", "'%(title)s [%(id)s].%(ext)s'"},
		{"query string", "https://www.youtube.com/watch?v=abc&t=10", "'https://www.youtube.com/watch?v=abc&t=10'"},
		{"single quote", "it's", `'it'"'"'s'`},
		{"dollar", "$HOME", "'$HOME'"},
		{"tilde", "~/Downloads", "'~/Downloads'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteArg(tt.input))
		})
	}
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, "yt-dlp --version", JoinArgs("yt-dlp", "--version"))
	assert.Equal(t, "'/my apps/brew' install --cask vlc", JoinArgs("/my apps/brew", "install", "--cask", "vlc"))
	assert.Equal(t, "ffmpeg", JoinArgs("ffmpeg"))
}

func TestFormatCommandLine(t *testing.T) {
	argv := domain.ExecCommand("/opt/homebrew/bin/brew", "install", "yt-dlp")
	assert.Equal(t, "/opt/homebrew/bin/brew install yt-dlp", FormatCommandLine("/bin/zsh", argv))

	shell := domain.ShellCommand(`echo "hi"`)
	assert.Equal(t, `/bin/zsh -c 'echo "hi"'`, FormatCommandLine("/bin/zsh", shell))
}

func TestIsShellMeta(t *testing.T) {
	for _, c := range " \t'\"$`\\!*?[](){}|;<>&~#%\n\r" {
		assert.True(t, isShellMeta(c), "expected %q to be a metacharacter", c)
	}
	for _, c := range "abcXYZ0189_-./:@=+," {
		assert.False(t, isShellMeta(c), "expected %q to be plain", c)
	}
}
