package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Order(t *testing.T) {
	catalog := DefaultCatalog()

	names := make([]string, 0, len(catalog))
	for _, spec := range catalog {
		names = append(names, spec.Name)
		assert.NotEmpty(t, spec.Description)
		assert.NotNil(t, spec.ParseVersion, spec.Name)
	}
	assert.Equal(t, []string{ToolYtDlp, ToolAria2, ToolFFmpeg, ToolVLC, ToolHTTrack, ToolLftp}, names)
}

func TestToolSpec_ExecutableAndFlag(t *testing.T) {
	aria, ok := FindTool(DefaultCatalog(), ToolAria2)
	require.True(t, ok)
	assert.Equal(t, "aria2c", aria.Executable())
	assert.Equal(t, "--version", aria.Flag())

	ffmpeg, ok := FindTool(DefaultCatalog(), "ffmpeg")
	require.True(t, ok)
	assert.Equal(t, "ffmpeg", ffmpeg.Executable())
	assert.Equal(t, "-version", ffmpeg.Flag())

	vlc, ok := FindTool(DefaultCatalog(), "vlc")
	require.True(t, ok)
	assert.True(t, vlc.IsCask)

	_, ok = FindTool(DefaultCatalog(), "wget")
	assert.False(t, ok)
}

func TestToolSpec_NilParser(t *testing.T) {
	spec := ToolSpec{Name: "bare", Package: "bare"}

	v, ok := spec.Version("bare 1.0.0")
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.Equal(t, DefaultVersionFlag, spec.Flag())
}

func TestVersionParsers(t *testing.T) {
	tests := []struct {
		tool   string
		output string
		want   string
		wantOK bool
	}{
		{ToolYtDlp, "2025.06.30\n", "2025.06.30", true},
		{ToolYtDlp, "   \n", "", false},
		{ToolAria2, "aria2 version 1.37.0\nCopyright (C) 2006, 2019 Tatsuhiro Tsujikawa\n", "1.37.0", true},
		{ToolAria2, "some other banner\n", "", false},
		{ToolFFmpeg, "ffmpeg version 7.1.1 Copyright (c) 2000-2025 the FFmpeg developers\nbuilt with Apple clang", "7.1.1", true},
		{ToolFFmpeg, "ffmpeg", "", false},
		{ToolVLC, "VLC media player 3.0.21 Vetinari (revision 3.0.21-0-gdd8bfdbabe8)\n", "3.0.21", true},
		{ToolVLC, "VLC media player\n", "", false},
		{ToolHTTrack, "HTTrack version 3.49-2\n", "3.49-2", true},
		{ToolHTTrack, "HTTrack version", "", false},
		{ToolLftp, "LFTP | Version 4.9.3 | Copyright (c) 1996-2024 Alexander V. Lukyanov\n", "4.9.3", true},
		{ToolLftp, "LFTP\nVersion 4.9.3\n", "", false},
	}

	catalog := DefaultCatalog()
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.want, func(t *testing.T) {
			spec, ok := FindTool(catalog, tt.tool)
			require.True(t, ok)

			got, ok := spec.Version(tt.output)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolStatus(t *testing.T) {
	assert.False(t, Status(ToolChecking).IsTerminal())
	assert.False(t, Status(ToolInstalling).IsTerminal())
	assert.True(t, Status(ToolInstalled).IsTerminal())

	failed := Failed("boom")
	assert.True(t, failed.IsTerminal())
	assert.Equal(t, "failed: boom", failed.String())
	assert.Equal(t, "installed", Status(ToolInstalled).String())
}

func TestToolState_CloneIsDeep(t *testing.T) {
	state := ToolState{Name: "x", Log: []string{"a"}}
	clone := state.Clone()

	clone.Log[0] = "b"
	assert.Equal(t, "a", state.Log[0])
}
