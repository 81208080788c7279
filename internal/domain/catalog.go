package domain

import (
	"regexp"
	"strings"
)

// Tool names used across the application
const (
	ToolYtDlp   = "YT-DLP"
	ToolAria2   = "Aria2c"
	ToolFFmpeg  = "FFmpeg"
	ToolVLC     = "VLC"
	ToolHTTrack = "HTTrack"
	ToolLftp    = "Lftp"
)

// DefaultCatalog returns the required tools in provisioning order
func DefaultCatalog() []ToolSpec {
	return []ToolSpec{
		{
			Name:         ToolYtDlp,
			Description:  "The core engine powering all media retrieval. Downloads single videos, playlists, audio-only tracks and thumbnails from hundreds of sites.",
			Package:      "yt-dlp",
			ParseVersion: parseTrimmedVersion,
		},
		{
			Name:         ToolAria2,
			Description:  "Universal download engine enabling fast, resumable downloads over parallel connections.",
			Package:      "aria2",
			Command:      "aria2c",
			ParseVersion: parseAria2Version,
		},
		{
			Name:         ToolFFmpeg,
			Description:  "Merges video and audio and converts formats. Ships ffprobe for metadata and ffplay for playback.",
			Package:      "ffmpeg",
			VersionFlag:  "-version",
			ParseVersion: parseTokenAfterVersion,
		},
		{
			Name:         ToolVLC,
			Description:  "Media player that plays nearly any file and can stream from web sources without downloading first.",
			Package:      "vlc",
			IsCask:       true,
			ParseVersion: parseFirstSemver,
		},
		{
			Name:         ToolHTTrack,
			Description:  "Website copier for offline browsing. Best suited to static HTML sites.",
			Package:      "httrack",
			ParseVersion: parseTokenAfterVersion,
		},
		{
			Name:         ToolLftp,
			Description:  "FTP and SFTP engine for single files, folders and directory mirroring.",
			Package:      "lftp",
			VersionFlag:  "--version",
			ParseVersion: parseLftpVersion,
		},
	}
}

// FindTool returns the ToolSpec called name from catalog
func FindTool(catalog []ToolSpec, name string) (ToolSpec, bool) {
	for _, spec := range catalog {
		if strings.EqualFold(spec.Name, name) || spec.Package == name || spec.Executable() == name {
			return spec, true
		}
	}
	return ToolSpec{}, false
}

// "2025.06.30"
func parseTrimmedVersion(output string) (string, bool) {
	v := strings.TrimSpace(output)
	return v, v != ""
}

// "aria2 version 1.37.0" somewhere in a multi-line banner
func parseAria2Version(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "aria2 version") {
			continue
		}
		fields := strings.Fields(line)
		return fields[len(fields)-1], true
	}
	return "", false
}

// "ffmpeg version 7.1.1 Copyright ..." / "HTTrack version 3.49-2"
func parseTokenAfterVersion(output string) (string, bool) {
	fields := strings.Fields(output)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return "", false
}

var semverToken = regexp.MustCompile(`\d+\.\d+\.\d+`)

// "VLC media player 3.0.21 Vetinari ..."
func parseFirstSemver(output string) (string, bool) {
	for _, f := range strings.Fields(output) {
		if semverToken.MatchString(f) {
			return f, true
		}
	}
	return "", false
}

// "LFTP | Version 4.9.3 | Copyright ..." on the first line only
func parseLftpVersion(output string) (string, bool) {
	first, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(first)
	for i, f := range fields {
		if f == "Version" && i+1 < len(fields) {
			return fields[i+1], true
		}
	}
	return "", false
}
