package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nitrodl/nitro-downloader/internal/domain"
)

// Homebrew implements domain.PackageManager
type Homebrew struct {
	probePaths []string
	bootstrap  string
}

// NewHomebrew creates a Homebrew locator probing paths in order. Empty
// arguments select the standard locations and installer.
func NewHomebrew(probePaths []string, bootstrapCommand string) *Homebrew {
	if len(probePaths) == 0 {
		probePaths = domain.DefaultProbePaths
	}
	if strings.TrimSpace(bootstrapCommand) == "" {
		bootstrapCommand = domain.DefaultBootstrapCommand
	}
	return &Homebrew{
		probePaths: append([]string(nil), probePaths...),
		bootstrap:  bootstrapCommand,
	}
}

// Name returns the display name
func (h *Homebrew) Name() string {
	return "Homebrew"
}

// Locate returns the first probe path holding an executable file
func (h *Homebrew) Locate() (string, bool) {
	for _, path := range h.probePaths {
		if isExecutableFile(expandPath(path)) {
			return expandPath(path), true
		}
	}
	return "", false
}

// Prefix strips the trailing /bin/brew from a brew path
func (h *Homebrew) Prefix(path string) string {
	return strings.TrimSuffix(path, "/bin/brew")
}

// ToolPath returns <prefix>/bin/<executable> for spec
func (h *Homebrew) ToolPath(brewPath string, spec domain.ToolSpec) string {
	return h.Prefix(brewPath) + "/bin/" + spec.Executable()
}

// InstallCommand builds `brew install [--cask] <package>`
func (h *Homebrew) InstallCommand(brewPath string, spec domain.ToolSpec) domain.Command {
	args := []string{"install"}
	if spec.IsCask {
		args = append(args, "--cask")
	}
	args = append(args, spec.Package)
	return domain.ExecCommand(brewPath, args...)
}

// BootstrapCommand returns the Homebrew installer one-liner, run without
// prompts
func (h *Homebrew) BootstrapCommand() domain.Command {
	cmd := domain.ShellCommand(h.bootstrap)
	cmd.Env = []string{"NONINTERACTIVE=1"}
	return cmd
}

// FailureHint implements domain.PackageManager
func (h *Homebrew) FailureHint(spec domain.ToolSpec, log []string) string {
	return InstallFailureHint(spec, log)
}

// install output fragments mapped to a hint appended to the failure reason
var installConflictHints = []struct {
	fragment string
	hint     string
}{
	{"already a binary at", "Another copy is already installed outside Homebrew; remove it or run `brew link --overwrite %s`."},
	{"cannot override non-directory", "A stale file blocks Homebrew's link step; run `brew doctor` and retry."},
}

// InstallFailureHint inspects an install log for known Homebrew conflicts
// and returns advice for the user, or "" when nothing matched
func InstallFailureHint(spec domain.ToolSpec, log []string) string {
	full := strings.ToLower(strings.Join(log, "\n"))
	for _, h := range installConflictHints {
		if strings.Contains(full, h.fragment) {
			if strings.Contains(h.hint, "%s") {
				return fmt.Sprintf(h.hint, spec.Package)
			}
			return h.hint
		}
	}
	return ""
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

// expandPath expands a leading ~ and environment variables
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
