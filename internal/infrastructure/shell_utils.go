package infrastructure

import (
	"strings"

	"github.com/nitrodl/nitro-downloader/internal/domain"
)

// QuoteArg quotes s for display in a logged command line. Arguments without
// shell metacharacters are returned unchanged.
func QuoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, isShellMeta) {
		return s
	}
	// close the quote, emit a double-quoted ', reopen
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// JoinArgs renders an argv as a single quoted command line
func JoinArgs(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, QuoteArg(binary))
	for _, arg := range args {
		parts = append(parts, QuoteArg(arg))
	}
	return strings.Join(parts, " ")
}

// FormatCommandLine renders cmd the way it will be executed. Shell one-liners
// are shown as `<shell> -c '<line>'`.
func FormatCommandLine(shell string, cmd domain.Command) string {
	if cmd.IsShell() {
		return JoinArgs(shell, "-c", cmd.Shell)
	}
	return JoinArgs(cmd.Path, cmd.Args...)
}

func isShellMeta(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\'', '"', '`', '\\', '$', '!', '*', '?',
		'[', ']', '(', ')', '{', '}', '|', '&', ';', '<', '>', '~', '#', '%':
		return true
	}
	return false
}
