package domain

import (
	"context"
	"strings"
)

// Command describes one external process invocation. Either Shell is set
// (a one-liner executed through the shell) or Path/Args form a direct argv.
type Command struct {
	Shell string
	Path  string
	Args  []string
	Dir   string
	Env   []string
}

// ShellCommand builds a command executed as `<shell> -c line`
func ShellCommand(line string) Command {
	return Command{Shell: line}
}

// ExecCommand builds a direct argv invocation
func ExecCommand(path string, args ...string) Command {
	return Command{Path: path, Args: args}
}

// IsShell reports whether the command is a shell one-liner
func (c Command) IsShell() bool {
	return strings.TrimSpace(c.Shell) != ""
}

// ProcessResult holds the captured output of a buffered run
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// LineHandler receives one trimmed, non-empty output line
type LineHandler func(line string)

// ProcessRunner executes external commands
type ProcessRunner interface {
	// RunBuffered blocks until the process exits and returns all captured
	// output. A non-zero exit yields a *ProcessFailedError alongside the result.
	RunBuffered(ctx context.Context, cmd Command) (ProcessResult, error)

	// RunStreaming delivers output line by line while the process runs.
	// Callbacks are never invoked concurrently with each other.
	RunStreaming(ctx context.Context, cmd Command, onStdout, onStderr LineHandler) error
}
