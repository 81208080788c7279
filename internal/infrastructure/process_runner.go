package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

const (
	// FallbackShell is used when the configured shell is missing
	FallbackShell = "/bin/sh"

	// maxLineSize bounds a single delivered line; longer lines arrive in pieces
	maxLineSize = 1024 * 1024

	// waitDelay bounds how long Wait lingers on inherited pipes after a kill
	waitDelay = 5 * time.Second
)

// ExecRunner runs commands as OS processes
type ExecRunner struct {
	shell  string
	logger *zap.Logger
}

// NewExecRunner creates a runner executing one-liners through shell
func NewExecRunner(shell string, logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{
		shell:  resolveShell(shell),
		logger: logger,
	}
}

// Shell returns the shell used for one-liners
func (r *ExecRunner) Shell() string {
	return r.shell
}

func resolveShell(shell string) string {
	if shell != "" {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return FallbackShell
}

// RunBuffered runs cmd to completion and returns its trimmed output
func (r *ExecRunner) RunBuffered(ctx context.Context, c domain.Command) (domain.ProcessResult, error) {
	cmd, err := r.build(ctx, c)
	if err != nil {
		return domain.ProcessResult{ExitCode: -1}, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	result := domain.ProcessResult{
		ExitCode: exitCode(cmd, runErr),
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
	}

	r.logger.Debug("Process finished",
		zap.String("command", r.describe(c)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", time.Since(start)))

	if runErr != nil {
		return result, r.classify(ctx, c, runErr, result.ExitCode, result.Stderr)
	}
	return result, nil
}

type outputLine struct {
	stderr bool
	text   string
}

// RunStreaming runs cmd and delivers each non-empty output line as it
// arrives. Handlers are invoked from a single goroutine, in arrival order,
// and all of them have returned before RunStreaming does.
func (r *ExecRunner) RunStreaming(ctx context.Context, c domain.Command, onStdout, onStderr domain.LineHandler) error {
	cmd, err := r.build(ctx, c)
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		// Start was never called, so the stdout pipe is still ours to close
		stdout.Close()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return r.classify(ctx, c, err, -1, "")
	}

	lines := make(chan outputLine, 64)
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for line := range lines {
			switch {
			case line.stderr && onStderr != nil:
				onStderr(line.text)
			case !line.stderr && onStdout != nil:
				onStdout(line.text)
			}
		}
	}()

	var readers sync.WaitGroup
	readErrs := make([]error, 2)
	readers.Add(2)
	go func() {
		defer readers.Done()
		readErrs[0] = scanLines(stdout, false, lines)
	}()
	go func() {
		defer readers.Done()
		readErrs[1] = scanLines(stderr, true, lines)
	}()

	// Wait closes the pipes, so both readers must reach EOF first
	readers.Wait()
	close(lines)
	<-delivered

	waitErr := cmd.Wait()
	code := exitCode(cmd, waitErr)
	r.logger.Debug("Streamed process finished",
		zap.String("command", r.describe(c)),
		zap.Int("exit_code", code))

	if waitErr != nil {
		return r.classify(ctx, c, waitErr, code, domain.StreamedFailureDetail)
	}
	if err := errors.Join(readErrs...); err != nil {
		return fmt.Errorf("failed to read output of %s: %w", r.describe(c), err)
	}
	return nil
}

// scanLines splits r into lines. A final unterminated line is still sent and
// a line longer than maxLineSize is sent in consecutive pieces.
func scanLines(r io.Reader, stderr bool, out chan<- outputLine) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	flush := func() {
		text := strings.TrimSpace(string(line))
		line = line[:0]
		if text != "" {
			out <- outputLine{stderr: stderr, text: text}
		}
	}

	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			flush()
		case errors.Is(err, bufio.ErrBufferFull):
			if len(line) >= maxLineSize {
				flush()
			}
		case errors.Is(err, io.EOF):
			flush()
			return nil
		default:
			flush()
			// keep draining so the child never blocks on a full pipe
			io.Copy(io.Discard, r)
			return err
		}
	}
}

func (r *ExecRunner) build(ctx context.Context, c domain.Command) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	if c.IsShell() {
		cmd = exec.CommandContext(ctx, r.shell, "-c", c.Shell)
	} else {
		if c.Path == "" {
			return nil, &domain.ToolNotFoundError{}
		}
		if strings.ContainsRune(c.Path, os.PathSeparator) {
			if _, err := os.Stat(c.Path); err != nil {
				return nil, &domain.ToolNotFoundError{Path: c.Path}
			}
		}
		cmd = exec.CommandContext(ctx, c.Path, c.Args...)
	}
	if cmd.Err != nil {
		if errors.Is(cmd.Err, exec.ErrNotFound) {
			return nil, &domain.ToolNotFoundError{Path: c.Path}
		}
		return nil, fmt.Errorf("failed to prepare %s: %w", r.describe(c), cmd.Err)
	}

	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	r.logger.Debug("Running command", zap.String("command", r.describe(c)))
	return cmd, nil
}

func (r *ExecRunner) classify(ctx context.Context, c domain.Command, err error, code int, detail string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &domain.ToolNotFoundError{Path: c.Path}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", &domain.ProcessFailedError{ExitCode: code, Detail: "process killed"}, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ProcessFailedError{ExitCode: code, Detail: detail}
	}
	if code < 0 {
		return fmt.Errorf("failed to run %s: %w", r.describe(c), err)
	}
	return &domain.ProcessFailedError{ExitCode: code, Detail: detail}
}

func (r *ExecRunner) describe(c domain.Command) string {
	return FormatCommandLine(r.shell, c)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err == nil {
		return 0
	}
	return -1
}
