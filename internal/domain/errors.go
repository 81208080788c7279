package domain

import (
	"errors"
	"fmt"
)

// StreamedFailureDetail is the detail carried by a failed streaming run;
// the actual output was already delivered line by line.
const StreamedFailureDetail = "see streamed log"

// ToolNotFoundError is returned when an expected executable is absent
type ToolNotFoundError struct {
	Path string
}

func (e *ToolNotFoundError) Error() string {
	if e.Path == "" {
		return "executable not found"
	}
	return fmt.Sprintf("executable not found at %s", e.Path)
}

// ProcessFailedError is returned when a process ran but exited non-zero
type ProcessFailedError struct {
	ExitCode int
	Detail   string
}

func (e *ProcessFailedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("command failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Detail)
}

// DecodeFailedError is returned when output is present but not in the expected shape
type DecodeFailedError struct {
	Cause error
}

func (e *DecodeFailedError) Error() string {
	return fmt.Sprintf("failed to decode output: %v", e.Cause)
}

func (e *DecodeFailedError) Unwrap() error {
	return e.Cause
}

// ProvisioningFailedError describes a tool that ended its run in the failed state
type ProvisioningFailedError struct {
	Tool   string
	Reason string
}

func (e *ProvisioningFailedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
}

// IsToolNotFound reports whether err is or wraps a *ToolNotFoundError
func IsToolNotFound(err error) bool {
	var target *ToolNotFoundError
	return errors.As(err, &target)
}

// IsProvisioningFailed reports whether err is or wraps a *ProvisioningFailedError
func IsProvisioningFailed(err error) bool {
	var target *ProvisioningFailedError
	return errors.As(err, &target)
}

// IsProcessFailed reports whether err is or wraps a *ProcessFailedError
func IsProcessFailed(err error) bool {
	var target *ProcessFailedError
	return errors.As(err, &target)
}

// IsDecodeFailed reports whether err is or wraps a *DecodeFailedError
func IsDecodeFailed(err error) bool {
	var target *DecodeFailedError
	return errors.As(err, &target)
}
