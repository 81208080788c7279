package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner captures buffered commands
type recordingRunner struct {
	mu       sync.Mutex
	commands []domain.Command
	err      error
}

func (r *recordingRunner) RunBuffered(_ context.Context, cmd domain.Command) (domain.ProcessResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return domain.ProcessResult{}, r.err
}

func (r *recordingRunner) RunStreaming(context.Context, domain.Command, domain.LineHandler, domain.LineHandler) error {
	return errors.New("not supported")
}

func TestNotificationService_Disabled(t *testing.T) {
	runner := &recordingRunner{}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: false, Method: "osascript"}, runner, nil)

	require.NoError(t, svc.Send("t", "m"))
	assert.Empty(t, runner.commands)
}

func TestNotificationService_OSAScript(t *testing.T) {
	runner := &recordingRunner{}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "osascript"}, runner, nil)

	require.NoError(t, svc.Send(`Say "hi"`, "done"))
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "osascript", runner.commands[0].Path)
	assert.Equal(t, []string{"-e", `display notification "done" with title "Say \"hi\""`}, runner.commands[0].Args)
}

func TestNotificationService_OSAScriptSound(t *testing.T) {
	runner := &recordingRunner{}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: true, Sound: true, Method: "osascript"}, runner, nil)

	svc.NotifyQueueEmpty()
	require.Len(t, runner.commands, 1)
	assert.Contains(t, runner.commands[0].Args[1], `sound name "Glass"`)
}

func TestNotificationService_NotifySend(t *testing.T) {
	runner := &recordingRunner{}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, runner, nil)

	svc.NotifyToolInstalled("ffmpeg", "7.1")
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "notify-send", runner.commands[0].Path)
	assert.Equal(t, []string{"--app-name=Nitro", "Tool Installed", "ffmpeg 7.1 is ready"}, runner.commands[0].Args)
}

func TestNotificationService_UnknownMethod(t *testing.T) {
	runner := &recordingRunner{}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "pigeon"}, runner, nil)

	require.NoError(t, svc.Send("t", "m"))
	assert.Empty(t, runner.commands)
}

func TestNotificationService_RunnerError(t *testing.T) {
	runner := &recordingRunner{err: &domain.ToolNotFoundError{Path: "notify-send"}}
	svc := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, runner, nil)

	assert.True(t, domain.IsToolNotFound(svc.Send("t", "m")))
}

func TestNotificationService_NilIsNoop(t *testing.T) {
	var svc *NotificationService
	assert.NoError(t, svc.Send("t", "m"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abc...", truncateString("abcdef", 3))
	assert.Equal(t, "héé...", truncateString("hééllo", 3))
}
