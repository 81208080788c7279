package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"go.uber.org/zap"
)

const notificationTimeout = 5 * time.Second

// NotificationService sends desktop notifications through osascript or
// notify-send
type NotificationService struct {
	config *domain.NotificationConfig
	runner domain.ProcessRunner
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, runner domain.ProcessRunner, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n == nil || n.config == nil || !n.config.Enabled {
		return nil
	}

	cmd, ok := n.command(title, message)
	if !ok {
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	if _, err := n.runner.RunBuffered(ctx, cmd); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

func (n *NotificationService) command(title, message string) (domain.Command, bool) {
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		return domain.ExecCommand("osascript", "-e", script), true
	case "notify-send":
		return domain.ExecCommand("notify-send", "--app-name=Nitro", title, message), true
	default:
		return domain.Command{}, false
	}
}

// NotifyToolInstalled sends notification when provisioning installed a tool
func (n *NotificationService) NotifyToolInstalled(tool, version string) {
	n.Send("Tool Installed", fmt.Sprintf("%s %s is ready", tool, version))
}

// NotifyToolFailed sends notification when a tool ended a run failed
func (n *NotificationService) NotifyToolFailed(tool, reason string) {
	n.Send("Tool Setup Failed", fmt.Sprintf("%s: %s", tool, truncateString(reason, 60)))
}

// NotifyProvisioningFinished summarizes a provisioning run
func (n *NotificationService) NotifyProvisioningFinished(installed, failed int) {
	if failed == 0 {
		n.Send("Tools Ready", fmt.Sprintf("All %d tools are installed", installed))
		return
	}
	n.Send("Tools Need Attention", fmt.Sprintf("%d installed, %d failed", installed, failed))
}

// NotifyDownloadQueued sends notification when download is queued
func (n *NotificationService) NotifyDownloadQueued(title string) {
	n.Send("Download Queued", "Added to queue: "+truncateString(title, 40))
}

// NotifyDownloadCompleted sends notification when download completes
func (n *NotificationService) NotifyDownloadCompleted(title string) {
	n.Send("Download Completed", "Finished: "+truncateString(title, 40))
}

// NotifyDownloadFailed sends notification when download fails
func (n *NotificationService) NotifyDownloadFailed(title string, err error) {
	n.Send("Download Failed", fmt.Sprintf("%s: %s", truncateString(title, 30), truncateString(err.Error(), 40)))
}

// NotifyQueueEmpty sends notification when queue is empty
func (n *NotificationService) NotifyQueueEmpty() {
	n.Send("Queue Empty", "All downloads completed")
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// truncateString truncates a string to maxLen runes
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
