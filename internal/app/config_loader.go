package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.nitro")
		v.AddConfigPath("/etc/nitro")
	}

	// NITRO_SERVER_PORT overrides server.port
	v.SetEnvPrefix("NITRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// slices decode element by element; a configured list replaces the defaults
	if v.IsSet("tools.probe_paths") {
		config.Tools.ProbePaths = nil
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every key so AutomaticEnv applies without a config file
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"tools.probe_paths", "tools.bootstrap_command", "tools.shell", "tools.ytdlp_path", "tools.auto_check_on_start",
		"media.cookie_file", "media.default_remux", "media.cache_ttl",
		"download.base_dir", "download.logs_dir", "download.max_retries", "download.retry_delay",
		"download.concurrent_limit", "download.auto_start_workers",
		"queue.database_path", "queue.check_interval", "queue.auto_exit_on_empty", "queue.empty_wait_time",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	} {
		v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Media.CookieFile = expandPath(config.Media.CookieFile)
	config.Tools.YtDlpPath = expandPath(config.Tools.YtDlpPath)
	for i, p := range config.Tools.ProbePaths {
		config.Tools.ProbePaths[i] = expandPath(p)
	}

	switch config.Logging.OutputPath {
	case "stdout", "stderr", "discard", "":
	default:
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// $HOME first so it resolves even when the variable is unset
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.LogsDir == "" {
		return fmt.Errorf("logs directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Queue.CheckInterval <= 0 {
		return fmt.Errorf("queue check interval must be positive")
	}

	if remux := config.Media.DefaultRemux; remux != "" && remux != "none" && !domain.IsRemuxContainer(remux) {
		return fmt.Errorf("unsupported default remux container %q (supported: %s or none)",
			remux, strings.Join(domain.RemuxContainers, ", "))
	}

	if config.Media.CacheTTL < 0 {
		return fmt.Errorf("metadata cache ttl cannot be negative")
	}

	switch config.Notification.Method {
	case "osascript", "notify-send":
	default:
		if config.Notification.Enabled {
			return fmt.Errorf("unsupported notification method %q", config.Notification.Method)
		}
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server", config.Server)
	v.Set("tools", config.Tools)
	v.Set("media", config.Media)
	v.Set("download", config.Download)
	v.Set("queue", config.Queue)
	v.Set("notification", config.Notification)
	v.Set("logging", config.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
