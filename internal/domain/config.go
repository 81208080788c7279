package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Tools        ToolsConfig        `mapstructure:"tools" yaml:"tools"`
	Media        MediaConfig        `mapstructure:"media" yaml:"media"`
	Download     DownloadConfig     `mapstructure:"download" yaml:"download"`
	Queue        QueueConfig        `mapstructure:"queue" yaml:"queue"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// ToolsConfig controls external tool discovery and provisioning
type ToolsConfig struct {
	ProbePaths       []string `mapstructure:"probe_paths" yaml:"probe_paths"`             // package manager locations, in priority order
	BootstrapCommand string   `mapstructure:"bootstrap_command" yaml:"bootstrap_command"` // package manager self-install one-liner
	Shell            string   `mapstructure:"shell" yaml:"shell"`                         // shell used for one-liners
	YtDlpPath        string   `mapstructure:"ytdlp_path" yaml:"ytdlp_path"`               // empty means resolve at startup
	AutoCheckOnStart bool     `mapstructure:"auto_check_on_start" yaml:"auto_check_on_start"`
}

// MediaConfig contains metadata and format defaults
type MediaConfig struct {
	CookieFile   string        `mapstructure:"cookie_file" yaml:"cookie_file"`
	DefaultRemux string        `mapstructure:"default_remux" yaml:"default_remux"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir" yaml:"base_dir"`
	LogsDir          string        `mapstructure:"logs_dir" yaml:"logs_dir"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ConcurrentLimit  int           `mapstructure:"concurrent_limit" yaml:"concurrent_limit"`
	AutoStartWorkers bool          `mapstructure:"auto_start_workers" yaml:"auto_start_workers"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	CheckInterval   time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	AutoExitOnEmpty bool          `mapstructure:"auto_exit_on_empty" yaml:"auto_exit_on_empty"`
	EmptyWaitTime   time.Duration `mapstructure:"empty_wait_time" yaml:"empty_wait_time"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Sound   bool   `mapstructure:"sound" yaml:"sound"`
	Method  string `mapstructure:"method" yaml:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json, console
	OutputPath string `mapstructure:"output_path" yaml:"output_path"` // stdout, stderr, discard, or file path
}

// Homebrew locations probed in order
var DefaultProbePaths = []string{
	"/opt/homebrew/bin/brew",
	"/usr/local/bin/brew",
	"/home/linuxbrew/.linuxbrew/bin/brew",
}

// DefaultBootstrapCommand installs Homebrew itself
const DefaultBootstrapCommand = `/bin/bash -c "$(curl -fsSL https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh)"`

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Tools: ToolsConfig{
			ProbePaths:       append([]string(nil), DefaultProbePaths...),
			BootstrapCommand: DefaultBootstrapCommand,
			Shell:            "/bin/zsh",
			YtDlpPath:        "",
			AutoCheckOnStart: true,
		},
		Media: MediaConfig{
			CookieFile:   "",
			DefaultRemux: DefaultRemuxContainer,
			CacheTTL:     30 * time.Minute,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/Downloads/Nitro",
			LogsDir:          "$HOME/.nitro/logs",
			MaxRetries:       3,
			RetryDelay:       30 * time.Second,
			ConcurrentLimit:  1,
			AutoStartWorkers: true,
		},
		Queue: QueueConfig{
			DatabasePath:    "$HOME/.nitro/nitro.db",
			CheckInterval:   10 * time.Second,
			AutoExitOnEmpty: false,
			EmptyWaitTime:   5 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
