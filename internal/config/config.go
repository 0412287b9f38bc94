package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
)

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// HostKind selects which host editor adapter drives the chat surface.
type HostKind string

const (
	HostBridge HostKind = "bridge" // Browser page attached over websocket
	HostTmux   HostKind = "tmux"   // Terminal chat UI in a tmux session
	HostSim    HostKind = "sim"    // In-memory simulator
)

// Valid returns true if this is a recognized host kind.
func (k HostKind) Valid() bool {
	switch k {
	case HostBridge, HostTmux, HostSim:
		return true
	}
	return false
}

// PathsConfig holds path configuration.
type PathsConfig struct {
	PromptsDir string `toml:"prompts_dir"`
	HistoryDB  string `toml:"history_db"`
	LogsDir    string `toml:"logs_dir"`
}

// ExecutorConfig holds step executor tuning.
type ExecutorConfig struct {
	// SendRetries is the number of additional send attempts after the first.
	SendRetries     int           `toml:"send_retries"`
	SendRetryDelay  time.Duration `toml:"send_retry_delay"`
	ResponseTimeout time.Duration `toml:"response_timeout"`
}

// HostConfig selects the host editor.
type HostConfig struct {
	Kind HostKind `toml:"kind"`
}

// BridgeConfig holds settings for the websocket bridge.
type BridgeConfig struct {
	ListenAddr     string        `toml:"listen_addr"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// AllowedOrigins lists the browser origins that may attach a page or
	// call the HTTP API. Requests without an Origin header are always
	// accepted. "*" accepts any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// TmuxConfig holds settings for the tmux host editor.
type TmuxConfig struct {
	Session      string        `toml:"session"`
	Socket       string        `toml:"socket"`
	BusyPattern  string        `toml:"busy_pattern"`
	PollInterval time.Duration `toml:"poll_interval"`
	StopKey      string        `toml:"stop_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for promptchain.
type Config struct {
	Version  string         `toml:"version"`
	Paths    PathsConfig    `toml:"paths"`
	Executor ExecutorConfig `toml:"executor"`
	Host     HostConfig     `toml:"host"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Tmux     TmuxConfig     `toml:"tmux"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Paths: PathsConfig{
			PromptsDir: ".chain/prompts",
			HistoryDB:  ".chain/history.db",
			LogsDir:    ".chain/logs",
		},
		Executor: ExecutorConfig{
			SendRetries:     3,
			SendRetryDelay:  300 * time.Millisecond,
			ResponseTimeout: 5 * time.Minute,
		},
		Host: HostConfig{
			Kind: HostBridge,
		},
		Bridge: BridgeConfig{
			ListenAddr:     "127.0.0.1:7878",
			RequestTimeout: 10 * time.Second,
		},
		Tmux: TmuxConfig{
			Session:      "chat",
			BusyPattern:  "esc to interrupt",
			PollInterval: 250 * time.Millisecond,
			StopKey:      "Escape",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
			File:   "",
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.chain/config.toml -> <dir>/.chain/config.toml
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ".chain", "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, ".chain", "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return chainerr.ConfigMissingField("version")
	}
	if c.Paths.PromptsDir == "" {
		return chainerr.ConfigMissingField("paths.prompts_dir")
	}
	if c.Executor.SendRetries < 0 {
		return chainerr.ConfigInvalidValue("executor.send_retries", c.Executor.SendRetries, "must not be negative")
	}
	if c.Executor.SendRetryDelay < 0 {
		return chainerr.ConfigInvalidValue("executor.send_retry_delay", c.Executor.SendRetryDelay, "must not be negative")
	}
	if c.Executor.ResponseTimeout <= 0 {
		return chainerr.ConfigInvalidValue("executor.response_timeout", c.Executor.ResponseTimeout, "must be positive")
	}
	if !c.Host.Kind.Valid() {
		return chainerr.ConfigInvalidValue("host.kind", c.Host.Kind, "want bridge, tmux or sim")
	}
	if c.Host.Kind == HostTmux && c.Tmux.PollInterval <= 0 {
		return chainerr.ConfigInvalidValue("tmux.poll_interval", c.Tmux.PollInterval, "must be positive")
	}
	for _, origin := range c.Bridge.AllowedOrigins {
		if !validOrigin(origin) {
			return chainerr.ConfigInvalidValue("bridge.allowed_origins", origin, "want \"*\" or scheme://host[:port]")
		}
	}
	return nil
}

func validOrigin(origin string) bool {
	if origin == "*" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return u.Path == "" || u.Path == "/"
}

// PromptsDir returns the absolute prompts directory path.
func (c *Config) PromptsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.PromptsDir)
}

// HistoryDB returns the absolute run history database path.
func (c *Config) HistoryDB(baseDir string) string {
	return resolve(baseDir, c.Paths.HistoryDB)
}

// LogsDir returns the absolute logs directory path.
func (c *Config) LogsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.LogsDir)
}

// LogFile returns the absolute log file path.
func (c *Config) LogFile(baseDir string) string {
	return resolve(baseDir, c.Logging.File)
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Template is written by `chain init`.
const Template = `version = "1"

[paths]
prompts_dir = ".chain/prompts"
history_db = ".chain/history.db"
logs_dir = ".chain/logs"

[executor]
send_retries = 3
send_retry_delay = "300ms"
response_timeout = "5m"

[host]
# bridge | tmux | sim
kind = "bridge"

[bridge]
listen_addr = "127.0.0.1:7878"
request_timeout = "10s"
# Browser origins allowed to attach a page or call the API.
# allowed_origins = ["https://chat.example.com"]
allowed_origins = []

[tmux]
session = "chat"
busy_pattern = "esc to interrupt"
poll_interval = "250ms"
stop_key = "Escape"

[logging]
level = "info"
format = "json"
`
