package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != "1" {
		t.Errorf("Version = %s, want 1", cfg.Version)
	}
	if cfg.Paths.PromptsDir != ".chain/prompts" {
		t.Errorf("PromptsDir = %s, want .chain/prompts", cfg.Paths.PromptsDir)
	}
	if cfg.Executor.SendRetries != 3 {
		t.Errorf("SendRetries = %d, want 3", cfg.Executor.SendRetries)
	}
	if cfg.Executor.SendRetryDelay != 300*time.Millisecond {
		t.Errorf("SendRetryDelay = %v, want 300ms", cfg.Executor.SendRetryDelay)
	}
	if cfg.Executor.ResponseTimeout != 5*time.Minute {
		t.Errorf("ResponseTimeout = %v, want 5m", cfg.Executor.ResponseTimeout)
	}
	if cfg.Host.Kind != HostBridge {
		t.Errorf("Host.Kind = %s, want bridge", cfg.Host.Kind)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
version = "2"

[paths]
prompts_dir = "custom/prompts"

[executor]
send_retries = 5
send_retry_delay = "1s"
response_timeout = "90s"

[host]
kind = "tmux"

[tmux]
session = "claude"
poll_interval = "100ms"

[logging]
level = "debug"
format = "text"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Version != "2" {
		t.Errorf("Version = %s, want 2", cfg.Version)
	}
	if cfg.Paths.PromptsDir != "custom/prompts" {
		t.Errorf("PromptsDir = %s, want custom/prompts", cfg.Paths.PromptsDir)
	}
	if cfg.Paths.HistoryDB != ".chain/history.db" {
		t.Errorf("HistoryDB should keep default, got %s", cfg.Paths.HistoryDB)
	}
	if cfg.Executor.SendRetries != 5 {
		t.Errorf("SendRetries = %d, want 5", cfg.Executor.SendRetries)
	}
	if cfg.Executor.SendRetryDelay != time.Second {
		t.Errorf("SendRetryDelay = %v, want 1s", cfg.Executor.SendRetryDelay)
	}
	if cfg.Executor.ResponseTimeout != 90*time.Second {
		t.Errorf("ResponseTimeout = %v, want 90s", cfg.Executor.ResponseTimeout)
	}
	if cfg.Host.Kind != HostTmux {
		t.Errorf("Host.Kind = %s, want tmux", cfg.Host.Kind)
	}
	if cfg.Tmux.Session != "claude" {
		t.Errorf("Tmux.Session = %s, want claude", cfg.Tmux.Session)
	}
	if cfg.Tmux.BusyPattern != "esc to interrupt" {
		t.Errorf("Tmux.BusyPattern should keep default, got %q", cfg.Tmux.BusyPattern)
	}
	if cfg.Logging.Level != LogLevelDebug {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load should fall back to defaults, got: %v", err)
	}
	if cfg.Executor.SendRetries != 3 {
		t.Errorf("expected defaults, got SendRetries = %d", cfg.Executor.SendRetries)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("version = \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir_ProjectOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	if err := os.MkdirAll(filepath.Join(dir, ".chain"), 0755); err != nil {
		t.Fatal(err)
	}
	content := "[bridge]\nlisten_addr = \"127.0.0.1:9999\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".chain", "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.Bridge.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %s, want 127.0.0.1:9999", cfg.Bridge.ListenAddr)
	}
	if cfg.Bridge.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout should keep default, got %v", cfg.Bridge.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
		code    string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version", chainerr.CodeConfigMissingField},
		{"missing prompts dir", func(c *Config) { c.Paths.PromptsDir = "" }, "prompts_dir", chainerr.CodeConfigMissingField},
		{"negative retries", func(c *Config) { c.Executor.SendRetries = -1 }, "send_retries", chainerr.CodeConfigInvalidValue},
		{"zero timeout", func(c *Config) { c.Executor.ResponseTimeout = 0 }, "response_timeout", chainerr.CodeConfigInvalidValue},
		{"unknown host", func(c *Config) { c.Host.Kind = "dom" }, "host.kind", chainerr.CodeConfigInvalidValue},
		{"tmux without poll", func(c *Config) {
			c.Host.Kind = HostTmux
			c.Tmux.PollInterval = 0
		}, "poll_interval", chainerr.CodeConfigInvalidValue},
		{"origin without scheme", func(c *Config) {
			c.Bridge.AllowedOrigins = []string{"chat.example.com"}
		}, "allowed_origins", chainerr.CodeConfigInvalidValue},
		{"origin with path", func(c *Config) {
			c.Bridge.AllowedOrigins = []string{"https://chat.example.com/c/1"}
		}, "allowed_origins", chainerr.CodeConfigInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
			if !chainerr.HasCode(err, tt.code) {
				t.Errorf("error code = %q, want %s", chainerr.Code(err), tt.code)
			}
		})
	}
}

func TestValidate_AllowedOrigins(t *testing.T) {
	cfg := Default()
	cfg.Bridge.AllowedOrigins = []string{"*", "https://chat.example.com", "http://localhost:3000", "chrome-extension://abcdef/"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.PromptsDir("/work"); got != "/work/.chain/prompts" {
		t.Errorf("PromptsDir = %s", got)
	}
	cfg.Paths.HistoryDB = "/var/lib/chain.db"
	if got := cfg.HistoryDB("/work"); got != "/var/lib/chain.db" {
		t.Errorf("absolute HistoryDB should be kept, got %s", got)
	}
}

func TestTemplate_Decodes(t *testing.T) {
	cfg := Default()
	if _, err := toml.Decode(Template, cfg); err != nil {
		t.Fatalf("init template does not decode: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("init template should validate: %v", err)
	}
}
