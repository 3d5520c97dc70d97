package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"bb/internal/config"
	"bb/internal/runtimepaths"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("BB_LOG_LEVEL", "")
	t.Setenv("BB_DISABLE_AUTOSTART", "")
	return home
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(home, ".config", "bb", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if cfg.Client.ConnectAttempts != 30 {
		t.Fatalf("unexpected attempts: %d", cfg.Client.ConnectAttempts)
	}
	if cfg.ConnectDelay() != 100*time.Millisecond || cfg.DialTimeout() != 100*time.Millisecond {
		t.Fatalf("unexpected timing: delay=%v dial=%v", cfg.ConnectDelay(), cfg.DialTimeout())
	}
	if !cfg.Client.Autostart {
		t.Fatal("expected autostart enabled by default")
	}
	if cfg.ShutdownGrace() != 5*time.Second {
		t.Fatalf("unexpected shutdown grace: %v", cfg.ShutdownGrace())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.ClientLevel != "warn" {
		t.Fatalf("unexpected log levels: %+v", cfg.Logging)
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
runtime_dir = "~/run/bb"
socket_path = "~/custom.sock"

[client]
connect_attempts = 5
connect_delay_ms = 20
dial_timeout_ms = 50
autostart = false

[logging]
format = "JSON"
level = "Debug"
development = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got exists=%v resolved=%q", path, exists, resolved)
	}
	if cfg.Paths.RuntimeDir != filepath.Join(home, "run", "bb") {
		t.Fatalf("runtime dir not expanded: %q", cfg.Paths.RuntimeDir)
	}
	if cfg.Client.ConnectAttempts != 5 || cfg.ConnectDelay() != 20*time.Millisecond {
		t.Fatalf("client section not applied: %+v", cfg.Client)
	}
	if cfg.Client.Autostart {
		t.Fatal("expected autostart disabled from file")
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" || !cfg.Logging.Development {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}

	paths := cfg.RuntimePaths(nil)
	if paths.Dir != cfg.Paths.RuntimeDir {
		t.Fatalf("unexpected runtime dir %q", paths.Dir)
	}
	if paths.Socket != filepath.Join(home, "custom.sock") {
		t.Fatalf("socket override ignored: %q", paths.Socket)
	}
	if paths.Lock != filepath.Join(cfg.Paths.RuntimeDir, runtimepaths.LockName) {
		t.Fatalf("unexpected lock path %q", paths.Lock)
	}
}

func TestRuntimePathsFollowEnvironmentWithoutOverrides(t *testing.T) {
	isolateHome(t)
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	lookup := func(key string) (string, bool) {
		if key == "XDG_RUNTIME_DIR" {
			return "/run/user/42", true
		}
		return "", false
	}
	if got := cfg.RuntimePaths(lookup).Socket; got != "/run/user/42/bb/bb.sock" {
		t.Fatalf("unexpected socket path %q", got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("BB_LOG_LEVEL", "DEBUG")
	t.Setenv("BB_DISABLE_AUTOSTART", "1")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.ClientLevel != "debug" {
		t.Fatalf("BB_LOG_LEVEL not applied: %+v", cfg.Logging)
	}
	if cfg.Client.Autostart {
		t.Fatal("BB_DISABLE_AUTOSTART not applied")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolateHome(t)
	cases := map[string]string{
		"attempts":     "[client]\nconnect_attempts = 0\n",
		"zero delay":   "[client]\nconnect_delay_ms = 0\n",
		"dial timeout": "[client]\ndial_timeout_ms = -1\n",
		"format":       "[logging]\nformat = \"xml\"\n",
		"level":        "[logging]\nlevel = \"loud\"\n",
		"unknown key":  "[client]\nretries = 3\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if !strings.Contains(string(data), "connect_attempts") {
		t.Fatal("sample should document connect_attempts")
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	defaults := config.Default()
	if cfg.Client != defaults.Client {
		t.Fatalf("sample client section drifted from defaults: %+v vs %+v", cfg.Client, defaults.Client)
	}
}
