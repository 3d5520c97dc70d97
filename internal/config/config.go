package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"bb/internal/runtimepaths"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths overrides the rendezvous locations. Empty values fall back to the
// runtime directory layout.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir"`
	SocketPath string `toml:"socket_path"`
	PIDPath    string `toml:"pid_path"`
	LockPath   string `toml:"lock_path"`
}

// Client tunes how a client waits for the daemon.
type Client struct {
	ConnectAttempts int  `toml:"connect_attempts"`
	ConnectDelayMS  int  `toml:"connect_delay_ms"`
	DialTimeoutMS   int  `toml:"dial_timeout_ms"`
	Autostart       bool `toml:"autostart"`
}

// Daemon tunes the serve loop.
type Daemon struct {
	ShutdownGraceMS int `toml:"shutdown_grace_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// ClientLevel applies to short-lived client invocations, which log to
	// stderr.
	ClientLevel string `toml:"client_level"`
	// Development adds source locations to every line.
	Development bool `toml:"development"`
}

// Config encapsulates all configuration values for bb.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Client  Client  `toml:"client"`
	Daemon  Daemon  `toml:"daemon"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "bb", "config.toml"))
	}
	return expandPath("~/.config/bb/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error; defaults apply. It returns the resolved path and whether the
// file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// RuntimePaths resolves the rendezvous paths, applying configured overrides
// on top of the environment-derived runtime directory.
func (c *Config) RuntimePaths(lookup runtimepaths.LookupEnv) runtimepaths.Paths {
	var paths runtimepaths.Paths
	if c.Paths.RuntimeDir != "" {
		paths = runtimepaths.FromDir(c.Paths.RuntimeDir)
	} else {
		paths = runtimepaths.Resolve(lookup)
	}
	paths = paths.WithOverrides(c.Paths.SocketPath, c.Paths.PIDPath)
	if c.Paths.LockPath != "" {
		paths.Lock = c.Paths.LockPath
	}
	return paths
}

// ConnectDelay is the pause between connection attempts.
func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.Client.ConnectDelayMS) * time.Millisecond
}

// DialTimeout bounds each connect and liveness read.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Client.DialTimeoutMS) * time.Millisecond
}

// ShutdownGrace bounds how long the daemon waits for in-flight connections.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Daemon.ShutdownGraceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
