package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RuntimeDir, err = expandPath(strings.TrimSpace(c.Paths.RuntimeDir)); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if c.Paths.SocketPath, err = expandPath(strings.TrimSpace(c.Paths.SocketPath)); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	if c.Paths.PIDPath, err = expandPath(strings.TrimSpace(c.Paths.PIDPath)); err != nil {
		return fmt.Errorf("paths.pid_path: %w", err)
	}
	if c.Paths.LockPath, err = expandPath(strings.TrimSpace(c.Paths.LockPath)); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeClient() {
	if value, ok := os.LookupEnv("BB_DISABLE_AUTOSTART"); ok && envTruthy(value) {
		c.Client.Autostart = false
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("BB_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
		c.Logging.ClientLevel = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.ClientLevel = strings.ToLower(strings.TrimSpace(c.Logging.ClientLevel))
	if c.Logging.ClientLevel == "" {
		c.Logging.ClientLevel = defaultClientLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func envTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
