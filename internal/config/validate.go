package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClient(); err != nil {
		return err
	}
	if c.Daemon.ShutdownGraceMS < 0 {
		return errors.New("daemon.shutdown_grace_ms must be zero or positive")
	}
	return c.validateLogging()
}

func (c *Config) validateClient() error {
	if c.Client.ConnectAttempts <= 0 {
		return errors.New("client.connect_attempts must be positive")
	}
	if c.Client.ConnectDelayMS <= 0 {
		return errors.New("client.connect_delay_ms must be positive")
	}
	if c.Client.DialTimeoutMS <= 0 {
		return errors.New("client.dial_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	for key, level := range map[string]string{
		"logging.level":        c.Logging.Level,
		"logging.client_level": c.Logging.ClientLevel,
	} {
		switch level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("%s: unsupported value %q", key, level)
		}
	}
	return nil
}
