package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"bb/internal/config"
	"bb/internal/daemon"
	"bb/internal/daemonctl"
	"bb/internal/logging"
	"bb/internal/runtimepaths"
)

type commandContext struct {
	socketFlag  *string
	pidFileFlag *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, pidFileFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag:  socketFlag,
		pidFileFlag: pidFileFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtimePaths applies the --socket and --pid-file flags on top of the
// configured layout.
func (c *commandContext) runtimePaths() (runtimepaths.Paths, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return runtimepaths.Paths{}, err
	}
	var socket, pid string
	if c.socketFlag != nil {
		socket = *c.socketFlag
	}
	if c.pidFileFlag != nil {
		pid = *c.pidFileFlag
	}
	return cfg.RuntimePaths(nil).WithOverrides(socket, pid), nil
}

// logDevelopment adds source locations to log lines.
func (c *commandContext) logDevelopment(cfg *config.Config) bool {
	return cfg != nil && cfg.Logging.Development
}

// clientLogger writes to stderr so stdout carries only command output.
func (c *commandContext) clientLogger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.ClientLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		Development:      c.logDevelopment(cfg),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// spawner launches this executable as the daemon. An explicit --config is
// forwarded so both processes agree on the runtime layout.
func (c *commandContext) spawner() daemonctl.Spawner {
	configPath := c.configPath()
	return func(executable, socketPath, pidPath string) error {
		if configPath == "" {
			return daemon.Spawn(executable, socketPath, pidPath)
		}
		return daemon.Spawn(executable, socketPath, pidPath, "--config", configPath)
	}
}

func (c *commandContext) ensureOptions() (daemonctl.Options, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return daemonctl.Options{}, err
	}
	paths, err := c.runtimePaths()
	if err != nil {
		return daemonctl.Options{}, err
	}
	exe, err := daemonExecutable()
	if err != nil {
		return daemonctl.Options{}, err
	}
	return daemonctl.Options{
		Paths:            paths,
		Executable:       exe,
		Spawn:            c.spawner(),
		Attempts:         cfg.Client.ConnectAttempts,
		Delay:            cfg.ConnectDelay(),
		DialTimeout:      cfg.DialTimeout(),
		DisableAutostart: !cfg.Client.Autostart,
		Logger:           c.clientLogger(),
	}, nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func wrapDialError(err error, paths runtimepaths.Paths) error {
	switch {
	case errors.Is(err, daemonctl.ErrAutostartDisabled):
		return fmt.Errorf("%w; start one with `bb --daemon` or unset BB_DISABLE_AUTOSTART", err)
	case errors.Is(err, syscall.EACCES):
		return fmt.Errorf("connect to daemon: permission denied on %s: %w", paths.Socket, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
