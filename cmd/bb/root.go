package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bb/internal/daemonctl"
	"bb/internal/daemonrun"
	"bb/internal/logging"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var pidFileFlag string
	var configFlag string
	var daemonMode bool
	var ping bool
	var foreground bool

	ctx := newCommandContext(&socketFlag, &pidFileFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "bb",
		Short:         "bb client and daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground && !daemonMode {
				return errors.New("--foreground requires --daemon")
			}
			if daemonMode {
				return runDaemon(cmd, ctx, foreground)
			}
			return runClient(cmd, ctx, ping)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Path to the daemon socket")
	flags.StringVar(&pidFileFlag, "pid-file", "", "Path to the daemon pid file")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.Flags().BoolVar(&daemonMode, "daemon", false, "Run as the background daemon")
	rootCmd.Flags().BoolVar(&ping, "ping", false, "Print ok once the daemon is reachable")
	rootCmd.Flags().BoolVar(&foreground, "foreground", false, "With --daemon, also log to stderr")
	rootCmd.MarkFlagsMutuallyExclusive("daemon", "ping")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newStopCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// runClient makes sure a daemon is serving. Request hand-off is not wired
// yet, so a reachable daemon is the whole result; ping only adds the ok line.
func runClient(cmd *cobra.Command, ctx *commandContext, ping bool) error {
	opts, err := ctx.ensureOptions()
	if err != nil {
		return err
	}
	result, err := daemonctl.EnsureReachable(cmd.Context(), opts)
	if err != nil {
		return wrapDialError(err, opts.Paths)
	}
	opts.Logger.Info("daemon is reachable; request flow is not implemented yet",
		logging.String(logging.FieldEventType, "daemon_reachable"),
		logging.String(logging.FieldSocket, opts.Paths.Socket),
		logging.Bool("spawned", result.Spawned),
		logging.Int("attempts", result.Attempts),
	)
	if ping {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
	}
	return nil
}

func runDaemon(cmd *cobra.Command, ctx *commandContext, foreground bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
		SocketPath:  *ctx.socketFlag,
		PIDPath:     *ctx.pidFileFlag,
		Foreground:  foreground,
		Development: ctx.logDevelopment(cfg),
	})
}
