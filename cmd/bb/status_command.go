package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bb/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon lock, pid, and socket state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := ctx.runtimePaths()
			if err != nil {
				return err
			}
			status, err := daemonctl.Inspect(cmd.Context(), paths, cfg.DialTimeout())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			writeStatusSection(stdout, "Daemon Status", statusRows(status), shouldColorize(stdout))
			fmt.Fprintln(stdout)

			rows := [][]string{
				{"Runtime Directory", paths.Dir},
				{"Socket", paths.Socket},
				{"PID File", paths.PID},
				{"Lock File", paths.Lock},
				{"Daemon Log", paths.LogPath()},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Path", "Location"}, rows))
			return nil
		},
	}
}

func statusRows(status daemonctl.Status) []statusRow {
	state := status.State()
	daemonRow := statusRow{label: "Daemon", detail: cases.Title(language.English).String(string(state))}
	switch state {
	case daemonctl.DaemonRunning:
		daemonRow.kind = statusOK
	case daemonctl.DaemonUnresponsive:
		daemonRow.kind = statusWarn
		daemonRow.detail += " (lock held but socket not answering)"
	default:
		daemonRow.detail += " (starts on the next bb invocation)"
	}
	rows := []statusRow{daemonRow}

	lockRow := statusRow{label: "Lock", detail: "Free"}
	if status.LockHeld {
		lockRow.detail = "Held"
	}
	rows = append(rows, lockRow)

	switch {
	case status.PID == 0:
		rows = append(rows, statusRow{label: "Process", detail: "No pid file"})
	case status.PIDAlive:
		rows = append(rows, statusRow{label: "Process", kind: statusOK, detail: strconv.Itoa(status.PID)})
	default:
		rows = append(rows, statusRow{label: "Process", kind: statusWarn, detail: fmt.Sprintf("%d (process not found)", status.PID)})
	}

	switch {
	case !status.SocketPresent:
		rows = append(rows, statusRow{label: "Socket", detail: "Absent"})
	case status.Reachable:
		rows = append(rows, statusRow{label: "Socket", kind: statusOK, detail: "Reachable"})
	default:
		detail := "Present but not answering"
		if status.PingError != nil {
			detail += fmt.Sprintf(" (%v)", status.PingError)
		}
		rows = append(rows, statusRow{label: "Socket", kind: statusWarn, detail: detail})
	}
	return rows
}
