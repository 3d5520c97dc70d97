// Package logging assembles structured slog loggers and formatting helpers used
// by the bb client and daemon.
//
// It owns the console and JSON handlers and centralizes level and output
// plumbing. The client logs to stderr so stdout stays reserved for command
// output; a detached daemon has no terminal and logs to a file in its runtime
// directory. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
//
// Warnings should go through WarnWithContext so every WARN line states its
// cause, its impact, and a next step.
package logging
