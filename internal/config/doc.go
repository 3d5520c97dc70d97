// Package config loads, normalizes, and validates bb configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// BB_LOG_LEVEL and BB_DISABLE_AUTOSTART. A missing configuration file is
// normal: every knob has a default that matches the built-in rendezvous
// timing (30 attempts, 100ms apart, 100ms per attempt).
//
// Always obtain settings through this package so the client and daemon agree
// on runtime paths and timing.
package config
