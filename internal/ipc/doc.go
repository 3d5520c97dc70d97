// Package ipc owns the Unix domain socket the daemon listens on and the
// helpers clients use to reach it.
//
// The transport is a raw byte stream. Listen takes care of socket lifecycle
// (stale file removal, owner-only permissions) and Ping implements the
// minimal liveness exchange: the daemon writes Ack and closes, the client
// reads once and requires a non-empty result. Request framing for richer
// exchanges lives in package protocol.
package ipc
