// Package protocol defines the request and response messages exchanged
// between bb clients and the daemon, framed as newline-delimited JSON.
//
// The daemon does not decode these messages yet; it answers every
// connection with the liveness ack from package ipc.
package protocol
