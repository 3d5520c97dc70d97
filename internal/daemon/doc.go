// Package daemon owns the daemon side of the rendezvous.
//
// Run takes the runtime lock, records the pid, binds the unix socket, and
// serves connections until its context is cancelled. A second daemon that
// finds the lock held exits quietly. Spawn starts a detached daemon process
// on behalf of a client.
//
// Shutdown removes the socket and the pid file before the lock is released,
// so a client that later acquires the lock never sees this daemon's files.
package daemon
