// Package daemonctl implements the client side of the rendezvous: making
// sure a daemon is reachable, spawning one when needed, and inspecting or
// stopping a running daemon.
package daemonctl
