// Command bb is both the client and the daemon.
//
// Invoked normally, bb makes sure a daemon is running for the current user,
// spawning one in the background when needed, and talks to it over a Unix
// socket in the per-user runtime directory. Invoked with --daemon, it is
// that background process.
//
//	bb --ping          ensure a daemon is reachable and print ok
//	bb status          show lock, pid, and socket state
//	bb stop            terminate the running daemon
//	bb config init     write a sample configuration file
package main
