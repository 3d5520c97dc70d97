// Package runtimepaths resolves the per-user runtime directory and the socket,
// pid, and lock files that clients and the daemon rendezvous on.
//
// Resolution is a pure function of the environment so every bb process for a
// user arrives at the same locations without coordination.
package runtimepaths
