// Package health reports whether a dispatcher can serve messages: its
// routes resolve, its circuit breakers are closed and its result store
// is reachable.
package health
