// Package server implements the optional HTTP status server that each
// process can run next to its main loop. It reports health and time window
// state, per-component statistics, the sanitized configuration and
// Prometheus metrics.
package server
