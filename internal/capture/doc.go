// Package capture records a network audio stream into time-bounded chunk files.
// It implements the rotation state machine (idle, capturing, rotating, stopped),
// day-partitioned chunk naming, and the HTTP stream source with connect and
// stall timeouts.
package capture
