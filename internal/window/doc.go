// Package window decides whether capture or transcription is currently permitted.
// A Gate holds a daily [from, to) time-of-day window in a fixed time zone and is
// evaluated against the wall clock converted into that zone.
package window
