// Package scan lists chunk files that were created within a trailing freshness
// window. The window is the only guard against reprocessing: a file whose
// creation time falls outside it is never returned again.
package scan
