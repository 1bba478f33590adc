// Package pipeline implements the processing driver: a polling loop that,
// while its time window is open, picks up freshly written chunk files,
// transcribes them one at a time, raises alerts for matching terms and
// appends the text to the hourly archive.
//
// Each file moves through transcribe, match, dispatch and archive in that
// order. A failure at any step skips the rest of that file only. An
// interrupt is honoured between batches; a batch in progress always runs to
// completion.
package pipeline
