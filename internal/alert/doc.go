// Package alert finds alert terms in transcripts and sends notifications.
//
// The Matcher performs approximate substring search: a term matches wherever
// some substring of the lower-cased text is within the term's maximum
// Levenshtein distance of the lower-cased term. Terms belong to a tier, live
// or dev, and each tier has its own message preamble.
//
// The Dispatcher hands composed messages to a Sink without blocking the
// caller. Sink failures are logged and counted, never returned.
package alert
