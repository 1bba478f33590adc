// Package transcription turns audio chunk files into text.
//
// A Transcriber is backed by one of three speech-to-text services: the hosted
// OpenAI Whisper API, Google Gemini with the audio passed inline, or a
// self-hosted whisper server reached by a multipart POST. All backends share
// the same pre-flight validation of the chunk file and keep request statistics.
// Decoding is always deterministic (temperature 0).
package transcription
