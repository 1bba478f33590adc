// Package config provides configuration loading and validation for the
// capture and transcription processes. Both read the same YAML file; values
// not present in the file keep the defaults from Default. Secrets can be
// referenced as ${VAR} and supplied through the environment or a .env file.
package config
