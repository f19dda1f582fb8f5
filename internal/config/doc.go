// Package config loads and validates the coven-relay TOML configuration,
// expanding ${VAR} environment references before parsing.
package config
