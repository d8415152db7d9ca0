// Package config loads, normalizes, and validates the remux TOML
// configuration file.
package config
