// Package config loads, validates, and normalizes the darkroom TOML
// configuration file.
package config
