// Package config loads, defaults, and validates adforge's TOML
// configuration. Paths are expanded and normalized at load time so the rest
// of the daemon never sees "~" or relative directories.
package config
