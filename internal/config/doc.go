// Package config loads, normalizes, and validates rommedia configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SCREENSCRAPER_* environment
// variables for credentials. Always obtain settings through this package so
// downstream code receives absolute paths and clear validation errors.
package config
