// Package config loads, normalizes, and validates mangawatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MANGAWATCH_NTFY_TOPIC and MANGADEX_BASE_URL. The Config type centralizes every
// knob the daemon and CLI need, so the watch list location, catalog endpoints,
// and poll cadence are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
