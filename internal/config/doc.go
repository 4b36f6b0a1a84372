// Package config loads, normalizes, and validates msconvert configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MSCONVERT_SORTER_BINARY and MSCONVERT_LOG_LEVEL. The Config type collects the
// sorter parameters, conversion options, export behaviour, and logging knobs
// the CLI needs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
