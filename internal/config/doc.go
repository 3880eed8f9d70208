// Package config loads, normalizes, and validates dramaflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DRAMAFLOW_LLM_API_KEY. The Config type centralizes the knobs used by the
// workflow engine, the generation task tracker, and the CLI.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
