// Package config loads, normalizes, and validates kotoba configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, OPENAI_BASE_URL, and KOTOBA_OUTPUT_DIR. The Config type
// centralizes every knob the pipeline and CLI need so output directories,
// remote credentials, and assembly timings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
