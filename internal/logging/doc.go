// Package logging assembles structured slog loggers and formatting helpers used
// across kotoba.
//
// It owns the console and JSON handlers, routes output to stderr plus a
// rotating file, and exposes context-aware helpers so pipeline code tags log
// lines with run IDs, phases, and item indexes. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
