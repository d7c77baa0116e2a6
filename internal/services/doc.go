// Package services defines shared utilities consumed by the pipeline stages
// and the remote service adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, phase names, and work item indexes
//     for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified as configuration, transient, oversize, or phase-level.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
