// Package preflight provides readiness checks for the binaries, directories,
// and remote API a conversion depends on.
//
// The convert command calls RunAll before acquiring the source so a missing
// ffmpeg or a full scratch disk fails in seconds instead of after an hour of
// transcription. The deps command reuses the individual checks for its report.
package preflight
