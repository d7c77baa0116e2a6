// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: runs ffprobe through a swappable Runner
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Prober.Duration: container duration as a time.Duration
package ffprobe
