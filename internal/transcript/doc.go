// Package transcript defines the segment and sentence model shared by every
// pipeline stage, persists the transcript artifact, and exports it for study
// as JSON, SRT, WebVTT, YAML, or an XLSX sheet.
package transcript
