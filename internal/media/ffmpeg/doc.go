// Package ffmpeg renders timeline plans and cuts transcription chunks with the
// ffmpeg binary.
//
// Render writes the filter graph to a -filter_complex_script file next to the
// output. Every piece is normalized to 44.1kHz stereo before the concat so
// clips, silence, and tones can be joined with the original recording.
package ffmpeg
