// Package transcribe turns an audio file into absolute-time segments while
// keeping every upload under the speech-to-text request ceiling.
//
// Files at or below the ceiling are sent whole. Larger files are cut into
// chunkplan windows, and any window the service still rejects as too large
// or unreadable is halved and retried until the depth or duration floor is
// reached. Segment times are shifted back onto the original timeline before
// they are returned.
package transcribe
