// Package acquire places the source recording in its channel folder under
// the output directory.
//
// Local files are copied into the "Local Files" channel. YouTube URLs are
// fetched with yt-dlp, which extracts MP3 audio into a folder named after the
// uploader; its --newline progress output drives the download phase.
package acquire
