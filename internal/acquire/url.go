package acquire

import (
	"regexp"
	"strings"
)

var youTubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/`),
	regexp.MustCompile(`^(https?://)?youtu\.be/`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/watch\?v=`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/embed/`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/v/`),
}

// IsYouTubeURL reports whether input looks like a YouTube video URL.
func IsYouTubeURL(input string) bool {
	input = strings.TrimSpace(input)
	for _, pattern := range youTubePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// looksLikeURL reports inputs with a URL scheme.
func looksLikeURL(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
