package transcript

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCueTime reads an SRT or WebVTT timestamp (HH:MM:SS,mmm or
// HH:MM:SS.mmm).
func ParseCueTime(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(parts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

type cue struct {
	start, end time.Duration
}

func parseCues(content string) (cues []cue, invalid int) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.Split(line, "-->")
		if len(parts) != 2 {
			invalid++
			continue
		}
		start, errStart := ParseCueTime(parts[0])
		end, errEnd := ParseCueTime(parts[1])
		if errStart != nil || errEnd != nil {
			invalid++
			continue
		}
		cues = append(cues, cue{start: start, end: end})
	}
	return cues, invalid
}

// ValidateCues checks exported SRT or WebVTT text. Returns a list of issues
// found; an empty slice means validation passed. A zero total skips the
// duration check.
func ValidateCues(content string, total time.Duration) []string {
	var issues []string

	cues, invalid := parseCues(content)
	if invalid > 0 {
		issues = append(issues, fmt.Sprintf("timestamp_parse_error: %d cues", invalid))
	}
	if len(cues) == 0 {
		if invalid == 0 {
			issues = append(issues, "empty_subtitle_file")
		}
		return issues
	}

	var last time.Duration
	for i, c := range cues {
		if c.end < c.start {
			issues = append(issues, fmt.Sprintf("cue_ends_before_start: cue %d", i+1))
		}
		if i > 0 && c.start <= cues[i-1].start {
			issues = append(issues, fmt.Sprintf("cue_out_of_order: cue %d", i+1))
		}
		if c.end > last {
			last = c.end
		}
	}
	if total > 0 && last > total {
		issues = append(issues, fmt.Sprintf("cue_past_end: last=%.3fs total=%.3fs", last.Seconds(), total.Seconds()))
	}
	return issues
}
