// Package chunkplan sizes audio slices so each upload stays under a remote
// request ceiling.
package chunkplan

import "time"

// Band bounds the proposed chunk duration.
type Band struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBand is the 3 to 10 minute window used when callers pass a zero Band.
var DefaultBand = Band{Min: 3 * time.Minute, Max: 10 * time.Minute}

// Plan describes how a file should be sliced.
type Plan struct {
	Duration       time.Duration
	EstimatedBytes int64
}

// Window is one [Start, End) span of the source recording.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

// Compute proposes a chunk duration whose estimated byte size approximates
// target, assuming a constant byte rate across the file. The result is
// clamped to band. A zero or negative size or duration yields band.Min.
func Compute(sizeBytes int64, total time.Duration, target int64, band Band) Plan {
	band = normalizeBand(band)
	if sizeBytes <= 0 || total <= 0 || target <= 0 {
		return Plan{Duration: band.Min, EstimatedBytes: estimate(sizeBytes, total, band.Min)}
	}

	rate := float64(sizeBytes) / total.Seconds()
	seconds := float64(target) / rate
	duration := time.Duration(seconds * float64(time.Second))
	if duration < band.Min {
		duration = band.Min
	}
	if duration > band.Max {
		duration = band.Max
	}
	return Plan{Duration: duration, EstimatedBytes: estimate(sizeBytes, total, duration)}
}

// Windows expands plan into ordered windows covering [0, total). A trailing
// remainder shorter than minTail is folded into the previous window.
func Windows(total time.Duration, plan Plan, minTail time.Duration) []Window {
	if total <= 0 {
		return nil
	}
	step := plan.Duration
	if step <= 0 || step >= total {
		return []Window{{Start: 0, End: total}}
	}
	windows := make([]Window, 0, int(total/step)+1)
	for start := time.Duration(0); start < total; start += step {
		end := start + step
		if end > total {
			end = total
		}
		if n := len(windows); n > 0 && end-start < minTail {
			windows[n-1].End = end
			break
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

// Halve splits w into two windows at its midpoint.
func Halve(w Window) (Window, Window) {
	mid := w.Start + w.Duration()/2
	return Window{Start: w.Start, End: mid}, Window{Start: mid, End: w.End}
}

func estimate(sizeBytes int64, total, duration time.Duration) int64 {
	if sizeBytes <= 0 || total <= 0 {
		return 0
	}
	return int64(float64(sizeBytes) * (duration.Seconds() / total.Seconds()))
}

func normalizeBand(band Band) Band {
	if band.Min <= 0 {
		band.Min = DefaultBand.Min
	}
	if band.Max <= 0 {
		band.Max = DefaultBand.Max
	}
	if band.Max < band.Min {
		band.Max = band.Min
	}
	return band
}
