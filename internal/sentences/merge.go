// Package sentences coalesces raw timestamped fragments into sentence-sized
// units using gap and punctuation heuristics tuned for Japanese speech.
package sentences

import (
	"sort"
	"strings"
	"time"

	"kotoba/internal/textutil"
	"kotoba/internal/transcript"
)

// Options are the merge thresholds.
type Options struct {
	MaxGap       time.Duration
	RestartGap   time.Duration
	HardCapRunes int
	SoftMinRunes int
}

// DefaultOptions returns the thresholds used when configuration leaves them unset.
func DefaultOptions() Options {
	return Options{
		MaxGap:       2 * time.Second,
		RestartGap:   800 * time.Millisecond,
		HardCapRunes: 200,
		SoftMinRunes: 40,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxGap <= 0 {
		o.MaxGap = def.MaxGap
	}
	if o.RestartGap < 0 {
		o.RestartGap = def.RestartGap
	}
	if o.HardCapRunes <= 0 {
		o.HardCapRunes = def.HardCapRunes
	}
	if o.SoftMinRunes < 0 {
		o.SoftMinRunes = def.SoftMinRunes
	}
	return o
}

const (
	sentenceFinal = ".!?。！？．"
	commaMarks    = ",、，"
)

// Merge returns the sentences formed from segments. Input order is not
// trusted: segments are stably sorted by start first. Fragments with no text
// after trimming are skipped. A sentence's end never moves backwards when a
// shorter fragment is absorbed. A fragment that does not start after the
// current sentence is always absorbed, so sentence starts strictly increase.
func Merge(segments []transcript.Segment, opts Options) []transcript.Sentence {
	opts = opts.withDefaults()

	ordered := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.Text = textutil.Normalize(seg.Text)
		if seg.Text == "" {
			continue
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		ordered = append(ordered, seg)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var (
		out    []transcript.Sentence
		acc    transcript.Segment
		active bool
	)
	for _, frag := range ordered {
		if !active {
			acc, active = frag, true
			continue
		}
		if frag.Start > acc.Start && shouldSplit(acc, frag, opts) {
			out = append(out, transcript.Sentence{Segment: acc})
			acc = frag
			continue
		}
		acc.Text = join(acc.Text, frag.Text)
		if frag.End > acc.End {
			acc.End = frag.End
		}
	}
	if active {
		out = append(out, transcript.Sentence{Segment: acc})
	}
	return out
}

func shouldSplit(acc, next transcript.Segment, opts Options) bool {
	gap := next.Start - acc.End
	if gap >= opts.MaxGap {
		return true
	}
	if endsSentence(acc.Text) {
		return true
	}
	length := textutil.RuneLen(acc.Text)
	if length > opts.HardCapRunes {
		return true
	}
	return length > opts.SoftMinRunes && textutil.StartsUpper(next.Text) && gap > opts.RestartGap
}

func endsSentence(text string) bool {
	trimmed := strings.TrimRight(text, " \t\"'」』）)")
	if trimmed == "" {
		return false
	}
	last := []rune(trimmed)
	return strings.ContainsRune(sentenceFinal, last[len(last)-1])
}

func join(left, right string) string {
	if endsWithAny(left, commaMarks) || startsWithAny(right, commaMarks) {
		return left + right
	}
	return left + " " + right
}

func endsWithAny(text, marks string) bool {
	runes := []rune(text)
	return len(runes) > 0 && strings.ContainsRune(marks, runes[len(runes)-1])
}

func startsWithAny(text, marks string) bool {
	for _, r := range text {
		return strings.ContainsRune(marks, r)
	}
	return false
}
