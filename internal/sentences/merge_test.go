package sentences_test

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"kotoba/internal/sentences"
	"kotoba/internal/transcript"
)

func seg(text string, start, end float64) transcript.Segment {
	return transcript.Segment{Text: text, Start: transcript.FromSeconds(start), End: transcript.FromSeconds(end)}
}

func texts(out []transcript.Sentence) []string {
	result := make([]string, len(out))
	for i, s := range out {
		result[i] = s.Text
	}
	return result
}

func TestMergeSplittingRules(t *testing.T) {
	opts := sentences.DefaultOptions()
	long := strings.Repeat("あ", 45)
	capped := strings.Repeat("い", 201)

	tests := []struct {
		name  string
		input []transcript.Segment
		want  []string
	}{
		{
			name:  "joins close fragments with a space",
			input: []transcript.Segment{seg("今日は", 0, 1), seg("いい天気", 1.2, 2)},
			want:  []string{"今日は いい天気"},
		},
		{
			name:  "splits on long gap",
			input: []transcript.Segment{seg("今日は", 0, 1), seg("いい天気", 3.0, 4)},
			want:  []string{"今日は", "いい天気"},
		},
		{
			name:  "splits after japanese full stop",
			input: []transcript.Segment{seg("そうです。", 0, 1), seg("次に", 1.1, 2)},
			want:  []string{"そうです。", "次に"},
		},
		{
			name:  "splits after full-width question mark",
			input: []transcript.Segment{seg("本当？", 0, 1), seg("はい", 1.1, 2)},
			want:  []string{"本当？", "はい"},
		},
		{
			name:  "splits after ascii exclamation inside closing bracket",
			input: []transcript.Segment{seg("「すごい!」", 0, 1), seg("はい", 1.1, 2)},
			want:  []string{"「すごい!」", "はい"},
		},
		{
			name:  "splits past hard cap",
			input: []transcript.Segment{seg(capped, 0, 10), seg("続き", 10.1, 11)},
			want:  []string{capped, "続き"},
		},
		{
			name:  "restart heuristic needs uppercase and secondary gap",
			input: []transcript.Segment{seg(long, 0, 5), seg("Tokyo", 5.9, 6.5)},
			want:  []string{long, "Tokyo"},
		},
		{
			name:  "restart heuristic folds full-width letters",
			input: []transcript.Segment{seg(long, 0, 5), seg("ＮＨＫ", 5.9, 6.5)},
			want:  []string{long, "ＮＨＫ"},
		},
		{
			name:  "restart heuristic ignores short gap",
			input: []transcript.Segment{seg(long, 0, 5), seg("Tokyo", 5.5, 6.5)},
			want:  []string{long + " Tokyo"},
		},
		{
			name:  "restart heuristic ignores short accumulator",
			input: []transcript.Segment{seg("短い", 0, 1), seg("Tokyo", 1.9, 2.5)},
			want:  []string{"短い Tokyo"},
		},
		{
			name:  "comma marks join without separator",
			input: []transcript.Segment{seg("まず、", 0, 1), seg("次に", 1.1, 2), seg("、そして", 2.1, 3)},
			want:  []string{"まず、次に、そして"},
		},
		{
			name:  "skips empty fragments",
			input: []transcript.Segment{seg("  ", 0, 1), seg("はい", 1, 2), seg("", 2, 3)},
			want:  []string{"はい"},
		},
		{
			name:  "sorts out-of-order input",
			input: []transcript.Segment{seg("二", 1.1, 2), seg("一", 0, 1)},
			want:  []string{"一 二"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := texts(sentences.Merge(tc.input, opts))
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestMergeEndNeverMovesBackwards(t *testing.T) {
	out := sentences.Merge([]transcript.Segment{seg("長い", 0, 5), seg("短い", 1, 2)}, sentences.DefaultOptions())
	if len(out) != 1 {
		t.Fatalf("expected one sentence, got %d", len(out))
	}
	if out[0].Start != 0 || out[0].End != 5*time.Second {
		t.Fatalf("unexpected span %v-%v", out[0].Start, out[0].End)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if out := sentences.Merge(nil, sentences.DefaultOptions()); len(out) != 0 {
		t.Fatalf("expected no sentences, got %d", len(out))
	}
}

func randomSegments(r *rand.Rand, n int) []transcript.Segment {
	words := []string{"今日は", "天気", "です。", "そして", "、", "Tokyo", "ニュース", "本当？", "はい", "Osaka", strings.Repeat("長", 60)}
	out := make([]transcript.Segment, 0, n)
	cursor := 0.0
	for i := 0; i < n; i++ {
		cursor += float64(r.Intn(3000)) / 1000
		length := 0.2 + float64(r.Intn(2000))/1000
		out = append(out, seg(words[r.Intn(len(words))], cursor, cursor+length))
		cursor += length
	}
	return out
}

func TestMergeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	opts := sentences.DefaultOptions()
	for trial := 0; trial < 200; trial++ {
		first := sentences.Merge(randomSegments(r, 1+r.Intn(40)), opts)
		again := make([]transcript.Segment, len(first))
		for i, s := range first {
			again[i] = s.Segment
		}
		second := sentences.Merge(again, opts)
		if len(first) != len(second) {
			t.Fatalf("trial %d: re-merge changed count %d -> %d", trial, len(first), len(second))
		}
		for i := range first {
			if first[i].Segment != second[i].Segment {
				t.Fatalf("trial %d: sentence %d changed: %+v -> %+v", trial, i, first[i].Segment, second[i].Segment)
			}
		}
	}
}

func TestMergeNeverDropsText(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	opts := sentences.DefaultOptions()
	for trial := 0; trial < 200; trial++ {
		input := randomSegments(r, 1+r.Intn(40))
		var want strings.Builder
		for _, s := range input {
			want.WriteString(s.Text)
		}
		var got strings.Builder
		for _, s := range sentences.Merge(input, opts) {
			got.WriteString(strings.ReplaceAll(s.Text, " ", ""))
		}
		if got.String() != want.String() {
			t.Fatalf("trial %d: text mismatch\n got %q\nwant %q", trial, got.String(), want.String())
		}
	}
}

func TestMergeStartsStrictlyIncrease(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	out := sentences.Merge(randomSegments(r, 100), sentences.DefaultOptions())
	for i := 1; i < len(out); i++ {
		if out[i].Start <= out[i-1].Start {
			t.Fatalf("sentence %d starts at %v, not after %v", i, out[i].Start, out[i-1].Start)
		}
		if out[i].End < out[i].Start {
			t.Fatalf("sentence %d has end before start", i)
		}
	}
}

func TestMergeAbsorbsFragmentsSharingStart(t *testing.T) {
	out := sentences.Merge([]transcript.Segment{
		seg("はい。", 5, 5),
		seg("そうです。", 5, 5),
		seg("次です。", 6, 7),
	}, sentences.DefaultOptions())
	if len(out) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %q", len(out), texts(out))
	}
	if out[0].Text != "はい。 そうです。" {
		t.Fatalf("unexpected first sentence %q", out[0].Text)
	}
	if out[0].Start != 5*time.Second || out[1].Start != 6*time.Second {
		t.Fatalf("unexpected starts %v, %v", out[0].Start, out[1].Start)
	}
}
