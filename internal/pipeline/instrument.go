package pipeline

import (
	"context"
	"time"

	"kotoba/internal/metrics"
	"kotoba/internal/transcript"
)

// Remote operation labels recorded by the instrumented wrappers.
const (
	OpTranscribe = "transcribe"
	OpTranslate  = "translate"
	OpSynthesize = "synthesize"
)

type instrumentedTranscriber struct {
	next    Transcriber
	metrics *metrics.Metrics
}

// InstrumentTranscriber records every call made through next.
func InstrumentTranscriber(next Transcriber, m *metrics.Metrics) Transcriber {
	if m == nil {
		return next
	}
	return instrumentedTranscriber{next: next, metrics: m}
}

func (t instrumentedTranscriber) Transcribe(ctx context.Context, path string) ([]transcript.Segment, error) {
	start := time.Now()
	segments, err := t.next.Transcribe(ctx, path)
	t.metrics.ObserveCall(OpTranscribe, start, err)
	return segments, err
}

type instrumentedTranslator struct {
	next    Translator
	metrics *metrics.Metrics
}

// InstrumentTranslator records every call made through next.
func InstrumentTranslator(next Translator, m *metrics.Metrics) Translator {
	if m == nil {
		return next
	}
	return instrumentedTranslator{next: next, metrics: m}
}

func (t instrumentedTranslator) Translate(ctx context.Context, text string) (string, error) {
	start := time.Now()
	out, err := t.next.Translate(ctx, text)
	t.metrics.ObserveCall(OpTranslate, start, err)
	return out, err
}

type instrumentedSynthesizer struct {
	next    Synthesizer
	metrics *metrics.Metrics
}

// InstrumentSynthesizer records every call made through next.
func InstrumentSynthesizer(next Synthesizer, m *metrics.Metrics) Synthesizer {
	if m == nil {
		return next
	}
	return instrumentedSynthesizer{next: next, metrics: m}
}

func (s instrumentedSynthesizer) Synthesize(ctx context.Context, text, dest string) error {
	start := time.Now()
	err := s.next.Synthesize(ctx, text, dest)
	s.metrics.ObserveCall(OpSynthesize, start, err)
	return err
}
