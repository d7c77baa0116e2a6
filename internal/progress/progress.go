// Package progress aggregates weighted per-phase progress into one overall
// percentage and fans updates out to listeners.
package progress

import (
	"fmt"
	"math"
	"sync"
)

// Phase names one weighted slice of a run.
type Phase string

const (
	PhaseDownload    Phase = "download"
	PhaseTranslation Phase = "translation"
	PhaseAudioGen    Phase = "audio_gen"
)

// Weight assigns a share of the overall percentage to a phase.
type Weight struct {
	Phase  Phase
	Weight float64
}

// DefaultWeights splits a run 10/40/50 across download, translation, and
// audio generation.
func DefaultWeights() []Weight {
	return []Weight{
		{Phase: PhaseDownload, Weight: 10},
		{Phase: PhaseTranslation, Weight: 40},
		{Phase: PhaseAudioGen, Weight: 50},
	}
}

// Event is delivered to listeners after every accepted update.
type Event struct {
	Phase      Phase
	PhaseValue float64
	Overall    float64
	Status     string
	Done       bool
}

// Listener receives progress events. Listeners are invoked one at a time and
// must not block for long.
type Listener func(Event)

// Aggregator tracks per-phase values in [0,100]. Updates for a phase are
// monotonic: a value below the highest seen so far is raised to it. Reset
// starts a phase over.
type Aggregator struct {
	mu        sync.Mutex
	order     []Phase
	weights   map[Phase]float64
	values    map[Phase]float64
	listeners []Listener
	finished  bool
	done      chan struct{}

	notifyMu sync.Mutex
}

// New builds an aggregator. Weights must be non-negative, name distinct
// phases, and sum to 100.
func New(weights []Weight, listeners ...Listener) (*Aggregator, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("progress: at least one phase weight is required")
	}
	a := &Aggregator{
		weights:   make(map[Phase]float64, len(weights)),
		values:    make(map[Phase]float64, len(weights)),
		listeners: append([]Listener(nil), listeners...),
		done:      make(chan struct{}),
	}
	sum := 0.0
	for _, w := range weights {
		if w.Weight < 0 {
			return nil, fmt.Errorf("progress: phase %q has negative weight", w.Phase)
		}
		if _, dup := a.weights[w.Phase]; dup {
			return nil, fmt.Errorf("progress: phase %q listed twice", w.Phase)
		}
		a.weights[w.Phase] = w.Weight
		a.order = append(a.order, w.Phase)
		sum += w.Weight
	}
	if math.Abs(sum-100) > 1e-9 {
		return nil, fmt.Errorf("progress: weights sum to %g, want 100", sum)
	}
	return a, nil
}

// NewDefault builds an aggregator with DefaultWeights.
func NewDefault(listeners ...Listener) *Aggregator {
	a, err := New(DefaultWeights(), listeners...)
	if err != nil {
		panic(err)
	}
	return a
}

// Subscribe adds a listener for subsequent events.
func (a *Aggregator) Subscribe(l Listener) {
	if l == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Update sets phase to value, clamped to [0,100] and to the highest value
// already recorded for the phase. Unknown phases and updates after Finish are
// ignored.
func (a *Aggregator) Update(phase Phase, value float64, status string) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	if _, ok := a.weights[phase]; !ok {
		a.mu.Unlock()
		return
	}
	value = clamp(value)
	if prev := a.values[phase]; value < prev {
		value = prev
	}
	a.values[phase] = value
	event := Event{Phase: phase, PhaseValue: value, Overall: a.overallLocked(), Status: status}
	listeners := a.listeners
	a.mu.Unlock()

	a.emit(listeners, event)
}

// Reset returns phase to zero so it can report a fresh pass.
func (a *Aggregator) Reset(phase Phase, status string) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	if _, ok := a.weights[phase]; !ok {
		a.mu.Unlock()
		return
	}
	a.values[phase] = 0
	event := Event{Phase: phase, Overall: a.overallLocked(), Status: status}
	listeners := a.listeners
	a.mu.Unlock()

	a.emit(listeners, event)
}

// Finish forces every phase to 100 and closes Done. Later calls are no-ops.
func (a *Aggregator) Finish(status string) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	for _, phase := range a.order {
		a.values[phase] = 100
	}
	a.finished = true
	last := Phase("")
	if len(a.order) > 0 {
		last = a.order[len(a.order)-1]
	}
	event := Event{Phase: last, PhaseValue: 100, Overall: 100, Status: status, Done: true}
	listeners := a.listeners
	a.mu.Unlock()

	a.emit(listeners, event)
	close(a.done)
}

// Done is closed once Finish has been called.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

// Overall returns Σ value×weight/100.
func (a *Aggregator) Overall() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overallLocked()
}

// Value returns the current value of phase.
func (a *Aggregator) Value(phase Phase) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.values[phase]
}

// Span returns a reporter that maps a completion fraction in [0,1] onto the
// [from,to] range of phase. It lets one phase be shared by several steps.
func (a *Aggregator) Span(phase Phase, from, to float64) func(fraction float64, status string) {
	return func(fraction float64, status string) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		a.Update(phase, from+(to-from)*fraction, status)
	}
}

func (a *Aggregator) overallLocked() float64 {
	total := 0.0
	for _, phase := range a.order {
		total += a.values[phase] * a.weights[phase] / 100
	}
	return clamp(total)
}

func (a *Aggregator) emit(listeners []Listener, event Event) {
	if len(listeners) == 0 {
		return
	}
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	for _, l := range listeners {
		l(event)
	}
}

func clamp(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
