package progress_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba/internal/progress"
)

func TestAllPhasesCompleteYieldsHundred(t *testing.T) {
	agg := progress.NewDefault()
	for _, w := range progress.DefaultWeights() {
		agg.Update(w.Phase, 100, "")
	}
	assert.InDelta(t, 100, agg.Overall(), 1e-9)
}

func TestSinglePhaseAtZeroSubtractsItsWeight(t *testing.T) {
	for _, missing := range progress.DefaultWeights() {
		t.Run(string(missing.Phase), func(t *testing.T) {
			agg := progress.NewDefault()
			for _, w := range progress.DefaultWeights() {
				if w.Phase != missing.Phase {
					agg.Update(w.Phase, 100, "")
				}
			}
			assert.InDelta(t, 100-missing.Weight, agg.Overall(), 1e-9)
		})
	}
}

func TestUpdateClampsAndIsMonotonic(t *testing.T) {
	agg := progress.NewDefault()
	agg.Update(progress.PhaseTranslation, 150, "")
	assert.Equal(t, 100.0, agg.Value(progress.PhaseTranslation))

	agg.Update(progress.PhaseAudioGen, 60, "")
	agg.Update(progress.PhaseAudioGen, 20, "")
	assert.Equal(t, 60.0, agg.Value(progress.PhaseAudioGen), "regression should be clamped to max seen")

	agg.Update(progress.PhaseDownload, -5, "")
	assert.Equal(t, 0.0, agg.Value(progress.PhaseDownload))

	agg.Reset(progress.PhaseAudioGen, "restart")
	assert.Equal(t, 0.0, agg.Value(progress.PhaseAudioGen))
	agg.Update(progress.PhaseAudioGen, 10, "")
	assert.Equal(t, 10.0, agg.Value(progress.PhaseAudioGen))
}

func TestWeightsMustSumToHundred(t *testing.T) {
	_, err := progress.New([]progress.Weight{{Phase: "a", Weight: 30}, {Phase: "b", Weight: 30}})
	require.Error(t, err)
	_, err = progress.New([]progress.Weight{{Phase: "a", Weight: 50}, {Phase: "a", Weight: 50}})
	require.Error(t, err)
	_, err = progress.New([]progress.Weight{{Phase: "a", Weight: 120}, {Phase: "b", Weight: -20}})
	require.Error(t, err)
	agg, err := progress.New([]progress.Weight{{Phase: "a", Weight: 25}, {Phase: "b", Weight: 75}})
	require.NoError(t, err)
	agg.Update("a", 100, "")
	assert.InDelta(t, 25, agg.Overall(), 1e-9)
}

func TestListenersReceiveEventsAndFinish(t *testing.T) {
	var mu sync.Mutex
	var events []progress.Event
	agg := progress.NewDefault(func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	agg.Update(progress.PhaseDownload, 50, "Downloading")
	agg.Finish("Complete")
	agg.Update(progress.PhaseAudioGen, 10, "ignored after finish")

	select {
	case <-agg.Done():
	default:
		t.Fatal("expected Done to be closed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, progress.PhaseDownload, events[0].Phase)
	assert.InDelta(t, 5, events[0].Overall, 1e-9)
	assert.Equal(t, "Downloading", events[0].Status)
	assert.True(t, events[1].Done)
	assert.Equal(t, 100.0, events[1].Overall)
	assert.Equal(t, 100.0, agg.Overall())
}

func TestSpanMapsFractionIntoRange(t *testing.T) {
	agg := progress.NewDefault()
	transcribe := agg.Span(progress.PhaseTranslation, 0, 30)
	translate := agg.Span(progress.PhaseTranslation, 30, 100)

	transcribe(0.5, "")
	assert.InDelta(t, 15, agg.Value(progress.PhaseTranslation), 1e-9)
	transcribe(1, "")
	translate(0.5, "")
	assert.InDelta(t, 65, agg.Value(progress.PhaseTranslation), 1e-9)
	translate(2, "")
	assert.InDelta(t, 100, agg.Value(progress.PhaseTranslation), 1e-9)
}

func TestDownloadHookMilestones(t *testing.T) {
	agg := progress.NewDefault()
	hook := progress.NewDownloadHook(agg)

	hook.Downloading(50, 100)
	assert.InDelta(t, 40, agg.Value(progress.PhaseDownload), 1e-9)
	hook.Downloading(10, 0)
	assert.InDelta(t, 40, agg.Value(progress.PhaseDownload), 1e-9)
	hook.Percent(75)
	assert.InDelta(t, 60, agg.Value(progress.PhaseDownload), 1e-9)
	hook.Finished()
	assert.InDelta(t, 80, agg.Value(progress.PhaseDownload), 1e-9)
	hook.ConversionDone()
	assert.InDelta(t, 100, agg.Value(progress.PhaseDownload), 1e-9)

	var nilHook *progress.DownloadHook
	nilHook.Finished()
}

func TestConcurrentUpdatesAreSafe(t *testing.T) {
	agg := progress.NewDefault(func(progress.Event) {})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			agg.Update(progress.PhaseAudioGen, float64(v*2), "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 98.0, agg.Value(progress.PhaseAudioGen))
}
