package wakeword

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/config"
)

// fixedScoreModel reports a constant score for every block, used to drive
// the scorer's threshold-crossing logic deterministically.
type fixedScoreModel struct {
	id        string
	threshold float32
	score     float32
	closed    bool
}

func (m *fixedScoreModel) ID() string                { return m.id }
func (m *fixedScoreModel) DefaultThreshold() float32 { return m.threshold }
func (m *fixedScoreModel) Score(context.Context, []float32) (float32, error) {
	return m.score, nil
}
func (m *fixedScoreModel) Close() error { m.closed = true; return nil }

func TestScorerFiresOnThresholdCrossing(t *testing.T) {
	cfg := config.NewStore(config.DefaultConfig())

	var mu sync.Mutex
	var fired []activation.TriggerSource
	scorer := NewScorer(cfg, func(src activation.TriggerSource) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, src)
	}, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &fixedScoreModel{id: "hey_jarvis", threshold: 0.5, score: 0.9}
	scorer.SetModels(ctx, []Model{model})

	require.Eventually(t, func() bool {
		scorer.AcceptWaveform(make([]float32, 1024))
		mu.Lock()
		defer mu.Unlock()
		return len(fired) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hey_jarvis", fired[0].ModelID)
	assert.Equal(t, activation.TriggerWakeWord, fired[0].Kind)
	assert.InDelta(t, 0.9, fired[0].Score, 0.0001)
}

func TestScorerBelowThresholdNeverFires(t *testing.T) {
	cfg := config.NewStore(config.DefaultConfig())

	fired := make(chan activation.TriggerSource, 1)
	scorer := NewScorer(cfg, func(src activation.TriggerSource) { fired <- src }, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &fixedScoreModel{id: "quiet", threshold: 0.8, score: 0.1}
	scorer.SetModels(ctx, []Model{model})

	for i := 0; i < 10; i++ {
		scorer.AcceptWaveform(make([]float32, 1024))
	}

	select {
	case <-fired:
		t.Fatal("a score below threshold must never fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetModelsRemovesStaleWorkersAndClosesModel(t *testing.T) {
	cfg := config.NewStore(config.DefaultConfig())
	scorer := NewScorer(cfg, func(activation.TriggerSource) {}, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &fixedScoreModel{id: "gone", threshold: 0.5, score: 0.1}
	scorer.SetModels(ctx, []Model{model})
	scorer.SetModels(ctx, nil)

	require.Eventually(t, func() bool {
		return model.closed
	}, time.Second, 5*time.Millisecond)

	scorer.mu.RLock()
	defer scorer.mu.RUnlock()
	assert.Empty(t, scorer.workers)
}

func TestEffectiveThresholdRespectsCustomPreset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WakeThresholdPreset = config.PresetCustom
	cfg.CustomThreshold = 0.2
	store := config.NewStore(cfg)

	fired := make(chan activation.TriggerSource, 1)
	scorer := NewScorer(store, func(src activation.TriggerSource) { fired <- src }, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DefaultThreshold is 0.9, well above the score, but the custom preset
	// of 0.2 should still let this fire.
	model := &fixedScoreModel{id: "custom", threshold: 0.9, score: 0.3}
	scorer.SetModels(ctx, []Model{model})
	scorer.AcceptWaveform(make([]float32, 1024))

	select {
	case src := <-fired:
		assert.Equal(t, "custom", src.ModelID)
	case <-time.After(time.Second):
		t.Fatal("expected custom threshold preset to let a low-threshold model fire")
	}
}
