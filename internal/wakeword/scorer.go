package wakeword

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/config"
)

// debugLogInterval throttles per-block score logging so a verbose model
// doesn't flood stdout at 512-sample block rate.
const debugLogInterval = 300 * time.Millisecond

// OnTrigger is invoked (from one of the scorer's per-model goroutines)
// when a model's score crosses its effective threshold. Callers typically
// wire this straight to (*activation.Machine).Enqueue.
type OnTrigger func(src activation.TriggerSource)

// modelWorker pairs a Model with its own input channel so slow models
// never block fast ones.
type modelWorker struct {
	model Model
	in    chan []float32

	lastLog   time.Time
	lastScore float32
}

// Scorer fans audio blocks out to every registered Model concurrently,
// one goroutine per model, and reports threshold crossings via OnTrigger.
type Scorer struct {
	mu      sync.RWMutex
	workers map[string]*modelWorker

	cfg     *config.Store
	onTrig  OnTrigger
	verbose bool
}

// NewScorer constructs a Scorer with no models loaded; models are added via
// SetModels (typically driven by wakeword.Registry's fsnotify callback).
func NewScorer(cfg *config.Store, onTrig OnTrigger, verbose bool) *Scorer {
	return &Scorer{
		workers: make(map[string]*modelWorker),
		cfg:     cfg,
		onTrig:  onTrig,
		verbose: verbose,
	}
}

// SetModels replaces the active model set. Models no longer present are
// closed and their worker goroutines stopped; new models get a fresh
// worker goroutine. Existing models are left untouched (no restart on an
// unrelated model's add/remove).
func (s *Scorer) SetModels(ctx context.Context, models []Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(models))
	for _, m := range models {
		keep[m.ID()] = true
		if _, exists := s.workers[m.ID()]; exists {
			continue
		}
		w := &modelWorker{model: m, in: make(chan []float32, 4)}
		s.workers[m.ID()] = w
		go s.runWorker(ctx, w)
	}

	for id, w := range s.workers {
		if !keep[id] {
			close(w.in)
			delete(s.workers, id)
		}
	}
}

// AcceptWaveform fans one audio block out to every loaded model's worker
// channel. Blocks are dropped for a model whose input channel (four blocks
// deep) is full (never backs up the shared capture pipeline).
func (s *Scorer) AcceptWaveform(block []float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.workers {
		select {
		case w.in <- block:
		default:
		}
	}
}

func (s *Scorer) runWorker(ctx context.Context, w *modelWorker) {
	defer w.model.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-w.in:
			if !ok {
				return
			}
			score, err := w.model.Score(ctx, block)
			if err != nil {
				log.Printf("[wakeword] model %s scoring error: %v", w.model.ID(), err)
				continue
			}
			w.lastScore = score

			cfg := s.cfg.Snapshot()
			threshold := cfg.EffectiveWakeThreshold(w.model.DefaultThreshold())

			if s.verbose && time.Since(w.lastLog) >= debugLogInterval {
				log.Printf("[wakeword] %s score=%.3f threshold=%.3f", w.model.ID(), score, threshold)
				w.lastLog = time.Now()
			}

			if score >= threshold {
				s.onTrig(activation.TriggerSource{
					Kind:    activation.TriggerWakeWord,
					ModelID: w.model.ID(),
					Score:   score,
				})
			}
		}
	}
}

// Close stops every worker goroutine and releases its model.
func (s *Scorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.workers {
		close(w.in)
		delete(s.workers, id)
	}
}
