// Package distance polls a proximity sensor and emits Distance triggers and
// periodic sensor readings. The sensor itself (VL53L0X/VL53L1X over I2C) is
// an external collaborator (spec section 1); this package only knows about
// a Reader returning millimetres or "no reading", matching the capability-
// interface-with-null-implementation pattern used throughout for optional
// hardware.
package distance

import (
	"context"
	"time"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/config"
)

// Reader returns a single distance measurement in millimetres, or ok=false
// if the read failed (sensor busy, I2C error, out of range).
type Reader interface {
	Read() (mm int, ok bool)
	// Reinit attempts to recover the sensor after repeated failures.
	Reinit() error
}

// NullReader is used when no distance sensor is configured or present. It
// never produces a reading, so distance-trigger logic is simply inert.
type NullReader struct{}

func (NullReader) Read() (int, bool) { return 0, false }
func (NullReader) Reinit() error     { return nil }

const (
	idleCadence      = time.Second            // ~1 Hz
	activeCadence    = 200 * time.Millisecond // ~5 Hz in PROX_VERIFY/ENGAGED
	debounceWindow   = 250 * time.Millisecond
	periodicPublish  = 5 * time.Second
	failuresToReinit = 3
)

// StateProvider reports the activation machine's current primary state so
// the poller can pick its cadence (spec section 4.3).
type StateProvider interface {
	State() (activation.State, bool)
}

// OnTrigger delivers a Distance trigger to the activation machine.
type OnTrigger func(src activation.TriggerSource)

// OnReading delivers a periodic sensor publication (hub sensor.distance),
// called at most once every periodicPublish regardless of state, even when
// the most recent read failed (ok=false, mm=0).
type OnReading func(mm int, ok bool)

// Trigger polls a Reader on a state-dependent cadence and emits Distance
// triggers with a sticky debounce, reinitializing the sensor after three
// consecutive read failures.
type Trigger struct {
	reader Reader
	state  StateProvider
	cfg    *config.Store

	onTrigger OnTrigger
	onReading OnReading

	consecutiveFailures int
	belowThreshold      bool
	lastCrossing        time.Time
	lastPublish         time.Time
}

// New constructs a Trigger.
func New(reader Reader, state StateProvider, cfg *config.Store, onTrigger OnTrigger, onReading OnReading) *Trigger {
	return &Trigger{reader: reader, state: state, cfg: cfg, onTrigger: onTrigger, onReading: onReading}
}

// Run polls until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) {
	timer := time.NewTimer(t.cadence())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.poll()
			timer.Reset(t.cadence())
		}
	}
}

func (t *Trigger) cadence() time.Duration {
	st, _ := t.state.State()
	if st == activation.StateProxVerify || st == activation.StateEngaged {
		return activeCadence
	}
	return idleCadence
}

func (t *Trigger) poll() {
	mm, ok := t.reader.Read()
	now := time.Now()

	if !ok {
		t.consecutiveFailures++
		if t.consecutiveFailures >= failuresToReinit {
			t.reader.Reinit()
			t.consecutiveFailures = 0
		}
	} else {
		t.consecutiveFailures = 0
	}

	if t.onReading != nil && now.Sub(t.lastPublish) >= periodicPublish {
		t.onReading(mm, ok)
		t.lastPublish = now
	}

	if !ok {
		return
	}

	cfg := t.cfg.Snapshot()
	if !cfg.DistanceActivation {
		return
	}

	crossed := mm < cfg.DistanceActivationThresholdMM
	if crossed == t.belowThreshold {
		return // no edge
	}
	if now.Sub(t.lastCrossing) < debounceWindow {
		return // sticky debounce
	}
	t.belowThreshold = crossed
	t.lastCrossing = now

	if crossed {
		t.onTrigger(activation.TriggerSource{Kind: activation.TriggerDistance, DistanceMM: mm})
	}
}
