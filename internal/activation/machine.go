package activation

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/agalue/lva/internal/config"
)

// PreferencesSyncer persists a configuration snapshot after a hub-driven
// mutation. Implemented by internal/prefs.Store.
type PreferencesSyncer interface {
	Sync(cfg *config.Config) error
}

// StateListener is notified on every primary-state or MUTED-overlay change
// and on every vision-glance resolution. core's implementation records both
// as hub sensor entities (last_attention_state, last_vision_latency_ms,
// last_vision_error); it sends nothing on the gpio-events socket. errMsg is
// empty on a successful glance.
type StateListener interface {
	OnStateChanged(state State, muted bool)
	OnVisionResult(errMsg string, latencyMs float64)
}

// Machine is the activation pipeline's event-queue reducer: a single
// serialized consumer of TriggerSource, vision replies, VAD signals,
// timeouts, manual commands, and configuration mutations (spec section
// 4.4). All mutation of state happens inside Run's goroutine; Enqueue is
// the only thread-safe entry point for producers.
type Machine struct {
	state State
	muted bool

	events chan Event

	clock Clock
	cfg   *config.Store

	session  SessionController
	vision   VisionRequester
	playback PlaybackController
	metrics  Metrics
	prefs    PreferencesSyncer
	listener StateListener

	lastVisionDecision time.Time
	lastVisionError    string
	visionRequestedAt  time.Time

	glanceTimeout <-chan time.Time
	vadWindow     <-chan time.Time
}

// MachineConfig bundles Machine's collaborators.
type MachineConfig struct {
	Clock       Clock // nil defaults to RealClock
	ConfigStore *config.Store
	Session     SessionController
	Vision      VisionRequester
	Playback    PlaybackController
	Metrics     Metrics
	Prefs       PreferencesSyncer // optional
	Listener    StateListener     // optional
	QueueSize   int               // default 64
}

// NewMachine constructs a Machine in StateIdle, unmuted.
func NewMachine(mc MachineConfig) *Machine {
	clock := mc.Clock
	if clock == nil {
		clock = RealClock{}
	}
	qsize := mc.QueueSize
	if qsize <= 0 {
		qsize = 64
	}
	return &Machine{
		state:    StateIdle,
		events:   make(chan Event, qsize),
		clock:    clock,
		cfg:      mc.ConfigStore,
		session:  mc.Session,
		vision:   mc.Vision,
		playback: mc.Playback,
		metrics:  mc.Metrics,
		prefs:    mc.Prefs,
		listener: mc.Listener,
	}
}

// Enqueue is the thread-safe producer entry point. If the queue is full the
// event is dropped (backpressure; callers should size QueueSize generously
// relative to expected burst rate).
func (m *Machine) Enqueue(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.Printf("[activation] event queue full, dropping %v", ev.Kind)
	}
}

// State returns the current primary state (for tests/introspection only;
// not safe to call concurrently with Run except from within a
// StateListener callback).
func (m *Machine) State() (State, bool) { return m.state, m.muted }

// Run drains the event queue until ctx is cancelled. It is the sole
// goroutine that ever mutates Machine's state.
func (m *Machine) Run(ctx context.Context) {
	defer m.session.Cancel()
	defer m.vision.Cancel()

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-m.events:
			for _, e := range m.drainSorted(ev) {
				m.process(ctx, e)
			}

		case <-m.glanceTimeout:
			m.process(ctx, Event{Kind: EventVisionGlanceTimeout})

		case <-m.vadWindow:
			m.process(ctx, Event{Kind: EventVADWindowElapsed})
		}
	}
}

// drainSorted collects every event already queued alongside first, and
// orders them per spec section 4.4's tie-break: Manual cancel first, then
// other control events, then Manual > WakeWord > Distance triggers, all
// stable within rank.
func (m *Machine) drainSorted(first Event) []Event {
	batch := []Event{first}
drain:
	for {
		select {
		case e := <-m.events:
			batch = append(batch, e)
		default:
			break drain
		}
	}
	return sortByPriority(batch)
}

// sortByPriority implements the tie-break from spec section 4.4: Manual
// cancel first, then Manual > WakeWord > Distance, stable within rank.
func sortByPriority(batch []Event) []Event {
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].priority() < batch[j].priority() })
	return batch
}

func (m *Machine) process(ctx context.Context, ev Event) {
	// Manual{cancel} and mute/config apply in every state.
	switch ev.Kind {
	case EventManualCancel:
		m.cancelAll()
		m.setState(StateIdle)
		return
	case EventMuteToggle:
		m.setMuted(ev.Muted)
		return
	case EventConfigMutation:
		m.applyConfigMutation(ev.ConfigMutate)
		return
	}

	switch m.state {
	case StateIdle:
		m.handleIdle(ctx, ev)
	case StateProxVerify:
		// No externally-driven event applies here; PROX_VERIFY resolves
		// synchronously when entered (see enterProxVerify). A stray
		// WakeWord can still pre-empt it.
		m.handlePreemption(ctx, ev)
	case StateVisionGlance:
		m.handleVisionGlance(ctx, ev)
	case StateEngaged:
		m.handleEngaged(ctx, ev)
	case StateListening:
		m.handleListening(ev)
	case StateProcessing:
		m.handleProcessing(ev)
	case StateSpeaking:
		m.handleSpeaking(ev)
	}
}

func (m *Machine) handleIdle(ctx context.Context, ev Event) {
	if ev.Kind != EventTrigger {
		return
	}
	cfg := m.cfg.Snapshot()

	switch ev.Trigger.Kind {
	case TriggerWakeWord:
		if m.muted {
			return
		}
		m.startWakeListening(ctx, false)

	case TriggerManual:
		if ev.Trigger.Reason == "wake" {
			if m.muted {
				return
			}
			m.startWakeListening(ctx, true)
		}

	case TriggerDistance:
		if !cfg.DistanceActivation || m.muted {
			return
		}
		if ev.Trigger.DistanceMM >= cfg.DistanceActivationThresholdMM {
			return
		}
		if m.clock.Now().Sub(m.lastVisionDecision) >= secondsToDuration(cfg.VisionCooldownS) {
			m.enterProxVerify(ctx)
		} else if cfg.AttentionRequired {
			m.metrics.IncFalseTriggersPrevented()
		}
	}
}

// startWakeListening is the shared "jump straight to LISTENING" effect used
// by IDLE's WakeWord/Manual{wake} rows and by the WakeWord-preempts-
// VISION_GLANCE/ENGAGED/PROX_VERIFY resolution from spec section 9.
func (m *Machine) startWakeListening(ctx context.Context, useVAD bool) {
	if m.state != StateIdle {
		m.cancelAll()
	}
	if err := m.session.Start(ctx, useVAD); err != nil {
		log.Printf("[activation] session start failed: %v", err)
		return
	}
	m.setState(StateListening)
}

// handlePreemption implements the open-question resolution: "WakeWord
// preempts VISION_GLANCE into LISTENING" generalizes to pre-empting
// PROX_VERIFY too, since PROX_VERIFY is a strict subset of the VISION_GLANCE
// wait. Distance and non-wake Manual events are ignored here (Distance is
// "ignored until cooldown expires").
func (m *Machine) handlePreemption(ctx context.Context, ev Event) {
	if ev.Kind != EventTrigger || m.muted {
		return
	}
	switch ev.Trigger.Kind {
	case TriggerWakeWord:
		m.startWakeListening(ctx, false)
	case TriggerManual:
		if ev.Trigger.Reason == "wake" {
			m.startWakeListening(ctx, true)
		}
	}
}

// enterProxVerify resolves PROX_VERIFY's guard synchronously, since no
// external event drives it (spec table: From=PROX_VERIFY, Event="—").
func (m *Machine) enterProxVerify(ctx context.Context) {
	m.setState(StateProxVerify)
	cfg := m.cfg.Snapshot()
	if cfg.VisionEnabled && cfg.AttentionRequired {
		m.metrics.IncVisionRequests()
		m.visionRequestedAt = m.clock.Now()
		m.vision.RequestGlance(ctx)
		m.glanceTimeout = m.clock.After(1200 * time.Millisecond)
		m.setState(StateVisionGlance)
		return
	}
	m.enterEngaged(ctx)
}

func (m *Machine) enterEngaged(ctx context.Context) {
	if err := m.session.Start(ctx, true); err != nil {
		log.Printf("[activation] session start failed: %v", err)
		m.setState(StateIdle)
		return
	}
	cfg := m.cfg.Snapshot()
	m.vadWindow = m.clock.After(secondsToDuration(cfg.EngagedVADWindowS))
	m.setState(StateEngaged)
}

func (m *Machine) handleVisionGlance(ctx context.Context, ev Event) {
	// WakeWord/Manual{wake} pre-empt an in-flight glance.
	if ev.Kind == EventTrigger {
		m.handlePreemptAndMaybeCancelVision(ctx, ev)
		return
	}

	cfg := m.cfg.Snapshot()

	switch ev.Kind {
	case EventVisionVerdict:
		m.glanceTimeout = nil
		v := ev.Verdict
		latency := v.LatencyMs
		if latency == 0 {
			latency = float64(m.clock.Now().Sub(m.visionRequestedAt).Milliseconds())
		}
		if v.Kind == AttentionFaceToward && v.Confidence >= cfg.VisionMinConfidence {
			m.metrics.IncVisionSuccess()
			m.reportVisionResult("", latency)
			m.enterEngaged(ctx)
			return
		}
		if v.Kind == AttentionError {
			m.resolveVisionFailure(ctx, v.Message, latency)
			return
		}
		m.metrics.IncFalseTriggersPrevented()
		m.reportVisionResult("", latency)
		m.lastVisionDecision = m.clock.Now()
		m.setState(StateIdle)

	case EventVisionGlanceTimeout:
		latency := float64(m.clock.Now().Sub(m.visionRequestedAt).Milliseconds())
		m.resolveVisionFailure(ctx, "timeout", latency)
	}
}

func (m *Machine) handlePreemptAndMaybeCancelVision(ctx context.Context, ev Event) {
	if m.muted {
		return
	}
	preempt := (ev.Trigger.Kind == TriggerWakeWord) ||
		(ev.Trigger.Kind == TriggerManual && ev.Trigger.Reason == "wake")
	if !preempt {
		return
	}
	useVAD := ev.Trigger.Kind == TriggerManual
	m.startWakeListening(ctx, useVAD)
}

// resolveVisionFailure handles both the explicit Error verdict and the
// internal glance-timeout backstop identically.
func (m *Machine) resolveVisionFailure(ctx context.Context, reason string, latencyMs float64) {
	m.reportVisionResult(reason, latencyMs)
	if reason == "timeout" {
		m.metrics.IncVisionTimeout()
	}
	cfg := m.cfg.Snapshot()
	if cfg.VisionFallbackOnError {
		m.enterEngaged(ctx)
		return
	}
	m.lastVisionDecision = m.clock.Now()
	m.setState(StateIdle)
}

// reportVisionResult records the outcome of a resolved vision glance and
// notifies the listener so it can surface last_vision_error/
// last_vision_latency_ms as hub sensor entities. errMsg is empty on success.
func (m *Machine) reportVisionResult(errMsg string, latencyMs float64) {
	m.lastVisionError = errMsg
	m.metrics.ObserveVisionLatencyMs(latencyMs)
	if m.listener != nil {
		m.listener.OnVisionResult(errMsg, latencyMs)
	}
}

func (m *Machine) handleEngaged(ctx context.Context, ev Event) {
	if ev.Kind == EventTrigger {
		m.handlePreemption(ctx, ev)
		return
	}
	switch ev.Kind {
	case EventVADStart:
		m.vadWindow = nil
		m.setState(StateListening)
	case EventVADWindowElapsed:
		m.session.Cancel()
		m.lastVisionDecision = m.clock.Now()
		m.setState(StateIdle)
	}
}

func (m *Machine) handleListening(ev Event) {
	if ev.Kind != EventSessionProcessing {
		return
	}
	m.setState(StateProcessing)
	cfg := m.cfg.Snapshot()
	if cfg.EnableThinkingSound {
		m.playback.PlayThinkingSound()
	}
}

func (m *Machine) handleProcessing(ev Event) {
	if ev.Kind != EventSessionSpeaking {
		return
	}
	m.setState(StateSpeaking)
}

func (m *Machine) handleSpeaking(ev Event) {
	if ev.Kind != EventPlaybackComplete {
		return
	}
	m.setState(StateIdle)
}

func (m *Machine) cancelAll() {
	m.session.Cancel()
	m.vision.Cancel()
	m.playback.StopPlayback()
	m.glanceTimeout = nil
	m.vadWindow = nil
}

func (m *Machine) setState(s State) {
	m.state = s
	m.metrics.IncStateTransition()
	if m.listener != nil {
		m.listener.OnStateChanged(s, m.muted)
	}
}

func (m *Machine) setMuted(muted bool) {
	if m.muted == muted {
		return // idempotent: replaying the same toggle is a no-op
	}
	m.muted = muted
	if muted {
		m.cancelAll()
		m.setState(StateIdle)
		return
	}
	if m.listener != nil {
		m.listener.OnStateChanged(m.state, m.muted)
	}
}

func (m *Machine) applyConfigMutation(mutate func(cfg *config.Config)) {
	if mutate == nil {
		return
	}
	next := m.cfg.Publish(mutate)
	if m.prefs != nil {
		if err := m.prefs.Sync(next); err != nil {
			log.Printf("[activation] preferences sync failed: %v", err)
		}
	}
}

// OnVADStart and its siblings let the audio/session layer deliver signals
// without racing the reducer (they just Enqueue).
func (m *Machine) OnVADStart()          { m.Enqueue(Event{Kind: EventVADStart}) }
func (m *Machine) OnSessionProcessing() { m.Enqueue(Event{Kind: EventSessionProcessing}) }
func (m *Machine) OnSessionSpeaking()   { m.Enqueue(Event{Kind: EventSessionSpeaking}) }
func (m *Machine) OnPlaybackComplete()  { m.Enqueue(Event{Kind: EventPlaybackComplete}) }
func (m *Machine) OnVisionVerdict(v AttentionVerdict) {
	m.Enqueue(Event{Kind: EventVisionVerdict, Verdict: v})
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
