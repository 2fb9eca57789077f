// Command core runs the activation pipeline and session state machine:
// the central process of the voice-assistant satellite. It owns the
// microphone, the hub TCP session, and the control/gpio-events IPC
// sockets, and coordinates the vision and front-panel daemons over UNIX
// sockets.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/audio"
	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/distance"
	"github.com/agalue/lva/internal/entity"
	"github.com/agalue/lva/internal/hub"
	"github.com/agalue/lva/internal/ipc"
	"github.com/agalue/lva/internal/metrics"
	"github.com/agalue/lva/internal/prefs"
	"github.com/agalue/lva/internal/vad"
	"github.com/agalue/lva/internal/vision"
	"github.com/agalue/lva/internal/wakeword"
)

const sampleRate = 16000

func main() {
	log.SetPrefix("[core] ")
	log.SetFlags(log.Ltime)

	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	config.Flags(flag.CommandLine, cfg)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	prefsStore := prefs.NewStore(filepath.Join(filepath.Dir(config.ResolvePath()), "preferences.json"))
	if p, err := prefsStore.Load(); err != nil {
		log.Printf("preferences load warning: %v", err)
	} else {
		p.ApplyTo(cfg)
	}

	cfgStore := config.NewStore(cfg)

	mp, shutdownMetrics, err := metrics.InitProvider()
	if err != nil {
		log.Fatalf("metrics init error: %v", err)
	}
	counters, err := metrics.New(mp)
	if err != nil {
		log.Fatalf("metrics init error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- audio device ---
	player, err := audio.NewPlayer(24000, 100, nil)
	if err != nil {
		log.Fatalf("audio output init error: %v", err)
	}
	defer player.Close()
	playback := audio.NewPlaybackController(player, cfg.SoundThinking)

	// --- vision client ---
	visionSockPath := filepath.Join(cfg.IPCDir, "visd.sock")

	// --- wake-word scorer ---
	var machine *activation.Machine // forward-declared; wakeword.Scorer needs machine.Enqueue

	scorer := wakeword.NewScorer(cfgStore, func(src activation.TriggerSource) {
		machine.Enqueue(activation.Event{Kind: activation.EventTrigger, Trigger: src})
	}, false)
	registry := wakeword.NewRegistry(cfg.WakeModelDir, loadWakeModel, scorer)
	if err := registry.Start(ctx); err != nil {
		log.Printf("wake-model directory watch disabled: %v", err)
	}

	// --- engaged-session VAD ---
	vadDetector, err := vad.New(vad.Config{
		ModelPath:          filepath.Join(cfg.WakeModelDir, "silero_vad.onnx"),
		Threshold:          0.5,
		SampleRate:         sampleRate,
		MinSilenceDuration: 0.6,
	})
	if err != nil {
		log.Printf("VAD disabled: %v", err)
	}

	// --- entity registry + hub session ---
	entityRegistry := entity.NewRegistry()

	var session *hub.Session

	visionClient := vision.NewClient(visionSockPath, func(v activation.AttentionVerdict) {
		machine.Enqueue(activation.Event{Kind: activation.EventVisionVerdict, Verdict: v})
	})

	sessionCtl := &sessionController{}

	machine = activation.NewMachine(activation.MachineConfig{
		ConfigStore: cfgStore,
		Session:     sessionCtl,
		Vision:      visionClient,
		Playback:    playback,
		Metrics:     counters,
		Prefs:       prefsStore,
		Listener:    &stateBroadcaster{registry: entityRegistry},
		QueueSize:   64,
	})

	session = hub.New(cfg.HubHost, cfg.HubPort, entityRegistry, machine, counters, playback)
	sessionCtl.session = session
	hub.RegisterEntities(entityRegistry, machine, cfgStore)
	go session.Run(ctx)

	// --- distance sensor ---
	distTrigger := distance.New(distance.NullReader{}, stateProviderFunc(func() (activation.State, bool) {
		s, m := machine.State()
		return s, m
	}), cfgStore, func(src activation.TriggerSource) {
		machine.Enqueue(activation.Event{Kind: activation.EventTrigger, Trigger: src})
	}, func(mm int, ok bool) {
		if ok {
			entityRegistry.Publish("sensor.distance", mm)
		}
	})
	go distTrigger.Run(ctx)

	// --- audio capture fan-out ---
	fanout := audio.NewFanout()
	fanout.Subscribe(scorer.AcceptWaveform)
	fanout.Subscribe(func(block []float32) {
		if vadDetector == nil {
			return
		}
		if st, _ := machine.State(); st != activation.StateEngaged && st != activation.StateListening {
			return
		}
		became := vadDetector.AcceptWaveform(block, func(segment []float32) {
			sessionCtl.feedPCM(segment, sampleRate)
		})
		if became {
			machine.OnVADStart()
		}
	})

	capturer, err := audio.NewCapturer(sampleRate, fanout.Feed)
	if err != nil {
		log.Fatalf("audio input init error: %v", err)
	}
	capturer.SetMetrics(counters)
	defer capturer.Close()
	if err := capturer.Start(); err != nil {
		log.Fatalf("audio capture start error: %v", err)
	}

	// --- IPC sockets ---
	if err := os.MkdirAll(cfg.IPCDir, 0o755); err != nil {
		log.Fatalf("IPC directory error: %v", err)
	}

	gpioEventsPath := filepath.Join(cfg.IPCDir, "gpio-events.sock")
	gpioEvents, err := ipc.Listen(gpioEventsPath, func(*ipc.Conn, ipc.Envelope) {})
	if err != nil {
		log.Fatalf("gpio-events socket error: %v", err)
	}
	gpioEvents.SetMetrics(counters)
	defer gpioEvents.Close()
	go gpioEvents.Serve()

	controlPath := filepath.Join(cfg.IPCDir, "control.sock")
	control, err := ipc.Listen(controlPath, func(conn *ipc.Conn, env ipc.Envelope) {
		handleControlEnvelope(machine, env)
	})
	if err != nil {
		log.Fatalf("control socket error: %v", err)
	}
	control.SetMetrics(counters)
	defer control.Close()
	go control.Serve()

	go machine.Run(ctx)

	log.Printf("ready: hub=%s:%d ipc=%s", cfg.HubHost, cfg.HubPort, cfg.IPCDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	capturer.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Printf("metrics shutdown error: %v", err)
	}
}

func handleControlEnvelope(machine *activation.Machine, env ipc.Envelope) {
	switch env.Type {
	case ipc.TypeManualWake:
		machine.Enqueue(activation.Event{Kind: activation.EventTrigger, Trigger: activation.TriggerSource{Kind: activation.TriggerManual, Reason: "wake"}})
	case ipc.TypeMuteToggle:
		_, muted := machine.State()
		machine.Enqueue(activation.Event{Kind: activation.EventMuteToggle, Muted: !muted})
	case ipc.TypeCancel:
		machine.Enqueue(activation.Event{Kind: activation.EventManualCancel})
	case ipc.TypeVolumeUp, ipc.TypeVolumeDown:
		// Volume is a local audio-device concern, not a state transition;
		// core accepts these commands and does not change the output volume.
	}
}

// stateProviderFunc adapts a plain func to distance.StateProvider.
type stateProviderFunc func() (activation.State, bool)

func (f stateProviderFunc) State() (activation.State, bool) { return f() }

// sessionController adapts hub.Session to activation.SessionController,
// letting main wire the Session in after constructing the Machine (Session
// itself needs the Machine to deliver processing/speaking events).
type sessionController struct {
	session *hub.Session
}

func (s *sessionController) Start(ctx context.Context, useVAD bool) error { return s.session.Start(ctx, useVAD) }
func (s *sessionController) Cancel()                                     { s.session.Cancel() }
func (s *sessionController) feedPCM(samples []float32, sampleRate int) {
	pcm := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := int16(f * 32767)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	s.session.Feed(pcm, sampleRate, false)
}

// stateBroadcaster keeps the hub's sensor.last_attention_state entity
// current. It does not send STATE_CHANGED envelopes: nothing is written to
// the gpio-events socket.
type stateBroadcaster struct {
	registry *entity.Registry
}

func (b *stateBroadcaster) OnStateChanged(state activation.State, muted bool) {
	b.registry.Publish("sensor.last_attention_state", state.String())
}

// OnVisionResult implements activation.StateListener, surfacing every
// resolved vision glance as the sensor.last_vision_latency_ms/
// sensor.last_vision_error hub entities. errMsg is empty on success.
func (b *stateBroadcaster) OnVisionResult(errMsg string, latencyMs float64) {
	b.registry.Publish("sensor.last_vision_latency_ms", latencyMs)
	b.registry.Publish("sensor.last_vision_error", errMsg)
}

func loadWakeModel(path string) (wakeword.Model, error) {
	// The neural scoring kernel is an external collaborator; a real
	// deployment plugs in an ONNX wake-word model here. Until one is
	// wired, each configured file resolves to an inert model so the rest
	// of the pipeline (hot reload, threshold presets, metrics) is
	// exercised end-to-end.
	return wakeword.NewNullModel(filepath.Base(path)), nil
}
