// Package hub implements the conversation session client against the
// home-automation hub's native device protocol (spec section 4.6): TCP
// handshake and keepalive, entity registration/dispatch, audio streaming
// for a LISTENING/PROCESSING/SPEAKING session, and exponential-backoff
// reconnection. Entity writes never mutate shared state directly — they
// enqueue a ConfigMutation event on the activation queue, per spec section
// 4.6 and invariant I2 (state transitions come from exactly one actor).
package hub

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/entity"
	"github.com/agalue/lva/internal/hubproto"
)

// reconnectBackoff is the ladder from spec section 4.6: 1s, 2s, 4s, ...
// capped at 30s.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	keepalive      = 15 * time.Second
)

// AudioSink receives response audio chunks streamed back from the hub
// during SPEAKING, handing them to the playback device.
type AudioSink interface {
	PlayChunk(samples []byte, sampleRate int) error
}

// Metrics is the subset of internal/metrics.Counters the session reports
// conversation open/close bookkeeping against. Session.metrics is declared
// as the narrower activation.Metrics (the activation-layer concern set), so
// this is checked with an optional-interface assertion rather than added
// to that interface.
type Metrics interface {
	SessionOpened()
	SessionClosed()
}

// Session owns the hub TCP connection end-to-end: this is the only
// goroutine group that ever touches the socket (spec section 5's "shared
// resources" rule).
type Session struct {
	addr     string
	registry *entity.Registry
	machine  *activation.Machine
	metrics  activation.Metrics
	sink     AudioSink

	mu          sync.Mutex
	conn        net.Conn
	connected   bool
	cancelAudio context.CancelFunc
	sessionID   string
	sessionOpen bool
}

// New constructs a Session targeting host:port.
func New(host string, port int, registry *entity.Registry, machine *activation.Machine, metrics activation.Metrics, sink AudioSink) *Session {
	return &Session{
		addr:     fmt.Sprintf("%s:%d", host, port),
		registry: registry,
		machine:  machine,
		metrics:  metrics,
		sink:     sink,
	}
}

// Run maintains the connection, reconnecting with exponential backoff
// until ctx is cancelled. While disconnected, wake/distance/manual
// triggers still drive local audio capture but no conversation can
// complete (spec section 4.6).
func (s *Session) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndServe(ctx, func() { backoff = initialBackoff }); err != nil {
			log.Printf("[hub] connection lost: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context, onConnected func()) error {
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.conn = nil
		s.mu.Unlock()
		s.markSessionClosed()
	}()

	if err := s.handshake(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Printf("[hub] connected to %s", s.addr)
	onConnected()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.keepaliveLoop(connCtx, conn)

	return s.readLoop(conn)
}

func (s *Session) handshake() error {
	conn := s.conn
	if err := hubproto.WriteFrame(conn, hubproto.Frame{Type: hubproto.MsgHello}); err != nil {
		return err
	}
	ack, err := hubproto.ReadFrame(conn)
	if err != nil {
		return err
	}
	if ack.Type != hubproto.MsgHelloAck {
		return fmt.Errorf("unexpected handshake reply type %d", ack.Type)
	}

	descriptors := s.registry.Descriptors()
	return hubproto.WriteFrame(conn, hubproto.Frame{
		Type:    hubproto.MsgEntityList,
		Payload: hubproto.MarshalJSON(descriptors),
	})
}

func (s *Session) keepaliveLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := hubproto.WriteFrame(conn, hubproto.Frame{Type: hubproto.MsgPing}); err != nil {
				return
			}
		}
	}
}

func (s *Session) readLoop(conn net.Conn) error {
	for {
		frame, err := hubproto.ReadFrame(conn)
		if err != nil {
			return err
		}
		switch frame.Type {
		case hubproto.MsgPong:
			// liveness only
		case hubproto.MsgEntityCommand:
			s.handleEntityCommand(frame.Payload)
		case hubproto.MsgConversationText:
			s.machine.OnSessionProcessing()
		case hubproto.MsgAudioChunk:
			s.handleResponseChunk(frame.Payload)
		case hubproto.MsgAudioStreamEnd:
			s.markSessionClosed()
			s.machine.OnPlaybackComplete()
		}
	}
}

func (s *Session) handleEntityCommand(payload []byte) {
	var cmd hubproto.EntityCommand
	if err := hubproto.UnmarshalJSON(payload, &cmd); err != nil {
		log.Printf("[hub] malformed entity command: %v", err)
		return
	}
	if err := s.registry.Dispatch(cmd.Key, cmd.Value); err != nil {
		log.Printf("[hub] entity write %q rejected: %v", cmd.Key, err)
	}
}

func (s *Session) handleResponseChunk(payload []byte) {
	if s.sink == nil || len(payload) < 4 {
		return
	}
	s.machine.OnSessionSpeaking()
	if err := s.sink.PlayChunk(payload, 24000); err != nil {
		log.Printf("[hub] playback error: %v", err)
	}
}

// Start implements activation.SessionController: opens an audio streaming
// session, passing useVAD to the hub in the stream-start header (true on
// the ENGAGED path and for a Manual wake, false for a WakeWord wake). Audio
// chunks themselves arrive from internal/audio's capture fan-out via
// Feed.
func (s *Session) Start(ctx context.Context, useVAD bool) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return fmt.Errorf("hub: not connected")
	}

	_, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelAudio = cancel
	s.sessionID = uuid.NewString()
	s.mu.Unlock()

	header := struct {
		SessionID string `json:"session_id"`
		UseVAD    bool   `json:"use_vad"`
	}{s.sessionID, useVAD}

	if err := hubproto.WriteFrame(conn, hubproto.Frame{
		Type:    hubproto.MsgAudioStreamStart,
		Payload: hubproto.MarshalJSON(header),
	}); err != nil {
		return err
	}
	s.markSessionOpen()
	return nil
}

// markSessionOpen and markSessionClosed report conversation-session
// open/close transitions exactly once per transition, even though Start,
// Cancel, MsgAudioStreamEnd and a dropped connection can each observe the
// same transition.
func (s *Session) markSessionOpen() {
	s.mu.Lock()
	already := s.sessionOpen
	s.sessionOpen = true
	s.mu.Unlock()
	if already {
		return
	}
	if m, ok := s.metrics.(Metrics); ok {
		m.SessionOpened()
	}
}

func (s *Session) markSessionClosed() {
	s.mu.Lock()
	was := s.sessionOpen
	s.sessionOpen = false
	s.mu.Unlock()
	if !was {
		return
	}
	if m, ok := s.metrics.(Metrics); ok {
		m.SessionClosed()
	}
}

// Feed forwards one captured audio block to the hub as part of the
// current session. No-op if no session is open.
func (s *Session) Feed(samples []byte, sampleRate int, final bool) {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return
	}
	header := hubproto.AudioChunkHeader{SampleRate: sampleRate, Final: final}
	headerJSON := hubproto.MarshalJSON(header)
	framed := make([]byte, 4+len(headerJSON)+len(samples))
	framed[0] = byte(len(headerJSON) >> 24)
	framed[1] = byte(len(headerJSON) >> 16)
	framed[2] = byte(len(headerJSON) >> 8)
	framed[3] = byte(len(headerJSON))
	copy(framed[4:], headerJSON)
	copy(framed[4+len(headerJSON):], samples)

	if err := hubproto.WriteFrame(conn, hubproto.Frame{Type: hubproto.MsgAudioChunk, Payload: framed}); err != nil {
		log.Printf("[hub] audio write failed, aborting session: %v", err)
		s.Cancel()
	}
}

// Cancel implements activation.SessionController: sends a protocol cancel
// and stops any outstanding audio stream.
func (s *Session) Cancel() {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	cancel := s.cancelAudio
	s.cancelAudio = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.markSessionClosed()
	if connected && conn != nil {
		_ = hubproto.WriteFrame(conn, hubproto.Frame{Type: hubproto.MsgCancel})
	}
}
