// Package frontpanel polls capacitive touch and rotary encoder hardware
// and translates physical events into logical commands sent to core's
// control socket (spec section 4.8). The hardware itself is an external
// event source (spec section 1): this package depends only on the
// InputSource capability interface, with a null implementation for
// hardware-absent deployments.
package frontpanel

import (
	"context"
	"time"

	"github.com/agalue/lva/internal/ipc"
)

// debounceWindow is the physical-input debounce per spec section 4.8.
const debounceWindow = 50 * time.Millisecond

// PhysicalEvent is one raw hardware observation: a touch contact or a
// rotary encoder detent.
type PhysicalEvent struct {
	Kind string // "touch_tap", "touch_hold", "rotate_cw", "rotate_ccw"
}

// InputSource produces PhysicalEvents from touch/encoder hardware. Null
// implementations never send on Events().
type InputSource interface {
	Events() <-chan PhysicalEvent
	Close() error
}

// NullInputSource is used when no front-panel hardware is configured.
type NullInputSource struct{}

func (NullInputSource) Events() <-chan PhysicalEvent { return nil }
func (NullInputSource) Close() error                 { return nil }

// Daemon polls an InputSource, debounces, and forwards logical commands to
// core's control socket. Stateless across restarts (spec section 4.8).
type Daemon struct {
	source      InputSource
	controlSock string

	lastEventAt map[string]time.Time
}

// New constructs a Daemon reading from source and writing to
// controlSockPath.
func New(source InputSource, controlSockPath string) *Daemon {
	return &Daemon{source: source, controlSock: controlSockPath, lastEventAt: make(map[string]time.Time)}
}

// Run connects to core's control socket and processes InputSource events
// until ctx is cancelled, reconnecting the IPC client if the connection
// drops.
func (d *Daemon) Run(ctx context.Context) {
	events := d.source.Events()
	if events == nil {
		<-ctx.Done()
		return
	}

	var client *ipc.Client
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if d.debounced(ev) {
				continue
			}
			cmd := translate(ev)
			if cmd == "" {
				continue
			}

			if client == nil {
				c, err := ipc.Dial(d.controlSock)
				if err != nil {
					continue // core not up yet; drop and retry next event
				}
				client = c
			}

			env := ipc.Envelope{Type: cmd, Source: ipc.SourceFrontPanel, Ts: float64(time.Now().UnixNano()) / 1e9}
			if err := client.Send(env); err != nil {
				client.Close()
				client = nil
			}
		}
	}
}

func (d *Daemon) debounced(ev PhysicalEvent) bool {
	now := time.Now()
	last, ok := d.lastEventAt[ev.Kind]
	d.lastEventAt[ev.Kind] = now
	return ok && now.Sub(last) < debounceWindow
}

func translate(ev PhysicalEvent) string {
	switch ev.Kind {
	case "touch_tap":
		return ipc.TypeManualWake
	case "touch_hold":
		return ipc.TypeMuteToggle
	case "rotate_cw":
		return ipc.TypeVolumeUp
	case "rotate_ccw":
		return ipc.TypeVolumeDown
	default:
		return ""
	}
}
