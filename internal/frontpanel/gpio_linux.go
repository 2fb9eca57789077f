//go:build linux

package frontpanel

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// holdThreshold distinguishes a tap from a hold on the capacitive touch
// line.
const holdThreshold = 600 * time.Millisecond

// GPIOInputSource reads a rotary encoder's quadrature lines and a
// capacitive touch line via go-gpiocdev, the only GPIO dependency anywhere
// in the reference corpus.
type GPIOInputSource struct {
	chip   *gpiocdev.Chip
	touch  *gpiocdev.Line
	encA   *gpiocdev.Line
	encB   *gpiocdev.Line
	events chan PhysicalEvent

	touchDownAt time.Time
	lastA       int
}

// GPIOLines names the offsets for the touch and encoder lines on chipName
// (e.g. "gpiochip0").
type GPIOLines struct {
	ChipName  string
	TouchLine int
	EncALine  int
	EncBLine  int
}

// NewGPIOInputSource opens the configured lines as inputs with edge
// detection and begins translating raw edges into PhysicalEvents.
func NewGPIOInputSource(cfg GPIOLines) (*GPIOInputSource, error) {
	chip, err := gpiocdev.NewChip(cfg.ChipName)
	if err != nil {
		return nil, fmt.Errorf("frontpanel: open %s: %w", cfg.ChipName, err)
	}

	s := &GPIOInputSource{chip: chip, events: make(chan PhysicalEvent, 16), lastA: 1}

	touch, err := chip.RequestLine(cfg.TouchLine, gpiocdev.WithPullUp, gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onTouchEdge))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("frontpanel: request touch line %d: %w", cfg.TouchLine, err)
	}
	s.touch = touch

	encA, err := chip.RequestLine(cfg.EncALine, gpiocdev.WithPullUp, gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onEncoderEdge))
	if err != nil {
		touch.Close()
		chip.Close()
		return nil, fmt.Errorf("frontpanel: request encoder A line %d: %w", cfg.EncALine, err)
	}
	s.encA = encA

	encB, err := chip.RequestLine(cfg.EncBLine, gpiocdev.WithPullUp)
	if err != nil {
		encA.Close()
		touch.Close()
		chip.Close()
		return nil, fmt.Errorf("frontpanel: request encoder B line %d: %w", cfg.EncBLine, err)
	}
	s.encB = encB

	return s, nil
}

func (s *GPIOInputSource) onTouchEdge(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		s.touchDownAt = time.Now()
	case gpiocdev.LineEventFallingEdge:
		if s.touchDownAt.IsZero() {
			return
		}
		held := time.Since(s.touchDownAt)
		s.touchDownAt = time.Time{}
		kind := "touch_tap"
		if held >= holdThreshold {
			kind = "touch_hold"
		}
		s.emit(PhysicalEvent{Kind: kind})
	}
}

func (s *GPIOInputSource) onEncoderEdge(evt gpiocdev.LineEvent) {
	// Quadrature decode: on A's rising edge, B's level gives direction.
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	b, err := s.encB.Value()
	if err != nil {
		return
	}
	if b == 0 {
		s.emit(PhysicalEvent{Kind: "rotate_cw"})
	} else {
		s.emit(PhysicalEvent{Kind: "rotate_ccw"})
	}
}

func (s *GPIOInputSource) emit(ev PhysicalEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

// Events implements InputSource.
func (s *GPIOInputSource) Events() <-chan PhysicalEvent { return s.events }

// Close releases the GPIO lines and chip handle.
func (s *GPIOInputSource) Close() error {
	s.encB.Close()
	s.encA.Close()
	s.touch.Close()
	return s.chip.Close()
}
