// Package metrics wires the monotonic counters from spec section 3 to an
// OpenTelemetry MeterProvider with a Prometheus exporter bridge, following
// the shape of internal/observe in MrWong99/glyphoxa: a struct of named
// instruments created once from a metric.MeterProvider, plus convenience
// Inc* methods so call sites never touch the OTel API directly.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/agalue/lva"

// Counters holds every OpenTelemetry instrument the activation pipeline
// records against. All fields are safe for concurrent use.
type Counters struct {
	VisionRequests         metric.Int64Counter
	VisionSuccess          metric.Int64Counter
	VisionTimeout          metric.Int64Counter
	FalseTriggersPrevented metric.Int64Counter
	XrunCounter            metric.Int64Counter
	IPCOversizeFrames      metric.Int64Counter

	// Supporting instruments the teacher has no equivalent of; added to
	// exercise the richer OTel surface (spec section 2.1 AMBIENT STACK).
	StateTransitions metric.Int64Counter
	VisionLatencyMs  metric.Float64Histogram
	ActiveSessions   metric.Int64UpDownCounter
}

// New creates a Counters using the given MeterProvider. Returns an error if
// any instrument creation fails.
func New(mp metric.MeterProvider) (*Counters, error) {
	m := mp.Meter(meterName)
	c := &Counters{}
	var err error

	if c.VisionRequests, err = m.Int64Counter("lva.vision.requests",
		metric.WithDescription("Total vision glance requests issued.")); err != nil {
		return nil, err
	}
	if c.VisionSuccess, err = m.Int64Counter("lva.vision.success",
		metric.WithDescription("Vision glances that confirmed attention.")); err != nil {
		return nil, err
	}
	if c.VisionTimeout, err = m.Int64Counter("lva.vision.timeout",
		metric.WithDescription("Vision glances that timed out.")); err != nil {
		return nil, err
	}
	if c.FalseTriggersPrevented, err = m.Int64Counter("lva.false_triggers_prevented",
		metric.WithDescription("Proximity triggers rejected by attention gating or cooldown.")); err != nil {
		return nil, err
	}
	if c.XrunCounter, err = m.Int64Counter("lva.audio.xruns",
		metric.WithDescription("Audio capture ring-buffer overflows.")); err != nil {
		return nil, err
	}
	if c.IPCOversizeFrames, err = m.Int64Counter("lva.ipc.oversize_frames",
		metric.WithDescription("IPC frames dropped for exceeding the maximum frame size.")); err != nil {
		return nil, err
	}
	if c.StateTransitions, err = m.Int64Counter("lva.activation.transitions",
		metric.WithDescription("Total activation state machine transitions.")); err != nil {
		return nil, err
	}
	if c.VisionLatencyMs, err = m.Float64Histogram("lva.vision.latency_ms",
		metric.WithDescription("Vision glance round-trip latency."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 200, 400, 800, 1200, 2000)); err != nil {
		return nil, err
	}
	if c.ActiveSessions, err = m.Int64UpDownCounter("lva.hub.active_sessions",
		metric.WithDescription("Conversation sessions currently open against the hub.")); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Counters) IncVisionRequests()         { c.VisionRequests.Add(context.Background(), 1) }
func (c *Counters) IncVisionSuccess()          { c.VisionSuccess.Add(context.Background(), 1) }
func (c *Counters) IncVisionTimeout()          { c.VisionTimeout.Add(context.Background(), 1) }
func (c *Counters) IncFalseTriggersPrevented() { c.FalseTriggersPrevented.Add(context.Background(), 1) }
func (c *Counters) IncXrun()                   { c.XrunCounter.Add(context.Background(), 1) }
func (c *Counters) IncStateTransition()        { c.StateTransitions.Add(context.Background(), 1) }
func (c *Counters) IncIPCOversizeFrame()       { c.IPCOversizeFrames.Add(context.Background(), 1) }
func (c *Counters) ObserveVisionLatencyMs(ms float64) {
	c.VisionLatencyMs.Record(context.Background(), ms)
}
func (c *Counters) SessionOpened() { c.ActiveSessions.Add(context.Background(), 1) }
func (c *Counters) SessionClosed() { c.ActiveSessions.Add(context.Background(), -1) }

// InitProvider sets up a MeterProvider backed by a Prometheus exporter and
// registers it as the global OTel MeterProvider, mirroring
// MrWong99/glyphoxa's internal/observe.InitProvider. Returns a shutdown
// func to call from main() on exit.
func InitProvider() (provider *sdkmetric.MeterProvider, shutdown func(context.Context) error, err error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
