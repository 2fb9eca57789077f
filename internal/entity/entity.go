// Package entity models the hub-exposed control surface (spec section 3):
// switches, selects, numbers, and sensors, each with a stable key and
// current value. Mutations arriving from the hub are dispatched through a
// Registry to a per-key handler, which enqueues a config-mutation event on
// the activation queue rather than touching shared state directly (spec
// section 4.6).
package entity

import (
	"fmt"
	"sync"

	"github.com/agalue/lva/internal/hubproto"
)

// Kind discriminates an Entity's value type.
type Kind = hubproto.EntityKind

const (
	KindSwitch = hubproto.KindSwitch
	KindSelect = hubproto.KindSelect
	KindNumber = hubproto.KindNumber
	KindSensor = hubproto.KindSensor
)

// Entity is the tagged-variant control/telemetry surface for one hub
// entity. Sensor entities are read-only (no WriteHandler); switch/select/
// number entities accept hub-initiated writes.
type Entity struct {
	Key     string
	Kind    Kind
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Options []string

	// value is the last known value, cached in the Registry and returned
	// by Registry.Get; the Registry does not send it to the hub.
	value any

	// WriteHandler processes a hub-initiated write for a switch/select/
	// number entity. It returns an error if the value is out of range or
	// not a recognized option; Registry then leaves value unchanged.
	WriteHandler func(v any) error
}

func (e Entity) Descriptor() hubproto.EntityDescriptor {
	return hubproto.EntityDescriptor{
		Key: e.Key, Kind: e.Kind, Name: e.Name,
		Unit: e.Unit, Min: e.Min, Max: e.Max, Options: e.Options,
	}
}

// Registry holds every entity this satellite exposes to the hub, keyed by
// entity key.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Register adds or replaces an entity definition.
func (r *Registry) Register(e Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := e
	r.entities[e.Key] = &cp
}

// Descriptors returns every registered entity's descriptor, for
// MsgEntityList.
func (r *Registry) Descriptors() []hubproto.EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hubproto.EntityDescriptor, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e.Descriptor())
	}
	return out
}

// Get returns an entity's last known value.
func (r *Registry) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Publish records a new sensor/telemetry value, without routing through
// WriteHandler (used for sensor entities the satellite itself updates).
func (r *Registry) Publish(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[key]; ok {
		e.value = value
	}
}

// Dispatch processes a hub-initiated write: validates via WriteHandler,
// and on success updates the cached value.
func (r *Registry) Dispatch(key string, value any) error {
	r.mu.Lock()
	e, ok := r.entities[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("entity: unknown key %q", key)
	}
	if e.WriteHandler == nil {
		return fmt.Errorf("entity: %q is read-only", key)
	}
	if err := e.WriteHandler(value); err != nil {
		return err
	}
	r.mu.Lock()
	e.value = value
	r.mu.Unlock()
	return nil
}
