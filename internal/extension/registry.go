// Package extension holds the tables external code uses to extend
// deserialization: named units applied after the graph is revived, and
// custom revivers for value kinds the core does not know.
//
// A Registry is constructed once at startup, populated, and injected into
// deserializers. Registration is expected to finish before deserialization
// starts, but the registry is safe for concurrent use.
package extension

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/objgraph/internal/future"
)

// UnitContext is handed to unit handlers and binding appliers. It gives
// access to the graph being deserialized.
type UnitContext interface {
	ObjectByLabel(label string) (any, error)
	ElementByID(id string) (any, bool)
	RunID() string
}

// UnitFunc post-processes object with the raw (revived) block found under
// the unit's name in the object's descriptor.
type UnitFunc func(uc UnitContext, object any, block any) error

// ReviveScope is handed to custom revivers.
type ReviveScope interface {
	// ReviveValue revives a nested value with the core rules.
	ReviveValue(value any, label string) future.Result[any]
	// SetObjectLabel records value under label.
	SetObjectLabel(label string, value any)
	ObjectByLabel(label string) (any, error)
	ElementByID(id string) (any, bool)
}

// ReviverFunc revives a value of a custom kind.
type ReviverFunc func(scope ReviveScope, value any, label string) future.Result[any]

// CustomReviver contributes custom kinds. TypeOf names the kind of a value
// it handles, or returns "" to decline. Revivers maps each kind it can name
// to its implementation.
type CustomReviver interface {
	TypeOf(value any) string
	Revivers() map[string]ReviverFunc
}

// ConflictError is returned when a custom reviver kind is already taken.
type ConflictError struct {
	Kind string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reviver %q is already registered", e.Kind)
}

// Registry stores unit handlers and custom revivers.
type Registry struct {
	mu        sync.RWMutex
	units     map[string]UnitFunc
	unitNames []string
	revivers  map[string]ReviverFunc
	typeOfs   []func(any) string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		units:    make(map[string]UnitFunc),
		revivers: make(map[string]ReviverFunc),
	}
}

// DefineUnit registers fn under name. Units run in the order they were
// first defined; redefining a name replaces its handler in place.
func (r *Registry) DefineUnit(name string, fn UnitFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[name]; !exists {
		r.unitNames = append(r.unitNames, name)
	}
	slog.Debug("registering deserialization unit", "name", name)
	r.units[name] = fn
}

// Unit returns the handler registered under name.
func (r *Registry) Unit(name string) (UnitFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.units[name]
	return fn, ok
}

// UnitNames returns the unit names in execution order.
func (r *Registry) UnitNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.unitNames))
	copy(names, r.unitNames)
	return names
}

// AddCustomObjectReviver registers every kind of cr. If any kind is
// already registered nothing is registered and a *ConflictError is
// returned. The newest TypeOf is consulted first.
func (r *Registry) AddCustomObjectReviver(cr CustomReviver) error {
	revivers := cr.Revivers()

	kinds := make([]string, 0, len(revivers))
	for kind := range revivers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range kinds {
		if _, exists := r.revivers[kind]; exists {
			return &ConflictError{Kind: kind}
		}
	}
	for _, kind := range kinds {
		slog.Debug("registering custom reviver", "kind", kind)
		r.revivers[kind] = revivers[kind]
	}
	r.typeOfs = append(r.typeOfs, cr.TypeOf)
	return nil
}

// Reviver returns the custom reviver registered for kind.
func (r *Registry) Reviver(kind string) (ReviverFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.revivers[kind]
	return fn, ok
}

// TypeOf returns the custom kind of value, or "" if no custom reviver
// claims it.
func (r *Registry) TypeOf(value any) string {
	r.mu.RLock()
	typeOfs := r.typeOfs
	r.mu.RUnlock()

	for i := len(typeOfs) - 1; i >= 0; i-- {
		if kind := typeOfs[i](value); kind != "" {
			return kind
		}
	}
	return ""
}

// ResetCustomObjectRevivers removes every custom reviver.
func (r *Registry) ResetCustomObjectRevivers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revivers = make(map[string]ReviverFunc)
	r.typeOfs = nil
}
