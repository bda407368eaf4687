// Package units provides the built-in deserialization units.
package units

import (
	"fmt"

	"github.com/roach88/objgraph/internal/extension"
)

// Listeners is the name of the unit that registers event listeners:
//
//	"listeners": [{"type": "click", "listener": {"@": "owner"}, "capture": false}]
const Listeners = "listeners"

// EventTarget is implemented by objects that accept event listeners.
type EventTarget interface {
	AddEventListener(eventType string, listener any, capture bool) error
}

// Register defines the built-in units on ext.
func Register(ext *extension.Registry) {
	ext.DefineUnit(Listeners, listeners)
}

func listeners(_ extension.UnitContext, obj any, block any) error {
	target, ok := obj.(EventTarget)
	if !ok {
		return fmt.Errorf("%T does not accept event listeners", obj)
	}
	entries, ok := block.([]any)
	if !ok {
		return fmt.Errorf("listeners must be an array, got %T", block)
	}

	for i, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("listener %d must be an object, got %T", i, raw)
		}
		eventType, _ := entry["type"].(string)
		if eventType == "" {
			return fmt.Errorf("listener %d has no event type", i)
		}
		listener, ok := entry["listener"]
		if !ok || listener == nil {
			return fmt.Errorf("listener %d for %q has no listener", i, eventType)
		}
		capture, _ := entry["capture"].(bool)

		if err := target.AddEventListener(eventType, listener, capture); err != nil {
			return fmt.Errorf("listener %d for %q: %w", i, eventType, err)
		}
	}
	return nil
}
