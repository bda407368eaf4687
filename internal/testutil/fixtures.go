// Package testutil provides fixtures shared by package tests: deterministic
// run ids, a discard logger, sample prototypes and a module registry
// exporting them.
package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/object"
)

// Location identifies the fixture registry.
const Location = "test://app/"

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Widget is a sample prototype that records the lifecycle hooks it gets.
type Widget struct {
	Size  float64 `json:"size"`
	Name  string  `json:"name"`
	Peer  any     `json:"peer"`
	Items []any   `json:"items"`

	deserializing      bool
	created            int
	cleared            int
	notified           []string
	markedWhenNotified bool
}

// New implements object.Prototype.
func (w *Widget) New() any { return &Widget{} }

// DidCreate implements object.Creator.
func (w *Widget) DidCreate() { w.created++ }

// SetDeserializing implements object.DeserializingMarker.
func (w *Widget) SetDeserializing(v bool) {
	if w.deserializing && !v {
		w.cleared++
	}
	w.deserializing = v
}

// DeserializedFromSerialization implements object.DeserializedNotifier.
func (w *Widget) DeserializedFromSerialization(label string) {
	w.notified = append(w.notified, label)
	w.markedWhenNotified = w.deserializing
}

// Created returns how many times DidCreate was called.
func (w *Widget) Created() int { return w.created }

// Cleared returns how many times the deserializing marker was cleared.
func (w *Widget) Cleared() int { return w.cleared }

// Notified returns the labels passed to DeserializedFromSerialization.
func (w *Widget) Notified() []string { return w.notified }

// MarkedWhenNotified reports whether the marker was still set when the
// last notification arrived.
func (w *Widget) MarkedWhenNotified() bool { return w.markedWhenNotified }

// Counter applies its own values: it sums every numeric value.
type Counter struct {
	Total float64
}

// New implements object.Prototype.
func (c *Counter) New() any { return &Counter{} }

// DeserializeValues implements object.ValuesDeserializable.
func (c *Counter) DeserializeValues(v object.ValuesDeserializer) error {
	for _, val := range v.Values() {
		if n, ok := val.(float64); ok {
			c.Total += n
		}
	}
	return nil
}

// Registry returns a registry exporting the fixture prototypes:
//
//	pkg/widget        Widget, Counter, Panel (an *object.Object prototype)
//	core/config.json  a plain JSON module
func Registry() *module.Registry {
	reg := module.NewRegistry(Location)
	reg.Define("pkg/widget", module.Exported{
		"Widget":  &Widget{},
		"Counter": &Counter{},
		"Panel":   object.NewNamed("Panel", map[string]any{"color": "red"}),
	})
	reg.Define("core/config.json", map[string]any{"debug": true})
	return reg
}
