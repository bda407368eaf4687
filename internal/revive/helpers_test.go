package revive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/location"
	"github.com/roach88/objgraph/internal/module"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// widget is a Go prototype that records the hooks it receives.
type widget struct {
	Size float64 `json:"size"`
	Name string  `json:"name"`
	Peer any     `json:"peer"`

	deserializing      bool
	markCount          int
	clearCount         int
	createdWhileMarked bool
	created            int
	notified           []string
	markedWhenNotified bool
}

func (w *widget) New() any { return &widget{} }

func (w *widget) DidCreate() {
	w.created++
	w.createdWhileMarked = w.deserializing
}

func (w *widget) SetDeserializing(v bool) {
	if v {
		w.markCount++
	}
	if w.deserializing && !v {
		w.clearCount++
	}
	w.deserializing = v
}

func (w *widget) DeserializedFromSerialization(label string) {
	w.notified = append(w.notified, label)
	w.markedWhenNotified = w.deserializing
}

type elements map[string]any

func (e elements) ElementByID(id string) (any, bool) {
	v, ok := e[id]
	return v, ok
}

func newRegistry() *module.Registry {
	reg := module.NewRegistry("test://app/")
	reg.Define("pkg/widget", module.Exported{
		"Widget": &widget{},
		"Gadget": &widget{},
	})
	return reg
}

func newReviver(t *testing.T, r module.Resolver, cfg Config) *Reviver {
	t.Helper()
	loader, err := module.NewLoader(r, nil)
	require.NoError(t, err)
	cfg.Loader = loader
	if cfg.Locations == nil {
		cfg.Locations = location.NewCache()
	}
	if cfg.Extensions == nil {
		cfg.Extensions = extension.New()
	}
	if cfg.Run == nil {
		cfg.Run = NewRun(fixedID("run-1"), discardLogger())
	}
	rv, err := New(cfg)
	require.NoError(t, err)
	return rv
}

func parse(t *testing.T, src string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &doc))
	return doc
}

func reviveDoc(t *testing.T, r *Reviver, src string, users map[string]any, scope ElementScope) (map[string]any, error) {
	t.Helper()
	c := NewContext(r, parse(t, src), users, scope)
	return c.GetObjects().Await(context.Background())
}
