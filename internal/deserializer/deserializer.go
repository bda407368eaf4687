package deserializer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/objgraph/internal/binding"
	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/future"
	"github.com/roach88/objgraph/internal/location"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/revive"
	"github.com/roach88/objgraph/internal/units"
)

// RootLabel is the label DeserializeObject returns.
const RootLabel = "root"

// Deserializer deserializes one serialization document.
type Deserializer struct {
	input  any
	loader *module.Loader
	opts   options

	serialization map[string]any
	run           *revive.Run
}

// New creates a Deserializer for input, which is JSON text ([]byte, string
// or json.RawMessage) or an already decoded map[string]any. Decoded
// documents are copied before each run, so module exports handed in as
// input are never mutated. Input is parsed when it is first needed.
func New(input any, resolver module.Resolver, opts ...Option) (*Deserializer, error) {
	switch v := input.(type) {
	case []byte, string, json.RawMessage, map[string]any:
	case module.Exported:
		input = map[string]any(v)
	default:
		return nil, fmt.Errorf("unsupported serialization input %T", input)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.ext == nil {
		o.ext = extension.New()
		units.Register(o.ext)
	}
	if o.locations == nil {
		o.locations = location.Default()
	}
	if o.binder == nil {
		o.binder = binding.NewApplier(o.logger)
	}
	loader, err := module.NewLoader(resolver, o.objectResolvers)
	if err != nil {
		return nil, err
	}

	return &Deserializer{
		input:  input,
		loader: loader,
		opts:   o,
	}, nil
}

// Run returns the run of the last deserialization. Without WithRun every
// call to Deserialize starts a new run.
func (d *Deserializer) Run() *revive.Run {
	return d.run
}

// Serialization returns the document of the last run, or nil before the
// first one.
func (d *Deserializer) Serialization() map[string]any {
	return d.serialization
}

// Deserialize revives every label of the document. instances supplies
// external objects by label and elements resolves element ids; both may be
// nil. The label map is returned only when the whole document, its bind
// and unit phases included, succeeded.
func (d *Deserializer) Deserialize(ctx context.Context, instances map[string]any, elements revive.ElementScope) (map[string]any, error) {
	return d.deserialize(instances, elements).Await(ctx)
}

// DeserializeObject deserializes the document and returns its "root"
// object.
func (d *Deserializer) DeserializeObject(ctx context.Context, instances map[string]any, elements revive.ElementScope) (any, error) {
	objects, err := d.Deserialize(ctx, instances, elements)
	if err != nil {
		return nil, err
	}
	return objects[RootLabel], nil
}

// Deserialize deserializes src and returns its "root" object.
func Deserialize(ctx context.Context, src any, resolver module.Resolver, opts ...Option) (any, error) {
	d, err := New(src, resolver, opts...)
	if err != nil {
		return nil, err
	}
	return d.DeserializeObject(ctx, nil, nil)
}

func (d *Deserializer) deserialize(instances map[string]any, elements revive.ElementScope) future.Result[map[string]any] {
	doc, err := d.parse()
	if err != nil {
		return future.Fail[map[string]any](err)
	}
	d.serialization = doc

	run := d.opts.run
	if run == nil {
		run = revive.NewRun(d.opts.idGen, d.opts.logger)
	}
	d.run = run

	r, err := d.reviver(run)
	if err != nil {
		return future.Fail[map[string]any](err)
	}
	c := revive.NewContext(r, doc, instances, elements)

	id := d.opts.locationID
	if id == "" {
		return c.GetObjects()
	}

	run.Enter(id, c)
	res := c.GetObjects()
	if _, _, ok := res.Settled(); ok {
		run.Leave(id)
		return res
	}
	return future.Pending(func(ctx context.Context) (map[string]any, error) {
		defer run.Leave(id)
		return res.Await(ctx)
	})
}

func (d *Deserializer) reviver(run *revive.Run) (*revive.Reviver, error) {
	return revive.New(revive.Config{
		Loader:     d.loader,
		Locations:  d.opts.locations,
		Extensions: d.opts.ext,
		Binder:     d.opts.binder,
		Run:        run,
		LocationID: d.opts.locationID,
		Nested:     d.nested,
		Halt:       d.opts.halt,
		Logger:     d.opts.logger,
	})
}

// nested deserializes a document module within run and returns its root.
func (d *Deserializer) nested(doc any, resolver module.Resolver, moduleID string, run *revive.Run) future.Result[any] {
	o := d.opts.nestedOptions(moduleID, run)
	loader, err := module.NewLoader(resolver, nil)
	if err != nil {
		return future.Fail[any](err)
	}
	switch doc.(type) {
	case []byte, string, json.RawMessage, map[string]any, module.Exported:
	default:
		return future.Fail[any](&revive.Error{
			Code:    revive.ErrCodeInvalidDescriptor,
			Message: fmt.Sprintf("module %q is not a serialization document", moduleID),
		})
	}
	if e, ok := doc.(module.Exported); ok {
		doc = map[string]any(e)
	}

	child := &Deserializer{input: doc, loader: loader, opts: o}
	return future.Then(child.deserialize(nil, nil), func(objects map[string]any) future.Result[any] {
		return future.Ready(objects[RootLabel])
	})
}

// parse returns a fresh copy of the document.
func (d *Deserializer) parse() (map[string]any, error) {
	var src []byte
	switch v := d.input.(type) {
	case map[string]any:
		return deepCopy(v).(map[string]any), nil
	case []byte:
		src = v
	case json.RawMessage:
		src = v
	case string:
		src = []byte(v)
	}

	var doc any
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, d.syntaxError(src, err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &revive.Error{
			Code:    revive.ErrCodeInvalidDescriptor,
			Message: fmt.Sprintf("serialization must be an object, got %s", revive.Classify(doc)),
		}
	}
	return m, nil
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = deepCopy(elem)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, elem := range val {
			s[i] = deepCopy(elem)
		}
		return s
	}
	return v
}
