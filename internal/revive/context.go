package revive

import (
	"context"
	"reflect"
	"sort"

	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/future"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/object"
)

// ElementScope resolves element ids against a root element.
type ElementScope interface {
	ElementByID(id string) (any, bool)
}

// BindingApplier wires the bindings block of object once every label of
// the document is revived.
type BindingApplier interface {
	ApplyBindings(uc extension.UnitContext, object any, bindings map[string]any) error
}

type pendingBindings struct {
	label    string
	object   any
	bindings map[string]any
}

type pendingUnits struct {
	label  string
	object any
	desc   map[string]any
	names  []string
}

// Context is the object graph of one document being deserialized.
//
// It maps labels to revived objects, revives labels on demand so forward
// references work, and collects the bindings and units applied by
// DidReviveObjects after the whole document is live.
type Context struct {
	reviver       *Reviver
	serialization map[string]any
	userObjects   map[string]any
	elements      ElementScope

	objects  map[string]any
	results  map[string]future.Result[any]
	reviving map[string]bool

	bindings []pendingBindings
	units    []pendingUnits
}

// NewContext creates the context for serialization. userObjects and
// elements may be nil.
func NewContext(r *Reviver, serialization map[string]any, userObjects map[string]any, elements ElementScope) *Context {
	return &Context{
		reviver:       r,
		serialization: serialization,
		userObjects:   userObjects,
		elements:      elements,
		objects:       make(map[string]any),
		results:       make(map[string]future.Result[any]),
		reviving:      make(map[string]bool),
	}
}

// GetObjects revives every label, runs the bind and unit phases and
// returns the label map.
func (c *Context) GetObjects() future.Result[map[string]any] {
	labels := sortedKeys(c.serialization)
	results := make([]future.Result[any], 0, len(labels))
	for _, label := range labels {
		res := c.GetObject(label)
		if _, err, ok := res.Settled(); ok && err != nil {
			return future.Fail[map[string]any](err)
		}
		results = append(results, res)
	}

	return future.Then(future.All(results), func(values []any) future.Result[map[string]any] {
		for i, label := range labels {
			c.record(label, values[i])
		}
		if err := c.DidReviveObjects(); err != nil {
			return future.Fail[map[string]any](err)
		}
		return future.Ready(c.Objects())
	})
}

// GetObject returns the object known under label, reviving its descriptor
// the first time it is asked for.
func (c *Context) GetObject(label string) future.Result[any] {
	if v, ok := c.objects[label]; ok {
		return future.Ready(v)
	}
	if res, ok := c.results[label]; ok {
		return res
	}

	desc, ok := c.serialization[label]
	if !ok {
		return future.Fail[any](newError(ErrCodeUnresolvedReference, label,
			"Object with label '%s' was not found.", label))
	}
	if c.reviving[label] {
		return future.Fail[any](newError(ErrCodeCircularReference, label,
			"Object with label '%s' depends on itself", label))
	}

	c.reviving[label] = true
	res := c.reviver.ReviveRootObject(c, desc, label)
	delete(c.reviving, label)

	if v, err, ok := res.Settled(); ok {
		if err == nil {
			c.record(label, v)
		}
	} else {
		res = future.Then(res, func(v any) future.Result[any] {
			c.record(label, v)
			return future.Ready(v)
		})
	}
	c.results[label] = res
	return res
}

// record keeps v under label unless the reviver already stored an object.
func (c *Context) record(label string, v any) {
	if _, ok := c.objects[label]; !ok {
		c.objects[label] = v
	}
}

// root returns the "root" object of the document. While the document is
// in flight the lookup is deferred until awaited; a montage root is in the
// label table before its values are revived.
func (c *Context) root() future.Result[any] {
	if v, ok := c.objects["root"]; ok {
		return future.Ready(v)
	}
	if _, ok := c.serialization["root"]; !ok {
		return future.Ready[any](nil)
	}
	return future.Pending(func(ctx context.Context) (any, error) {
		if v, ok := c.objects["root"]; ok {
			return v, nil
		}
		if c.reviving["root"] {
			return nil, nil
		}
		return c.GetObject("root").Await(ctx)
	})
}

// SetObjectLabel records value under label.
func (c *Context) SetObjectLabel(label string, value any) {
	c.objects[label] = value
}

// UserObject returns the caller-supplied object for label.
func (c *Context) UserObject(label string) (any, bool) {
	v, ok := c.userObjects[label]
	return v, ok
}

// ObjectByLabel returns the object under label. It fails for labels whose
// revival is still pending.
func (c *Context) ObjectByLabel(label string) (any, error) {
	v, err, ok := c.GetObject(label).Settled()
	if !ok {
		return nil, newError(ErrCodeUnresolvedReference, label,
			"Object with label '%s' is not revived yet.", label)
	}
	return v, err
}

// ElementByID looks id up in the element scope.
func (c *Context) ElementByID(id string) (any, bool) {
	if c.elements == nil {
		return nil, false
	}
	return c.elements.ElementByID(id)
}

// ReviveValue revives value with the rules of the document's reviver.
func (c *Context) ReviveValue(value any, label string) future.Result[any] {
	return c.reviver.ReviveValue(c, value, label)
}

// Resolver returns the default module resolution context.
func (c *Context) Resolver() module.Resolver {
	return c.reviver.loader.Resolver()
}

// RunID returns the id of the run the document belongs to.
func (c *Context) RunID() string {
	return c.reviver.run.ID()
}

// Objects returns a copy of the label map.
func (c *Context) Objects() map[string]any {
	out := make(map[string]any, len(c.objects))
	for label, v := range c.objects {
		out[label] = v
	}
	return out
}

// queueBindings moves binding entries of the values block into the
// bindings block and schedules them for the bind phase.
func (c *Context) queueBindings(label string, obj any, desc map[string]any) {
	bindings, ok := desc["bindings"].(map[string]any)
	if !ok {
		bindings = make(map[string]any)
	}
	if values, ok := desc["values"].(map[string]any); ok {
		for key, v := range values {
			if isBindingDescriptor(v) {
				bindings[key] = v
				delete(values, key)
			}
		}
	}
	if len(bindings) == 0 {
		return
	}
	desc["bindings"] = bindings
	c.bindings = append(c.bindings, pendingBindings{label: label, object: obj, bindings: bindings})
}

// queueUnits schedules the units named in names that desc carries.
func (c *Context) queueUnits(label string, obj any, desc map[string]any, names []string) {
	c.units = append(c.units, pendingUnits{label: label, object: obj, desc: desc, names: names})
}

// isBindingDescriptor reports whether v declares a binding: a map with a
// binding operator key, possibly next to options such as a converter.
func isBindingDescriptor(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, op := range []string{OneAssignment, OneWay, TwoWay} {
		if _, ok := m[op]; ok {
			return true
		}
	}
	return false
}

// DidReviveObjects runs the post-pass: bindings, then units in
// registration order, then the deserializing marker is cleared and every
// label not supplied by the caller is notified. The first failure stops
// the pass.
func (c *Context) DidReviveObjects() error {
	for _, b := range c.bindings {
		if c.reviver.binder == nil {
			return newError(ErrCodeBindingFailed, b.label, "no binding applier configured for %q", b.label)
		}
		if err := c.reviver.binder.ApplyBindings(&unitContext{c: c}, b.object, b.bindings); err != nil {
			return wrapError(ErrCodeBindingFailed, b.label, err, "applying bindings of %q", b.label)
		}
	}

	for _, u := range c.units {
		for _, name := range u.names {
			block, ok := u.desc[name]
			if !ok {
				continue
			}
			fn, ok := c.reviver.ext.Unit(name)
			if !ok {
				return newError(ErrCodeUnitFailed, u.label, "unit %q is not registered", name)
			}
			if err := fn(&unitContext{c: c}, u.object, block); err != nil {
				return wrapError(ErrCodeUnitFailed, u.label, err, "unit %q of %q", name, u.label)
			}
		}
	}

	c.notify()
	return nil
}

func (c *Context) notify() {
	labels := make([]string, 0, len(c.objects))
	for label := range c.objects {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cleared := make(map[any]bool)
	for _, label := range labels {
		obj := c.objects[label]
		marker, ok := obj.(object.DeserializingMarker)
		if !ok {
			continue
		}
		if reflect.TypeOf(obj).Comparable() {
			if cleared[obj] {
				continue
			}
			cleared[obj] = true
		}
		marker.SetDeserializing(false)
	}

	for _, label := range labels {
		if _, user := c.userObjects[label]; user {
			continue
		}
		if n, ok := c.objects[label].(object.DeserializedNotifier); ok {
			n.DeserializedFromSerialization(label)
		}
	}
}

// unitContext is handed to binding appliers and unit handlers, one per
// call.
type unitContext struct {
	c *Context
}

func (u *unitContext) ObjectByLabel(label string) (any, error) { return u.c.ObjectByLabel(label) }
func (u *unitContext) ElementByID(id string) (any, bool)       { return u.c.ElementByID(id) }
func (u *unitContext) RunID() string                           { return u.c.RunID() }

var (
	_ extension.UnitContext = (*unitContext)(nil)
	_ extension.ReviveScope = (*Context)(nil)
)
