// Package object is the live object model produced by deserialization.
//
// Object is a dynamic property bag with a prototype chain, used when a
// serialization instantiates a prototype that is itself a plain object.
// Go types take part through small interfaces: Prototype for custom
// instantiation, PropertySetter/PropertyGetter for property access, and
// the lifecycle hooks in hooks.go.
package object

import (
	"fmt"
	"reflect"
	"sort"
)

// Object is a dynamic object whose property lookups fall back to its
// prototype chain.
type Object struct {
	name          string
	proto         *Object
	props         map[string]any
	deserializing bool

	observers map[string]map[int]func(any)
	nextObs   int
}

// New creates an object inheriting from proto, which may be nil.
func New(proto *Object) *Object {
	o := &Object{proto: proto, props: make(map[string]any)}
	if proto != nil {
		o.name = proto.name
	}
	return o
}

// NewNamed creates a root prototype object with a type name.
func NewNamed(name string, props map[string]any) *Object {
	o := &Object{name: name, props: make(map[string]any, len(props))}
	for k, v := range props {
		o.props[k] = v
	}
	return o
}

// Name returns the type name inherited from the root prototype.
func (o *Object) Name() string {
	return o.name
}

// Proto returns the prototype, or nil.
func (o *Object) Proto() *Object {
	return o.proto
}

// Get returns the value of key, consulting the prototype chain.
func (o *Object) Get(key string) (any, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if v, ok := cur.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Own returns the value of key only if it is set on o itself.
func (o *Object) Own(key string) (any, bool) {
	v, ok := o.props[key]
	return v, ok
}

// Set assigns an own property. Observers of key are called when the
// value changes.
func (o *Object) Set(key string, value any) {
	old, had := o.props[key]
	o.props[key] = value
	if had && reflect.DeepEqual(old, value) {
		return
	}
	for _, id := range o.observerIDs(key) {
		if fn, ok := o.observers[key][id]; ok {
			fn(value)
		}
	}
}

// Observe implements Observable.
func (o *Object) Observe(key string, fn func(value any)) (cancel func()) {
	if o.observers == nil {
		o.observers = make(map[string]map[int]func(any))
	}
	if o.observers[key] == nil {
		o.observers[key] = make(map[int]func(any))
	}
	id := o.nextObs
	o.nextObs++
	o.observers[key][id] = fn
	return func() {
		delete(o.observers[key], id)
	}
}

// observerIDs returns the observers of key in registration order.
func (o *Object) observerIDs(key string) []int {
	ids := make([]int, 0, len(o.observers[key]))
	for id := range o.observers[key] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Keys returns the sorted own property names.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.props))
	for k := range o.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetDeserializing implements DeserializingMarker.
func (o *Object) SetDeserializing(v bool) {
	o.deserializing = v
}

// IsDeserializing reports whether the object is still being deserialized.
func (o *Object) IsDeserializing() bool {
	return o.deserializing
}

// InheritsFrom reports whether proto is on o's prototype chain.
func (o *Object) InheritsFrom(proto *Object) bool {
	for cur := o.proto; cur != nil; cur = cur.proto {
		if cur == proto {
			return true
		}
	}
	return false
}

func (o *Object) String() string {
	if o.name == "" {
		return "Object"
	}
	return o.name
}

// Create instantiates a new object from a prototype export:
//   - Prototype values construct through New
//   - *Object values produce a child object inheriting from them
//   - pointers to structs produce a shallow copy of the pointed-to struct
//   - decoded JSON objects produce an *Object inheriting their properties
func Create(proto any) (any, error) {
	switch p := proto.(type) {
	case Prototype:
		return p.New(), nil
	case *Object:
		return New(p), nil
	case map[string]any:
		name, _ := p["name"].(string)
		return New(NewNamed(name, p)), nil
	}

	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		cp := reflect.New(rv.Elem().Type())
		cp.Elem().Set(rv.Elem())
		return cp.Interface(), nil
	}

	return nil, fmt.Errorf("cannot instantiate %T: not a prototype", proto)
}
