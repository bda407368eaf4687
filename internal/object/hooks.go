package object

import "github.com/roach88/objgraph/internal/future"

// Prototype is implemented by exports that construct their own instances
// when a serialization names them with "prototype".
type Prototype interface {
	New() any
}

// Creator is called right after a fresh instance is created, while it is
// already marked as deserializing.
type Creator interface {
	DidCreate()
}

// DeserializingMarker receives the "deserializing" marker. It is set when
// the object is revived and cleared once after bindings and units ran.
type DeserializingMarker interface {
	SetDeserializing(bool)
}

// DeserializedNotifier is told its label once the whole graph is live.
// It is not called for objects supplied by the caller.
type DeserializedNotifier interface {
	DeserializedFromSerialization(label string)
}

// ValuesDeserializer gives a ValuesDeserializable access to its revived
// values block and to the rest of the graph.
type ValuesDeserializer interface {
	Value(name string) (any, bool)
	Values() map[string]any
	ObjectByLabel(label string) (any, error)
	ElementByID(id string) (any, bool)
}

// ValuesDeserializable objects apply their own values instead of having
// every key copied onto them.
type ValuesDeserializable interface {
	DeserializeValues(v ValuesDeserializer) error
}

// SelfDeserializer gives a SelfDeserializable the full revived descriptor.
type SelfDeserializer interface {
	ValuesDeserializer
	Object() any
	Label() string
	Descriptor() map[string]any
	// SetObjectValues copies the values block onto the object.
	SetObjectValues() error
	// DeserializeUnit schedules one named unit for the post-pass.
	DeserializeUnit(name string)
	// DeserializeUnits schedules every registered unit present in the
	// descriptor.
	DeserializeUnits()
}

// SelfDeserializable objects take over their whole reconstruction. A
// settled zero Result keeps the object; any other value replaces it under
// its label.
type SelfDeserializable interface {
	DeserializeSelf(s SelfDeserializer) future.Result[any]
}
