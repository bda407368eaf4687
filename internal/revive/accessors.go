package revive

import "github.com/roach88/objgraph/internal/object"

// valuesDeserializer is what a ValuesDeserializable sees.
type valuesDeserializer struct {
	c      *Context
	values map[string]any
}

func (v *valuesDeserializer) Value(name string) (any, bool) {
	value, ok := v.values[name]
	return value, ok
}

func (v *valuesDeserializer) Values() map[string]any {
	return v.values
}

func (v *valuesDeserializer) ObjectByLabel(label string) (any, error) {
	return v.c.ObjectByLabel(label)
}

func (v *valuesDeserializer) ElementByID(id string) (any, bool) {
	return v.c.ElementByID(id)
}

// selfDeserializer is what a SelfDeserializable sees.
type selfDeserializer struct {
	valuesDeserializer
	r      *Reviver
	object any
	desc   map[string]any
	label  string
}

func (s *selfDeserializer) Object() any                { return s.object }
func (s *selfDeserializer) Label() string              { return s.label }
func (s *selfDeserializer) Descriptor() map[string]any { return s.desc }

func (s *selfDeserializer) SetObjectValues() error {
	return s.r.applyValues(s.c, s.object, s.desc["values"], s.label)
}

func (s *selfDeserializer) DeserializeUnit(name string) {
	s.c.queueUnits(s.label, s.object, s.desc, []string{name})
}

func (s *selfDeserializer) DeserializeUnits() {
	s.c.queueUnits(s.label, s.object, s.desc, s.r.ext.UnitNames())
}

var (
	_ object.ValuesDeserializer = (*valuesDeserializer)(nil)
	_ object.SelfDeserializer   = (*selfDeserializer)(nil)
)
