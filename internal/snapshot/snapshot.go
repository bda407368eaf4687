// Package snapshot renders a revived object graph as canonical JSON.
//
// The output is deterministic: object keys are sorted by UTF-16 code
// units, strings are NFC normalized and HTML characters are not escaped.
// A value that is bound to a label is written in full once, under its
// label; every other occurrence becomes a reference {"@": label}, so
// cyclic graphs built from labels encode without recursion.
//
// Values that are not plain JSON are written as tagged objects:
//
//	*object.RegExp     {"/": {"flags": ..., "source": ...}}
//	*module.Reference  {"%": moduleID}
//	*object.Alias      {"$alias": path}
//	*object.Object     {"$type": name, "$proto": ..., own properties}
//	*element.Element   {"$element": "<tag data-id=...>", "$listeners": [...]}
//	structs            {"$type": "pkg.Type", exported fields}
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/objgraph/internal/element"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/object"
)

// ErrCycle is returned when a cycle runs through values that no label
// names.
var ErrCycle = errors.New("cycle through an unlabeled value")

// Marshal encodes a label map. Each label's value is written in full and
// shared values are written as label references.
func Marshal(objects map[string]any) ([]byte, error) {
	e := newEncoder()
	labels := e.index(objects)

	e.buf.WriteByte('{')
	for i, label := range labels {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.writeString(label)
		e.buf.WriteByte(':')
		if id, ok := identityOf(objects[label]); ok && e.labels[id] != label {
			e.writeRef(e.labels[id])
			continue
		}
		if err := e.encode(objects[label], true); err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}
	}
	e.buf.WriteByte('}')
	return e.buf.Bytes(), nil
}

// MarshalLabel encodes the value of one label. Other labeled values it
// reaches are written as label references.
func MarshalLabel(objects map[string]any, label string) ([]byte, error) {
	v, ok := objects[label]
	if !ok {
		return nil, fmt.Errorf("label %q not found", label)
	}
	e := newEncoder()
	e.index(objects)
	if err := e.encode(v, true); err != nil {
		return nil, fmt.Errorf("label %q: %w", label, err)
	}
	return e.buf.Bytes(), nil
}

// MarshalValue encodes a single value. No label references are produced.
func MarshalValue(v any) ([]byte, error) {
	e := newEncoder()
	if err := e.encode(v, true); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// Indent returns the canonical encoding indented for terminals.
func Indent(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// identityOf returns the identity of reference-like values. Scalars
// have none.
func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), n: rv.Len()}, true
	}
	return identity{}, false
}

type encoder struct {
	buf      bytes.Buffer
	labels   map[identity]string
	visiting map[identity]bool
}

func newEncoder() *encoder {
	return &encoder{
		labels:   make(map[identity]string),
		visiting: make(map[identity]bool),
	}
}

// index binds every labeled value to its first label in sorted order and
// returns the sorted labels.
func (e *encoder) index(objects map[string]any) []string {
	labels := sortedKeys(objects)
	for _, label := range labels {
		if id, ok := identityOf(objects[label]); ok {
			if _, seen := e.labels[id]; !seen {
				e.labels[id] = label
			}
		}
	}
	return labels
}

// encode writes v. top is set for the value written directly under its
// own label, which is expanded rather than referenced.
func (e *encoder) encode(v any, top bool) error {
	id, hasID := identityOf(v)
	if hasID {
		if label, ok := e.labels[id]; ok && !top {
			e.writeRef(label)
			return nil
		}
		if e.visiting[id] {
			return ErrCycle
		}
		e.visiting[id] = true
		defer delete(e.visiting, id)
	} else if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		e.buf.WriteString("null")
		return nil
	}

	switch val := v.(type) {
	case nil:
		e.buf.WriteString("null")
		return nil
	case string:
		e.writeString(val)
		return nil
	case bool:
		if val {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
		return nil
	case *object.RegExp:
		return e.writeObject(map[string]any{
			"/": map[string]any{"source": val.Source, "flags": val.Flags},
		})
	case *module.Reference:
		return e.writeObject(map[string]any{"%": val.ID})
	case *object.Alias:
		return e.writeObject(map[string]any{"$alias": val.Value})
	case *object.Object:
		return e.encodeObject(val)
	case *element.Element:
		return e.encodeElement(val)
	case map[string]any:
		if val == nil {
			e.buf.WriteString("null")
			return nil
		}
		return e.writeObject(val)
	case []any:
		if val == nil {
			e.buf.WriteString("null")
			return nil
		}
		return e.writeArray(val)
	}
	return e.encodeReflect(reflect.ValueOf(v))
}

func (e *encoder) writeRef(label string) {
	e.buf.WriteString(`{"@":`)
	e.writeString(label)
	e.buf.WriteByte('}')
}

func (e *encoder) encodeObject(o *object.Object) error {
	fields := make(map[string]any, len(o.Keys())+2)
	for _, k := range o.Keys() {
		fields[k], _ = o.Own(k)
	}
	fields["$type"] = o.String()
	if o.Proto() != nil {
		fields["$proto"] = o.Proto()
	}
	return e.writeObject(fields)
}

func (e *encoder) encodeElement(el *element.Element) error {
	fields := map[string]any{"$element": el.String()}
	if ls := el.Listeners(); len(ls) > 0 {
		list := make([]any, len(ls))
		for i, l := range ls {
			list[i] = map[string]any{"type": l.Type, "listener": l.Listener, "capture": l.Capture}
		}
		fields["$listeners"] = list
	}
	return e.writeObject(fields)
}

func (e *encoder) encodeReflect(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(&e.buf, "%d", rv.Int())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(&e.buf, "%d", rv.Uint())
		return nil
	case reflect.Float32, reflect.Float64:
		return e.writeNumber(rv.Float())
	case reflect.String:
		e.writeString(rv.String())
		return nil
	case reflect.Bool:
		return e.encode(rv.Bool(), false)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.encode(rv.Elem().Interface(), false)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return e.writeArray(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[iter.Key().String()] = iter.Value().Interface()
		}
		return e.writeObject(fields)
	case reflect.Struct:
		return e.writeObject(structFields(rv))
	}
	return fmt.Errorf("unsupported type %s", rv.Type())
}

// structFields collects the exported fields of a struct, named by their
// json tag when one is present.
func structFields(rv reflect.Value) map[string]any {
	rt := rv.Type()
	fields := map[string]any{"$type": rt.String()}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields[name] = rv.Field(i).Interface()
	}
	return fields
}

func (e *encoder) writeObject(fields map[string]any) error {
	e.buf.WriteByte('{')
	for i, k := range sortedKeys(fields) {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.writeString(k)
		e.buf.WriteByte(':')
		if err := e.encode(fields[k], false); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) writeArray(items []any) error {
	e.buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(item, false); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// writeNumber uses the shortest representation that round trips; whole
// numbers are written without a fraction.
func (e *encoder) writeNumber(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("number %v has no JSON representation", f)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	e.buf.Write(data)
	return nil
}

// writeString writes a quoted NFC string. Only the quote, the backslash
// and control characters are escaped.
func (e *encoder) writeString(s string) {
	const hex = "0123456789abcdef"
	e.buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch {
		case r == '"':
			e.buf.WriteString(`\"`)
		case r == '\\':
			e.buf.WriteString(`\\`)
		case r == '\b':
			e.buf.WriteString(`\b`)
		case r == '\f':
			e.buf.WriteString(`\f`)
		case r == '\n':
			e.buf.WriteString(`\n`)
		case r == '\r':
			e.buf.WriteString(`\r`)
		case r == '\t':
			e.buf.WriteString(`\t`)
		case r < 0x20:
			e.buf.WriteString(`\u00`)
			e.buf.WriteByte(hex[r>>4])
			e.buf.WriteByte(hex[r&0xf])
		default:
			e.buf.WriteRune(r)
		}
	}
	e.buf.WriteByte('"')
}

// sortedKeys orders keys by UTF-16 code units.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})
	return keys
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
