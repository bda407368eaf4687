package object

import (
	"fmt"
	"reflect"
	"strings"
)

// PropertySetter is implemented by types that accept named properties.
type PropertySetter interface {
	SetProperty(key string, value any) error
}

// PropertyGetter is implemented by types that expose named properties.
type PropertyGetter interface {
	GetProperty(key string) (any, bool)
}

// Observable is implemented by objects that report property changes.
// The returned cancel func stops the observation.
type Observable interface {
	Observe(key string, fn func(value any)) (cancel func())
}

// SetProperty assigns value to key on target. Supported targets, in order:
// PropertySetter, *Object, map[string]any, and pointers to structs (field
// matched by json tag, then case-insensitively by name).
func SetProperty(target any, key string, value any) error {
	switch t := target.(type) {
	case nil:
		return fmt.Errorf("cannot set %q on nil", key)
	case PropertySetter:
		return t.SetProperty(key, value)
	case *Object:
		t.Set(key, value)
		return nil
	case map[string]any:
		t[key] = value
		return nil
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot set %q on %T", key, target)
	}

	field, ok := structField(rv.Elem(), key)
	if !ok {
		return fmt.Errorf("%T has no settable field for %q", target, key)
	}
	return assign(field, value, key)
}

// GetProperty reads key from target using the same rules as SetProperty.
func GetProperty(target any, key string) (any, bool) {
	switch t := target.(type) {
	case nil:
		return nil, false
	case PropertyGetter:
		return t.GetProperty(key)
	case *Object:
		return t.Get(key)
	case map[string]any:
		v, ok := t[key]
		return v, ok
	}

	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	field, ok := structField(rv, key)
	if !ok {
		return nil, false
	}
	return field.Interface(), true
}

func structField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if name := strings.Split(f.Tag.Get("json"), ",")[0]; name == key {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, key) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assign(field reflect.Value, value any, key string) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case isNumeric(rv.Kind()) && isNumeric(field.Kind()):
		field.Set(rv.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %T to field %q of type %s", value, key, field.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
