// Package binding applies the bindings block of revived objects.
//
// A binding maps a property of the target object to a source path:
//
//	"name":  {"<-": "@owner.title"}                  one-way
//	"size":  {"=": "@config.size"}                   assigned once
//	"value": {"<->": "@slider.value", "converter": {"@": "fmt"}}  two-way
//
// Sources are "@label" optionally followed by dot-separated property names.
// Richer expressions are rejected. One-way and two-way bindings observe
// objects implementing object.Observable; bindings on other objects are
// applied once.
package binding

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/object"
)

// Binding operators.
const (
	OpAssign = "="
	OpOneWay = "<-"
	OpTwoWay = "<->"
)

// Converter transforms values flowing from source to target.
type Converter interface {
	Convert(value any) (any, error)
}

// Reverter transforms values flowing back from target to source in a
// two-way binding. Converters that do not implement it pass values back
// unchanged.
type Reverter interface {
	Revert(value any) (any, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(value any) (any, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(value any) (any, error) {
	return f(value)
}

// ErrUnsupportedExpression is returned for sources that are not a label
// path.
var ErrUnsupportedExpression = errors.New("unsupported binding expression")

// Path is a parsed "@label.key.key" source.
type Path struct {
	Label string
	Keys  []string
}

// ParsePath parses a binding source.
func ParsePath(expr string) (Path, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@") {
		return Path{}, fmt.Errorf("%w: %q", ErrUnsupportedExpression, expr)
	}
	parts := strings.Split(expr[1:], ".")
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t+*/%()[]{}!?<>=&|,\"'") {
			return Path{}, fmt.Errorf("%w: %q", ErrUnsupportedExpression, expr)
		}
	}
	return Path{Label: parts[0], Keys: parts[1:]}, nil
}

func (p Path) String() string {
	return "@" + strings.Join(append([]string{p.Label}, p.Keys...), ".")
}

// Applier wires bindings. It implements revive.BindingApplier and keeps
// the observations it creates until Close.
type Applier struct {
	logger *slog.Logger

	mu      sync.Mutex
	cancels []func()
}

// NewApplier creates an Applier. A nil logger uses slog.Default().
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{logger: logger}
}

type binding struct {
	key       string
	op        string
	source    Path
	converter Converter
}

// ApplyBindings wires every binding of target, in key order. The first
// failure is returned and the remaining bindings are left alone.
func (a *Applier) ApplyBindings(uc extension.UnitContext, target any, bindings map[string]any) error {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		b, err := parse(key, bindings[key])
		if err != nil {
			return err
		}
		if err := a.bind(uc, target, b); err != nil {
			return fmt.Errorf("binding %q: %w", key, err)
		}
	}
	return nil
}

func parse(key string, raw any) (binding, error) {
	desc, ok := raw.(map[string]any)
	if !ok {
		return binding{}, fmt.Errorf("binding %q must be an object, got %T", key, raw)
	}

	b := binding{key: key}
	for _, op := range []string{OpTwoWay, OpOneWay, OpAssign} {
		v, ok := desc[op]
		if !ok {
			continue
		}
		if b.op != "" {
			return binding{}, fmt.Errorf("binding %q has both %q and %q", key, b.op, op)
		}
		expr, ok := v.(string)
		if !ok {
			return binding{}, fmt.Errorf("binding %q: source must be a string, got %T", key, v)
		}
		path, err := ParsePath(expr)
		if err != nil {
			return binding{}, fmt.Errorf("binding %q: %w", key, err)
		}
		b.op = op
		b.source = path
	}
	if b.op == "" {
		return binding{}, fmt.Errorf("binding %q has no operator", key)
	}

	if c, ok := desc["converter"]; ok && c != nil {
		conv, ok := c.(Converter)
		if !ok {
			return binding{}, fmt.Errorf("binding %q: converter %T does not implement Convert", key, c)
		}
		b.converter = conv
	}
	return b, nil
}

func (a *Applier) bind(uc extension.UnitContext, target any, b binding) error {
	holder, err := uc.ObjectByLabel(b.source.Label)
	if err != nil {
		return err
	}

	if len(b.source.Keys) == 0 {
		if b.op == OpTwoWay {
			return fmt.Errorf("two-way binding needs a property path, got %s", b.source)
		}
		return a.assign(target, b, holder)
	}

	for _, k := range b.source.Keys[:len(b.source.Keys)-1] {
		next, ok := object.GetProperty(holder, k)
		if !ok {
			return fmt.Errorf("%s: property %q not found", b.source, k)
		}
		holder = next
	}
	last := b.source.Keys[len(b.source.Keys)-1]

	value, _ := object.GetProperty(holder, last)
	if err := a.assign(target, b, value); err != nil {
		return err
	}
	if b.op == OpAssign {
		return nil
	}

	// busy stops a two-way pair from echoing the update it is applying.
	busy := false

	if obs, ok := holder.(object.Observable); ok {
		a.track(obs.Observe(last, func(v any) {
			if busy {
				return
			}
			busy = true
			defer func() { busy = false }()
			if err := a.assign(target, b, v); err != nil {
				a.logger.Warn("binding update failed", "key", b.key, "source", b.source.String(), "error", err)
			}
		}))
	} else {
		a.logger.Debug("binding source is not observable, applied once", "key", b.key, "source", b.source.String())
	}

	if b.op != OpTwoWay {
		return nil
	}

	tobs, ok := target.(object.Observable)
	if !ok {
		return fmt.Errorf("two-way binding needs an observable target, got %T", target)
	}
	a.track(tobs.Observe(b.key, func(v any) {
		if busy {
			return
		}
		busy = true
		defer func() { busy = false }()
		back, err := revert(b.converter, v)
		if err == nil {
			err = object.SetProperty(holder, last, back)
		}
		if err != nil {
			a.logger.Warn("binding write-back failed", "key", b.key, "source", b.source.String(), "error", err)
		}
	}))
	return nil
}

func (a *Applier) assign(target any, b binding, value any) error {
	if b.converter != nil {
		converted, err := b.converter.Convert(value)
		if err != nil {
			return fmt.Errorf("converting %s: %w", b.source, err)
		}
		value = converted
	}
	return object.SetProperty(target, b.key, value)
}

func revert(c Converter, v any) (any, error) {
	if r, ok := c.(Reverter); ok {
		return r.Revert(v)
	}
	return v, nil
}

func (a *Applier) track(cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels = append(a.cancels, cancel)
}

// Active returns the number of live observations.
func (a *Applier) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cancels)
}

// Close cancels every observation created by the applier.
func (a *Applier) Close() {
	a.mu.Lock()
	cancels := a.cancels
	a.cancels = nil
	a.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
