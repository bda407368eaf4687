package binding

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/object"
)

type graph map[string]any

func (g graph) ObjectByLabel(label string) (any, error) {
	v, ok := g[label]
	if !ok {
		return nil, fmt.Errorf("no object %q", label)
	}
	return v, nil
}

func (g graph) ElementByID(string) (any, bool) { return nil, false }
func (g graph) RunID() string                  { return "run-1" }

type plain struct {
	Title string `json:"title"`
}

type suffix string

func (s suffix) Convert(v any) (any, error) { return fmt.Sprint(v) + string(s), nil }

func (s suffix) Revert(v any) (any, error) {
	str := fmt.Sprint(v)
	return str[:len(str)-len(s)], nil
}

func newApplier() *Applier {
	return NewApplier(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("@owner.child.title")
	require.NoError(t, err)
	assert.Equal(t, Path{Label: "owner", Keys: []string{"child", "title"}}, p)
	assert.Equal(t, "@owner.child.title", p.String())

	p, err = ParsePath("@my-label")
	require.NoError(t, err)
	assert.Equal(t, "my-label", p.Label)
	assert.Empty(t, p.Keys)

	for _, expr := range []string{"owner.title", "@a.b + 58", "@", "@a..b", "@a.b()"} {
		_, err := ParsePath(expr)
		assert.ErrorIs(t, err, ErrUnsupportedExpression, expr)
	}
}

func TestAssignOnce(t *testing.T) {
	source := object.New(nil)
	source.Set("size", 3.0)
	target := object.New(nil)

	a := newApplier()
	err := a.ApplyBindings(graph{"src": source}, target, map[string]any{
		"size": map[string]any{"=": "@src.size"},
	})
	require.NoError(t, err)

	v, _ := target.Get("size")
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 0, a.Active())

	source.Set("size", 4.0)
	v, _ = target.Get("size")
	assert.Equal(t, 3.0, v)
}

func TestOneWay(t *testing.T) {
	source := object.New(nil)
	source.Set("title", "a")
	target := object.New(nil)

	a := newApplier()
	require.NoError(t, a.ApplyBindings(graph{"src": source}, target, map[string]any{
		"name": map[string]any{"<-": "@src.title"},
	}))

	v, _ := target.Get("name")
	assert.Equal(t, "a", v)

	source.Set("title", "b")
	v, _ = target.Get("name")
	assert.Equal(t, "b", v)

	target.Set("name", "c")
	v, _ = source.Get("title")
	assert.Equal(t, "b", v, "one-way bindings do not write back")

	a.Close()
	source.Set("title", "d")
	v, _ = target.Get("name")
	assert.Equal(t, "c", v)
}

func TestTwoWayWithConverter(t *testing.T) {
	source := object.New(nil)
	source.Set("value", "7")
	target := object.New(nil)

	a := newApplier()
	require.NoError(t, a.ApplyBindings(graph{"src": source}, target, map[string]any{
		"label": map[string]any{"<->": "@src.value", "converter": suffix("px")},
	}))

	v, _ := target.Get("label")
	assert.Equal(t, "7px", v)

	target.Set("label", "9px")
	v, _ = source.Get("value")
	assert.Equal(t, "9", v)

	source.Set("value", "10")
	v, _ = target.Get("label")
	assert.Equal(t, "10px", v)
	assert.Equal(t, 2, a.Active())
}

func TestNestedPathAndStructTarget(t *testing.T) {
	child := &plain{Title: "deep"}
	owner := object.New(nil)
	owner.Set("child", child)
	target := &plain{}

	err := newApplier().ApplyBindings(graph{"owner": owner}, target, map[string]any{
		"title": map[string]any{"<-": "@owner.child.title"},
	})
	require.NoError(t, err)
	assert.Equal(t, "deep", target.Title)
}

func TestApplyBindingsErrors(t *testing.T) {
	source := object.New(nil)
	g := graph{"src": source}

	tests := []struct {
		name     string
		bindings map[string]any
		target   any
		contains string
	}{
		{"not an object", map[string]any{"x": "@src"}, object.New(nil), "must be an object"},
		{"no operator", map[string]any{"x": map[string]any{"converter": nil}}, object.New(nil), "no operator"},
		{"two operators", map[string]any{"x": map[string]any{"=": "@src.a", "<-": "@src.a"}}, object.New(nil), "has both"},
		{"source not string", map[string]any{"x": map[string]any{"=": 1.0}}, object.New(nil), "must be a string"},
		{"expression", map[string]any{"x": map[string]any{"<-": "@src.a + 1"}}, object.New(nil), "unsupported"},
		{"unknown label", map[string]any{"x": map[string]any{"<-": "@nope.a"}}, object.New(nil), "no object"},
		{"missing intermediate", map[string]any{"x": map[string]any{"<-": "@src.a.b"}}, object.New(nil), "not found"},
		{"bad converter", map[string]any{"x": map[string]any{"<-": "@src.a", "converter": 3.0}}, object.New(nil), "Convert"},
		{"two-way plain target", map[string]any{"title": map[string]any{"<->": "@src.a"}}, &plain{}, "observable target"},
		{"two-way label only", map[string]any{"x": map[string]any{"<->": "@src"}}, object.New(nil), "property path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newApplier().ApplyBindings(g, tt.target, tt.bindings)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestConverterFailure(t *testing.T) {
	boom := errors.New("boom")
	source := object.New(nil)
	err := newApplier().ApplyBindings(graph{"src": source}, object.New(nil), map[string]any{
		"x": map[string]any{"<-": "@src.a", "converter": ConverterFunc(func(any) (any, error) { return nil, boom })},
	})
	assert.ErrorIs(t, err, boom)
}
