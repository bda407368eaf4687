package deserializer

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/element"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/object"
	"github.com/roach88/objgraph/internal/revive"
	"github.com/roach88/objgraph/internal/testutil"
)

func newDeserializer(t *testing.T, input any, reg module.Resolver, opts ...Option) *Deserializer {
	t.Helper()
	opts = append([]Option{
		WithLogger(testutil.DiscardLogger()),
		WithIDGenerator(testutil.NewFixedIDGenerator("run-1")),
	}, opts...)
	d, err := New(input, reg, opts...)
	require.NoError(t, err)
	return d
}

func deserialize(t *testing.T, input any, reg module.Resolver, opts ...Option) (map[string]any, error) {
	t.Helper()
	return newDeserializer(t, input, reg, opts...).Deserialize(context.Background(), nil, nil)
}

func TestNewRejectsUnsupportedInput(t *testing.T) {
	_, err := New(42, testutil.Registry())
	assert.ErrorContains(t, err, "unsupported serialization input int")

	_, err = New("{}", nil)
	assert.Error(t, err)
}

func TestValuesAreDeepCloned(t *testing.T) {
	src := `{
		"n": {"value": 1},
		"s": {"value": "str"},
		"b": {"value": false},
		"z": {"value": null},
		"list": {"value": [1, "two", {"three": [3]}]},
		"obj": {"value": {"k": {"deep": [1, 2]}}}
	}`
	objects, err := deserialize(t, src, testutil.Registry())
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &doc))
	want := make(map[string]any, len(doc))
	for label, desc := range doc {
		want[label] = desc["value"]
	}
	assert.Equal(t, want, objects)
}

func TestMapInputIsNotMutated(t *testing.T) {
	doc := map[string]any{
		"w": map[string]any{
			"prototype": "pkg/widget[Widget]",
			"properties": map[string]any{"size": 2.0},
		},
	}
	d := newDeserializer(t, doc, testutil.Registry())

	for i := 0; i < 2; i++ {
		objects, err := d.Deserialize(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2.0, objects["w"].(*testutil.Widget).Size)
	}
	assert.Contains(t, doc["w"], "properties")
	assert.NotContains(t, doc["w"], "values")
}

func TestReferenceScenario(t *testing.T) {
	objects, err := deserialize(t, `{"a": {"value": 1}, "b": {"value": {"@": "a"}}}`, testutil.Registry())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 1.0}, objects)
}

func TestForwardReferences(t *testing.T) {
	objects, err := deserialize(t, `{
		"a": {"prototype": "pkg/widget[Widget]", "values": {"peer": {"@": "z"}}},
		"z": {"prototype": "pkg/widget[Widget]", "values": {"peer": {"@": "a"}}}
	}`, testutil.Registry())
	require.NoError(t, err)

	a := objects["a"].(*testutil.Widget)
	z := objects["z"].(*testutil.Widget)
	assert.Same(t, z, a.Peer)
	assert.Same(t, a, z.Peer)
}

func TestExternalObjects(t *testing.T) {
	d := newDeserializer(t, `{"x": {}}`, testutil.Registry())

	_, err := d.Deserialize(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, revive.IsExternalObjectMissing(err))
	assert.Contains(t, err.Error(), "'x'")

	owner := &testutil.Widget{}
	objects, err := d.Deserialize(context.Background(), map[string]any{"x": owner}, nil)
	require.NoError(t, err)
	assert.Same(t, owner, objects["x"])
	assert.Empty(t, owner.Notified(), "user objects are not notified")

	labels, err := d.ExternalObjectLabels()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, labels)
}

func TestRegExpScenario(t *testing.T) {
	for _, src := range []string{
		`{"r": {"/": {"source": "ab+", "flags": "i"}}}`,
		`{"r": {"value": {"/": {"source": "ab+", "flags": "i"}}}}`,
	} {
		objects, err := deserialize(t, src, testutil.Registry())
		require.NoError(t, err, src)

		re := objects["r"].(*object.RegExp)
		assert.Equal(t, "ab+", re.Source)
		assert.Equal(t, "i", re.Flags)
		assert.True(t, re.MatchString("xABBy"))
	}
}

func TestPrototypeScenario(t *testing.T) {
	reg := testutil.Registry()
	objects, err := deserialize(t, `{"w": {"prototype": "pkg/widget[Widget]", "values": {"size": 10}}}`, reg)
	require.NoError(t, err)

	w := objects["w"].(*testutil.Widget)
	assert.Equal(t, 10.0, w.Size)
	assert.Equal(t, 1, w.Created())
	assert.Equal(t, 1, w.Cleared())
	assert.Equal(t, []string{"w"}, w.Notified())
	assert.False(t, w.MarkedWhenNotified())

	proto := module.Exports(reg, "pkg/widget").(module.Exported)["Widget"].(*testutil.Widget)
	assert.NotSame(t, proto, w)
	assert.Zero(t, proto.Size)
}

func TestValuesDeserializable(t *testing.T) {
	objects, err := deserialize(t, `{"c": {"prototype": "pkg/widget[Counter]", "values": {"a": 2, "b": 3, "c": "x"}}}`,
		testutil.Registry())
	require.NoError(t, err)
	assert.Equal(t, 5.0, objects["c"].(*testutil.Counter).Total)
}

func TestDeserializeObjectReturnsRoot(t *testing.T) {
	d := newDeserializer(t, `{"root": {"prototype": "pkg/widget[Panel]", "values": {"title": "t"}}, "other": {"value": 1}}`,
		testutil.Registry())
	root, err := d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)

	panel := root.(*object.Object)
	assert.Equal(t, "Panel", panel.Name())
	title, _ := panel.Get("title")
	assert.Equal(t, "t", title)
	color, _ := panel.Get("color")
	assert.Equal(t, "red", color)

	root, err = Deserialize(context.Background(), []byte(`{"root": {"value": [1]}}`), testutil.Registry(),
		WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0}, root)
}

func TestNonObjectDocument(t *testing.T) {
	_, err := deserialize(t, `[1, 2]`, testutil.Registry())
	assert.Equal(t, revive.ErrCodeInvalidDescriptor, revive.CodeOf(err))
}

func TestBindingsWithDefaultApplier(t *testing.T) {
	objects, err := deserialize(t, `{
		"a": {"prototype": "pkg/widget[Panel]", "values": {"name": "x"}},
		"b": {"prototype": "pkg/widget[Panel]", "values": {"title": {"<-": "@a.name"}}}
	}`, testutil.Registry())
	require.NoError(t, err)

	a := objects["a"].(*object.Object)
	b := objects["b"].(*object.Object)
	title, _ := b.Get("title")
	assert.Equal(t, "x", title)

	a.Set("name", "y")
	title, _ = b.Get("title")
	assert.Equal(t, "y", title)
}

func TestElementsAndListeners(t *testing.T) {
	doc, err := element.ParseString(`<div data-id="id">content</div>`)
	require.NoError(t, err)

	d := newDeserializer(t, `{
		"rootEl": {
			"value": {"#": "id"},
			"values": {"foo": 42},
			"listeners": [{"type": "click", "listener": {"@": "rootEl"}}]
		}
	}`, testutil.Registry())
	objects, err := d.Deserialize(context.Background(), nil, doc)
	require.NoError(t, err)

	el := objects["rootEl"].(*element.Element)
	assert.Equal(t, "content", el.TextContent())
	foo, _ := el.GetProperty("foo")
	assert.Equal(t, 42.0, foo)
	require.Len(t, el.Listeners(), 1)
	assert.Equal(t, "click", el.Listeners()[0].Type)
	assert.Same(t, el, el.Listeners()[0].Listener)

	_, err = d.Deserialize(context.Background(), nil, nil)
	assert.Equal(t, revive.ErrCodeElementNotFound, revive.CodeOf(err))
}

func TestNestedDocumentsAreShared(t *testing.T) {
	reg := testutil.Registry()
	reg.Define("ui/card.mjson", map[string]any{
		"root": map[string]any{"prototype": "pkg/widget[Widget]", "values": map[string]any{"name": "card"}},
	})

	objects, err := deserialize(t, `{
		"a": {"object": "ui/card.mjson"},
		"b": {"object": "ui/card.mjson"}
	}`, reg)
	require.NoError(t, err)

	a := objects["a"].(*testutil.Widget)
	assert.Same(t, a, objects["b"])
	assert.Equal(t, "card", a.Name)
	assert.Equal(t, 1, a.Created())
}

func TestNestedDocumentSelfReference(t *testing.T) {
	reg := testutil.Registry()
	reg.Define("ui/self.mjson", map[string]any{
		"root": map[string]any{"prototype": "pkg/widget[Widget]", "values": map[string]any{"peer": map[string]any{"@": "self"}}},
		"self": map[string]any{"object": "ui/self.mjson"},
	})

	d := newDeserializer(t, `{"root": {"object": "ui/self.mjson"}}`, reg)
	root, err := d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)

	w := root.(*testutil.Widget)
	assert.Same(t, w, w.Peer)
	assert.Equal(t, []string{"ui/self.mjson"}, d.Run().ModuleIDs())
	assert.False(t, d.Run().InFlight("ui/self.mjson"))
}

func TestNestedDocumentSelfReferenceBeforeRoot(t *testing.T) {
	reg := testutil.Registry()
	reg.Define("ui/self.mjson", map[string]any{
		"me":   map[string]any{"object": "ui/self.mjson"},
		"root": map[string]any{"prototype": "pkg/widget[Widget]", "values": map[string]any{"peer": map[string]any{"@": "me"}}},
	})

	d := newDeserializer(t, `{"root": {"object": "ui/self.mjson"}}`, reg)
	root, err := d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)

	w := root.(*testutil.Widget)
	assert.Same(t, w, w.Peer)
	assert.Equal(t, 1, w.Created())
	assert.False(t, d.Run().InFlight("ui/self.mjson"))
}

func TestNestedDocumentCycle(t *testing.T) {
	reg := testutil.Registry()
	reg.Define("ui/a.mjson", map[string]any{
		"root": map[string]any{"prototype": "pkg/widget[Widget]", "values": map[string]any{"peer": map[string]any{"@": "b"}}},
		"b":    map[string]any{"object": "ui/b.mjson"},
	})
	reg.Define("ui/b.mjson", map[string]any{
		"root": map[string]any{"object": "ui/a.mjson"},
	})

	d := newDeserializer(t, `{"root": {"object": "ui/a.mjson"}}`, reg)
	root, err := d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)

	w := root.(*testutil.Widget)
	assert.Same(t, w, w.Peer)
	assert.Equal(t, 1, w.Created())
	assert.False(t, d.Run().InFlight("ui/a.mjson"))
	assert.False(t, d.Run().InFlight("ui/b.mjson"))
}

func TestNestedDocumentsFromSource(t *testing.T) {
	var loads atomic.Int32
	reg := testutil.Registry().WithSource(module.SourceFunc(func(ctx context.Context, id string) ([]byte, error) {
		loads.Add(1)
		switch id {
		case "ui/lazy.mjson":
			return []byte(`{"root": {"prototype": "lazy/thing[Thing]", "values": {"n": 1}}}`), nil
		case "lazy/thing":
			return []byte(`{"Thing": {"name": "Thing", "kind": "lazy"}}`), nil
		}
		return nil, module.ErrNotFound
	}))

	objects, err := deserialize(t, `{"a": {"object": "ui/lazy.mjson"}, "b": {"object": "ui/lazy.mjson"}}`, reg)
	require.NoError(t, err)

	thing := objects["a"].(*object.Object)
	assert.Same(t, thing, objects["b"])
	assert.Equal(t, "Thing", thing.Name())
	kind, _ := thing.Get("kind")
	assert.Equal(t, "lazy", kind)
	assert.Equal(t, int32(2), loads.Load())
}

func TestNestedDocumentsShareRunID(t *testing.T) {
	reg := testutil.Registry()
	reg.Define("ui/inner.mjson", map[string]any{
		"root": map[string]any{"value": "inner"},
	})

	d := newDeserializer(t, `{"root": {"object": "ui/inner.mjson"}}`, reg,
		WithIDGenerator(testutil.NewSequenceIDGenerator("run")))
	root, err := d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "inner", root)
	assert.Equal(t, "run-1", d.Run().ID())

	_, err = d.DeserializeObject(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-2", d.Run().ID(), "each call starts a new run")
}

func TestSharedRun(t *testing.T) {
	run := revive.NewRun(testutil.NewFixedIDGenerator("shared"), testutil.DiscardLogger())
	d := newDeserializer(t, `{"a": {"value": 1}}`, testutil.Registry(), WithRun(run))
	_, err := d.Deserialize(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Same(t, run, d.Run())
}

func TestHaltDirective(t *testing.T) {
	var halted []string
	_, err := deserialize(t, `{"a": {"value": 1, "debugger": true}, "b": {"value": 2, "debugger": false}}`,
		testutil.Registry(), WithHalt(func(label string) { halted = append(halted, label) }))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, halted)
}

func TestObjectResolvers(t *testing.T) {
	other := module.NewRegistry("test://other/")
	other.Define("pkg/widget", module.Exported{"Widget": object.NewNamed("OtherWidget", nil)})

	objects, err := deserialize(t, `{
		"mine": {"prototype": "pkg/widget[Widget]"},
		"theirs": {"prototype": "pkg/widget[Widget]"}
	}`, testutil.Registry(), WithObjectResolvers(map[string]module.Resolver{"theirs": other}))
	require.NoError(t, err)

	assert.IsType(t, &testutil.Widget{}, objects["mine"])
	assert.Equal(t, "OtherWidget", objects["theirs"].(*object.Object).Name())
}

func TestFailureReturnsNoObjects(t *testing.T) {
	objects, err := deserialize(t, `{
		"a": {"prototype": "pkg/widget[Widget]"},
		"b": {"prototype": "pkg/widget[Missing]"}
	}`, testutil.Registry())
	assert.Nil(t, objects)
	assert.Equal(t, revive.ErrCodeObjectNotFound, revive.CodeOf(err))
	assert.Contains(t, err.Error(), "Available objects are: Counter,Panel,Widget.")
}

func TestModuleLoadFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	reg := testutil.Registry().WithSource(module.SourceFunc(func(ctx context.Context, id string) ([]byte, error) {
		return nil, boom
	}))

	_, err := deserialize(t, `{"a": {"object": "ui/gone.mjson"}}`, reg)
	assert.Equal(t, revive.ErrCodeModuleLoadFailed, revive.CodeOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	reg := testutil.Registry().WithSource(module.SourceFunc(func(ctx context.Context, id string) ([]byte, error) {
		return []byte(`{"Thing": {}}`), nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDeserializer(t, `{"a": {"prototype": "lazy/thing[Thing]"}}`, reg)
	_, err := d.Deserialize(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
