package module

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoaderValidation(t *testing.T) {
	_, err := NewLoader(nil, nil)
	assert.Error(t, err)

	_, err = NewLoader(NewRegistry(""), nil)
	assert.ErrorContains(t, err, "location")

	l, err := NewLoader(NewRegistry("app"), nil)
	require.NoError(t, err)
	assert.Equal(t, "app", l.Resolver().Location())
}

func TestGetModuleResident(t *testing.T) {
	reg := NewRegistry("app")
	reg.Define("pkg/widget", Exported{"Widget": "proto"})

	l, err := NewLoader(reg, nil)
	require.NoError(t, err)

	r := l.GetModule("pkg/widget", "w")
	assert.False(t, r.IsPending())
	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exported{"Widget": "proto"}, v)
}

func TestGetModuleAsync(t *testing.T) {
	reg := NewRegistry("app").WithSource(SourceFunc(func(ctx context.Context, id string) ([]byte, error) {
		return []byte(`{"root": {"value": 1}}`), nil
	}))

	l, err := NewLoader(reg, nil)
	require.NoError(t, err)

	r := l.GetModule("ui/main.mjson", "main")
	assert.True(t, r.IsPending())

	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"root": map[string]any{"value": float64(1)}}, v)

	// Cached after the first load.
	assert.False(t, l.GetModule("ui/main.mjson", "main").IsPending())
}

func TestGetModuleLabelOverride(t *testing.T) {
	def := NewRegistry("default")
	def.Define("thing", Exported{"Thing": "default"})
	other := NewRegistry("other")
	other.Define("thing", Exported{"Thing": "override"})

	l, err := NewLoader(def, map[string]Resolver{"special": other})
	require.NoError(t, err)

	v, err := l.GetModule("thing", "special").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exported{"Thing": "override"}, v)

	v, err = l.GetModule("thing", "plain").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exported{"Thing": "default"}, v)
}

func TestExportsFollowsRedirectsAndMappings(t *testing.T) {
	lib := NewRegistry("lib")
	lib.Define("core/button", Exported{"Button": 1})

	app := NewRegistry("app")
	app.DefineRedirect("button", "ui/button")
	app.DefineMapping("ui/button", lib, "core/button")

	assert.Equal(t, Exported{"Button": 1}, Exports(app, "./button"))
	assert.Equal(t, lib, ModuleResolver(app, "button"))
}

func TestModuleResolverDefaultsToParent(t *testing.T) {
	app := NewRegistry("app")
	assert.Equal(t, app, ModuleResolver(app, "unknown.mjson"))
}

func TestRegistryAsyncNotFound(t *testing.T) {
	_, err := NewRegistry("app").Async(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryAsyncFollowsRedirect(t *testing.T) {
	loads := []string{}
	reg := NewRegistry("app").WithSource(SourceFunc(func(ctx context.Context, id string) ([]byte, error) {
		loads = append(loads, id)
		return []byte(`[1, 2]`), nil
	}))
	reg.DefineRedirect("alias.json", "real.json")

	v, err := reg.Async(context.Background(), "alias.json")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, v)
	assert.Equal(t, []string{"real.json"}, loads)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ui"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "data.json"), []byte(`{"a": 1}`), 0o644))

	src := DirSource{Root: dir}
	data, err := src.Load(context.Background(), "ui/data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(data))

	_, err = src.Load(context.Background(), "ui/nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeYAML(t *testing.T) {
	v, err := Decode("doc.yaml", []byte("root:\n  value: 3\n  list: [1, two]\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"root": map[string]any{
			"value": float64(3),
			"list":  []any{float64(1), "two"},
		},
	}, v)
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode("bad.json", []byte(`{`))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	v, ok, _ := Lookup(Exported{"A": 1}, "A")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, available := Lookup(map[string]any{"B": 1, "A": 2}, "C")
	assert.False(t, ok)
	assert.Equal(t, []string{"A", "B"}, available)

	_, ok, available = Lookup("not exports", "A")
	assert.False(t, ok)
	assert.Empty(t, available)
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument("a/b.mjson"))
	assert.True(t, IsDocument("a/b.meta"))
	assert.False(t, IsDocument("a/b.json"))
	assert.True(t, IsJSON("a/b.json"))
}
