package module

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Sources and by Registry.Async for unknown modules.
var ErrNotFound = errors.New("module not found")

// Source provides the raw bytes of document modules that are loaded on demand.
type Source interface {
	Load(ctx context.Context, id string) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id string) ([]byte, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context, id string) ([]byte, error) {
	return f(ctx, id)
}

// DirSource loads modules from files under Root. Ids without an extension
// are tried as-is and then with ".json" appended.
type DirSource struct {
	Root string
}

// Load reads the file for id.
func (s DirSource) Load(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := []string{id}
	if path.Ext(id) == "" {
		candidates = append(candidates, id+".json")
	}

	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(c)))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading module %q: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrNotFound, id, s.Root)
}

// Registry is an in-memory resolution context. Go modules are defined with
// their exports up front; document modules may be loaded lazily from a
// Source. Registry is safe for concurrent use.
type Registry struct {
	location string
	source   Source

	mu      sync.RWMutex
	modules map[string]*Descriptor
}

// NewRegistry creates an empty registry identified by location.
func NewRegistry(location string) *Registry {
	return &Registry{
		location: location,
		modules:  make(map[string]*Descriptor),
	}
}

// WithSource sets the source used to load modules that are not defined.
func (r *Registry) WithSource(src Source) *Registry {
	r.source = src
	return r
}

// Define registers a resident module.
func (r *Registry) Define(id string, exports any) {
	id = r.Resolve(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(id).Exports = exports
}

// DefineRedirect makes id an alias of target within this registry.
func (r *Registry) DefineRedirect(id, target string) {
	id = r.Resolve(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(id).Redirect = r.Resolve(target)
}

// DefineMapping makes id resolve to target inside another resolver.
func (r *Registry) DefineMapping(id string, other Resolver, target string) {
	id = r.Resolve(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.entry(id)
	d.MappingResolver = other
	d.MappingRedirect = target
}

// entry returns the descriptor for id, creating it. Callers hold mu.
func (r *Registry) entry(id string) *Descriptor {
	d, ok := r.modules[id]
	if !ok {
		d = &Descriptor{ID: id, Resolver: r}
		r.modules[id] = d
	}
	return d
}

// Location identifies the registry.
func (r *Registry) Location() string {
	return r.location
}

// Resolve cleans id into its canonical form: "./a/../b" becomes "b".
func (r *Registry) Resolve(id string) string {
	if id == "" {
		return id
	}
	return strings.TrimPrefix(path.Clean(id), "/")
}

// Descriptor returns a snapshot of the module's descriptor.
func (r *Registry) Descriptor(id string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.modules[id]; ok {
		cp := *d
		return &cp
	}
	return &Descriptor{ID: id, Resolver: r}
}

// Async returns the module's exports, loading and decoding it from the
// source when it is not resident. Successful loads are cached.
func (r *Registry) Async(ctx context.Context, id string) (any, error) {
	id = r.Resolve(id)

	d := r.Descriptor(id)
	for d.Redirect != "" {
		id = d.Redirect
		d = r.Descriptor(id)
	}
	if d.MappingRedirect != "" {
		return d.MappingResolver.Async(ctx, d.MappingRedirect)
	}
	if d.Exports != nil {
		return d.Exports, nil
	}
	if r.source == nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrNotFound, id, r.location)
	}

	data, err := r.source.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	exports, err := Decode(id, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(id)
	if entry.Exports == nil {
		entry.Exports = exports
	}
	return entry.Exports, nil
}

// Modules returns the ids known to the registry.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	return ids
}

// Decode parses a document module. ".yaml" and ".yml" modules are YAML,
// everything else is JSON. YAML integers are widened to float64 so both
// encodings produce the same value shapes.
func Decode(id string, data []byte) (any, error) {
	switch path.Ext(id) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding module %q: %w", id, err)
		}
		return normalizeYAML(v), nil
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding module %q: %w", id, err)
		}
		return v, nil
	}
}

func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			val[k] = normalizeYAML(elem)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return m
	case []any:
		for i, elem := range val {
			val[i] = normalizeYAML(elem)
		}
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return v
	}
}
