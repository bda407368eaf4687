package module

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Resolver is a module resolution context.
//
// Implementations map module ids to canonical ids, describe modules
// (exports already resident, redirects, mappings into another resolution
// context) and load modules that are not resident yet. Redirect and mapping
// chains must terminate; they are followed without cycle detection.
type Resolver interface {
	// Location identifies the resolution context in error messages.
	Location() string
	// Resolve returns the canonical id for id.
	Resolve(id string) string
	// Descriptor describes the module with canonical id id. It never returns
	// nil: unknown modules get a descriptor without exports.
	Descriptor(id string) *Descriptor
	// Async loads the module and returns its exports.
	Async(ctx context.Context, id string) (any, error)
}

// Descriptor describes one module as seen by a Resolver.
type Descriptor struct {
	ID string
	// Exports is nil until the module is loaded.
	Exports any
	// Redirect names another module id in the same resolver.
	Redirect string
	// MappingRedirect names a module id inside MappingResolver.
	MappingRedirect string
	MappingResolver Resolver
	// Resolver is the resolution context owned by the module itself.
	Resolver Resolver
}

// Exports returns the resident exports of id, following redirects and
// mappings. It returns nil when the module has not been loaded.
func Exports(r Resolver, id string) any {
	id = r.Resolve(id)
	d := r.Descriptor(id)

	for d.Redirect != "" {
		d = r.Descriptor(d.Redirect)
	}

	if d.MappingRedirect != "" {
		return Exports(d.MappingResolver, d.MappingRedirect)
	}

	return d.Exports
}

// ModuleResolver returns the resolution context that belongs to module id,
// following redirects and mappings from parent. Nested documents resolve
// their own module ids through it. When the final descriptor carries no
// resolver the last resolver walked is returned.
func ModuleResolver(parent Resolver, id string) Resolver {
	current := parent
	topID := current.Resolve(id)
	d := current.Descriptor(topID)

	for d.Redirect != "" || d.MappingRedirect != "" {
		if d.Redirect != "" {
			topID = d.Redirect
		} else {
			current = d.MappingResolver
			topID = d.MappingRedirect
		}
		d = current.Descriptor(topID)
	}

	if d.Resolver != nil {
		return d.Resolver
	}
	return current
}

// Exported is a named set of values exported by a Go module.
type Exported map[string]any

// Lookup finds the object named name among exports. When it is missing,
// the sorted names that are available are returned instead.
func Lookup(exports any, name string) (value any, ok bool, available []string) {
	var m map[string]any
	switch e := exports.(type) {
	case Exported:
		m = e
	case map[string]any:
		m = e
	default:
		return nil, false, nil
	}

	if v, found := m[name]; found {
		return v, true, nil
	}

	available = make([]string, 0, len(m))
	for k := range m {
		available = append(available, k)
	}
	sort.Strings(available)
	return nil, false, available
}

// Reference is an opaque handle on a module: its canonical id and the
// resolution context it belongs to. It is what a "%" value revives to; the
// module's exports are not loaded.
type Reference struct {
	ID       string
	Resolver Resolver
}

func (r *Reference) String() string {
	return fmt.Sprintf("module(%s)", r.ID)
}

// IsDocument reports whether id names a nested serialization document.
func IsDocument(id string) bool {
	return strings.HasSuffix(id, ".mjson") || strings.HasSuffix(id, ".meta")
}

// IsJSON reports whether id names a plain JSON module.
func IsJSON(id string) bool {
	return strings.HasSuffix(id, ".json")
}
