package module

import (
	"context"
	"errors"

	"github.com/roach88/objgraph/internal/future"
)

// Loader resolves module ids to exports, choosing a per-label resolver
// override when one is configured.
type Loader struct {
	resolver  Resolver
	overrides map[string]Resolver
}

// NewLoader creates a Loader. overrides maps a document label to the
// resolver used for modules referenced by that label; it may be nil.
func NewLoader(r Resolver, overrides map[string]Resolver) (*Loader, error) {
	if r == nil {
		return nil, errors.New("module resolver is missing")
	}
	if r.Location() == "" {
		return nil, errors.New("module resolver location is missing")
	}
	return &Loader{resolver: r, overrides: overrides}, nil
}

// Resolver returns the default resolution context.
func (l *Loader) Resolver() Resolver {
	return l.resolver
}

// ResolverFor returns the resolver used for modules referenced by label.
func (l *Loader) ResolverFor(label string) Resolver {
	if r, ok := l.overrides[label]; ok && r != nil {
		return r
	}
	return l.resolver
}

// GetModule returns the exports of moduleID. The result is Ready when the
// module is resident and Pending otherwise; the load starts when the
// result is awaited.
func (l *Loader) GetModule(moduleID, label string) future.Result[any] {
	r := l.ResolverFor(label)

	if exports := Exports(r, moduleID); exports != nil {
		return future.Ready(exports)
	}

	return future.Pending(func(ctx context.Context) (any, error) {
		return r.Async(ctx, moduleID)
	})
}
