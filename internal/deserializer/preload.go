package deserializer

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/objgraph/internal/future"
	"github.com/roach88/objgraph/internal/revive"
)

// PreloadModules starts loading every module named by a "prototype" or
// "object" location of the document. Loads run concurrently, bound to ctx,
// and the returned Result joins them. It is Ready with no values when every
// module is already resident. A location that is not a string is reported
// synchronously.
func (d *Deserializer) PreloadModules(ctx context.Context) (future.Result[[]any], error) {
	doc, err := d.parse()
	if err != nil {
		return future.Result[[]any]{}, err
	}

	refs, err := d.moduleRefs(doc)
	if err != nil {
		return future.Result[[]any]{}, err
	}

	var pending []future.Result[any]
	for _, ref := range refs {
		if res := d.loader.GetModule(ref.moduleID, ref.label); res.IsPending() {
			pending = append(pending, res)
		}
	}

	if len(pending) == 0 {
		return future.Ready[[]any](nil), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	values := make([]any, len(pending))
	for i, res := range pending {
		g.Go(func() error {
			v, err := res.Await(gctx)
			values[i] = v
			return err
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	return future.Pending(func(ctx context.Context) ([]any, error) {
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			return values, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), nil
}

// ModuleIDs returns the sorted, distinct module ids named by the
// "prototype" and "object" locations of the document.
func (d *Deserializer) ModuleIDs() ([]string, error) {
	doc, err := d.parse()
	if err != nil {
		return nil, err
	}
	refs, err := d.moduleRefs(doc)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(refs))
	var ids []string
	for _, ref := range refs {
		if !seen[ref.moduleID] {
			seen[ref.moduleID] = true
			ids = append(ids, ref.moduleID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type moduleRef struct {
	label    string
	moduleID string
}

// moduleRefs collects the module location of every montage object in
// label order. A location that is not a string is an error.
func (d *Deserializer) moduleRefs(doc map[string]any) ([]moduleRef, error) {
	var refs []moduleRef
	for _, label := range sortedLabels(doc) {
		desc, ok := doc[label].(map[string]any)
		if !ok {
			continue
		}
		raw := locationOf(desc)
		if isEmptyValue(raw) {
			continue
		}
		id, ok := raw.(string)
		if !ok {
			return nil, &revive.Error{
				Code:  revive.ErrCodeInvalidDescriptor,
				Label: label,
				Message: fmt.Sprintf("Property 'object' of the object with the label '%s' must be a module id",
					label),
			}
		}
		refs = append(refs, moduleRef{label: label, moduleID: d.opts.locations.Parse(id).ModuleID})
	}
	return refs, nil
}

// ExternalObjectLabels returns the sorted labels whose descriptor is
// empty: objects the caller must supply.
func (d *Deserializer) ExternalObjectLabels() ([]string, error) {
	doc, err := d.parse()
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, label := range sortedLabels(doc) {
		if desc, ok := doc[label].(map[string]any); ok && len(desc) == 0 {
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// locationOf returns the "prototype" location of desc, or its "object"
// location when prototype is absent or empty.
func locationOf(desc map[string]any) any {
	if raw, ok := desc["prototype"]; ok && !isEmptyValue(raw) {
		return raw
	}
	return desc["object"]
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	}
	return false
}

func sortedLabels(doc map[string]any) []string {
	labels := make([]string, 0, len(doc))
	for label := range doc {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
