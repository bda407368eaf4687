package revive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/future"
	"github.com/roach88/objgraph/internal/location"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/object"
)

// NestedFunc deserializes a nested document (the exports of a ".mjson" or
// ".meta" module) within run and returns its root object.
type NestedFunc func(doc any, resolver module.Resolver, moduleID string, run *Run) future.Result[any]

// HaltFunc is called for a descriptor carrying a truthy "debugger" key.
type HaltFunc func(label string)

// Config configures a Reviver. Only Loader is required.
type Config struct {
	Loader     *module.Loader
	Locations  *location.Cache
	Extensions *extension.Registry
	Binder     BindingApplier
	Run        *Run
	// LocationID is the module id of the document being revived, empty
	// for documents that are not modules themselves.
	LocationID string
	Nested     NestedFunc
	Halt       HaltFunc
	Logger     *slog.Logger
}

// Reviver turns descriptors and values of one document into live objects.
type Reviver struct {
	loader     *module.Loader
	locations  *location.Cache
	ext        *extension.Registry
	binder     BindingApplier
	run        *Run
	locationID string
	nested     NestedFunc
	halt       HaltFunc
	logger     *slog.Logger
}

// New creates a Reviver from cfg.
func New(cfg Config) (*Reviver, error) {
	if cfg.Loader == nil {
		return nil, errors.New("module loader is missing")
	}

	r := &Reviver{
		loader:     cfg.Loader,
		locations:  cfg.Locations,
		ext:        cfg.Extensions,
		binder:     cfg.Binder,
		run:        cfg.Run,
		locationID: cfg.LocationID,
		nested:     cfg.Nested,
		halt:       cfg.Halt,
	}
	if r.locations == nil {
		r.locations = location.Default()
	}
	if r.ext == nil {
		r.ext = extension.New()
	}
	if r.run == nil {
		r.run = NewRun(nil, cfg.Logger)
	}

	where := cfg.LocationID
	if where == "" {
		where = cfg.Loader.Resolver().Location()
	}
	r.logger = r.run.Logger().With("location", where)

	if r.halt == nil {
		logger := r.logger
		r.halt = func(label string) {
			logger.Debug("debugger directive reached", "label", label)
		}
	}
	return r, nil
}

// Run returns the run this reviver belongs to.
func (r *Reviver) Run() *Run {
	return r.run
}

// Logger returns the reviver logger.
func (r *Reviver) Logger() *slog.Logger {
	return r.logger
}

// Loader returns the module loader.
func (r *Reviver) Loader() *module.Loader {
	return r.loader
}

// Locations returns the location cache.
func (r *Reviver) Locations() *location.Cache {
	return r.locations
}

// CheckLabel returns an error when label and descriptor shape disagree:
// labels starting with ':' are template values and must hold aliases, and
// aliases may only be defined under such labels.
func CheckLabel(label string, isTemplateProperty bool) error {
	isTemplateLabel := strings.HasPrefix(label, ":")
	if isTemplateProperty && !isTemplateLabel {
		return newError(ErrCodeInvalidLabel, label,
			"Aliases can only be defined in template values (start with a colon (:)), %q.", label)
	}
	if !isTemplateProperty && isTemplateLabel {
		return newError(ErrCodeInvalidLabel, label,
			"Only aliases are allowed as template values (start with a colon (:)), %q.", label)
	}
	return nil
}

// ReviveRootObject revives the descriptor found under label at the top of
// the document.
func (r *Reviver) ReviveRootObject(c *Context, value any, label string) future.Result[any] {
	desc, ok := value.(map[string]any)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidDescriptor, label,
			"descriptor of %q must be an object, got %s", label, Classify(value)))
	}

	_, isAlias := desc["alias"]
	if err := CheckLabel(label, isAlias); err != nil {
		return future.Fail[any](err)
	}

	if truthy(desc["debugger"]) {
		r.halt(label)
	}

	raw, isValue := desc["value"]
	tagged := !isValue && Classify(desc).IsTagged()
	if tagged {
		raw, isValue = desc, true
	}
	if isValue {
		if user, ok := c.UserObject(label); ok {
			c.SetObjectLabel(label, user)
			return future.Ready(user)
		}
		revived := r.ReviveValue(c, raw, label)
		if !tagged && Classify(raw) == KindElement {
			return r.reviveElementObject(c, revived, desc, label)
		}
		return revived
	}

	switch {
	case len(desc) == 0:
		if user, ok := c.UserObject(label); ok {
			c.SetObjectLabel(label, user)
			return future.Ready(user)
		}
		return future.Fail[any](newError(ErrCodeExternalObjectMissing, label,
			"External object '%s' not found in user objects.", label))
	case isAlias:
		return r.reviveAlias(c, desc, label)
	}
	return r.reviveMontageObject(c, desc, label)
}

// reviveElementObject treats the rest of a {value: {"#": id}} descriptor as
// a montage object description of the element.
func (r *Reviver) reviveElementObject(c *Context, revived future.Result[any], desc map[string]any, label string) future.Result[any] {
	element, err, ok := revived.Settled()
	if !ok || err != nil {
		return revived
	}

	r.normalizeBlocks(desc, label)
	c.queueBindings(label, element, desc)

	return future.Then(r.reviveObjectLiteral(c, desc, ""), func(v any) future.Result[any] {
		d := v.(map[string]any)
		if err := r.applyValues(c, element, d["values"], label); err != nil {
			return future.Fail[any](err)
		}
		c.queueUnits(label, element, d, r.ext.UnitNames())
		return future.Ready(element)
	})
}

func (r *Reviver) reviveAlias(c *Context, desc map[string]any, label string) future.Result[any] {
	path, ok := desc["alias"].(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidDescriptor, label,
			"alias of %q must be a string", label))
	}
	alias := &object.Alias{Value: path}
	c.SetObjectLabel(label, alias)
	return future.Ready[any](alias)
}

func (r *Reviver) reviveMontageObject(c *Context, desc map[string]any, label string) future.Result[any] {
	user, isUser := c.UserObject(label)
	created := future.Ready(user)
	if !isUser {
		created = r.getMontageObject(c, desc, label)
	}
	// Prototype instances are marked before DidCreate.
	instantiated := !isUser && !isEmpty(desc["prototype"])

	return future.Then(created, func(obj any) future.Result[any] {
		c.SetObjectLabel(label, obj)
		if !instantiated {
			setDeserializing(obj)
		}

		r.normalizeBlocks(desc, label)
		c.queueBindings(label, obj, desc)

		return future.Then(r.reviveObjectLiteral(c, desc, ""), func(v any) future.Result[any] {
			d := v.(map[string]any)
			switch obj.(type) {
			case object.ValuesDeserializable:
				return r.deserializeObject(c, obj, d, label)
			case object.SelfDeserializable:
				return r.deserializeCustomObject(c, obj, d, label)
			}
			return r.deserializeObject(c, obj, d, label)
		})
	})
}

// normalizeBlocks folds the deprecated "properties" block into "values".
func (r *Reviver) normalizeBlocks(desc map[string]any, label string) {
	if _, ok := desc["bindings"]; ok {
		r.run.warnOnce("'bindings' block is deprecated, use 'values' instead", "label", label)
	}
	props, ok := desc["properties"]
	if !ok {
		return
	}
	r.run.warnOnce("'properties' block is deprecated, use 'values' instead", "label", label)
	if _, ok := desc["values"]; !ok {
		desc["values"] = props
	}
	delete(desc, "properties")
}

func (r *Reviver) getMontageObject(c *Context, desc map[string]any, label string) future.Result[any] {
	raw, isPrototype := desc["prototype"]
	if !isPrototype || isEmpty(raw) {
		raw = desc["object"]
	}
	if isEmpty(raw) {
		return future.Fail[any](newError(ErrCodeMissingLocation, label,
			"Error deserializing %s, might need \"prototype\" or \"object\" on label %q", describe(desc), label))
	}
	locationID, ok := raw.(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidDescriptor, label,
			"Property 'object' of the object with the label '%s' must be a module id", label))
	}

	ld := r.locations.Parse(locationID)
	return future.Then(r.loadModule(c, ld, label), func(exports any) future.Result[any] {
		if !isPrototype {
			return future.Ready(exports)
		}
		obj, err := object.Create(exports)
		if err != nil {
			return future.Fail[any](wrapError(ErrCodeInvalidValue, label, err,
				"cannot instantiate %q for %q", locationID, label))
		}
		setDeserializing(obj)
		if creator, ok := obj.(object.Creator); ok {
			creator.DidCreate()
		}
		return future.Ready(obj)
	})
}

func (r *Reviver) loadModule(c *Context, ld location.Descriptor, label string) future.Result[any] {
	moduleID := ld.ModuleID
	if module.IsDocument(moduleID) {
		if root, ok := r.run.moduleRoot(moduleID); ok {
			return root
		}
	}

	loaded := future.MapError(r.loader.GetModule(moduleID, label), func(err error) error {
		if CodeOf(err) != "" {
			return err
		}
		return wrapError(ErrCodeModuleLoadFailed, label, err,
			"cannot load module %q for %q", moduleID, label)
	})

	return future.Then(loaded, func(exports any) future.Result[any] {
		switch {
		case module.IsDocument(moduleID):
			return r.loadDocument(c, exports, moduleID, label)
		case module.IsJSON(moduleID):
			return future.Ready(exports)
		}

		v, ok, available := module.Lookup(exports, ld.ObjectName)
		if !ok {
			return future.Fail[any](newError(ErrCodeObjectNotFound, label,
				"Error deserializing %q: object named %q was not found in %q. Available objects are: %s.",
				label, ld.ObjectName, moduleID, strings.Join(available, ",")))
		}
		return future.Ready(v)
	})
}

// loadDocument deserializes a nested document once per run. A document
// that is already in flight (including the one being revived) yields its
// root so far instead of recursing.
func (r *Reviver) loadDocument(c *Context, doc any, moduleID, label string) future.Result[any] {
	if root, ok := r.run.moduleRoot(moduleID); ok {
		return root
	}
	if r.locationID != "" {
		r.run.Enter(r.locationID, c)
	}
	if r.nested == nil {
		return future.Fail[any](newError(ErrCodeModuleLoadFailed, label,
			"nested document %q cannot be deserialized here", moduleID))
	}

	r.logger.Debug("deserializing nested document", "module", moduleID, "label", label)
	resolver := module.ModuleResolver(r.loader.ResolverFor(label), moduleID)
	root := r.nested(doc, resolver, moduleID, r.run)
	r.run.storeRoot(moduleID, root)
	return root
}

func (r *Reviver) deserializeObject(c *Context, obj any, desc map[string]any, label string) future.Result[any] {
	c.queueUnits(label, obj, desc, r.ext.UnitNames())
	if err := r.applyValues(c, obj, desc["values"], label); err != nil {
		return future.Fail[any](err)
	}
	return future.Ready(obj)
}

func (r *Reviver) deserializeCustomObject(c *Context, obj any, desc map[string]any, label string) future.Result[any] {
	sd := obj.(object.SelfDeserializable)
	accessor := &selfDeserializer{
		valuesDeserializer: valuesDeserializer{c: c, values: valuesOf(desc)},
		r:                  r,
		object:             obj,
		desc:               desc,
		label:              label,
	}

	return future.Then(sd.DeserializeSelf(accessor), func(substitute any) future.Result[any] {
		if substitute == nil {
			return future.Ready(obj)
		}
		c.SetObjectLabel(label, substitute)
		return future.Ready(substitute)
	})
}

// applyValues hands values to a ValuesDeserializable or copies every key
// onto obj.
func (r *Reviver) applyValues(c *Context, obj any, raw any, label string) error {
	if raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			return newError(ErrCodeInvalidDescriptor, label, "values of %q must be an object", label)
		}
	}
	values, _ := raw.(map[string]any)

	if vd, ok := obj.(object.ValuesDeserializable); ok {
		if err := vd.DeserializeValues(&valuesDeserializer{c: c, values: values}); err != nil {
			return wrapError(ErrCodeInvalidValue, label, err, "deserializing values of %q", label)
		}
		return nil
	}

	for _, key := range sortedKeys(values) {
		if err := object.SetProperty(obj, key, values[key]); err != nil {
			return wrapError(ErrCodeInvalidValue, label, err, "setting %q on %q", key, label)
		}
	}
	return nil
}

// ReviveValue revives a value found inside a descriptor. A non-empty label
// records the value under it.
func (r *Reviver) ReviveValue(c *Context, value any, label string) future.Result[any] {
	kind := Classify(value)
	if kind == KindObject {
		if custom := r.ext.TypeOf(value); custom != "" {
			return r.reviveCustom(c, custom, value, label)
		}
	}

	switch kind {
	case KindRegExp:
		return r.reviveRegExp(c, value.(map[string]any), label)
	case KindReference:
		return r.reviveReference(c, value.(map[string]any), label)
	case KindArray:
		return r.reviveArray(c, value.([]any), label)
	case KindObject:
		return r.reviveObjectLiteral(c, value.(map[string]any), label)
	case KindElement:
		return r.reviveElement(c, value.(map[string]any), label)
	case KindModule:
		return r.reviveModule(c, value.(map[string]any), label)
	case KindBinding:
		return future.Ready(value)
	}

	if label != "" {
		c.SetObjectLabel(label, value)
	}
	return future.Ready(value)
}

func (r *Reviver) reviveCustom(c *Context, kind string, value any, label string) future.Result[any] {
	fn, ok := r.ext.Reviver(kind)
	if !ok {
		return future.Fail[any](newError(ErrCodeUnknownType, label,
			"no reviver registered for %q", kind))
	}
	return fn(c, value, label)
}

func (r *Reviver) reviveRegExp(c *Context, value map[string]any, label string) future.Result[any] {
	spec, ok := value[TagRegExp].(map[string]any)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidValue, label,
			"regular expression must be an object with a source"))
	}
	source, ok := spec["source"].(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidValue, label,
			"regular expression source must be a string"))
	}
	flags, _ := spec["flags"].(string)

	re, err := object.NewRegExp(source, flags)
	if err != nil {
		return future.Fail[any](wrapError(ErrCodeInvalidValue, label, err, "invalid regular expression"))
	}
	if label != "" {
		c.SetObjectLabel(label, re)
	}
	return future.Ready[any](re)
}

func (r *Reviver) reviveReference(c *Context, value map[string]any, label string) future.Result[any] {
	target, ok := value[TagReference].(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidValue, label,
			"reference must name a label, got %s", Classify(value[TagReference])))
	}
	return future.MapError(c.GetObject(target), func(err error) error {
		if errors.Is(err, future.ErrReentrant) {
			return wrapError(ErrCodeCircularReference, target, err,
				"Object with label '%s' depends on itself", target)
		}
		return err
	})
}

func (r *Reviver) reviveElement(c *Context, value map[string]any, label string) future.Result[any] {
	id, ok := value[TagElement].(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidValue, label, "element id must be a string"))
	}
	element, found := c.ElementByID(id)
	if !found {
		return future.Fail[any](newError(ErrCodeElementNotFound, label,
			"Element with id '%s' was not found.", id))
	}
	if label != "" {
		c.SetObjectLabel(label, element)
	}
	return future.Ready(element)
}

func (r *Reviver) reviveModule(c *Context, value map[string]any, label string) future.Result[any] {
	id, ok := value[TagModule].(string)
	if !ok {
		return future.Fail[any](newError(ErrCodeInvalidValue, label, "module reference must be a module id"))
	}
	resolver := c.Resolver()
	canonical := resolver.Resolve(id)
	d := resolver.Descriptor(canonical)

	ref := &module.Reference{ID: d.ID, Resolver: d.Resolver}
	if ref.ID == "" {
		ref.ID = canonical
	}
	if ref.Resolver == nil {
		ref.Resolver = resolver
	}
	return future.Ready[any](ref)
}

func (r *Reviver) reviveArray(c *Context, value []any, label string) future.Result[any] {
	if label != "" {
		c.SetObjectLabel(label, value)
	}

	var pending []future.Result[any]
	for i, item := range value {
		res := r.ReviveValue(c, item, "")
		if v, err, ok := res.Settled(); ok {
			if err != nil {
				return future.Fail[any](err)
			}
			value[i] = v
			continue
		}
		pending = append(pending, future.Then(res, func(v any) future.Result[any] {
			value[i] = v
			return future.Ready(v)
		}))
	}

	return joinInto(pending, value)
}

func (r *Reviver) reviveObjectLiteral(c *Context, value map[string]any, label string) future.Result[any] {
	if label != "" {
		c.SetObjectLabel(label, value)
	}

	var pending []future.Result[any]
	for _, key := range sortedKeys(value) {
		res := r.ReviveValue(c, value[key], "")
		if v, err, ok := res.Settled(); ok {
			if err != nil {
				return future.Fail[any](err)
			}
			value[key] = v
			continue
		}
		pending = append(pending, future.Then(res, func(v any) future.Result[any] {
			value[key] = v
			return future.Ready(v)
		}))
	}

	return joinInto(pending, value)
}

// joinInto waits for pending and then yields container. Without pending
// work container is returned directly.
func joinInto(pending []future.Result[any], container any) future.Result[any] {
	if len(pending) == 0 {
		return future.Ready(container)
	}
	return future.Then(future.All(pending), func([]any) future.Result[any] {
		return future.Ready(container)
	})
}

func setDeserializing(obj any) {
	if m, ok := obj.(object.DeserializingMarker); ok {
		m.SetDeserializing(true)
	}
}

func valuesOf(desc map[string]any) map[string]any {
	values, _ := desc["values"].(map[string]any)
	return values
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
