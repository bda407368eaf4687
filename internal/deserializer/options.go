package deserializer

import (
	"log/slog"

	"github.com/roach88/objgraph/internal/extension"
	"github.com/roach88/objgraph/internal/location"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/revive"
	"github.com/roach88/objgraph/internal/schema"
)

// Linter locates the first syntax error of a source that failed to parse.
// It returns nil when it cannot find one.
type Linter func(source []byte) *schema.SyntaxIssue

// Option configures a Deserializer.
type Option func(*options)

type options struct {
	ext             *extension.Registry
	locations       *location.Cache
	binder          revive.BindingApplier
	logger          *slog.Logger
	objectResolvers map[string]module.Resolver
	locationID      string
	origin          string
	run             *revive.Run
	halt            revive.HaltFunc
	linter          Linter
	idGen           revive.IDGenerator
}

// WithExtensions sets the unit and custom reviver registry.
// Default: an empty registry.
func WithExtensions(ext *extension.Registry) Option {
	return func(o *options) {
		o.ext = ext
	}
}

// WithLocations sets the location identifier cache.
// Default: the process-wide cache.
func WithLocations(c *location.Cache) Option {
	return func(o *options) {
		o.locations = c
	}
}

// WithBindingApplier sets the collaborator that wires bindings.
func WithBindingApplier(b revive.BindingApplier) Option {
	return func(o *options) {
		o.binder = b
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObjectResolvers sets per-label resolution contexts: modules
// referenced by a label found in resolvers are resolved there.
func WithObjectResolvers(resolvers map[string]module.Resolver) Option {
	return func(o *options) {
		o.objectResolvers = resolvers
	}
}

// WithLocationID names the module the document was loaded from.
func WithLocationID(id string) Option {
	return func(o *options) {
		o.locationID = id
	}
}

// WithOrigin names the document in syntax error messages.
func WithOrigin(origin string) Option {
	return func(o *options) {
		o.origin = origin
	}
}

// WithRun makes the deserializer part of an existing run.
func WithRun(run *revive.Run) Option {
	return func(o *options) {
		o.run = run
	}
}

// WithHalt sets the hook called for descriptors with a truthy "debugger"
// key. Pass runtime.Breakpoint wrapped in a func to stop in a debugger.
func WithHalt(fn revive.HaltFunc) Option {
	return func(o *options) {
		o.halt = fn
	}
}

// WithLinter sets the syntax error locator. Default: schema.Lint.
// A nil linter reports syntax errors without an excerpt.
func WithLinter(l Linter) Option {
	return func(o *options) {
		o.linter = l
	}
}

// WithIDGenerator sets the run id generator used when no run is given.
// Default: UUIDv7.
func WithIDGenerator(gen revive.IDGenerator) Option {
	return func(o *options) {
		o.idGen = gen
	}
}

func defaultOptions() options {
	return options{
		linter: schema.Lint,
	}
}

// nestedOptions returns the options of a document nested in one configured
// by o. Per-label resolvers do not apply to nested documents.
func (o options) nestedOptions(moduleID string, run *revive.Run) options {
	n := o
	n.objectResolvers = nil
	n.locationID = moduleID
	n.origin = moduleID
	n.run = run
	return n
}
