package revive

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/objgraph/internal/future"
)

// IDGenerator generates run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Run is one top-level deserialization and every nested document it
// loads. It owns the module table that makes nested documents shared and
// tolerant of cycles: a module id maps to the context deserializing it
// while it is in flight, and to its memoized root afterwards.
type Run struct {
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	modules map[string]*moduleEntry
	warned  map[string]bool
}

type moduleEntry struct {
	ctx     *Context
	done    bool
	root    future.Result[any]
	hasRoot bool
}

// NewRun creates a run whose id comes from gen. A nil logger uses
// slog.Default().
func NewRun(gen IDGenerator, logger *slog.Logger) *Run {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := gen.Generate()
	return &Run{
		id:      id,
		logger:  logger.With("run_id", id),
		modules: make(map[string]*moduleEntry),
		warned:  make(map[string]bool),
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Logger returns the run logger, which carries the run id.
func (r *Run) Logger() *slog.Logger {
	return r.logger
}

// Enter records c as the context deserializing moduleID.
func (r *Run) Enter(moduleID string, c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(moduleID)
	if e.ctx == nil {
		e.ctx = c
	}
}

// Leave marks moduleID as finished.
func (r *Run) Leave(moduleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(moduleID).done = true
}

// InFlight reports whether moduleID is being deserialized right now.
func (r *Run) InFlight(moduleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.modules[moduleID]
	return ok && e.ctx != nil && !e.done
}

// ModuleIDs returns the ids of every module the run has seen.
func (r *Run) ModuleIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	return ids
}

func (r *Run) entry(moduleID string) *moduleEntry {
	e, ok := r.modules[moduleID]
	if !ok {
		e = &moduleEntry{}
		r.modules[moduleID] = e
	}
	return e
}

// moduleRoot returns the root of moduleID if the run already knows it.
// An in-flight module yields the root of its context so far, which is how
// a document referencing itself gets the object under construction.
func (r *Run) moduleRoot(moduleID string) (future.Result[any], bool) {
	r.mu.Lock()
	e, ok := r.modules[moduleID]
	if !ok {
		r.mu.Unlock()
		return future.Result[any]{}, false
	}
	ctx, done, root, hasRoot := e.ctx, e.done, e.root, e.hasRoot
	r.mu.Unlock()

	switch {
	case ctx != nil && !done:
		return ctx.root(), true
	case hasRoot:
		return root, true
	case ctx != nil:
		return ctx.root(), true
	}
	return future.Result[any]{}, false
}

func (r *Run) storeRoot(moduleID string, root future.Result[any]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(moduleID)
	e.root = root
	e.hasRoot = true
}

// warnOnce logs msg the first time it is seen in this run.
func (r *Run) warnOnce(msg string, args ...any) {
	r.mu.Lock()
	seen := r.warned[msg]
	r.warned[msg] = true
	r.mu.Unlock()
	if !seen {
		r.logger.Warn(msg, args...)
	}
}
