// Package location parses object location identifiers.
//
// A location identifier names a module and, optionally, an object exported
// by that module: "<moduleId>[<objectName>]". When the bracketed name is
// omitted it is derived from the last path segment of the module id,
// without a ".reel" suffix, converted to CamelCase:
//
//	"event/event-manager"       -> {event/event-manager, EventManager}
//	"ui/input-range.reel"       -> {ui/input-range.reel, InputRange}
//	"pkg/widget[Widget]"        -> {pkg/widget, Widget}
//
// Parsed descriptors are memoized by the literal identifier string.
package location

import (
	"regexp"
	"strings"
	"sync"
)

var (
	objectNameRegexp = regexp.MustCompile(`([^/]+?)(\.reel)?$`)
	camelCaseRegexp  = regexp.MustCompile(`(?:^|-)([^-])`)
)

// Descriptor is the parsed form of a location identifier.
type Descriptor struct {
	ModuleID   string
	ObjectName string
}

// Cache memoizes parsed descriptors keyed by the literal identifier.
// Entries are never evicted; the identifier vocabulary of a program is
// bounded in practice.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Descriptor)}
}

var defaultCache = NewCache()

// Default returns the process-wide cache used by Parse.
func Default() *Cache {
	return defaultCache
}

// Parse parses id using the process-wide cache.
func Parse(id string) Descriptor {
	return defaultCache.Parse(id)
}

// Parse returns the descriptor for id, computing and caching it on first use.
func (c *Cache) Parse(id string) Descriptor {
	c.mu.RLock()
	desc, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return desc
	}

	desc = parse(id)

	c.mu.Lock()
	c.entries[id] = desc
	c.mu.Unlock()
	return desc
}

// Len returns the number of cached identifiers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func parse(id string) Descriptor {
	if i := strings.Index(id, "["); i > 0 {
		return Descriptor{
			ModuleID:   id[:i],
			ObjectName: strings.TrimSuffix(id[i+1:], "]"),
		}
	}

	var segment string
	if m := objectNameRegexp.FindStringSubmatch(id); m != nil {
		segment = m[1]
	}
	return Descriptor{
		ModuleID:   id,
		ObjectName: CamelCase(segment),
	}
}

// CamelCase upper-cases the first character of every dash-delimited
// segment and drops the dashes: "input-range" becomes "InputRange".
func CamelCase(s string) string {
	return camelCaseRegexp.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(strings.TrimPrefix(m, "-"))
	})
}
