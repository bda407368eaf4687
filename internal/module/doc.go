// Package module defines the module resolution contract consumed by the
// deserializer and provides an in-memory implementation.
//
// A serialization names its prototypes and singletons by module id. The
// Loader turns a module id into exports, either immediately when the module
// is resident (Ready) or by deferring an asynchronous load (Pending).
// Per-label overrides let individual labels resolve modules through a
// different resolution context.
//
// Module ids ending in ".mjson" or ".meta" are nested serialization
// documents, ".json" ids are plain data, and everything else is a Go module
// whose exports are looked up by object name.
package module
