// Package revive turns the descriptors of a serialization document into
// live objects.
//
// A Reviver classifies every value into a closed set of kinds (Classify)
// and reconstructs it: primitives as is, regular expressions, references
// to other labels, elements, module references, unevaluated bindings,
// arrays and object literals recursively, and custom kinds through the
// extension registry. Labeled descriptors at the top of a document
// additionally become external objects, aliases or "montage objects"
// created from a module export.
//
// A Context holds the graph of one document. Labels are revived on demand
// so references may point forward. Bindings and units are only queued
// while reviving; DidReviveObjects applies them once every label is live,
// then clears the deserializing marker and notifies the objects.
//
// Revival returns future.Result values: Ready when everything was resident,
// Pending when a module load or a custom hook must be awaited. A Run spans
// a top-level document and every nested ".mjson"/".meta" document it
// loads, so each nested module is deserialized once and a module that
// refers back to itself gets its in-progress root.
package revive
