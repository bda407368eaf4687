// Package deserializer drives the deserialization of a whole serialization
// document.
//
// A Deserializer parses its input lazily, revives every label through a
// revive.Context, runs the bind and unit phases and returns the label map.
// Documents referenced as ".mjson" or ".meta" modules are deserialized by
// nested Deserializers that share the top-level revive.Run, so a nested
// document is revived once per run and may refer back to itself.
//
// Typical use:
//
//	d, err := deserializer.New(src, registry, deserializer.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	objects, err := d.Deserialize(ctx, instances, elements)
package deserializer
