package revive

import "encoding/json"

// Kind is the closed set of value kinds the reviver understands.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBoolean
	// KindUndefined is reported for values outside the JSON data model,
	// such as Go values placed in a pre-parsed document. They are revived
	// as is.
	KindUndefined
	KindArray
	KindObject
	KindReference
	KindRegExp
	KindElement
	KindModule
	KindBinding
)

var kindNames = [...]string{
	KindNull:      "null",
	KindString:    "string",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindUndefined: "undefined",
	KindArray:     "array",
	KindObject:    "object",
	KindReference: "reference",
	KindRegExp:    "regexp",
	KindElement:   "Element",
	KindModule:    "Module",
	KindBinding:   "binding",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Value tag keys. A map whose only key is one of these is a tagged value.
const (
	TagReference = "@"
	TagRegExp    = "/"
	TagElement   = "#"
	TagModule    = "%"
)

// Binding operators.
const (
	OneAssignment = "="
	OneWay        = "<-"
	TwoWay        = "<->"
)

// Classify returns the kind of v. It only looks at the shape of v.
func Classify(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case []any:
		return KindArray
	case map[string]any:
		if len(t) == 1 {
			for key := range t {
				switch key {
				case TagReference:
					return KindReference
				case TagRegExp:
					return KindRegExp
				case TagElement:
					return KindElement
				case TagModule:
					return KindModule
				case OneAssignment, OneWay, TwoWay:
					return KindBinding
				}
			}
		}
		return KindObject
	case string:
		return KindString
	case bool:
		return KindBoolean
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	}
	return KindUndefined
}

// IsNative reports whether values of kind k are revived as is.
func (k Kind) IsNative() bool {
	switch k {
	case KindNull, KindString, KindNumber, KindBoolean, KindUndefined:
		return true
	}
	return false
}

// IsTagged reports whether k is written as a single-key tagged map.
func (k Kind) IsTagged() bool {
	switch k {
	case KindReference, KindRegExp, KindElement, KindModule:
		return true
	}
	return false
}
