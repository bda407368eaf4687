package object

import (
	"fmt"
	"regexp"
	"strings"
)

// RegExp is a revived regular expression. Source and Flags are kept as
// written; Regexp is the compiled Go equivalent. The flags i, m and s map
// to Go inline flags; g, y and u have no Go counterpart and only survive in
// Flags.
type RegExp struct {
	Source string
	Flags  string
	Regexp *regexp.Regexp
}

// NewRegExp compiles source with flags.
func NewRegExp(source, flags string) (*RegExp, error) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'g', 'y', 'u':
		default:
			return nil, fmt.Errorf("invalid regular expression flag %q", f)
		}
	}

	expr := source
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + source
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression /%s/%s: %w", source, flags, err)
	}
	return &RegExp{Source: source, Flags: flags, Regexp: re}, nil
}

// MatchString reports whether s matches.
func (r *RegExp) MatchString(s string) bool {
	return r.Regexp.MatchString(s)
}

func (r *RegExp) String() string {
	return "/" + r.Source + "/" + r.Flags
}

// Alias is a named indirection to another value path, declared by a
// template property (a label starting with ':').
type Alias struct {
	Value string
}

func (a *Alias) String() string {
	return "alias(" + a.Value + ")"
}
