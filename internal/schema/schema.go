// Package schema checks serialization documents before they are
// deserialized: structural validation against an embedded CUE schema and
// location of JSON syntax errors.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed document.cue
var documentSchema string

// Validation error codes (E100-E199)
const (
	ErrSchemaBroken = "E100" // embedded schema does not compile
	ErrSyntax       = "E101" // document is not valid JSON
	ErrShape        = "E102" // descriptor does not match the schema
)

// DefaultFilename names documents in positions when the caller has no
// better name.
const DefaultFilename = "serialization.json"

// ValidationError is one schema violation.
type ValidationError struct {
	Label   string `json:"label,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	where := e.Label
	if e.Field != "" {
		where += "." + e.Field
	}
	switch {
	case e.Line > 0 && where != "":
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, where, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	case where != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, where, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Validate checks data against the document schema and returns every
// violation, ordered by line. filename is used in positions; empty means
// DefaultFilename.
func Validate(filename string, data []byte) []ValidationError {
	if filename == "" {
		filename = DefaultFilename
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(documentSchema, cue.Filename("document.cue"))
	if err := schema.Err(); err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrSchemaBroken}}
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		issue := lint(filename, data, err)
		return []ValidationError{{Message: issue.Reason, Code: ErrSyntax, Line: issue.Line}}
	}

	doc := ctx.BuildExpr(expr)
	unified := schema.LookupPath(cue.ParsePath("#Document")).Unify(doc)
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []ValidationError
	for _, e := range cueerrors.Errors(err) {
		label, field := splitPath(e.Path())
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Label:   label,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    ErrShape,
			Line:    lineIn(filename, e),
		})
	}

	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Line != errs[j].Line {
			return errs[i].Line < errs[j].Line
		}
		return errs[i].Label < errs[j].Label
	})
	return errs
}

// splitPath drops definition selectors and returns the document label and
// the field path below it.
func splitPath(path []string) (label, field string) {
	var parts []string
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], ".")
}

// lineIn returns the first line of err that points into filename.
func lineIn(filename string, err cueerrors.Error) int {
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() && pos.Filename() == filename {
			return pos.Line()
		}
	}
	return 0
}

// SyntaxIssue locates a JSON syntax error. Line is 0 when the error could
// not be located.
type SyntaxIssue struct {
	Line     int
	Column   int
	Evidence string
	Reason   string
}

// Lint returns the first syntax error in source, or nil if the JSON parser
// accepts it.
func Lint(source []byte) *SyntaxIssue {
	_, err := cuejson.Extract(DefaultFilename, source)
	if err == nil {
		return nil
	}
	return lint(DefaultFilename, source, err)
}

func lint(filename string, source []byte, err error) *SyntaxIssue {
	issue := &SyntaxIssue{Reason: err.Error()}

	var pos token.Pos
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		issue.Reason = errs[0].Error()
		for _, p := range cueerrors.Positions(errs[0]) {
			if p.IsValid() && p.Filename() == filename {
				pos = p
				break
			}
		}
	}
	if !pos.IsValid() {
		return issue
	}

	issue.Line = pos.Line()
	issue.Column = pos.Column()
	lines := strings.Split(string(source), "\n")
	if issue.Line > 0 && issue.Line <= len(lines) {
		issue.Evidence = lines[issue.Line-1]
	}
	return issue
}
