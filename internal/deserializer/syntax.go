package deserializer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/objgraph/internal/schema"
)

// gutterPadding widens the line-number gutter of syntax error listings.
const gutterPadding = "   "

// SyntaxError reports a serialization that is not valid JSON.
type SyntaxError struct {
	// Line is the 1-based line of the error, 0 when it was not located.
	Line    int
	Origin  string
	Message string
	Err     error
}

func (e *SyntaxError) Error() string {
	return e.Message
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func (d *Deserializer) syntaxError(source []byte, err error) *SyntaxError {
	se := &SyntaxError{Origin: d.opts.origin, Err: err}

	if d.opts.linter == nil {
		se.Message = "Syntax error in the serialization: " + err.Error()
		return se
	}

	issue := d.opts.linter(source)
	if issue == nil || issue.Line == 0 {
		se.Message = "Syntax error in the serialization but not able to find it!\n" + string(source)
		return se
	}

	se.Line = issue.Line
	se.Message = FormatSyntaxError(string(source), d.opts.origin, *issue)
	return se
}

// FormatSyntaxError renders issue followed by source with a line-number
// gutter. The offending line's gutter is filled with '>'.
func FormatSyntaxError(source, origin string, issue schema.SyntaxIssue) string {
	lines := strings.Split(source, "\n")
	gutterSize := len(gutterPadding + strconv.Itoa(len(lines)))

	for i, line := range lines {
		n := strconv.Itoa(i + 1)
		fill := " "
		if i == issue.Line-1 {
			fill = ">"
		}
		lines[i] = strings.Repeat(fill, gutterSize-len(n)) + n + " " + line
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Syntax error at line %d", issue.Line)
	if origin != "" {
		b.WriteString(" from " + origin)
	}
	b.WriteString(":\n")
	b.WriteString(issue.Evidence + "\n")
	b.WriteString(issue.Reason + "\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
