package deserializer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/objgraph/internal/schema"
	"github.com/roach88/objgraph/internal/testutil"
)

const brokenSource = "{\n  \"a\": {\"value\": 1},\n  \"b\": {\"value\": }\n}"

func syntaxErrorOf(t *testing.T, opts ...Option) *SyntaxError {
	t.Helper()
	_, err := deserialize(t, brokenSource, testutil.Registry(), opts...)
	var se *SyntaxError
	require.True(t, errors.As(err, &se), "got %v", err)
	return se
}

func TestSyntaxErrorExcerpt(t *testing.T) {
	linter := func([]byte) *schema.SyntaxIssue {
		return &schema.SyntaxIssue{Line: 3, Column: 19, Evidence: `  "b": {"value": }`, Reason: "invalid JSON"}
	}
	se := syntaxErrorOf(t, WithLinter(linter), WithOrigin("ui/form.mjson"))

	want := "Syntax error at line 3 from ui/form.mjson:\n" +
		"  \"b\": {\"value\": }\n" +
		"invalid JSON\n" +
		"   1 {\n" +
		"   2   \"a\": {\"value\": 1},\n" +
		">>>3   \"b\": {\"value\": }\n" +
		"   4 }"
	assert.Equal(t, want, se.Error())
	assert.Equal(t, 3, se.Line)
	assert.Equal(t, "ui/form.mjson", se.Origin)
	assert.Error(t, errors.Unwrap(se))
}

func TestSyntaxErrorDefaultLinter(t *testing.T) {
	se := syntaxErrorOf(t)
	assert.Equal(t, 3, se.Line)
	assert.True(t, strings.HasPrefix(se.Error(), "Syntax error at line 3:\n  \"b\": {\"value\": }\n"), se.Error())
	assert.Contains(t, se.Error(), ">>>3 ")
}

func TestSyntaxErrorNotLocated(t *testing.T) {
	se := syntaxErrorOf(t, WithLinter(func([]byte) *schema.SyntaxIssue { return nil }))
	assert.Equal(t, "Syntax error in the serialization but not able to find it!\n"+brokenSource, se.Error())
	assert.Zero(t, se.Line)
}

func TestSyntaxErrorWithoutLinter(t *testing.T) {
	se := syntaxErrorOf(t, WithLinter(nil))
	assert.True(t, strings.HasPrefix(se.Error(), "Syntax error in the serialization: "), se.Error())
}

func TestFormatSyntaxErrorGutterWidth(t *testing.T) {
	source := strings.Repeat("x\n", 11) + "x"
	msg := FormatSyntaxError(source, "", schema.SyntaxIssue{Line: 10, Evidence: "x", Reason: "bad"})
	lines := strings.Split(msg, "\n")

	require.Len(t, lines, 3+12)
	assert.Equal(t, "Syntax error at line 10:", lines[0])
	assert.Equal(t, "    1 x", lines[3])
	assert.Equal(t, ">>>10 x", lines[12])
	assert.Equal(t, "   12 x", lines[14])
}

func TestSyntaxErrorIsReportedByPreload(t *testing.T) {
	d := newDeserializer(t, brokenSource, testutil.Registry())
	_, err := d.PreloadModules(context.Background())
	var se *SyntaxError
	assert.True(t, errors.As(err, &se))
}
