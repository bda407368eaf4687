package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsDocuments(t *testing.T) {
	data := []byte(`{
		"root": {"prototype": "ui/main.reel", "values": {"title": "hi"}},
		"owner": {},
		":label": {"alias": "@owner:label"},
		"n": {"value": 1, "debugger": true},
		"b": {"object": "core/app", "bindings": {"x": {"<-": "@root.title"}}}
	}`)
	assert.Empty(t, Validate("doc.json", data))
}

func TestValidateReportsShapeErrors(t *testing.T) {
	data := []byte(`{
  "a": 5,
  "w": {"prototype": 3},
  "v": {"object": "core/app", "values": "nope"}
}`)
	errs := Validate("doc.json", data)
	require.NotEmpty(t, errs)

	labels := map[string]ValidationError{}
	for _, e := range errs {
		assert.Equal(t, ErrShape, e.Code)
		labels[e.Label] = e
	}
	assert.Contains(t, labels, "a")
	assert.Contains(t, labels, "w")
	assert.Contains(t, labels, "v")
	assert.Equal(t, "prototype", labels["w"].Field)
	assert.Equal(t, "values", labels["v"].Field)
}

func TestValidateSyntaxError(t *testing.T) {
	errs := Validate("", []byte("{\n  \"a\": {\"value\": }\n}"))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSyntax, errs[0].Code)
	assert.Equal(t, 2, errs[0].Line)
}

func TestLint(t *testing.T) {
	assert.Nil(t, Lint([]byte(`{"a": {"value": 1}}`)))

	source := "{\n  \"a\": {\"value\": 1},\n  \"b\": {\"value\": }\n}"
	issue := Lint([]byte(source))
	require.NotNil(t, issue)
	assert.Equal(t, 3, issue.Line)
	assert.Equal(t, `  "b": {"value": }`, issue.Evidence)
	assert.NotEmpty(t, issue.Reason)
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Label: "w", Field: "prototype", Message: "bad", Code: ErrShape, Line: 3}
	assert.Equal(t, "[E102] line 3: w.prototype: bad", e.Error())

	e = ValidationError{Message: "bad", Code: ErrSyntax}
	assert.Equal(t, "[E101] bad", e.Error())
}
