package expression

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(slog.Default())
}

func TestHasReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"plain string", "hello world", false},
		{"single reference", "${user.id}", true},
		{"mixed template", "Hello ${user.name}!", true},
		{"open without close", "broken ${ref", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasReference(tt.input))
		})
	}
}

func TestEvaluate_PlainStringReturnsItself(t *testing.T) {
	e := newTestEvaluator()

	result := e.Evaluate("https://example.com/api", nil, "default")
	assert.Equal(t, "https://example.com/api", result)
}

func TestEvaluate_SingleReferencePreservesStructure(t *testing.T) {
	e := newTestEvaluator()
	context := map[string]any{
		"fetchUsers": map[string]any{
			"body": map[string]any{
				"ids": []any{1, 2, 3},
			},
		},
	}

	result := e.Evaluate("${fetchUsers.body.ids}", context, nil)

	require.IsType(t, []any{}, result)
	assert.Equal(t, []any{1, 2, 3}, result)
}

func TestEvaluate_MixedTemplateConcatenates(t *testing.T) {
	e := newTestEvaluator()
	context := map[string]any{
		"student": map[string]any{"id": "stu-42", "name": "Priya"},
	}

	result := e.Evaluate("profiles/${student.id}/greet/${student.name}", context, "default")
	assert.Equal(t, "profiles/stu-42/greet/Priya", result)
}

func TestEvaluate_MissingReferenceReturnsFallback(t *testing.T) {
	e := newTestEvaluator()

	result := e.Evaluate("${missing.path}", map[string]any{"other": 1}, "fallback-value")
	assert.Equal(t, "fallback-value", result)
}

func TestEvaluate_UnterminatedReferenceReturnsFallback(t *testing.T) {
	e := newTestEvaluator()

	result := e.Evaluate("prefix ${broken", map[string]any{}, "safe")
	// No closing marker means no reference at all, so the string passes
	// through unchanged.
	assert.Equal(t, "prefix ${broken", result)
}

func TestEvaluate_MalformedTemplateReturnsFallback(t *testing.T) {
	e := newTestEvaluator()

	// The first reference closes, the second never does.
	result := e.Evaluate("${a.b} and ${broken", map[string]any{"a": map[string]any{"b": "x"}}, "safe")
	assert.Equal(t, "safe", result)
}

func TestEvaluate_NilContext(t *testing.T) {
	e := newTestEvaluator()

	result := e.Evaluate("${anything}", nil, "default")
	assert.Equal(t, "default", result)
}

func TestEvaluate_ExpressionSyntax(t *testing.T) {
	e := newTestEvaluator()
	context := map[string]any{
		"response": map[string]any{"statusCode": 200},
	}

	result := e.Evaluate("${response.statusCode >= 200 && response.statusCode < 300}", context, false)
	assert.Equal(t, true, result)
}

func TestEvaluateString_NonStringValueRendered(t *testing.T) {
	e := newTestEvaluator()
	context := map[string]any{"count": 7}

	result := e.EvaluateString("${count}", context, "0")
	assert.Equal(t, "7", result)
}

func TestEvaluate_CachesCompiledPrograms(t *testing.T) {
	e := newTestEvaluator()
	context := map[string]any{"v": "first"}

	assert.Equal(t, "first", e.Evaluate("${v}", context, nil))

	context["v"] = "second"
	assert.Equal(t, "second", e.Evaluate("${v}", context, nil))

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}
