// Package expression evaluates embedded context references in node
// configuration strings.
//
// Expressions are ordinary strings that may embed references of the form
// ${path.to.value} into the execution context. A string without the marker
// evaluates to itself. Evaluation failures are recoverable by contract: the
// evaluator logs a warning and returns the caller-supplied default, because
// node configs legitimately run against partially-populated contexts.
package expression

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	refOpen  = "${"
	refClose = "}"
)

// segment is one piece of a parsed expression string: either a literal run
// of characters or a reference to be evaluated against the context.
type segment struct {
	literal   string
	reference string
	isRef     bool
}

// Evaluator compiles and runs context references. Compiled programs are
// cached and safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
	mu     sync.RWMutex
	cache  map[string]*vm.Program
}

// NewEvaluator creates an expression evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger,
		cache:  make(map[string]*vm.Program),
	}
}

// HasReference reports whether the string embeds at least one ${...} marker.
func HasReference(s string) bool {
	open := strings.Index(s, refOpen)

	return open >= 0 && strings.Contains(s[open:], refClose)
}

// Evaluate resolves an expression against the context. A string without
// reference syntax is returned unchanged. A string that is exactly one
// reference yields the referenced value with its structure intact; a mixed
// template yields the concatenated string. Any failure returns fallback.
func (e *Evaluator) Evaluate(expression string, context map[string]any, fallback any) any {
	if !HasReference(expression) {
		return expression
	}

	segments, err := parse(expression)
	if err != nil {
		e.warn(expression, err)

		return fallback
	}

	if len(segments) == 1 && segments[0].isRef {
		value, err := e.run(segments[0].reference, context)
		if err != nil {
			e.warn(expression, err)

			return fallback
		}

		return value
	}

	var builder strings.Builder

	for _, seg := range segments {
		if !seg.isRef {
			builder.WriteString(seg.literal)

			continue
		}

		value, err := e.run(seg.reference, context)
		if err != nil {
			e.warn(expression, err)

			return fallback
		}

		builder.WriteString(stringify(value))
	}

	return builder.String()
}

// EvaluateString is Evaluate constrained to string results. Non-string
// reference values are rendered with fmt.
func (e *Evaluator) EvaluateString(expression string, context map[string]any, fallback string) string {
	value := e.Evaluate(expression, context, fallback)
	if s, ok := value.(string); ok {
		return s
	}

	return stringify(value)
}

func (e *Evaluator) run(reference string, context map[string]any) (any, error) {
	program, err := e.compile(reference)
	if err != nil {
		return nil, err
	}

	env := context
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, err
	}

	if out == nil {
		return nil, fmt.Errorf("reference %q resolved to nothing", reference)
	}

	return out, nil
}

func (e *Evaluator) compile(reference string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[reference]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok = e.cache[reference]; ok {
		return program, nil
	}

	program, err := expr.Compile(reference, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("failed to compile reference %q: %w", reference, err)
	}

	e.cache[reference] = program

	return program, nil
}

func (e *Evaluator) warn(expression string, err error) {
	e.logger.Warn("Expression evaluation failed, using default",
		"expression", expression,
		"error", err)
}

// parse splits an expression string into literal and reference segments.
func parse(expression string) ([]segment, error) {
	var segments []segment

	rest := expression
	for {
		open := strings.Index(rest, refOpen)
		if open < 0 {
			break
		}

		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}

		rest = rest[open+len(refOpen):]

		closing := strings.Index(rest, refClose)
		if closing < 0 {
			return nil, fmt.Errorf("unterminated reference in %q", expression)
		}

		reference := strings.TrimSpace(rest[:closing])
		if reference == "" {
			return nil, fmt.Errorf("empty reference in %q", expression)
		}

		segments = append(segments, segment{reference: reference, isRef: true})
		rest = rest[closing+len(refClose):]
	}

	if rest != "" {
		segments = append(segments, segment{literal: rest})
	}

	return segments, nil
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}
