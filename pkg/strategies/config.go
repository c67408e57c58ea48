package strategies

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/campushive/flowkit/pkg/expression"
)

// nodeConfig is the parsed HTTP-shaped node configuration after expression
// evaluation against the execution context.
type nodeConfig struct {
	URL            string
	Method         string
	Headers        map[string]string
	QueryParams    map[string]string
	Body           any
	Authentication map[string]any
	TimeoutSeconds int
}

// parseConfig evaluates every evaluable field of the raw config against the
// execution context. Expression failures fall back to the raw string per the
// evaluator contract, so parsing is total.
func parseConfig(evaluator *expression.Evaluator, raw map[string]any, execContext map[string]any) nodeConfig {
	cfg := nodeConfig{
		Method:         http.MethodGet,
		Headers:        make(map[string]string),
		QueryParams:    make(map[string]string),
		TimeoutSeconds: 30,
	}

	if url, ok := raw["url"].(string); ok {
		cfg.URL = evaluator.EvaluateString(url, execContext, url)
	}

	if method, ok := raw["method"].(string); ok && method != "" {
		cfg.Method = strings.ToUpper(method)
	}

	cfg.Headers = evaluateStringMap(evaluator, raw["headers"], execContext)
	cfg.QueryParams = evaluateStringMap(evaluator, raw["queryParams"], execContext)

	if auth, ok := raw["authentication"].(map[string]any); ok {
		cfg.Authentication = evaluateTree(evaluator, auth, execContext).(map[string]any)
	}

	if timeout, ok := raw["timeoutSeconds"].(float64); ok && timeout > 0 {
		cfg.TimeoutSeconds = int(timeout)
	}

	// Request bodies are meaningless for GET/DELETE and are skipped outright.
	if cfg.Method != http.MethodGet && cfg.Method != http.MethodDelete {
		if body, ok := raw["body"]; ok && body != nil {
			cfg.Body = evaluateTree(evaluator, body, execContext)
		}
	}

	return cfg
}

// evaluateStringMap evaluates each value of an object-of-strings config
// field, keeping the raw value when evaluation fails.
func evaluateStringMap(evaluator *expression.Evaluator, raw any, execContext map[string]any) map[string]string {
	out := make(map[string]string)

	values, ok := raw.(map[string]any)
	if !ok {
		return out
	}

	for key, value := range values {
		if s, ok := value.(string); ok {
			out[key] = evaluator.EvaluateString(s, execContext, s)
		}
	}

	return out
}

// evaluateTree walks an arbitrary JSON tree and evaluates every string leaf
// that embeds reference syntax. Non-string leaves pass through untouched.
func evaluateTree(evaluator *expression.Evaluator, node any, execContext map[string]any) any {
	switch value := node.(type) {
	case string:
		if !expression.HasReference(value) {
			return value
		}

		return evaluator.Evaluate(value, execContext, value)

	case map[string]any:
		out := make(map[string]any, len(value))
		for k, v := range value {
			out[k] = evaluateTree(evaluator, v, execContext)
		}

		return out

	case []any:
		out := make([]any, len(value))
		for i, v := range value {
			out[i] = evaluateTree(evaluator, v, execContext)
		}

		return out

	default:
		return node
	}
}

// parseResponseBody decodes a response payload as JSON when possible, falling
// back to the raw text.
func parseResponseBody(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		return decoded
	}

	return string(payload)
}

// flattenHeaders keeps the first value of each header for the result map.
func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key := range headers {
		out[key] = headers.Get(key)
	}

	return out
}
