// Package strategies implements the pluggable executors behind HTTP-shaped
// workflow nodes, keyed by the node config's requestType.
package strategies

import "context"

// Request types recognized by the registry.
const (
	RequestTypeExternal = "EXTERNAL"
	RequestTypeInternal = "INTERNAL"
)

// Result map keys shared by all strategies.
const (
	KeyStatusCode   = "statusCode"
	KeyHeaders      = "headers"
	KeyBody         = "body"
	KeyError        = "error"
	KeyMessage      = "message"
	KeyResponseBody = "responseBody"
)

// Strategy executes an HTTP-shaped node given a context and merged config,
// returning a normalized result map. Strategies never return Go errors for
// action failures; failures are folded into the map under "error" so the
// runtime can record them and apply the node's error policy.
type Strategy interface {
	Type() string
	Execute(ctx context.Context, execContext map[string]any, config map[string]any) map[string]any
}

// SignedResponse is the normalized response from the internal-call
// collaborator.
type SignedResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// SignedClient is the credential-signing HTTP client owned outside this
// engine. The INTERNAL strategy delegates every call to it.
type SignedClient interface {
	MakeSignedRequest(ctx context.Context, clientName, method, url string, body any, headers map[string]string) (*SignedResponse, error)
}

// IsError reports whether a strategy result map carries an action failure.
func IsError(result map[string]any) bool {
	_, ok := result[KeyError]

	return ok
}

// errorResult builds the normalized error map for a failed strategy call.
func errorResult(strategyType, message string) map[string]any {
	return map[string]any{
		KeyError: strategyType + " failed: " + message,
	}
}
