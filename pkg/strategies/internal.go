package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/campushive/flowkit/pkg/expression"
)

// ErrMissingClientName is the error text an INTERNAL node produces when its
// authentication block carries no clientName.
const ErrMissingClientName = "INTERNAL request missing clientName"

// InternalStrategy executes a node against an internal platform service.
// It shares the EXTERNAL evaluation and body-building pipeline but requires
// authentication.clientName and delegates the signed call to the internal
// client collaborator instead of a plain HTTP client.
type InternalStrategy struct {
	evaluator *expression.Evaluator
	client    SignedClient
	logger    *slog.Logger
}

// NewInternalStrategy creates the INTERNAL executor.
func NewInternalStrategy(evaluator *expression.Evaluator, client SignedClient, logger *slog.Logger) *InternalStrategy {
	return &InternalStrategy{
		evaluator: evaluator,
		client:    client,
		logger:    logger,
	}
}

// Type returns the request type this strategy handles.
func (s *InternalStrategy) Type() string {
	return RequestTypeInternal
}

// Execute resolves the target service credential and delegates the signed
// request. A missing clientName fails fast before any network activity.
func (s *InternalStrategy) Execute(ctx context.Context, execContext map[string]any, config map[string]any) map[string]any {
	cfg := parseConfig(s.evaluator, config, execContext)

	clientName, _ := cfg.Authentication["clientName"].(string)
	if clientName == "" {
		return map[string]any{KeyError: ErrMissingClientName}
	}

	if cfg.URL == "" {
		return errorResult(RequestTypeInternal, "missing url")
	}

	resp, err := s.client.MakeSignedRequest(ctx, clientName, cfg.Method, cfg.URL, cfg.Body, cfg.Headers)
	if err != nil {
		return errorResult(RequestTypeInternal, err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return map[string]any{
			KeyStatusCode:   resp.StatusCode,
			KeyError:        fmt.Sprintf("HTTP %d", resp.StatusCode),
			KeyMessage:      http.StatusText(resp.StatusCode),
			KeyResponseBody: parseResponseBody(resp.Body),
		}
	}

	return map[string]any{
		KeyStatusCode: resp.StatusCode,
		KeyHeaders:    resp.Headers,
		KeyBody:       parseResponseBody(resp.Body),
	}
}
