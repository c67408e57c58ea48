package strategies

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/campushive/flowkit/pkg/expression"
)

// ExternalStrategy executes a node against an external HTTP service using a
// plain client. URL, headers, query parameters, authentication and string
// body leaves are all expression-evaluated before the call.
type ExternalStrategy struct {
	evaluator *expression.Evaluator
	client    *http.Client
	logger    *slog.Logger
}

// NewExternalStrategy creates the EXTERNAL executor. A nil client gets a
// default with a bounded timeout; per-node timeoutSeconds still applies per
// request.
func NewExternalStrategy(evaluator *expression.Evaluator, client *http.Client, logger *slog.Logger) *ExternalStrategy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &ExternalStrategy{
		evaluator: evaluator,
		client:    client,
		logger:    logger,
	}
}

// Type returns the request type this strategy handles.
func (s *ExternalStrategy) Type() string {
	return RequestTypeExternal
}

// Execute performs the HTTP call described by the node config. Client error
// responses and transport failures are folded into the result map, never
// raised.
func (s *ExternalStrategy) Execute(ctx context.Context, execContext map[string]any, config map[string]any) map[string]any {
	cfg := parseConfig(s.evaluator, config, execContext)
	if cfg.URL == "" {
		return errorResult(RequestTypeExternal, "missing url")
	}

	req, err := s.buildRequest(ctx, cfg)
	if err != nil {
		return errorResult(RequestTypeExternal, err.Error())
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := s.client.Do(req.WithContext(reqCtx))
	if err != nil {
		return errorResult(RequestTypeExternal, err.Error())
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", "url", cfg.URL, "error", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(RequestTypeExternal, "failed to read response: "+err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return map[string]any{
			KeyStatusCode:   resp.StatusCode,
			KeyError:        fmt.Sprintf("HTTP %d", resp.StatusCode),
			KeyMessage:      http.StatusText(resp.StatusCode),
			KeyResponseBody: parseResponseBody(payload),
		}
	}

	return map[string]any{
		KeyStatusCode: resp.StatusCode,
		KeyHeaders:    flattenHeaders(resp.Header),
		KeyBody:       parseResponseBody(payload),
	}
}

func (s *ExternalStrategy) buildRequest(ctx context.Context, cfg nodeConfig) (*http.Request, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", cfg.URL, err)
	}

	if len(cfg.QueryParams) > 0 {
		query := target.Query()
		for key, value := range cfg.QueryParams {
			query.Set(key, value)
		}

		target.RawQuery = query.Encode()
	}

	var bodyReader io.Reader

	if cfg.Body != nil {
		encoded, err := json.Marshal(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	if cfg.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := applyAuthentication(req, cfg.Authentication); err != nil {
		return nil, err
	}

	return req, nil
}

// applyAuthentication sets basic or bearer credentials from the evaluated
// authentication block.
func applyAuthentication(req *http.Request, auth map[string]any) error {
	if len(auth) == 0 {
		return nil
	}

	authType, _ := auth["type"].(string)

	switch {
	case authType == "" || authType == "BASIC":
		username, _ := auth["username"].(string)
		password, _ := auth["password"].(string)

		if username == "" {
			return fmt.Errorf("basic authentication missing username")
		}

		req.SetBasicAuth(username, password)

	case authType == "BEARER":
		token, _ := auth["token"].(string)
		if token == "" {
			return fmt.Errorf("bearer authentication missing token")
		}

		req.Header.Set("Authorization", "Bearer "+token)

	default:
		return fmt.Errorf("unsupported authentication type %q", authType)
	}

	return nil
}
