// Package internalclient signs and executes HTTP calls against internal
// platform services on behalf of INTERNAL workflow nodes.
package internalclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/campushive/flowkit/pkg/strategies"
)

// Credential holds the signing material for one internal service client.
type Credential struct {
	BaseURL string `json:"base_url"`
	KeyID   string `json:"key_id"`
	Secret  string `json:"secret"`
}

// Client is an HMAC header-signing implementation of the internal-call
// collaborator. Credentials are keyed by the clientName resolved from a
// node's authentication block.
type Client struct {
	credentials map[string]Credential
	httpClient  *http.Client
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a signing client over the given credential set.
func New(credentials map[string]Credential, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		credentials: credentials,
		httpClient:  httpClient,
		logger:      logger,
		now:         time.Now,
	}
}

// MakeSignedRequest signs and executes one call against the named internal
// service. Relative URLs are resolved against the credential's base URL.
func (c *Client) MakeSignedRequest(ctx context.Context, clientName, method, rawURL string, body any, headers map[string]string) (*strategies.SignedResponse, error) {
	credential, ok := c.credentials[clientName]
	if !ok {
		return nil, fmt.Errorf("unknown internal client %q", clientName)
	}

	target, err := c.resolveURL(credential, rawURL)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	c.sign(req, credential, payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signed request to %s failed: %w", clientName, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "client", clientName, "error", err)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", clientName, err)
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		responseHeaders[key] = resp.Header.Get(key)
	}

	return &strategies.SignedResponse{
		StatusCode: resp.StatusCode,
		Headers:    responseHeaders,
		Body:       responseBody,
	}, nil
}

func (c *Client) resolveURL(credential Credential, rawURL string) (*url.URL, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if target.IsAbs() || credential.BaseURL == "" {
		return target, nil
	}

	base, err := url.Parse(credential.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", credential.BaseURL, err)
	}

	return base.ResolveReference(target), nil
}

// sign adds the key id, timestamp and HMAC-SHA256 signature headers the
// internal services verify. The signature covers method, path, timestamp and
// body.
func (c *Client) sign(req *http.Request, credential Credential, payload []byte) {
	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(credential.Secret))
	mac.Write([]byte(req.Method))
	mac.Write([]byte("\n"))
	mac.Write([]byte(req.URL.Path))
	mac.Write([]byte("\n"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write(payload)

	req.Header.Set("X-Client-Id", credential.KeyID)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
}
