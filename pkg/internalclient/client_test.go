package internalclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeSignedRequest_SignsAndResolvesURL(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		capturedBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	credentials := map[string]Credential{
		"fees-service": {BaseURL: server.URL, KeyID: "key-1", Secret: "s3cret"},
	}

	client := New(credentials, server.Client(), slog.Default())
	fixed := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	body := map[string]any{"studentId": "stu-7"}

	resp, err := client.MakeSignedRequest(context.Background(), "fees-service",
		http.MethodPost, "/receipts", body, map[string]string{"X-Request-Id": "req-1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	require.NotNil(t, captured)
	assert.Equal(t, "/receipts", captured.URL.Path)
	assert.Equal(t, "key-1", captured.Header.Get("X-Client-Id"))
	assert.Equal(t, "1773130500", captured.Header.Get("X-Timestamp"))
	assert.Equal(t, "req-1", captured.Header.Get("X-Request-Id"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(capturedBody))

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("POST\n/receipts\n1773130500\n"))
	mac.Write(payload)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), captured.Header.Get("X-Signature"))
}

func TestMakeSignedRequest_UnknownClient(t *testing.T) {
	client := New(map[string]Credential{}, nil, slog.Default())

	_, err := client.MakeSignedRequest(context.Background(), "ghost", http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown internal client "ghost"`)
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := `{"fees-service": {"base_url": "https://fees.internal", "key_id": "key-1", "secret": "s3cret"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	credentials, err := LoadCredentials(path)
	require.NoError(t, err)

	require.Contains(t, credentials, "fees-service")
	assert.Equal(t, "https://fees.internal", credentials["fees-service"].BaseURL)

	empty, err := LoadCredentials("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadCredentials(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
