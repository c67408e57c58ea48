// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/campushive/flowkit/pkg/expression"
	"github.com/campushive/flowkit/pkg/internalclient"
	"github.com/campushive/flowkit/pkg/strategies"
)

const defaultHTTPTimeout = 60 * time.Second

// NewStrategyRegistry builds the registry with the EXTERNAL and INTERNAL
// strategies registered. Internal credentials may be empty, in which case
// INTERNAL nodes fail at execution with a missing-credential error rather
// than at startup.
func NewStrategyRegistry(logger *slog.Logger, credentials map[string]internalclient.Credential) *strategies.Registry {
	evaluator := expression.NewEvaluator(logger)
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}

	signedClient := internalclient.New(credentials, httpClient, logger)

	registry := strategies.NewRegistry(logger)
	registry.Register(strategies.NewExternalStrategy(evaluator, httpClient, logger))
	registry.Register(strategies.NewInternalStrategy(evaluator, signedClient, logger))

	return registry
}
