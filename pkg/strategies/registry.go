package strategies

import (
	"log/slog"
	"strings"
)

// Registry resolves a node config's requestType to the matching strategy.
// It is built once at process start from an explicit registration table;
// dispatch is a pure function of requestType.
type Registry struct {
	logger     *slog.Logger
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger,
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy under its declared type.
func (r *Registry) Register(strategy Strategy) {
	key := strings.ToUpper(strategy.Type())
	r.strategies[key] = strategy
	r.logger.Info("Registered action strategy", "request_type", key)
}

// Resolve returns the strategy for a requestType. Matching is
// case-insensitive; an absent or unrecognized type falls back to EXTERNAL.
// The second return is false only when not even the fallback is registered,
// which callers must treat as a configuration error.
func (r *Registry) Resolve(requestType string) (Strategy, bool) {
	key := strings.ToUpper(strings.TrimSpace(requestType))

	strategy, ok := r.strategies[key]
	if !ok {
		strategy, ok = r.strategies[RequestTypeExternal]
	}

	return strategy, ok
}

// RequestTypeOf extracts the requestType field from a merged node config.
func RequestTypeOf(config map[string]any) string {
	requestType, _ := config["requestType"].(string)

	return requestType
}
