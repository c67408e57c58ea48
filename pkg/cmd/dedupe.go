package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/persistence/redisdedupe"
)

// NewDedupeStore selects the dedupe ledger backend. A redis:// URL puts the
// ledger on Redis with native TTL expiry; an empty URL keeps it co-located
// with the primary store.
func NewDedupeStore(ctx context.Context, logger *slog.Logger, dedupeURL string, store persistence.Persistence) persistence.DedupeStore {
	if strings.HasPrefix(dedupeURL, "redis://") || strings.HasPrefix(dedupeURL, "rediss://") {
		s, err := redisdedupe.NewStore(ctx, logger, dedupeURL)
		if err != nil {
			panic(err)
		}

		return s
	}

	return store.Dedupe()
}
