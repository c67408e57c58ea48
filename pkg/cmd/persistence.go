package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/persistence/file"
	"github.com/campushive/flowkit/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// and postgresql:// select PostgreSQL; anything else falls back
// to the JSON-file backend with the URL as the data directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		p, err := file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
		if err != nil {
			panic(err)
		}

		return p
	}
}

func parseScheme(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
