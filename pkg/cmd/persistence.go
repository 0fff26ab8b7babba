// Package cmd provides shared construction helpers for the binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/persistence/memory"
	"github.com/reachflow/reachflow/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme: postgres:// for PostgreSQL, memory:// for the in-process store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, _, _ := strings.Cut(databaseURL, "://")

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider: %s", provider)
	}
}
