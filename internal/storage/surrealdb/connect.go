// Package surrealdb opens the shared SurrealDB connection backing
// internal/jobstore and internal/lease. Generalized from vire's
// storage/surrealdb.NewManager, trimmed to the connect/sign-in/use/
// define-tables sequence — the portfolio-specific stores that manager.go
// also built (InternalStore, UserStore, MarketStore) have no gardensync
// analogue and are not carried over.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/gardensync/internal/common"
)

// tables lists every SurrealDB table the Submission & Sync Core writes to.
// SurrealDB errors on querying a table that has never been defined, so this
// runs once at startup rather than relying on implicit schemaless creation.
var tables = []string{"job_queue", "queue_lease"}

// Connect opens, authenticates, and namespaces a SurrealDB connection per
// config.Storage.Job, defining the tables internal/jobstore and
// internal/lease expect to exist.
func Connect(ctx context.Context, logger *common.Logger, config common.SurrealArea) (*surrealdb.DB, error) {
	db, err := surrealdb.New(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("surrealdb: connect: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		return nil, fmt.Errorf("surrealdb: sign in: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		return nil, fmt.Errorf("surrealdb: select namespace/database: %w", err)
	}

	for _, t := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", t)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("surrealdb: define table %s: %w", t, err)
		}
	}

	logger.Info().
		Str("endpoint", config.Endpoint).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB connection established")

	return db, nil
}
