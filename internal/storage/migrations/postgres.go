package migrations

import (
	"context"
	"fmt"

	"decred-onchain-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded PostgreSQL schema.
// Every statement is idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	ms, err := Load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range ms {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
