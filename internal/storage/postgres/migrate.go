package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"sportsfeed/migrations"
)

// Migrate applies every migration not yet recorded in schema_migrations.
// Each file runs in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, steps []migrations.Migration, logger *slog.Logger) (int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	tm := NewTransactionManager(db)
	count := 0
	for _, step := range steps {
		if done[step.Name] {
			continue
		}

		err := tm.WithTransaction(ctx, func(ctx context.Context) error {
			exec := GetExecutor(ctx, db)
			if _, err := exec.ExecContext(ctx, step.SQL); err != nil {
				return err
			}
			_, err := exec.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, step.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply %s: %w", step.Name, err)
		}

		logger.Info("migration applied", "name", step.Name)
		count++
	}

	return count, nil
}
