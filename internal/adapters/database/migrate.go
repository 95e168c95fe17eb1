package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema files in name order inside one transaction.
// Every statement is idempotent, so running it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, client *postgres.Client) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	return client.WithinTx(ctx, func(ctx context.Context) error {
		for _, name := range names {
			body, err := migrationFiles.ReadFile(name)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			if _, err := client.Executor(ctx).ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("failed to apply %s: %w", name, err)
			}
			log.Info().Str("file", name).Msg("Applied migration")
		}
		return nil
	})
}
