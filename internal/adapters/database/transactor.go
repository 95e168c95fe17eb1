package database

import (
	"context"

	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
)

type transactor struct {
	client *postgres.Client
}

// NewTransactor exposes the Postgres client's transaction scope to services
func NewTransactor(client *postgres.Client) repositories.Transactor {
	return &transactor{client: client}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.client.WithinTx(ctx, fn)
}
