package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/pkg/config"
)

// MultiDBClient pairs the primary pool with an optional read replica.
// Writes and anything read inside a transaction use Primary; report
// queries that tolerate replication lag use Read.
type MultiDBClient struct {
	primary *Client
	replica *Client
}

// NewMultiDBClient wraps already connected clients. replica may be nil.
func NewMultiDBClient(primary, replica *Client) *MultiDBClient {
	return &MultiDBClient{primary: primary, replica: replica}
}

// NewMultiDBClientFromConfig connects to the primary and, when DB_REPLICA_HOST
// is set, to the replica. A replica that cannot be reached is logged and
// skipped; reads then go to the primary.
func NewMultiDBClientFromConfig(cfg *config.DatabaseConfig) (*MultiDBClient, error) {
	primary, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary database: %w", err)
	}

	replicaCfg, ok := cfg.ReplicaConfig()
	if !ok {
		return NewMultiDBClient(primary, nil), nil
	}

	replica, err := NewClient(&replicaCfg)
	if err != nil {
		log.Warn().Err(err).Str("host", replicaCfg.Host).Msg("Read replica unavailable, reports will read from primary")
		return NewMultiDBClient(primary, nil), nil
	}

	log.Info().Str("host", replicaCfg.Host).Msg("Connected to read replica")
	return NewMultiDBClient(primary, replica), nil
}

// Primary returns the client used for writes
func (c *MultiDBClient) Primary() *Client {
	return c.primary
}

// Read returns the replica, or the primary when there is none
func (c *MultiDBClient) Read() *Client {
	if c.replica == nil {
		return c.primary
	}
	return c.replica
}

// HasReplica reports whether reads are served by a separate pool
func (c *MultiDBClient) HasReplica() bool {
	return c.replica != nil
}

// HealthCheck pings the primary and, if present, the replica
func (c *MultiDBClient) HealthCheck(ctx context.Context) error {
	if err := c.primary.Ping(ctx); err != nil {
		return fmt.Errorf("primary database unhealthy: %w", err)
	}
	if c.replica != nil {
		if err := c.replica.Ping(ctx); err != nil {
			return fmt.Errorf("read replica unhealthy: %w", err)
		}
	}
	return nil
}

// Close closes every pool
func (c *MultiDBClient) Close() error {
	var errs []error
	if err := c.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close primary: %w", err))
	}
	if c.replica != nil {
		if err := c.replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close replica: %w", err))
		}
	}
	return errors.Join(errs...)
}
