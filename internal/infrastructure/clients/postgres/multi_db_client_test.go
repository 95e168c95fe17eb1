package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPingClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClientFromDB(db), mock
}

func TestMultiDBClient_ReadFallsBackToPrimary(t *testing.T) {
	primary, _ := newMockClient(t)

	multi := NewMultiDBClient(primary, nil)

	assert.False(t, multi.HasReplica())
	assert.Same(t, primary, multi.Read())
	assert.Same(t, primary, multi.Primary())
}

func TestMultiDBClient_ReadUsesReplica(t *testing.T) {
	primary, _ := newMockClient(t)
	replica, _ := newMockClient(t)

	multi := NewMultiDBClient(primary, replica)

	assert.True(t, multi.HasReplica())
	assert.Same(t, replica, multi.Read())
	assert.Same(t, primary, multi.Primary())
}

func TestMultiDBClient_HealthCheck(t *testing.T) {
	primary, primaryMock := newPingClient(t)
	replica, replicaMock := newPingClient(t)

	primaryMock.ExpectPing()
	replicaMock.ExpectPing().WillReturnError(errors.New("recovery in progress"))

	err := NewMultiDBClient(primary, replica).HealthCheck(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read replica unhealthy")
	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}

func TestMultiDBClient_HealthCheckPrimaryDown(t *testing.T) {
	primary, primaryMock := newPingClient(t)

	primaryMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := NewMultiDBClient(primary, nil).HealthCheck(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary database unhealthy")
}
