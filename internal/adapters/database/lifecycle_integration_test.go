//go:build integration

package database_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicflow/internal/adapters/database"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicflow/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	port, _ := strconv.Atoi(getEnv("TEST_DB_PORT", "5432"))
	client, err := postgres.NewClient(&config.DatabaseConfig{
		Host:     os.Getenv("TEST_DB_HOST"),
		Port:     port,
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "clinicflow_test"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, database.Migrate(context.Background(), client))
	return client
}

func TestAttentionLifecycle_Integration(t *testing.T) {
	ctx := context.Background()
	client := newTestPostgresClient(t)

	directory := database.NewDirectoryAdapter(client)
	attentions := database.NewAttentionAdapter(client)

	nationalID := "IT" + strconv.FormatInt(time.Now().UnixNano(), 10)
	patient := &entities.Patient{NationalID: nationalID, FullName: "Integration Patient"}
	require.NoError(t, directory.UpsertPatient(ctx, patient))

	doctor := &entities.Doctor{UserID: time.Now().UnixNano() % 1_000_000_000, FullName: "Dr. Integration", Specialty: "General", IsActive: true}
	require.NoError(t, directory.UpsertDoctor(ctx, doctor))

	now := time.Now().UTC().Truncate(time.Microsecond)
	attention := &entities.Attention{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		State:     entities.AttentionStateWaiting,
		EnteredAt: now,
		CreatedAt: now,
	}
	require.NoError(t, attentions.Create(ctx, attention))
	t.Cleanup(func() {
		_, _ = attentions.Delete(context.Background(), attention.ID, []entities.AttentionState{
			entities.AttentionStateWaiting, entities.AttentionStateInConsultation, entities.AttentionStateFinalized,
		})
	})

	waiting, err := attentions.ListWaiting(ctx, &doctor.ID)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, attention.ID, waiting[0].ID)

	// A second call from the same state loses the compare-and-set.
	called, err := attentions.TransitionState(ctx, attention.ID, entities.AttentionStateWaiting, entities.AttentionStateInConsultation, now)
	require.NoError(t, err)
	assert.True(t, called)

	again, err := attentions.TransitionState(ctx, attention.ID, entities.AttentionStateWaiting, entities.AttentionStateInConsultation, now)
	require.NoError(t, err)
	assert.False(t, again)

	stored, err := attentions.GetByID(ctx, attention.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AttentionStateInConsultation, stored.State)
	require.NotNil(t, stored.ConsultationStartedAt)

	waiting, err = attentions.ListWaiting(ctx, &doctor.ID)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}
