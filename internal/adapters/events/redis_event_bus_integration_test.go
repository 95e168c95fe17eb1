//go:build integration

package events_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicflow/internal/adapters/events"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicflow/pkg/config"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	port, _ := strconv.Atoi(os.Getenv("TEST_REDIS_PORT"))
	if port == 0 {
		port = 6379
	}
	client, err := redis.NewClient(&config.RedisConfig{Host: os.Getenv("TEST_REDIS_HOST"), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForEvent(t *testing.T, ch <-chan *entities.QueueEvent) *entities.QueueEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for queue event")
		return nil
	}
}

func TestRedisEventBus_FansOutToEverySubscriber(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	bus := events.NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetDoctorChannel(10)
	sub1, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	attention := &entities.Attention{ID: 5, PatientID: 3, DoctorID: 10, State: entities.AttentionStateWaiting}
	event := entities.NewAttentionEvent(entities.QueueEventEnqueued, attention, time.Now().UTC())
	require.NoError(t, bus.Publish(context.Background(), channel, event))

	received1 := waitForEvent(t, sub1)
	received2 := waitForEvent(t, sub2)

	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, entities.AttentionStateWaiting, received1.State)
}

func TestRedisEventBus_ChannelsAreIsolated(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	bus := events.NewRedisEventBus(newTestRedisClient(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other, err := bus.Subscribe(ctx, providers.GetDoctorChannel(12))
	require.NoError(t, err)
	mine, err := bus.Subscribe(ctx, providers.GetDoctorChannel(10))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	payment := &entities.Payment{ID: 9, PatientID: 3}
	require.NoError(t, bus.Publish(context.Background(), providers.GetDoctorChannel(10),
		entities.NewPaymentEvent(entities.QueueEventPaymentRecorded, payment, time.Now().UTC())))

	assert.Equal(t, int64(9), waitForEvent(t, mine).PaymentID)
	select {
	case event := <-other:
		t.Fatalf("unexpected event on another doctor's channel: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
