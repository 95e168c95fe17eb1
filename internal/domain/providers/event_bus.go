package providers

import (
	"context"
	"strconv"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to queue events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.QueueEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelQueueUpdates carries every queue and ledger event
	EventChannelQueueUpdates = "queue:updates"

	// EventChannelDoctorPrefix is the prefix for per-doctor waiting room channels
	EventChannelDoctorPrefix = "queue:doctor:"
)

// GetDoctorChannel returns the channel name for one doctor's waiting room
func GetDoctorChannel(doctorID int64) string {
	return EventChannelDoctorPrefix + strconv.FormatInt(doctorID, 10)
}
