package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// Rules holds the time windows of the attention lifecycle
type Rules struct {
	// EditWindow is how long after creation a record stays editable
	EditWindow time.Duration
	// MatchWindow bounds both heuristic payment matching and the payment
	// cleanup done when an attention is cancelled
	MatchWindow time.Duration
}

// DefaultRules returns the clinic's standard windows
func DefaultRules() Rules {
	return Rules{
		EditWindow:  entities.DefaultEditWindow,
		MatchWindow: DefaultMatchWindow,
	}
}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func knownRole(actor entities.ActingUser) bool {
	return actor.IsAdmin() || actor.IsReception() || actor.Role == entities.RoleDoctor
}

// authorizeDoctorAction checks that actor may act as the doctor owning a
// resource. Administrators impersonate the owner.
func authorizeDoctorAction(actor entities.ActingUser, ownerDoctorID int64) error {
	if actor.IsAdmin() || actor.IsDoctor(ownerDoctorID) {
		return nil
	}
	if actor.ActsAsDoctor() {
		return apperrors.NewForbiddenError("attention belongs to another doctor")
	}
	return apperrors.NewForbiddenError("only the attending doctor may perform this action")
}

// publishQueueEvent fans an event out to the global channel and, when it
// concerns a doctor, to that doctor's waiting room channel. Failures are
// logged; the state change they describe is already committed.
func publishQueueEvent(ctx context.Context, bus providers.EventBus, event *entities.QueueEvent) {
	if bus == nil {
		return
	}

	channels := []string{providers.EventChannelQueueUpdates}
	if event.DoctorID != 0 {
		channels = append(channels, providers.GetDoctorChannel(event.DoctorID))
	}

	for _, channel := range channels {
		if err := bus.Publish(ctx, channel, event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Str("event_type", string(event.Type)).Msg("Failed to publish queue event")
		}
	}
}
