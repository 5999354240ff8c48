package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const chaosEventsStream = "CHAOS_EVENTS"

// EnsureStreams creates (or validates) the stream carrying applied chaos
// events: chaos.event.>
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(chaosEventsStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      chaosEventsStream,
				Subjects:  []string{"chaos.event.>"},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}

	return nil
}
