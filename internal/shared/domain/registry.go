package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/hexapulse/internal/shared/domain/events"
)

// NewEventRegistry registra los tipos de evento que viajan por el outbox.
func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		ChangeDetected: {
			Type:  reflect.TypeOf(ChangeEnvelope{}),
			Topic: ChangeTopic,
		},
	}
}
