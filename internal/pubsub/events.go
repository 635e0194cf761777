package pubsub

// EventType classifies what happened to the payload of a published event.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event wraps a published payload with the kind of change it represents.
type Event[T any] struct {
	Type    EventType
	Payload T
}
