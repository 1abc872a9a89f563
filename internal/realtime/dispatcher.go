package realtime

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// EventType enumerates the domain events delivered over the realtime layer.
type EventType string

const (
	EventLike              EventType = "like"
	EventComment           EventType = "comment"
	EventFollow            EventType = "follow"
	EventBookmark          EventType = "bookmark"
	EventNewMessage        EventType = "newMessage"
	EventNewPost           EventType = "newPost"
	EventNotificationsSeen EventType = "notificationsSeen"
)

// ErrUnknownEventType indicates an event type with no reserved channel.
var ErrUnknownEventType = errors.New("realtime: unknown event type")

// Channel returns the reserved channel name for the event type.
func (t EventType) Channel() (string, error) {
	switch t {
	case EventLike, EventComment, EventFollow, EventBookmark:
		return ChannelNotification, nil
	case EventNewMessage:
		return ChannelNewMessage, nil
	case EventNewPost:
		return ChannelNewPost, nil
	case EventNotificationsSeen:
		return ChannelNotificationsSeen, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownEventType, t)
	}
}

// Event is one transient domain event bound for a single target user. Events
// are never queued or persisted here; the durable notification row written by
// the producer is the system of record.
type Event struct {
	Type    EventType
	ActorID string
	Payload interface{}
}

// Outcome reports what happened to a dispatch attempt.
type Outcome string

const (
	// OutcomeDelivered means the frame was queued on the target's connection.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDropped means the target was offline or its connection could
	// not accept the frame. Expected and non-exceptional.
	OutcomeDropped Outcome = "dropped"
)

// Dispatcher fans a single domain event out to its target user's connection,
// if one is registered. Dispatch never blocks the caller and never fails the
// caller: offline delivery is an expected branch, not an error.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher constructs a dispatcher reading from the registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch pushes the event to the target's connection on the channel
// reserved for the event's type. Exactly one push attempt to exactly one
// connection per call.
func (d *Dispatcher) Dispatch(targetUserID string, event Event) Outcome {
	channel, err := event.Type.Channel()
	if err != nil {
		d.logger.Warn("dispatch refused", zap.Error(err))
		return OutcomeDropped
	}

	conn, ok := d.registry.Lookup(targetUserID)
	if !ok {
		return OutcomeDropped
	}

	if !conn.TrySend(Envelope{Channel: channel, Payload: event.Payload}) {
		d.logger.Debug("dispatch dropped at transport",
			zap.String("target_user_id", targetUserID),
			zap.String("event_type", string(event.Type)))
		return OutcomeDropped
	}

	d.logger.Debug("event dispatched",
		zap.String("target_user_id", targetUserID),
		zap.String("event_type", string(event.Type)),
		zap.String("channel", channel))
	return OutcomeDelivered
}
