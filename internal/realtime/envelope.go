package realtime

// Channel names pushed over the wire, one per purpose. Clients subscribe by
// switching on the envelope's channel.
const (
	// ChannelPresence carries the full online-user set on every registry change.
	ChannelPresence = "getOnlineUsers"
	// ChannelNewMessage carries direct-message records.
	ChannelNewMessage = "newMessage"
	// ChannelNotification carries like/comment/follow/bookmark notifications.
	ChannelNotification = "notification"
	// ChannelNewPost announces a new post by a followed account.
	ChannelNewPost = "newPost"
	// ChannelNotificationsSeen acknowledges a bulk mark-seen action.
	ChannelNotificationsSeen = "notificationsSeen"
)

// Envelope is the wire frame for every push: a channel name and its payload.
type Envelope struct {
	Channel string      `json:"channel"`
	Payload interface{} `json:"payload"`
}

// Conn is the transport-level handle addressing one live client connection.
type Conn interface {
	// TrySend queues the envelope without blocking and reports whether the
	// frame was accepted. A false return means the peer is gone or too slow.
	TrySend(envelope Envelope) bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}
