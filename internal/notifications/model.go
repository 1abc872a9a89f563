package notifications

import (
	"time"

	"github.com/loomin-app/backend/internal/users"
)

// Type enumerates the interaction kinds recorded durably.
type Type string

const (
	// TypeLike records a like on the receiver's post.
	TypeLike Type = "like"
	// TypeComment records a comment on the receiver's post.
	TypeComment Type = "comment"
	// TypeFollow records a new follower.
	TypeFollow Type = "follow"
	// TypeBookmark records a bookmark of the receiver's post.
	TypeBookmark Type = "bookmark"
)

// Notification is the durable record of one social interaction. It is the
// system of record; any live push is a best-effort accelerator on top.
type Notification struct {
	ID         string    `gorm:"column:id;primaryKey;size:36;not null"`
	SenderID   string    `gorm:"column:sender_id;size:36;not null"`
	ReceiverID string    `gorm:"column:receiver_id;size:36;not null;index:idx_notifications_receiver"`
	Type       Type      `gorm:"column:type;size:16;not null"`
	PostID     string    `gorm:"column:post_id;size:36;not null;default:''"`
	Read       bool      `gorm:"column:read;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// View is a notification with the sender's public details attached.
type View struct {
	ID        string        `json:"id"`
	Type      Type          `json:"type"`
	Sender    users.Summary `json:"sender"`
	PostID    string        `json:"postId,omitempty"`
	Read      bool          `json:"read"`
	CreatedAt time.Time     `json:"createdAt"`
}
