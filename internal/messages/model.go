package messages

import "time"

// Conversation pairs two participants. Participants are stored in lexical
// order so a pair maps to exactly one row.
type Conversation struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	ParticipantA string    `gorm:"column:participant_a;size:36;not null;uniqueIndex:idx_conversations_pair,priority:1"`
	ParticipantB string    `gorm:"column:participant_b;size:36;not null;uniqueIndex:idx_conversations_pair,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// Message is one direct message inside a conversation.
type Message struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;index:idx_messages_conversation"`
	SenderID       string    `gorm:"column:sender_id;size:36;not null"`
	ReceiverID     string    `gorm:"column:receiver_id;size:36;not null"`
	Body           string    `gorm:"column:body;size:4096;not null;default:''"`
	PostID         string    `gorm:"column:post_id;size:36;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}
