package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrEmptyMessage indicates a send with neither body nor linked post.
	ErrEmptyMessage = errors.New("messages: message body or linked post required")
	// ErrSelfMessage indicates an attempt to message oneself.
	ErrSelfMessage = errors.New("messages: cannot message yourself")
)

// IDProvider issues identifiers for conversations and messages.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the messaging service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages direct-message conversations.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the messaging service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("messages: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("messages: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Send persists a direct message, creating the conversation on first contact.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body, postID string) (Message, error) {
	if senderID == receiverID {
		return Message{}, ErrSelfMessage
	}
	body = strings.TrimSpace(body)
	if body == "" && strings.TrimSpace(postID) == "" {
		return Message{}, ErrEmptyMessage
	}

	var message Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversation, err := s.findOrCreateConversation(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		messageID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		message = Message{
			ID:             messageID,
			ConversationID: conversation.ID,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Body:           body,
			PostID:         strings.TrimSpace(postID),
			CreatedAt:      s.clock().UTC(),
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		return Message{}, err
	}

	s.logger.Debug("message stored",
		zap.String("message_id", message.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID))
	return message, nil
}

// History returns the conversation between two users, oldest first. An absent
// conversation yields an empty history, not an error.
func (s *Service) History(ctx context.Context, userA, userB string) ([]Message, error) {
	first, second := orderPair(userA, userB)

	var conversation Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? AND participant_b = ?", first, second).
		Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	var history []Message
	err = s.db.WithContext(ctx).
		Where("conversation_id = ?", conversation.ID).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// DeleteAllForUser removes every conversation and message involving the user.
// Used when an account is deleted.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sender_id = ? OR receiver_id = ?", userID, userID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("participant_a = ? OR participant_b = ?", userID, userID).Delete(&Conversation{}).Error
	})
}

func (s *Service) findOrCreateConversation(tx *gorm.DB, userA, userB string) (Conversation, error) {
	first, second := orderPair(userA, userB)

	var conversation Conversation
	err := tx.Where("participant_a = ? AND participant_b = ?", first, second).Take(&conversation).Error
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Conversation{}, err
	}

	conversationID, err := s.idProvider.NewID()
	if err != nil {
		return Conversation{}, err
	}
	conversation = Conversation{
		ID:           conversationID,
		ParticipantA: first,
		ParticipantB: second,
		CreatedAt:    s.clock().UTC(),
	}
	if err := tx.Create(&conversation).Error; err != nil {
		return Conversation{}, err
	}
	return conversation, nil
}

func orderPair(userA, userB string) (string, string) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}
