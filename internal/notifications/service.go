package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomin-app/backend/internal/users"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrUnknownType indicates a notification type outside the accepted set.
	ErrUnknownType = errors.New("notifications: unknown type")
)

// IDProvider issues identifiers for new notification rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the notification store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the persisted-notification store: the durable trace of every
// interaction event, independent of live delivery.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the notification store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("notifications: %w", errMissingIDProvider)
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

// Record persists an interaction notification for the receiver.
func (s *Service) Record(ctx context.Context, senderID, receiverID string, kind Type, postID string) (Notification, error) {
	switch kind {
	case TypeLike, TypeComment, TypeFollow, TypeBookmark:
	default:
		return Notification{}, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}

	notificationID, err := s.idProvider.NewID()
	if err != nil {
		return Notification{}, err
	}
	row := Notification{
		ID:         notificationID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       kind,
		PostID:     postID,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Notification{}, err
	}
	return row, nil
}

// ListForUser returns the user's notifications newest first, with sender
// details attached.
func (s *Service) ListForUser(ctx context.Context, receiverID string) ([]View, error) {
	var rows []Notification
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	senderSet := map[string]struct{}{}
	for _, row := range rows {
		senderSet[row.SenderID] = struct{}{}
	}
	senderIDs := make([]string, 0, len(senderSet))
	for id := range senderSet {
		senderIDs = append(senderIDs, id)
	}

	senders := map[string]users.Summary{}
	if len(senderIDs) > 0 {
		var accounts []users.User
		if err := s.db.WithContext(ctx).Where("id IN ?", senderIDs).Find(&accounts).Error; err != nil {
			return nil, err
		}
		for _, account := range accounts {
			senders[account.ID] = account.Summarize()
		}
	}

	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, View{
			ID:        row.ID,
			Type:      row.Type,
			Sender:    senders[row.SenderID],
			PostID:    row.PostID,
			Read:      row.Read,
			CreatedAt: row.CreatedAt,
		})
	}
	return views, nil
}

// MarkAllSeen flags every unread notification for the user as read and
// returns how many rows changed. Repeating the call changes nothing.
func (s *Service) MarkAllSeen(ctx context.Context, receiverID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("receiver_id = ? AND read = ?", receiverID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Debug("notifications marked seen",
			zap.String("receiver_id", receiverID),
			zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// DeleteAllForUser removes notifications sent by or addressed to the user.
// Used when an account is deleted.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&Notification{}).Error
}
