package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrEmailTaken indicates a registration against an already registered email.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrUsernameTaken indicates a registration against an already claimed username.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrSelfFollow indicates an attempt to follow or unfollow oneself.
	ErrSelfFollow = errors.New("users: cannot follow yourself")
	// ErrMissingField indicates a required registration field was blank.
	ErrMissingField = errors.New("users: required field missing")
)

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages accounts and the follow graph. It doubles as the
// user-store collaborator consumed by the realtime layer.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: %w", errMissingIDProvider)
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

// RegisterRequest carries a new account registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, request RegisterRequest) (User, error) {
	username := strings.TrimSpace(request.Username)
	email := strings.ToLower(strings.TrimSpace(request.Email))
	if username == "" || email == "" || request.Password == "" {
		return User{}, ErrMissingField
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return User{}, err
	}
	if count > 0 {
		return User{}, ErrEmailTaken
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return User{}, err
	}
	if count > 0 {
		return User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           userID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate verifies an email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns the account for the identifier, or ErrUserNotFound.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UserExists reports whether the identifier names a known account. This is
// the lookup the realtime handshake relies on, so the raw identifier is
// validated before it reaches the database: a malformed one names nobody.
func (s *Service) UserExists(ctx context.Context, rawUserID string) (bool, error) {
	userID, err := NewUserID(rawUserID)
	if err != nil {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID.String()).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Bio       *string
	Gender    *string
	AvatarURL *string
}

// UpdateProfile applies the supplied profile fields and returns the updated account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	changes := map[string]interface{}{}
	if update.Bio != nil {
		changes["bio"] = strings.TrimSpace(*update.Bio)
	}
	if update.Gender != nil {
		changes["gender"] = strings.TrimSpace(*update.Gender)
	}
	if update.AvatarURL != nil {
		changes["avatar_url"] = strings.TrimSpace(*update.AvatarURL)
	}
	if len(changes) == 0 {
		return user, nil
	}
	changes["updated_at"] = s.clock().UTC()

	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(changes).Error; err != nil {
		return User{}, err
	}
	return s.GetByID(ctx, userID)
}

// FollowOrUnfollow toggles the follow edge from actor to target and reports
// whether the actor now follows the target.
func (s *Service) FollowOrUnfollow(ctx context.Context, actorID, targetID string) (bool, error) {
	if actorID == targetID {
		return false, ErrSelfFollow
	}
	if _, err := s.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	following := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge Follow
		err := tx.Where("follower_id = ? AND followee_id = ?", actorID, targetID).Take(&edge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			following = true
			return tx.Create(&Follow{
				FollowerID: actorID,
				FolloweeID: targetID,
				CreatedAt:  s.clock().UTC(),
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Where("follower_id = ? AND followee_id = ?", actorID, targetID).Delete(&Follow{}).Error
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

// IsFollowing reports whether follower currently follows followee.
func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Followings returns the accounts the user follows.
func (s *Service) Followings(ctx context.Context, userID string) ([]Summary, error) {
	var followed []User
	err := s.db.WithContext(ctx).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Find(&followed).Error
	if err != nil {
		return nil, err
	}
	return summarize(followed), nil
}

// FollowingIDs returns the identifiers the user follows.
func (s *Service) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FollowerIDs returns the identifiers of the user's followers, used for
// new-post fan-out.
func (s *Service) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Suggested returns up to limit accounts the user does not yet follow.
func (s *Service) Suggested(ctx context.Context, userID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	var candidates []User
	err := s.db.WithContext(ctx).
		Where("id <> ?", userID).
		Where("id NOT IN (?)", s.db.Model(&Follow{}).Select("followee_id").Where("follower_id = ?", userID)).
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return summarize(candidates), nil
}

// Search returns accounts whose username contains the query, case-insensitively.
func (s *Service) Search(ctx context.Context, usernameQuery string) ([]Summary, error) {
	query := strings.TrimSpace(usernameQuery)
	if query == "" {
		return nil, fmt.Errorf("users: %w: username query", ErrMissingField)
	}
	var matches []User
	err := s.db.WithContext(ctx).
		Where("username LIKE ?", "%"+query+"%").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return summarize(matches), nil
}

// DeleteAccount removes the account and its follow edges. Content owned by
// the account is removed by the owning services.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("follower_id = ? OR followee_id = ?", userID, userID).Delete(&Follow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).Delete(&User{}).Error
	})
}

func summarize(accounts []User) []Summary {
	summaries := make([]Summary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summarize())
	}
	return summaries
}
