package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("users: invalid user id")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// User models a registered account.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	Username     string    `gorm:"column:username;size:64;not null;uniqueIndex:idx_users_username"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_users_email"`
	PasswordHash string    `gorm:"column:password_hash;size:128;not null"`
	Bio          string    `gorm:"column:bio;size:512;not null;default:''"`
	Gender       string    `gorm:"column:gender;size:32;not null;default:''"`
	AvatarURL    string    `gorm:"column:avatar_url;size:512;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Follow captures a directed follower edge.
type Follow struct {
	FollowerID string    `gorm:"column:follower_id;primaryKey;size:36;not null;index:idx_follows_follower"`
	FolloweeID string    `gorm:"column:followee_id;primaryKey;size:36;not null;index:idx_follows_followee"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Follow) TableName() string {
	return "follows"
}

// Summary is the public slice of a user attached to feeds and notifications.
type Summary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"profilePicture"`
}

// Summarize projects a user to its public summary.
func (u User) Summarize() Summary {
	return Summary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
