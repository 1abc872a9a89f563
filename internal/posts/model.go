package posts

import (
	"time"

	"github.com/loomin-app/backend/internal/users"
)

// Post models a published image post.
type Post struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	AuthorID  string    `gorm:"column:author_id;size:36;not null;index:idx_posts_author"`
	Caption   string    `gorm:"column:caption;size:2200;not null;default:''"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_posts_created"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// Comment models a comment attached to a post.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	PostID    string    `gorm:"column:post_id;size:36;not null;index:idx_comments_post"`
	AuthorID  string    `gorm:"column:author_id;size:36;not null"`
	Text      string    `gorm:"column:text;size:2200;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// Like captures a user's like on a post.
type Like struct {
	PostID    string    `gorm:"column:post_id;primaryKey;size:36;not null;index:idx_likes_post"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "post_likes"
}

// Bookmark captures a user's saved post.
type Bookmark struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:36;not null;index:idx_bookmarks_user"`
	PostID    string    `gorm:"column:post_id;primaryKey;size:36;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Bookmark) TableName() string {
	return "bookmarks"
}

// CommentView is a comment with its author's public details attached.
type CommentView struct {
	ID        string        `json:"id"`
	PostID    string        `json:"postId"`
	Text      string        `json:"text"`
	Author    users.Summary `json:"author"`
	CreatedAt time.Time     `json:"createdAt"`
}

// View is a post with author details, like list, and comments attached.
type View struct {
	ID        string        `json:"id"`
	Caption   string        `json:"caption"`
	ImageURL  string        `json:"image"`
	Author    users.Summary `json:"author"`
	Likes     []string      `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
}
