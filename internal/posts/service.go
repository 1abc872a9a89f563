package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loomin-app/backend/internal/users"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = errors.New("posts: post not found")
	// ErrNotPostAuthor indicates a mutation attempted by someone other than the author.
	ErrNotPostAuthor = errors.New("posts: not the post author")
	// ErrAlreadyLiked indicates a duplicate like on the same post.
	ErrAlreadyLiked = errors.New("posts: already liked")
	// ErrEmptyComment indicates a comment with no text.
	ErrEmptyComment = errors.New("posts: comment text required")
)

// IDProvider issues identifiers for new posts and comments.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages posts, comments, likes, and bookmarks.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the post service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("posts: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("posts: %w", errMissingIDProvider)
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

// Create publishes a post for the author with an already-stored image URL.
func (s *Service) Create(ctx context.Context, authorID, caption, imageURL string) (Post, error) {
	if strings.TrimSpace(imageURL) == "" {
		return Post{}, fmt.Errorf("posts: image url required")
	}
	postID, err := s.idProvider.NewID()
	if err != nil {
		return Post{}, err
	}
	post := Post{
		ID:        postID,
		AuthorID:  authorID,
		Caption:   strings.TrimSpace(caption),
		ImageURL:  imageURL,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, err
	}
	s.logger.Info("post created", zap.String("post_id", post.ID), zap.String("author_id", authorID))
	return post, nil
}

// GetByID returns the stored post, or ErrPostNotFound.
func (s *Service) GetByID(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// GetView returns one post with author, likes, and comments attached.
func (s *Service) GetView(ctx context.Context, postID string) (View, error) {
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return View{}, err
	}
	views, err := s.assembleViews(ctx, []Post{post})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// Feed returns posts authored by the accounts the user follows, newest first.
func (s *Service) Feed(ctx context.Context, userID string) ([]View, error) {
	return s.feedForAuthors(ctx, s.db.Model(&users.Follow{}).Select("followee_id").Where("follower_id = ?", userID))
}

// FeedForAuthors returns posts authored by any of the given accounts,
// newest first. Callers compose the author set, typically from the follow
// graph.
func (s *Service) FeedForAuthors(ctx context.Context, authorIDs []string) ([]View, error) {
	return s.feedForAuthors(ctx, authorIDs)
}

// UserPosts returns the user's own posts, newest first.
func (s *Service) UserPosts(ctx context.Context, authorID string) ([]View, error) {
	return s.feedForAuthors(ctx, []string{authorID})
}

func (s *Service) feedForAuthors(ctx context.Context, authors interface{}) ([]View, error) {
	var found []Post
	err := s.db.WithContext(ctx).
		Where("author_id IN (?)", authors).
		Order("created_at DESC").
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return s.assembleViews(ctx, found)
}

// EditCaption replaces the caption. Only the author may edit.
func (s *Service) EditCaption(ctx context.Context, postID, actorID, caption string) (Post, error) {
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	if post.AuthorID != actorID {
		return Post{}, ErrNotPostAuthor
	}
	post.Caption = strings.TrimSpace(caption)
	post.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(&Post{}).Where("id = ?", postID).
		Updates(map[string]interface{}{"caption": post.Caption, "updated_at": post.UpdatedAt}).Error; err != nil {
		return Post{}, err
	}
	return post, nil
}

// Delete removes the post and its comments, likes, and bookmarks. Only the
// author may delete.
func (s *Service) Delete(ctx context.Context, postID, actorID string) error {
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return ErrNotPostAuthor
	}
	return s.deleteCascade(ctx, []string{postID})
}

// DeleteAllByAuthor removes every post the author owns, with dependents.
// Used when an account is deleted.
func (s *Service) DeleteAllByAuthor(ctx context.Context, authorID string) error {
	var postIDs []string
	if err := s.db.WithContext(ctx).Model(&Post{}).
		Where("author_id = ?", authorID).
		Pluck("id", &postIDs).Error; err != nil {
		return err
	}
	if err := s.deleteCascade(ctx, postIDs); err != nil {
		return err
	}
	// Interactions the account left on other posts go too.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("author_id = ?", authorID).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", authorID).Delete(&Like{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", authorID).Delete(&Bookmark{}).Error
	})
}

func (s *Service) deleteCascade(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id IN ?", postIDs).Delete(&Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", postIDs).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", postIDs).Delete(&Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", postIDs).Delete(&Post{}).Error
	})
}

// LikeResult reports a recorded like and who owns the liked post.
type LikeResult struct {
	PostID       string
	PostAuthorID string
}

// AddLike records the user's like. A repeated like fails with ErrAlreadyLiked.
func (s *Service) AddLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return LikeResult{}, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error; err != nil {
		return LikeResult{}, err
	}
	if count > 0 {
		return LikeResult{}, ErrAlreadyLiked
	}

	like := Like{PostID: postID, UserID: userID, CreatedAt: s.clock().UTC()}
	if err := s.db.WithContext(ctx).Create(&like).Error; err != nil {
		return LikeResult{}, err
	}
	return LikeResult{PostID: postID, PostAuthorID: post.AuthorID}, nil
}

// RemoveLike withdraws the user's like. Removing an absent like is a no-op.
func (s *Service) RemoveLike(ctx context.Context, postID, userID string) error {
	if _, err := s.GetByID(ctx, postID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&Like{}).Error
}

// AddComment attaches a comment and reports who owns the commented post.
func (s *Service) AddComment(ctx context.Context, postID, authorID, text string) (Comment, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Comment{}, "", ErrEmptyComment
	}
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return Comment{}, "", err
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, "", err
	}
	comment := Comment{
		ID:        commentID,
		PostID:    postID,
		AuthorID:  authorID,
		Text:      trimmed,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return Comment{}, "", err
	}
	return comment, post.AuthorID, nil
}

// Comments returns all comments on the post with author details, oldest first.
func (s *Service) Comments(ctx context.Context, postID string) ([]CommentView, error) {
	var found []Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return s.commentViews(ctx, found)
}

// BookmarkResult reports the direction of a bookmark toggle.
type BookmarkResult struct {
	Added        bool
	PostAuthorID string
}

// ToggleBookmark saves or unsaves the post for the user.
func (s *Service) ToggleBookmark(ctx context.Context, postID, userID string) (BookmarkResult, error) {
	post, err := s.GetByID(ctx, postID)
	if err != nil {
		return BookmarkResult{}, err
	}

	var existing Bookmark
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bookmark := Bookmark{UserID: userID, PostID: postID, CreatedAt: s.clock().UTC()}
		if err := s.db.WithContext(ctx).Create(&bookmark).Error; err != nil {
			return BookmarkResult{}, err
		}
		return BookmarkResult{Added: true, PostAuthorID: post.AuthorID}, nil
	}
	if err != nil {
		return BookmarkResult{}, err
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&Bookmark{}).Error; err != nil {
		return BookmarkResult{}, err
	}
	return BookmarkResult{Added: false, PostAuthorID: post.AuthorID}, nil
}

// Bookmarks returns the user's saved posts, newest save first.
func (s *Service) Bookmarks(ctx context.Context, userID string) ([]View, error) {
	var saved []Post
	err := s.db.WithContext(ctx).
		Joins("JOIN bookmarks ON bookmarks.post_id = posts.id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.created_at DESC").
		Find(&saved).Error
	if err != nil {
		return nil, err
	}
	return s.assembleViews(ctx, saved)
}

func (s *Service) assembleViews(ctx context.Context, found []Post) ([]View, error) {
	views := make([]View, 0, len(found))
	if len(found) == 0 {
		return views, nil
	}

	postIDs := make([]string, 0, len(found))
	authorSet := map[string]struct{}{}
	for _, post := range found {
		postIDs = append(postIDs, post.ID)
		authorSet[post.AuthorID] = struct{}{}
	}

	var likes []Like
	if err := s.db.WithContext(ctx).Where("post_id IN ?", postIDs).Find(&likes).Error; err != nil {
		return nil, err
	}
	likesByPost := map[string][]string{}
	for _, like := range likes {
		likesByPost[like.PostID] = append(likesByPost[like.PostID], like.UserID)
	}

	var comments []Comment
	if err := s.db.WithContext(ctx).
		Where("post_id IN ?", postIDs).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, comment := range comments {
		authorSet[comment.AuthorID] = struct{}{}
	}

	authors, err := s.authorSummaries(ctx, authorSet)
	if err != nil {
		return nil, err
	}

	commentsByPost := map[string][]CommentView{}
	for _, comment := range comments {
		commentsByPost[comment.PostID] = append(commentsByPost[comment.PostID], CommentView{
			ID:        comment.ID,
			PostID:    comment.PostID,
			Text:      comment.Text,
			Author:    authors[comment.AuthorID],
			CreatedAt: comment.CreatedAt,
		})
	}

	for _, post := range found {
		likeList := likesByPost[post.ID]
		if likeList == nil {
			likeList = []string{}
		}
		commentList := commentsByPost[post.ID]
		if commentList == nil {
			commentList = []CommentView{}
		}
		views = append(views, View{
			ID:        post.ID,
			Caption:   post.Caption,
			ImageURL:  post.ImageURL,
			Author:    authors[post.AuthorID],
			Likes:     likeList,
			Comments:  commentList,
			CreatedAt: post.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) commentViews(ctx context.Context, found []Comment) ([]CommentView, error) {
	authorSet := map[string]struct{}{}
	for _, comment := range found {
		authorSet[comment.AuthorID] = struct{}{}
	}
	authors, err := s.authorSummaries(ctx, authorSet)
	if err != nil {
		return nil, err
	}
	views := make([]CommentView, 0, len(found))
	for _, comment := range found {
		views = append(views, CommentView{
			ID:        comment.ID,
			PostID:    comment.PostID,
			Text:      comment.Text,
			Author:    authors[comment.AuthorID],
			CreatedAt: comment.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) authorSummaries(ctx context.Context, authorSet map[string]struct{}) (map[string]users.Summary, error) {
	ids := make([]string, 0, len(authorSet))
	for id := range authorSet {
		ids = append(ids, id)
	}
	summaries := map[string]users.Summary{}
	if len(ids) == 0 {
		return summaries, nil
	}
	var accounts []users.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, account := range accounts {
		summaries[account.ID] = account.Summarize()
	}
	return summaries, nil
}
