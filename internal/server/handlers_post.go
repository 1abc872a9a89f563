package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/loomin-app/backend/internal/notifications"
	"github.com/loomin-app/backend/internal/posts"
	"github.com/loomin-app/backend/internal/realtime"
	"github.com/loomin-app/backend/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// interactionPayload is the wire shape pushed on the notification channel.
type interactionPayload struct {
	Type        notifications.Type `json:"type"`
	UserID      string             `json:"userId"`
	UserDetails users.Summary      `json:"userDetails"`
	PostID      string             `json:"postId,omitempty"`
	Message     string             `json:"message"`
}

// newPostPayload announces a fresh post to the author's followers.
type newPostPayload struct {
	PostID  string `json:"postId"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func interactionMessage(kind notifications.Type, actor users.Summary) string {
	switch kind {
	case notifications.TypeLike:
		return actor.Username + " liked your post"
	case notifications.TypeComment:
		return actor.Username + " commented on your post"
	case notifications.TypeFollow:
		return actor.Username + " started following you"
	case notifications.TypeBookmark:
		return actor.Username + " bookmarked your post"
	}
	return ""
}

// notifyInteraction records the interaction durably, then pushes a
// best-effort live notification. Delivery never affects the caller's
// response, and self-interactions produce nothing.
func (h *httpHandler) notifyInteraction(c *gin.Context, actorID, receiverID string, kind notifications.Type, postID string) {
	if actorID == receiverID || receiverID == "" {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.notifications.Record(ctx, actorID, receiverID, kind, postID); err != nil {
		h.logger.Error("notification record failed",
			zap.String("type", string(kind)), zap.Error(err))
	}

	actor, err := h.users.GetByID(ctx, actorID)
	if err != nil {
		h.logger.Warn("notification sender lookup failed", zap.Error(err))
		return
	}
	summary := actor.Summarize()

	h.dispatcher.Dispatch(receiverID, realtime.Event{
		Type:    realtime.EventType(kind),
		ActorID: actorID,
		Payload: interactionPayload{
			Type:        kind,
			UserID:      actorID,
			UserDetails: summary,
			PostID:      postID,
			Message:     interactionMessage(kind, summary),
		},
	})
}

func (h *httpHandler) handleAddPost(c *gin.Context) {
	authorID := c.GetString(userIDContextKey)
	caption := c.PostForm("caption")

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "image is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable image"})
		return
	}
	data, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable image"})
		return
	}
	imageURL, err := h.images.Save(data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("post image upload failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "image upload failed"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), authorID, caption, imageURL)
	if err != nil {
		h.logger.Error("post create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	h.fanOutNewPost(c, authorID, post.ID)

	view, err := h.posts.GetView(c.Request.Context(), post.ID)
	if err != nil {
		h.logger.Error("post view assembly failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "new post added", "post": view})
}

// fanOutNewPost pushes the announcement to every currently connected
// follower. Offline followers simply miss it.
func (h *httpHandler) fanOutNewPost(c *gin.Context, authorID, postID string) {
	followerIDs, err := h.users.FollowerIDs(c.Request.Context(), authorID)
	if err != nil {
		h.logger.Warn("new-post fan-out skipped", zap.Error(err))
		return
	}
	author, err := h.users.GetByID(c.Request.Context(), authorID)
	if err != nil {
		h.logger.Warn("new-post author lookup failed", zap.Error(err))
		return
	}
	payload := newPostPayload{
		PostID:  postID,
		UserID:  authorID,
		Message: author.Username + " added a new post",
	}
	for _, followerID := range followerIDs {
		h.dispatcher.Dispatch(followerID, realtime.Event{
			Type:    realtime.EventNewPost,
			ActorID: authorID,
			Payload: payload,
		})
	}
}

// handleFeed serves the main feed: posts by followed accounts only.
func (h *httpHandler) handleFeed(c *gin.Context) {
	views, err := h.posts.Feed(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("feed lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": views})
}

// handleFollowingFeed serves the followed accounts' posts plus the caller's
// own.
func (h *httpHandler) handleFollowingFeed(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	followed, err := h.users.FollowingIDs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("following feed lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	views, err := h.posts.FeedForAuthors(c.Request.Context(), append(followed, userID))
	if err != nil {
		h.logger.Error("following feed lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": views})
}

func (h *httpHandler) handleUserPosts(c *gin.Context) {
	views, err := h.posts.UserPosts(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("user posts lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": views})
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	view, err := h.posts.GetView(c.Request.Context(), c.Param("id"))
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	}
	if err != nil {
		h.logger.Error("post lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": view})
}

func (h *httpHandler) handleLike(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	result, err := h.posts.AddLike(c.Request.Context(), postID, userID)
	switch {
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	case errors.Is(err, posts.ErrAlreadyLiked):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "post already liked"})
		return
	case err != nil:
		h.logger.Error("like failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	h.notifyInteraction(c, userID, result.PostAuthorID, notifications.TypeLike, result.PostID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "post liked"})
}

func (h *httpHandler) handleDislike(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	err := h.posts.RemoveLike(c.Request.Context(), postID, userID)
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	}
	if err != nil {
		h.logger.Error("dislike failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "post disliked"})
}

type addCommentPayload struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	var request addCommentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	comment, postAuthorID, err := h.posts.AddComment(c.Request.Context(), postID, userID, request.Text)
	switch {
	case errors.Is(err, posts.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "comment text is required"})
		return
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	case err != nil:
		h.logger.Error("comment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	h.notifyInteraction(c, userID, postAuthorID, notifications.TypeComment, postID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "comment added", "comment": comment})
}

func (h *httpHandler) handleComments(c *gin.Context) {
	views, err := h.posts.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("comments lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comments": views})
}

func (h *httpHandler) handleBookmark(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	result, err := h.posts.ToggleBookmark(c.Request.Context(), postID, userID)
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	}
	if err != nil {
		h.logger.Error("bookmark toggle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	if result.Added {
		h.notifyInteraction(c, userID, result.PostAuthorID, notifications.TypeBookmark, postID)
		c.JSON(http.StatusOK, gin.H{"success": true, "type": "saved", "message": "post bookmarked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "type": "unsaved", "message": "post removed from bookmarks"})
}

type editCaptionPayload struct {
	Caption string `json:"caption"`
}

func (h *httpHandler) handleEditCaption(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	var request editCaptionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	post, err := h.posts.EditCaption(c.Request.Context(), postID, userID, request.Caption)
	switch {
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	case errors.Is(err, posts.ErrNotPostAuthor):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "only the author can edit this post"})
		return
	case err != nil:
		h.logger.Error("caption edit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "caption updated", "caption": post.Caption})
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	postID := c.Param("id")

	err := h.posts.Delete(c.Request.Context(), postID, userID)
	switch {
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "post not found"})
		return
	case errors.Is(err, posts.ErrNotPostAuthor):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "only the author can delete this post"})
		return
	case err != nil:
		h.logger.Error("post delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "post deleted"})
}
