package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomin-app/backend/internal/messages"
	"github.com/loomin-app/backend/internal/notifications"
	"github.com/loomin-app/backend/internal/realtime"
	"github.com/loomin-app/backend/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponsePayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	Gender    string `json:"gender"`
	AvatarURL string `json:"profilePicture"`
}

func userResponse(user users.User) userResponsePayload {
	return userResponsePayload{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Bio:       user.Bio,
		Gender:    user.Gender,
		AvatarURL: user.AvatarURL,
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), users.RegisterRequest{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	switch {
	case errors.Is(err, users.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username, email and password are required"})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email already registered"})
		return
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username already taken"})
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "account created successfully", "user": userResponse(user)})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	token, _, err := h.tokens.IssueSessionToken(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, token, sessionCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "welcome back " + user.Username,
		"user":         userResponse(user),
		"access_token": token,
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetString(userIDContextKey))
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return
	}
	if err != nil {
		h.logger.Error("me lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userResponse(user)})
}

func (h *httpHandler) handleOwnProfile(c *gin.Context) {
	h.renderProfile(c, c.GetString(userIDContextKey))
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	h.renderProfile(c, c.Param("id"))
}

func (h *httpHandler) renderProfile(c *gin.Context, profileID string) {
	user, err := h.users.GetByID(c.Request.Context(), profileID)
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	userPosts, err := h.posts.UserPosts(c.Request.Context(), profileID)
	if err != nil {
		h.logger.Error("profile posts lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	saved, err := h.posts.Bookmarks(c.Request.Context(), profileID)
	if err != nil {
		h.logger.Error("profile bookmarks lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	isFollowing := false
	if viewerID := c.GetString(userIDContextKey); viewerID != profileID {
		isFollowing, err = h.users.IsFollowing(c.Request.Context(), viewerID, profileID)
		if err != nil {
			h.logger.Error("profile follow lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"user":        userResponse(user),
		"posts":       userPosts,
		"bookmarks":   saved,
		"isFollowing": isFollowing,
	})
}

func (h *httpHandler) handleEditProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	update := users.ProfileUpdate{}
	if bio, ok := c.GetPostForm("bio"); ok {
		update.Bio = &bio
	}
	if gender, ok := c.GetPostForm("gender"); ok {
		update.Gender = &gender
	}

	if fileHeader, err := c.FormFile("profilePhoto"); err == nil && fileHeader != nil {
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
		url, err := h.images.Save(data, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			h.logger.Error("avatar upload failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "image upload failed"})
			return
		}
		update.AvatarURL = &url
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "profile updated", "user": userResponse(user)})
}

func (h *httpHandler) handleFollowOrUnfollow(c *gin.Context) {
	actorID := c.GetString(userIDContextKey)
	targetID := c.Param("id")

	following, err := h.users.FollowOrUnfollow(c.Request.Context(), actorID, targetID)
	switch {
	case errors.Is(err, users.ErrSelfFollow):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "you cannot follow yourself"})
		return
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
		return
	case err != nil:
		h.logger.Error("follow toggle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	if following {
		h.notifyInteraction(c, actorID, targetID, notifications.TypeFollow, "")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "followed successfully"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "unfollowed successfully"})
}

func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()

	if err := h.posts.DeleteAllByAuthor(ctx, userID); err != nil {
		h.logger.Error("account post cleanup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to delete account"})
		return
	}
	if err := h.messages.DeleteAllForUser(ctx, userID); err != nil {
		h.logger.Error("account message cleanup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to delete account"})
		return
	}
	if err := h.notifications.DeleteAllForUser(ctx, userID); err != nil {
		h.logger.Error("account notification cleanup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to delete account"})
		return
	}
	if err := h.users.DeleteAccount(ctx, userID); err != nil {
		h.logger.Error("account delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to delete account"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "account and related data deleted"})
}

func (h *httpHandler) handleSuggested(c *gin.Context) {
	suggestions, err := h.users.Suggested(c.Request.Context(), c.GetString(userIDContextKey), 10)
	if err != nil {
		h.logger.Error("suggestions lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": suggestions})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("username"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username query is required"})
		return
	}
	matches, err := h.users.Search(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("user search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": matches})
}

func (h *httpHandler) handleFollowings(c *gin.Context) {
	followed, err := h.users.Followings(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("followings lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "followings": followed})
}

func (h *httpHandler) handleBookmarks(c *gin.Context) {
	saved, err := h.posts.Bookmarks(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("bookmarks lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarks": saved})
}

func (h *httpHandler) handleNotifications(c *gin.Context) {
	views, err := h.notifications.ListForUser(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("notifications lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "error fetching notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": views})
}

type notificationsSeenPayload struct {
	Count int64 `json:"count"`
}

func (h *httpHandler) handleNotificationsSeen(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	affected, err := h.notifications.MarkAllSeen(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("mark seen failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}

	// Ack to the user's own connection so another tab clears its badge.
	h.dispatcher.Dispatch(userID, realtime.Event{
		Type:    realtime.EventNotificationsSeen,
		ActorID: userID,
		Payload: notificationsSeenPayload{Count: affected},
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "marked": affected})
}

type sendMessagePayload struct {
	Message string `json:"message"`
	PostID  string `json:"postId"`
}

type messageResponsePayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	PostID     string `json:"postId,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func messageResponse(message messages.Message) messageResponsePayload {
	return messageResponsePayload{
		ID:         message.ID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Message:    message.Body,
		PostID:     message.PostID,
		CreatedAt:  message.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	senderID := c.GetString(userIDContextKey)
	receiverID := c.Param("id")

	var request sendMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	message, err := h.messages.Send(c.Request.Context(), senderID, receiverID, request.Message, request.PostID)
	switch {
	case errors.Is(err, messages.ErrEmptyMessage), errors.Is(err, messages.ErrSelfMessage):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	case err != nil:
		h.logger.Error("message send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to send message"})
		return
	}

	// Best-effort live push; the stored message is the system of record.
	h.dispatcher.Dispatch(receiverID, realtime.Event{
		Type:    realtime.EventNewMessage,
		ActorID: senderID,
		Payload: messageResponse(message),
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "newMessage": messageResponse(message)})
}

func (h *httpHandler) handleMessageHistory(c *gin.Context) {
	history, err := h.messages.History(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		h.logger.Error("message history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
		return
	}
	payload := make([]messageResponsePayload, 0, len(history))
	for _, message := range history {
		payload = append(payload, messageResponse(message))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": payload})
}
