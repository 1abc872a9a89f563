package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/loomin-app/backend/internal/messages"
	"github.com/loomin-app/backend/internal/notifications"
	"github.com/loomin-app/backend/internal/posts"
	"github.com/loomin-app/backend/internal/realtime"
	"github.com/loomin-app/backend/internal/storage"
	"github.com/loomin-app/backend/internal/users"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "loomin_user_id"

	defaultSessionCookie = "loomin_session"
	sessionCookieMaxAge  = 24 * 60 * 60
)

var (
	errMissingUsersService         = errors.New("users service dependency required")
	errMissingPostsService         = errors.New("posts service dependency required")
	errMissingMessagesService      = errors.New("messages service dependency required")
	errMissingNotificationsService = errors.New("notifications service dependency required")
	errMissingTokenManager         = errors.New("token manager dependency required")
	errMissingImageStore           = errors.New("image store dependency required")
	errMissingHub                  = errors.New("realtime hub dependency required")
	errMissingDispatcher           = errors.New("realtime dispatcher dependency required")
	errMissingAuthenticator        = errors.New("realtime authenticator dependency required")
)

// SessionTokenManager issues and validates session JWTs.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the rest of the application.
type Dependencies struct {
	Users          *users.Service
	Posts          *posts.Service
	Messages       *messages.Service
	Notifications  *notifications.Service
	TokenManager   SessionTokenManager
	Images         storage.ImageStore
	Hub            *realtime.Hub
	Dispatcher     *realtime.Dispatcher
	Authenticator  *realtime.Authenticator
	Logger         *zap.Logger
	SessionCookie  string
	AllowedOrigins []string
	UploadDir      string
}

// NewHTTPHandler builds the full REST + websocket surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Posts == nil {
		return nil, errMissingPostsService
	}
	if deps.Messages == nil {
		return nil, errMissingMessagesService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotificationsService
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Images == nil {
		return nil, errMissingImageStore
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if deps.Authenticator == nil {
		return nil, errMissingAuthenticator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieName := deps.SessionCookie
	if cookieName == "" {
		cookieName = defaultSessionCookie
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		users:         deps.Users,
		posts:         deps.Posts,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		tokens:        deps.TokenManager,
		images:        deps.Images,
		hub:           deps.Hub,
		dispatcher:    deps.Dispatcher,
		authenticator: deps.Authenticator,
		logger:        logger,
		cookieName:    cookieName,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	if deps.UploadDir != "" {
		router.Static("/uploads", deps.UploadDir)
	}

	router.GET("/ws", handler.handleRealtimeConnect)

	api := router.Group("/api/v1")
	api.POST("/user/register", handler.handleRegister)
	api.POST("/user/login", handler.handleLogin)
	api.POST("/user/logout", handler.handleLogout)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/user/me", handler.handleMe)
	protected.GET("/user/profile", handler.handleOwnProfile)
	protected.POST("/user/profile/edit", handler.handleEditProfile)
	protected.POST("/user/followorunfollow/:id", handler.handleFollowOrUnfollow)
	protected.DELETE("/user/delete", handler.handleDeleteAccount)
	protected.GET("/user/suggested", handler.handleSuggested)
	protected.GET("/user/search", handler.handleSearch)
	protected.GET("/user/followings", handler.handleFollowings)
	protected.GET("/user/bookmarks", handler.handleBookmarks)
	protected.GET("/user/notifications", handler.handleNotifications)
	protected.POST("/user/notifications/seen", handler.handleNotificationsSeen)
	protected.POST("/user/message/send/:id", handler.handleSendMessage)
	protected.GET("/user/message/all/:id", handler.handleMessageHistory)
	protected.GET("/user/:id/profile", handler.handleProfile)

	protected.POST("/post/addpost", handler.handleAddPost)
	protected.GET("/post/all", handler.handleFeed)
	protected.GET("/post/following", handler.handleFollowingFeed)
	protected.GET("/post/userpost/all", handler.handleUserPosts)
	protected.POST("/post/:id/like", handler.handleLike)
	protected.POST("/post/:id/dislike", handler.handleDislike)
	protected.POST("/post/:id/comment", handler.handleAddComment)
	protected.GET("/post/:id/comment/all", handler.handleComments)
	protected.POST("/post/:id/bookmark", handler.handleBookmark)
	protected.PUT("/post/:id/edit-caption", handler.handleEditCaption)
	protected.DELETE("/post/delete/:id", handler.handleDeletePost)
	protected.GET("/post/:id", handler.handleGetPost)

	return router, nil
}

type httpHandler struct {
	users         *users.Service
	posts         *posts.Service
	messages      *messages.Service
	notifications *notifications.Service
	tokens        SessionTokenManager
	images        storage.ImageStore
	hub           *realtime.Hub
	dispatcher    *realtime.Dispatcher
	authenticator *realtime.Authenticator
	logger        *zap.Logger
	cookieName    string
	upgrader      websocket.Upgrader
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := h.sessionToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		if value := strings.TrimSpace(cookie); value != "" {
			return value
		}
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// handleRealtimeConnect is the websocket handshake: admit, upgrade, hand to
// the hub. Admission failures are refused before any upgrade happens.
func (h *httpHandler) handleRealtimeConnect(c *gin.Context) {
	userID, err := h.authenticator.Admit(c.Request.Context(), c.Request)
	if err != nil {
		h.logger.Warn("realtime handshake refused", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Connect(userID, conn)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
