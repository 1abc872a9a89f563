package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/loomin-app/backend/internal/auth"
	"github.com/loomin-app/backend/internal/config"

	"go.uber.org/zap"
)

var (
	// ErrMissingCredential indicates a handshake without any identity claim.
	ErrMissingCredential = errors.New("realtime: credential required")
	// ErrInvalidCredential indicates a credential that failed verification.
	ErrInvalidCredential = errors.New("realtime: invalid credential")
	// ErrUnknownUser indicates a verified identifier with no matching account.
	ErrUnknownUser = errors.New("realtime: unknown user")

	errMissingTokenValidator = errors.New("realtime: token validator required")
	errMissingUserStore      = errors.New("realtime: user store required")
)

// TokenValidator verifies a signed credential and returns its subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// UserStore answers whether a user identifier names a known account.
type UserStore interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// AuthenticatorConfig describes handshake-admission dependencies.
type AuthenticatorConfig struct {
	Mode       config.RealtimeAuthMode
	Tokens     TokenValidator
	Users      UserStore
	CookieName string
	Logger     *zap.Logger
}

// Authenticator decides whether an inbound connection attempt is admitted,
// and as whom. The mode is resolved once at startup: strict requires a valid
// signed token; permissive also accepts a bare userId query parameter and
// admits credential-less connections anonymously.
type Authenticator struct {
	mode       config.RealtimeAuthMode
	tokens     TokenValidator
	users      UserStore
	cookieName string
	logger     *zap.Logger
}

// NewAuthenticator constructs the handshake authenticator.
func NewAuthenticator(cfg AuthenticatorConfig) (*Authenticator, error) {
	if cfg.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if cfg.Users == nil {
		return nil, errMissingUserStore
	}
	mode := cfg.Mode
	if mode == "" {
		mode = config.RealtimeAuthStrict
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		mode:       mode,
		tokens:     cfg.Tokens,
		users:      cfg.Users,
		cookieName: cfg.CookieName,
		logger:     logger,
	}, nil
}

// Admit validates the handshake's identity claim and returns the user
// identifier the connection will be registered under. An empty identifier
// with a nil error means an anonymous admission (permissive mode only).
func (a *Authenticator) Admit(ctx context.Context, r *http.Request) (string, error) {
	token := a.extractToken(r)
	if token != "" {
		subject, err := a.tokens.ValidateToken(token)
		if err != nil {
			a.logger.Warn("handshake token rejected", zap.Error(err))
			return "", ErrInvalidCredential
		}
		return a.requireKnownUser(ctx, subject)
	}

	if a.mode == config.RealtimeAuthStrict {
		return "", ErrMissingCredential
	}

	if bareID := strings.TrimSpace(r.URL.Query().Get("userId")); bareID != "" {
		return a.requireKnownUser(ctx, bareID)
	}

	// Permissive mode with no claim at all: admit anonymously.
	return "", nil
}

func (a *Authenticator) extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	token, err := auth.TokenFromRequest(r, a.cookieName)
	if err != nil {
		return ""
	}
	return token
}

func (a *Authenticator) requireKnownUser(ctx context.Context, userID string) (string, error) {
	exists, err := a.users.UserExists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !exists {
		a.logger.Warn("handshake for unknown user", zap.String("user_id", userID))
		return "", ErrUnknownUser
	}
	return userID, nil
}
