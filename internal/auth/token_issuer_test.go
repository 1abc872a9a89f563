package auth

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "loomin-auth",
		Audience:      "loomin-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
}

func TestIssueAndValidateSessionToken(t *testing.T) {
	issuer := newTestIssuer(nil)

	token, expiresIn, err := issuer.IssueSessionToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("expected ttl of %d seconds, got %d", int64(time.Hour.Seconds()), expiresIn)
	}

	subject, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	issuer := newTestIssuer(func() time.Time { return issuedAt })

	token, _, err := issuer.IssueSessionToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	later := newTestIssuer(func() time.Time { return issuedAt.Add(2 * time.Hour) })
	if _, err := later.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(nil)
	token, _, err := issuer.IssueSessionToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("a-different-secret"),
		Issuer:        "loomin-auth",
		Audience:      "loomin-api",
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("expected token signed with a foreign secret to be rejected")
	}
}

func TestValidateWithoutIssuerAndAudienceConfigured(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		TokenTTL:      time.Hour,
	})

	token, _, err := issuer.IssueSessionToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	subject, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestValidateEnforcesConfiguredAudience(t *testing.T) {
	bare := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		TokenTTL:      time.Hour,
	})
	token, _, err := bare.IssueSessionToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	strict := newTestIssuer(nil)
	if _, err := strict.ValidateToken(token); err == nil {
		t.Fatal("expected token without audience to be rejected by a configured issuer")
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueSessionToken(context.Background(), "  "); err == nil {
		t.Fatal("expected blank subject to be rejected")
	}
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, "http://localhost/", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(&http.Cookie{Name: "loomin_session", Value: "cookie-token"})
	request.Header.Set("Authorization", "Bearer header-token")

	token, err := TokenFromRequest(request, "loomin_session")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if token != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", token)
	}
}

func TestTokenFromRequestFallsBackToBearer(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, "http://localhost/", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer header-token")

	token, err := TokenFromRequest(request, "loomin_session")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if token != "header-token" {
		t.Fatalf("expected bearer token, got %q", token)
	}
}

func TestTokenFromRequestMissing(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, "http://localhost/", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if _, err := TokenFromRequest(request, "loomin_session"); err == nil {
		t.Fatal("expected missing token error")
	}
}
