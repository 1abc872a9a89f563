package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/loomin-app/backend/internal/identity"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDatabaseSequence int

func newTestService(t *testing.T) *Service {
	t.Helper()
	testDatabaseSequence++
	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", testDatabaseSequence)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Follow{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1_700_000_000, 0) },
		IDProvider: identity.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func registerTestUser(t *testing.T, service *Service, username string) User {
	t.Helper()
	user, err := service.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return user
}

func TestRegisterAndAuthenticate(t *testing.T) {
	service := newTestService(t)
	registered := registerTestUser(t, service, "alice")

	authenticated, err := service.Authenticate(context.Background(), "alice@example.com", "secret-password")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if authenticated.ID != registered.ID {
		t.Fatalf("expected user %s, got %s", registered.ID, authenticated.ID)
	}

	if _, err := service.Authenticate(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service := newTestService(t)
	registerTestUser(t, service, "alice")

	_, err := service.Register(context.Background(), RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "another-password",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	service := newTestService(t)
	registerTestUser(t, service, "alice")

	_, err := service.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "another-password",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestFollowToggle(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")
	bob := registerTestUser(t, service, "bob")

	following, err := service.FollowOrUnfollow(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if !following {
		t.Fatal("expected first toggle to follow")
	}

	followerIDs, err := service.FollowerIDs(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("follower lookup failed: %v", err)
	}
	if len(followerIDs) != 1 || followerIDs[0] != alice.ID {
		t.Fatalf("expected follower %s, got %v", alice.ID, followerIDs)
	}

	following, err = service.FollowOrUnfollow(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}
	if following {
		t.Fatal("expected second toggle to unfollow")
	}

	followerIDs, err = service.FollowerIDs(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("follower lookup failed: %v", err)
	}
	if len(followerIDs) != 0 {
		t.Fatalf("expected no followers, got %v", followerIDs)
	}
}

func TestFollowRejectsSelf(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")
	if _, err := service.FollowOrUnfollow(context.Background(), alice.ID, alice.ID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestSuggestedExcludesFollowed(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")
	bob := registerTestUser(t, service, "bob")
	carol := registerTestUser(t, service, "carol")

	if _, err := service.FollowOrUnfollow(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	suggestions, err := service.Suggested(context.Background(), alice.ID, 10)
	if err != nil {
		t.Fatalf("suggested failed: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].ID != carol.ID {
		t.Fatalf("expected only carol suggested, got %v", suggestions)
	}
}

func TestSearchMatchesSubstring(t *testing.T) {
	service := newTestService(t)
	registerTestUser(t, service, "alice")
	registerTestUser(t, service, "alina")
	registerTestUser(t, service, "bob")

	matches, err := service.Search(context.Background(), "ali")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestDeleteAccountRemovesFollowEdges(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")
	bob := registerTestUser(t, service, "bob")

	if _, err := service.FollowOrUnfollow(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if err := service.DeleteAccount(context.Background(), alice.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := service.GetByID(context.Background(), alice.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	followerIDs, err := service.FollowerIDs(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("follower lookup failed: %v", err)
	}
	if len(followerIDs) != 0 {
		t.Fatalf("expected no followers after delete, got %v", followerIDs)
	}
}

func TestUserExistsValidatesIdentifier(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")

	exists, err := service.UserExists(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("exists lookup failed: %v", err)
	}
	if !exists {
		t.Fatal("expected registered user to exist")
	}

	for _, rawID := range []string{"", "   ", strings.Repeat("x", 191)} {
		exists, err := service.UserExists(context.Background(), rawID)
		if err != nil {
			t.Fatalf("exists lookup failed for %q: %v", rawID, err)
		}
		if exists {
			t.Fatalf("expected malformed identifier %q to name nobody", rawID)
		}
	}
}

func TestIsFollowingTracksToggle(t *testing.T) {
	service := newTestService(t)
	alice := registerTestUser(t, service, "alice")
	bob := registerTestUser(t, service, "bob")

	following, err := service.IsFollowing(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("following lookup failed: %v", err)
	}
	if following {
		t.Fatal("expected no follow edge before toggle")
	}

	if _, err := service.FollowOrUnfollow(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	following, err = service.IsFollowing(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("following lookup failed: %v", err)
	}
	if !following {
		t.Fatal("expected follow edge after toggle")
	}
}
