package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/loomin-app/backend/internal/identity"
	"github.com/loomin-app/backend/internal/users"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDatabaseSequence int

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	testDatabaseSequence++
	dsn := fmt.Sprintf("file:notifications_test_%d?mode=memory&cache=shared", testDatabaseSequence)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &Notification{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clockSeconds := int64(1_700_000_000)
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			clockSeconds++
			return time.Unix(clockSeconds, 0)
		},
		IDProvider: identity.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestRecordAndListNewestFirst(t *testing.T) {
	service, db := newTestService(t)
	sender := users.User{ID: "u2", Username: "bob", Email: "bob@example.com", PasswordHash: "x", AvatarURL: "/a.png"}
	if err := db.Create(&sender).Error; err != nil {
		t.Fatalf("failed to seed sender: %v", err)
	}

	if _, err := service.Record(context.Background(), "u2", "u1", TypeLike, "post-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := service.Record(context.Background(), "u2", "u1", TypeComment, "post-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	views, err := service.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(views))
	}
	if views[0].Type != TypeComment {
		t.Fatalf("expected newest first, got %s", views[0].Type)
	}
	if views[0].Sender.Username != "bob" || views[0].Sender.AvatarURL != "/a.png" {
		t.Fatalf("expected sender details attached, got %+v", views[0].Sender)
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Record(context.Background(), "u2", "u1", Type("poke"), ""); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestMarkAllSeenIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Record(context.Background(), "u2", "u1", TypeFollow, ""); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := service.Record(context.Background(), "u3", "u1", TypeLike, "post-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	affected, err := service.MarkAllSeen(context.Background(), "u1")
	if err != nil {
		t.Fatalf("mark seen failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 rows marked, got %d", affected)
	}

	affected, err = service.MarkAllSeen(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second mark seen failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected idempotent second call, got %d rows", affected)
	}

	views, err := service.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, view := range views {
		if !view.Read {
			t.Fatalf("expected all read, got %+v", view)
		}
	}
}

func TestDeleteAllForUser(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Record(context.Background(), "u2", "u1", TypeBookmark, "post-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := service.DeleteAllForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	views, err := service.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected no notifications, got %d", len(views))
	}
}
