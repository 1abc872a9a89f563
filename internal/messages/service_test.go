package messages

import (
	"context"
	"errors"
	"fmt"
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
	dsn := fmt.Sprintf("file:messages_test_%d?mode=memory&cache=shared", testDatabaseSequence)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Conversation{}, &Message{}); err != nil {
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
	return service
}

func TestSendCreatesConversationOnce(t *testing.T) {
	service := newTestService(t)

	first, err := service.Send(context.Background(), "u1", "u2", "hello", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	// Reply goes into the same conversation regardless of direction.
	second, err := service.Send(context.Background(), "u2", "u1", "hi back", "")
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	if first.ConversationID != second.ConversationID {
		t.Fatalf("expected shared conversation, got %s and %s", first.ConversationID, second.ConversationID)
	}
}

func TestHistoryOrderedOldestFirst(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Send(context.Background(), "u1", "u2", "first", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := service.Send(context.Background(), "u2", "u1", "second", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	history, err := service.History(context.Background(), "u2", "u1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Body != "first" || history[1].Body != "second" {
		t.Fatalf("unexpected order: %q then %q", history[0].Body, history[1].Body)
	}
}

func TestHistoryEmptyWithoutConversation(t *testing.T) {
	service := newTestService(t)
	history, err := service.History(context.Background(), "u1", "u9")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(history))
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Send(context.Background(), "u1", "u2", "   ", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendAllowsLinkedPostWithoutBody(t *testing.T) {
	service := newTestService(t)
	message, err := service.Send(context.Background(), "u1", "u2", "", "post-1")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if message.PostID != "post-1" {
		t.Fatalf("expected linked post, got %q", message.PostID)
	}
}

func TestSendRejectsSelf(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Send(context.Background(), "u1", "u1", "hello me", ""); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("expected ErrSelfMessage, got %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Send(context.Background(), "u1", "u2", "hello", ""); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := service.DeleteAllForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	history, err := service.History(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no messages after delete, got %d", len(history))
	}
}
