package chatsync_test

import (
	"regexp"
	"testing"

	"github.com/boddenberg/bazchat-go/internal/chatsync"
	"github.com/boddenberg/bazchat-go/internal/domain"
)

func TestSessionIdentity_MintsOncePerProfile(t *testing.T) {
	store := chatsync.NewMemoryStore()
	ids := chatsync.NewSessionIdentity(store)

	first, err := ids.SessionID("p1")
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^sess_\d+$`).MatchString(first) {
		t.Errorf("unexpected token format %s", first)
	}
	again, _ := ids.SessionID("p1")
	if again != first {
		t.Errorf("token must be stable, got %s then %s", first, again)
	}
	if v, _, _ := store.Get("chat_session_p1"); v != first {
		t.Errorf("token not persisted under chat_session_p1, got %q", v)
	}

	// A fresh identity over the same store sees the persisted token.
	if restored, _ := chatsync.NewSessionIdentity(store).SessionID("p1"); restored != first {
		t.Errorf("expected restored token %s, got %s", first, restored)
	}
}

func TestSessionIdentity_Reset(t *testing.T) {
	store := chatsync.NewMemoryStore()
	store.Set(chatsync.SessionKey("p1"), "sess_old")
	ids := chatsync.NewSessionIdentity(store)

	if err := ids.Reset("p1"); err != nil {
		t.Fatal(err)
	}
	id, _ := ids.SessionID("p1")
	if id == "sess_old" {
		t.Error("expected a new token after reset")
	}
}

func TestOwnerSession_RoundTrip(t *testing.T) {
	store := chatsync.NewMemoryStore()

	if sess, err := chatsync.LoadOwnerSession(store); sess != nil || err != nil {
		t.Fatalf("expected signed out, got %v %v", sess, err)
	}

	in := &chatsync.OwnerSession{
		AccessToken: "tok",
		User:        &domain.User{ID: "u1", Phone: "5550001", BusinessID: "p1"},
		Profile:     &domain.BusinessProfile{ID: "p1", Slug: "acme"},
	}
	if err := chatsync.SaveOwnerSession(store, in); err != nil {
		t.Fatal(err)
	}
	out, err := chatsync.LoadOwnerSession(store)
	if err != nil {
		t.Fatal(err)
	}
	if out.AccessToken != "tok" || out.Profile.Slug != "acme" || out.User.BusinessID != "p1" {
		t.Errorf("unexpected session %+v", out)
	}
}
