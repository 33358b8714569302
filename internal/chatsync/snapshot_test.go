package chatsync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/bazchat-go/internal/chatsync"
	"github.com/boddenberg/bazchat-go/internal/domain"

	"go.uber.org/zap"
)

// gatedAPI serves a fixed message list. The second message GET blocks until
// release is closed, so a write can complete while that read is in flight.
type gatedAPI struct {
	gets     atomic.Int32
	inFlight chan struct{}
	release  chan struct{}

	mu       sync.Mutex
	snapshot []domain.Message
}

func newGatedAPI(snapshot []domain.Message) *gatedAPI {
	return &gatedAPI{
		inFlight: make(chan struct{}),
		release:  make(chan struct{}),
		snapshot: snapshot,
	}
}

func (a *gatedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		a.mu.Lock()
		snapshot := append([]domain.Message(nil), a.snapshot...)
		a.mu.Unlock()
		if a.gets.Add(1) == 2 {
			close(a.inFlight)
			<-a.release
		}
		json.NewEncoder(w).Encode(snapshot)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/public/profiles/"):
		json.NewEncoder(w).Encode(domain.PublicProfile{ID: "p1", Slug: "acme", Name: "Acme"})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
		var req domain.SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Message{
			ID: req.ID, Sender: domain.SenderCustomer, Text: req.Text, Timestamp: time.Now().UTC(),
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reply"):
		var req domain.ReplyRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Message{
			ID: "reply-1", Sender: domain.SenderOwner, Text: req.Text, Timestamp: time.Now().UTC(), IsRead: true,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}
}

// tickInBackground runs one poll and waits until its GET reached the server.
func tickInBackground(t *testing.T, sched *manualScheduler, api *gatedAPI) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		sched.Tick()
		close(done)
	}()
	select {
	case <-api.inFlight:
	case <-time.After(2 * time.Second):
		t.Fatal("poll never reached the server")
	}
	return done
}

func TestCustomerView_SnapshotOlderThanSendKeepsMessage(t *testing.T) {
	greeting := domain.Message{ID: domain.GreetingID, Sender: domain.SenderOwner, Text: "Welcome"}
	api := newGatedAPI([]domain.Message{greeting})
	srv := httptest.NewServer(api)
	defer srv.Close()

	sched := newManualScheduler()
	view := chatsync.NewCustomerView(chatsync.NewClient(srv.URL, 2*time.Second, 0),
		chatsync.NewSessionIdentity(chatsync.NewMemoryStore()), sched, "acme", chatsync.CustomerOptions{}, zap.NewNop())
	ctx := context.Background()
	if err := view.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer view.Close()

	done := tickInBackground(t, sched, api)

	sent, err := view.Send(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(view.Messages()); n != 2 {
		t.Fatalf("expected greeting and sent message, got %d entries", n)
	}

	close(api.release)
	<-done

	entries := view.Messages()
	if len(entries) != 2 || entries[1].ID != sent.ID || entries[1].Status != chatsync.StatusSent {
		t.Fatalf("confirmed message lost after an older snapshot landed: %+v", entries)
	}
}

func TestOwnerView_SnapshotOlderThanReplyKeepsMessage(t *testing.T) {
	question := domain.Message{ID: "m1", Sender: domain.SenderCustomer, Text: "open today?", Timestamp: time.Now().UTC().Add(-time.Minute)}
	api := newGatedAPI([]domain.Message{question})
	srv := httptest.NewServer(api)
	defer srv.Close()

	sched := newManualScheduler()
	owner, err := chatsync.NewOwnerView(chatsync.NewClient(srv.URL, 2*time.Second, 0), chatsync.NewMemoryStore(), sched, chatsync.OwnerOptions{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := owner.OpenSession(ctx, "sess_1"); err != nil {
		t.Fatal(err)
	}

	done := tickInBackground(t, sched, api)

	if _, err := owner.Reply(ctx, "until 6pm"); err != nil {
		t.Fatal(err)
	}

	close(api.release)
	<-done

	msgs := owner.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "reply-1" {
		t.Fatalf("reply lost after an older snapshot landed: %+v", msgs)
	}

	// A fresh snapshot is applied as is.
	api.mu.Lock()
	api.snapshot = []domain.Message{question, {ID: "reply-1", Sender: domain.SenderOwner, Text: "until 6pm", Timestamp: time.Now().UTC()}}
	api.mu.Unlock()
	if err := owner.RefreshMessages(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(owner.Messages()); n != 2 {
		t.Errorf("expected 2 messages after refresh, got %d", n)
	}
}
