package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"

	"go.uber.org/zap"
)

// ErrSignedOut is returned by owner operations before Login or Register.
var ErrSignedOut = errors.New("not signed in")

// ErrNoOpenSession is returned by Reply when no session is open.
var ErrNoOpenSession = errors.New("no chat session open")

// OwnerOptions tunes an OwnerView.
type OwnerOptions struct {
	SessionsInterval time.Duration // default 5s
	MessagesInterval time.Duration // default 3s
	RequestTimeout   time.Duration // default 10s
	OnSessions       func([]domain.ChatSession)
	OnMessages       func(sessionID string, msgs []domain.Message)
}

// OwnerView is the owner's dashboard: the session list and at most one open
// conversation, each refreshed on its own interval.
type OwnerView struct {
	client    *Client
	store     KeyValueStore
	scheduler Scheduler
	opts      OwnerOptions
	logger    *zap.Logger

	mu          sync.Mutex
	session     *OwnerSession
	sessions    []domain.ChatSession
	openID      string
	messages    []domain.Message
	writes      uint64 // confirmed replies, to detect snapshots fetched before one
	sessionsSub Subscription
	messagesSub Subscription
}

// NewOwnerView creates an owner view. A previously cached owner in store is
// restored, so a restarted client stays signed in.
func NewOwnerView(client *Client, store KeyValueStore, scheduler Scheduler, opts OwnerOptions, logger *zap.Logger) (*OwnerView, error) {
	if opts.SessionsInterval <= 0 {
		opts.SessionsInterval = 5 * time.Second
	}
	if opts.MessagesInterval <= 0 {
		opts.MessagesInterval = 3 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	v := &OwnerView{client: client, store: store, scheduler: scheduler, opts: opts, logger: logger}
	sess, err := LoadOwnerSession(store)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		v.session = sess
		client.SetToken(sess.AccessToken)
	}
	return v, nil
}

// ============================================================
// Sign in / out
// ============================================================

func (v *OwnerView) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.BusinessProfile, error) {
	resp, err := v.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Profile, v.signIn(resp)
}

func (v *OwnerView) Login(ctx context.Context, phone, password string) (*domain.BusinessProfile, error) {
	resp, err := v.client.Login(ctx, &domain.LoginRequest{Phone: phone, Password: password})
	if err != nil {
		return nil, err
	}
	return resp.Profile, v.signIn(resp)
}

func (v *OwnerView) signIn(resp *domain.AuthResponse) error {
	sess := &OwnerSession{AccessToken: resp.AccessToken, User: resp.User, Profile: resp.Profile}
	if err := SaveOwnerSession(v.store, sess); err != nil {
		return err
	}
	v.client.SetToken(resp.AccessToken)

	v.mu.Lock()
	v.session = sess
	v.mu.Unlock()
	return nil
}

// Logout stops polling and forgets the cached owner.
func (v *OwnerView) Logout() error {
	v.Stop()
	v.client.SetToken("")

	v.mu.Lock()
	v.session = nil
	v.sessions = nil
	v.messages = nil
	v.openID = ""
	v.mu.Unlock()

	return v.store.Delete(KeyUser)
}

// Profile is the cached profile snapshot, nil when signed out.
func (v *OwnerView) Profile() *domain.BusinessProfile {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return nil
	}
	return v.session.Profile
}

// SaveProfile saves the whole profile and refreshes the cached snapshot.
func (v *OwnerView) SaveProfile(ctx context.Context, p *domain.BusinessProfile) (*domain.BusinessProfile, error) {
	v.mu.Lock()
	sess := v.session
	v.mu.Unlock()
	if sess == nil {
		return nil, ErrSignedOut
	}

	saved, err := v.client.SaveProfile(ctx, p)
	if err != nil {
		return nil, err
	}

	updated := *sess
	updated.Profile = saved
	if err := SaveOwnerSession(v.store, &updated); err != nil {
		return saved, fmt.Errorf("cache profile: %w", err)
	}
	v.mu.Lock()
	v.session = &updated
	v.mu.Unlock()
	return saved, nil
}

// ============================================================
// Sessions
// ============================================================

// Start loads the session list and polls it.
func (v *OwnerView) Start(ctx context.Context) error {
	if v.Profile() == nil {
		return ErrSignedOut
	}
	if err := v.RefreshSessions(ctx); err != nil {
		return err
	}

	v.mu.Lock()
	if v.sessionsSub == nil {
		v.sessionsSub = v.scheduler.Every(v.opts.SessionsInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), v.opts.RequestTimeout)
			defer cancel()
			if err := v.RefreshSessions(ctx); err != nil {
				v.logger.Warn("sessions poll failed", zap.Error(err))
			}
		})
	}
	v.mu.Unlock()
	return nil
}

// Stop cancels both polls.
func (v *OwnerView) Stop() {
	v.mu.Lock()
	subs := []Subscription{v.sessionsSub, v.messagesSub}
	v.sessionsSub, v.messagesSub = nil, nil
	v.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Stop()
		}
	}
}

// RefreshSessions refetches the session list.
func (v *OwnerView) RefreshSessions(ctx context.Context) error {
	sessions, err := v.client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	v.mu.Lock()
	v.sessions = sessions
	v.mu.Unlock()

	if v.opts.OnSessions != nil {
		v.opts.OnSessions(sessions)
	}
	return nil
}

// Sessions returns the last fetched session list.
func (v *OwnerView) Sessions() []domain.ChatSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.ChatSession(nil), v.sessions...)
}

// UnreadTotal sums unread customer messages over the last fetched list.
func (v *OwnerView) UnreadTotal() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, s := range v.sessions {
		n += s.UnreadCount
	}
	return n
}

// ============================================================
// Open conversation
// ============================================================

// OpenSession loads a conversation, which marks it read, and polls it
// instead of any previously open one.
func (v *OwnerView) OpenSession(ctx context.Context, sessionID string) error {
	v.mu.Lock()
	prev := v.messagesSub
	v.messagesSub = nil
	v.openID = sessionID
	v.messages = nil
	v.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	if err := v.RefreshMessages(ctx); err != nil {
		return err
	}

	v.mu.Lock()
	if v.openID == sessionID && v.messagesSub == nil {
		v.messagesSub = v.scheduler.Every(v.opts.MessagesInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), v.opts.RequestTimeout)
			defer cancel()
			if err := v.RefreshMessages(ctx); err != nil {
				v.logger.Warn("messages poll failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		})
	}
	v.mu.Unlock()
	return nil
}

// CloseSession stops polling the open conversation.
func (v *OwnerView) CloseSession() {
	v.mu.Lock()
	sub := v.messagesSub
	v.messagesSub = nil
	v.openID = ""
	v.messages = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

// RefreshMessages refetches the open conversation.
func (v *OwnerView) RefreshMessages(ctx context.Context) error {
	v.mu.Lock()
	sessionID, writes := v.openID, v.writes
	v.mu.Unlock()
	if sessionID == "" {
		return ErrNoOpenSession
	}

	msgs, err := v.client.ListMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	v.mu.Lock()
	if v.openID != sessionID {
		v.mu.Unlock()
		return nil
	}
	if v.writes != writes {
		msgs = mergeMessages(msgs, v.messages)
	}
	v.messages = msgs
	for i := range v.sessions {
		if v.sessions[i].ID == sessionID {
			v.sessions[i].UnreadCount = 0
		}
	}
	v.mu.Unlock()

	if v.opts.OnMessages != nil {
		v.opts.OnMessages(sessionID, msgs)
	}
	return nil
}

// Messages returns the open conversation.
func (v *OwnerView) Messages() []domain.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Message(nil), v.messages...)
}

// Reply answers the open conversation. The reply is shown once the server
// accepts it; owner replies are not queued locally.
func (v *OwnerView) Reply(ctx context.Context, text string) (*domain.Message, error) {
	v.mu.Lock()
	sessionID := v.openID
	v.mu.Unlock()
	if sessionID == "" {
		return nil, ErrNoOpenSession
	}

	msg, err := v.client.Reply(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.openID == sessionID && !containsMessage(v.messages, msg.ID) {
		v.messages = append(v.messages, *msg)
	}
	v.writes++
	msgs := append([]domain.Message(nil), v.messages...)
	v.mu.Unlock()

	if v.opts.OnMessages != nil {
		v.opts.OnMessages(sessionID, msgs)
	}
	return msg, nil
}
