package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery states of a message in a local view.
type Status string

const (
	StatusSent    Status = "sent"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Entry is a message as the local view shows it.
type Entry struct {
	domain.Message
	Status Status `json:"status"`
}

// ErrProfileUnavailable means the chat link does not resolve to a business.
var ErrProfileUnavailable = errors.New("this business is not available")

// ErrUnknownEntry is returned by Retry for ids that are not failed entries.
var ErrUnknownEntry = errors.New("no failed message with that id")

// CustomerOptions tunes a CustomerView.
type CustomerOptions struct {
	PollInterval   time.Duration // default 3s
	RequestTimeout time.Duration // default 10s
	CustomerName   string
	CustomerPhone  string
	// OnChange is called after every local state change, outside the lock.
	OnChange func([]Entry)
}

// CustomerView keeps one customer's conversation with a business in sync.
// Sends are applied locally first; server state replaces the local copy on
// every refresh, except for pending and failed entries the server has not
// seen yet.
type CustomerView struct {
	client    *Client
	identity  *SessionIdentity
	scheduler Scheduler
	ref       string
	opts      CustomerOptions
	logger    *zap.Logger

	mu        sync.Mutex
	profile   *domain.PublicProfile
	sessionID string
	greeting  *domain.Message
	server    []domain.Message
	local     []Entry // pending and failed, in send order
	writes    uint64  // confirmed sends, to detect snapshots fetched before one
	sub       Subscription
}

// NewCustomerView creates a view for the chat link slugOrID.
func NewCustomerView(client *Client, identity *SessionIdentity, scheduler Scheduler, slugOrID string, opts CustomerOptions, logger *zap.Logger) *CustomerView {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &CustomerView{
		client:    client,
		identity:  identity,
		scheduler: scheduler,
		ref:       slugOrID,
		opts:      opts,
		logger:    logger,
	}
}

// Open resolves the business, loads the conversation and starts polling.
func (v *CustomerView) Open(ctx context.Context) error {
	profile, err := v.client.PublicProfile(ctx, v.ref)
	if err != nil {
		if IsNotFound(err) {
			return ErrProfileUnavailable
		}
		return fmt.Errorf("load profile: %w", err)
	}
	sessionID, err := v.identity.SessionID(profile.ID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.profile = profile
	v.sessionID = sessionID
	v.mu.Unlock()

	if err := v.Refresh(ctx); err != nil {
		return err
	}

	v.mu.Lock()
	if v.sub == nil {
		v.sub = v.scheduler.Every(v.opts.PollInterval, v.poll)
	}
	v.mu.Unlock()
	return nil
}

// Close stops polling.
func (v *CustomerView) Close() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

func (v *CustomerView) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), v.opts.RequestTimeout)
	defer cancel()
	if err := v.Refresh(ctx); err != nil {
		v.logger.Warn("customer poll failed", zap.String("session_id", v.SessionID()), zap.Error(err))
	}
}

// Refresh refetches the conversation.
func (v *CustomerView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	profileID, sessionID, writes := v.profileID(), v.sessionID, v.writes
	v.mu.Unlock()
	if sessionID == "" {
		return errors.New("view not opened")
	}

	msgs, err := v.client.FetchMessages(ctx, profileID, sessionID)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	v.mu.Lock()
	server := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsGreeting() {
			g := m
			v.greeting = &g
			continue
		}
		server = append(server, m)
	}
	if v.writes != writes {
		server = mergeMessages(server, v.server)
	}
	v.server = server
	v.dropConfirmedLocked()
	entries := v.entriesLocked()
	v.mu.Unlock()

	v.notify(entries)
	return nil
}

// Send appends text optimistically and posts it. On failure the entry is
// marked failed and kept for Retry or Discard.
func (v *CustomerView) Send(ctx context.Context, text string) (*Entry, error) {
	v.mu.Lock()
	if v.sessionID == "" {
		v.mu.Unlock()
		return nil, errors.New("view not opened")
	}
	entry := Entry{
		Message: domain.Message{
			ID:        uuid.NewString(),
			SessionID: v.sessionID,
			Sender:    domain.SenderCustomer,
			Text:      text,
			Timestamp: time.Now().UTC(),
		},
		Status: StatusPending,
	}
	v.local = append(v.local, entry)
	entries := v.entriesLocked()
	v.mu.Unlock()
	v.notify(entries)

	return v.deliver(ctx, entry.ID)
}

// Retry resends a failed entry with its original id, so a send that reached
// the server before failing is not duplicated.
func (v *CustomerView) Retry(ctx context.Context, id string) (*Entry, error) {
	v.mu.Lock()
	i := v.localIndexLocked(id)
	if i < 0 || v.local[i].Status != StatusFailed {
		v.mu.Unlock()
		return nil, ErrUnknownEntry
	}
	v.local[i].Status = StatusPending
	entries := v.entriesLocked()
	v.mu.Unlock()
	v.notify(entries)

	return v.deliver(ctx, id)
}

// Discard drops a failed entry. It reports whether one was removed.
func (v *CustomerView) Discard(id string) bool {
	v.mu.Lock()
	i := v.localIndexLocked(id)
	if i < 0 || v.local[i].Status != StatusFailed {
		v.mu.Unlock()
		return false
	}
	v.local = append(v.local[:i], v.local[i+1:]...)
	entries := v.entriesLocked()
	v.mu.Unlock()
	v.notify(entries)
	return true
}

func (v *CustomerView) deliver(ctx context.Context, id string) (*Entry, error) {
	v.mu.Lock()
	i := v.localIndexLocked(id)
	if i < 0 {
		v.mu.Unlock()
		return nil, ErrUnknownEntry
	}
	pending := v.local[i]
	profileID := v.profileID()
	v.mu.Unlock()

	stored, err := v.client.Send(ctx, profileID, pending.SessionID, &domain.SendMessageRequest{
		ID:            pending.ID,
		Text:          pending.Text,
		CustomerName:  v.opts.CustomerName,
		CustomerPhone: v.opts.CustomerPhone,
	})

	v.mu.Lock()
	i = v.localIndexLocked(id)
	var result Entry
	switch {
	case err != nil && i >= 0:
		v.local[i].Status = StatusFailed
		result = v.local[i]
	case err != nil:
		result = pending
		result.Status = StatusFailed
	default:
		if i >= 0 {
			v.local = append(v.local[:i], v.local[i+1:]...)
		}
		if !containsMessage(v.server, stored.ID) {
			v.server = append(v.server, *stored)
		}
		v.writes++
		result = Entry{Message: *stored, Status: StatusSent}
	}
	entries := v.entriesLocked()
	v.mu.Unlock()
	v.notify(entries)

	if err != nil {
		v.logger.Warn("send failed", zap.String("message_id", id), zap.Error(err))
		return &result, fmt.Errorf("send message: %w", err)
	}
	return &result, nil
}

// Messages returns the current view: greeting first once shown, then
// server messages, then local pending and failed entries.
func (v *CustomerView) Messages() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entriesLocked()
}

// Profile is the resolved business, nil before Open.
func (v *CustomerView) Profile() *domain.PublicProfile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile
}

// SessionID is the customer's session token, empty before Open.
func (v *CustomerView) SessionID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessionID
}

func (v *CustomerView) profileID() string {
	if v.profile == nil {
		return v.ref
	}
	return v.profile.ID
}

func (v *CustomerView) entriesLocked() []Entry {
	out := make([]Entry, 0, len(v.server)+len(v.local)+1)
	if v.greeting != nil {
		out = append(out, Entry{Message: *v.greeting, Status: StatusSent})
	}
	for _, m := range v.server {
		out = append(out, Entry{Message: m, Status: StatusSent})
	}
	return append(out, v.local...)
}

// dropConfirmedLocked removes local entries the server already has, which
// happens when a send succeeded but its response was lost.
func (v *CustomerView) dropConfirmedLocked() {
	kept := v.local[:0]
	for _, e := range v.local {
		if !containsMessage(v.server, e.ID) {
			kept = append(kept, e)
		}
	}
	v.local = kept
}

func (v *CustomerView) localIndexLocked(id string) int {
	for i := range v.local {
		if v.local[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *CustomerView) notify(entries []Entry) {
	if v.opts.OnChange != nil {
		v.opts.OnChange(entries)
	}
}

// mergeMessages adds to snapshot the messages of current it does not have,
// keeping timestamp order. Stored messages are never removed, so anything
// missing from a snapshot was written after it was read.
func mergeMessages(snapshot, current []domain.Message) []domain.Message {
	merged := snapshot
	for _, m := range current {
		if !containsMessage(snapshot, m.ID) {
			merged = append(merged, m)
		}
	}
	if len(merged) != len(snapshot) {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		})
	}
	return merged
}

func containsMessage(msgs []domain.Message, id string) bool {
	for i := range msgs {
		if msgs[i].ID == id {
			return true
		}
	}
	return false
}
