package chatsync

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
)

// Persisted keys.
const (
	KeyUser          = "bazchat_user"
	sessionKeyPrefix = "chat_session_"
)

// SessionKey is the store key holding the customer's token for a business.
func SessionKey(profileID string) string {
	return sessionKeyPrefix + profileID
}

// SessionIdentity hands out the customer's session token per business,
// minting and persisting one on first use.
type SessionIdentity struct {
	mu    sync.Mutex
	store KeyValueStore
	now   func() time.Time
}

// NewSessionIdentity creates a session identity over store.
func NewSessionIdentity(store KeyValueStore) *SessionIdentity {
	return &SessionIdentity{store: store, now: time.Now}
}

// SessionID returns the stored token for profileID or mints sess_<millis>.
func (s *SessionIdentity) SessionID(profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SessionKey(profileID)
	if id, ok, err := s.store.Get(key); err != nil {
		return "", fmt.Errorf("load session token: %w", err)
	} else if ok && id != "" {
		return id, nil
	}

	id := "sess_" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.Set(key, id); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	return id, nil
}

// Reset forgets the token so the next SessionID starts a new conversation.
func (s *SessionIdentity) Reset(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(SessionKey(profileID))
}

// OwnerSession is the cached signed-in owner stored under KeyUser.
type OwnerSession struct {
	AccessToken string                  `json:"accessToken"`
	User        *domain.User            `json:"user"`
	Profile     *domain.BusinessProfile `json:"profile"`
}

// LoadOwnerSession returns the cached owner or nil when signed out.
func LoadOwnerSession(store KeyValueStore) (*OwnerSession, error) {
	raw, ok, err := store.Get(KeyUser)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var sess OwnerSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyUser, err)
	}
	return &sess, nil
}

// SaveOwnerSession replaces the cached owner.
func SaveOwnerSession(store KeyValueStore, sess *OwnerSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyUser, err)
	}
	return store.Set(KeyUser, string(raw))
}
