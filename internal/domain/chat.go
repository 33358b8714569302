package domain

import "time"

// ============================================================
// Chat sessions & messages
// ============================================================

// Message senders.
const (
	SenderCustomer = "customer"
	SenderOwner    = "owner"
)

// GreetingID marks the synthesized welcome message served to customers whose
// session has no stored messages yet. It is never persisted.
const GreetingID = "greeting"

// ChatSession is one customer's continuous conversation with a business.
// UnreadCount is derived at query time and never stored.
type ChatSession struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profileId"`
	CustomerName  string    `json:"customerName,omitempty"`
	CustomerPhone string    `json:"customerPhone,omitempty"`
	LastText      string    `json:"lastText"`
	LastActive    time.Time `json:"lastActive"`
	UnreadCount   int       `json:"unreadCount"`
}

// Message is immutable once stored, except IsRead which moves false→true
// when the owner opens the session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
	IsAI      bool      `json:"isAi"`
}

// IsGreeting reports whether m is the synthesized welcome message.
func (m *Message) IsGreeting() bool {
	return m.ID == GreetingID
}

// SendMessageRequest is the body for the customer send endpoint.
// ID is optional; when set (a UUID minted by the client for its optimistic
// copy) resending the same request does not create a duplicate.
type SendMessageRequest struct {
	ID            string `json:"id,omitempty"`
	Text          string `json:"text"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
}

// ReplyRequest is the body for the owner reply endpoint.
type ReplyRequest struct {
	Text string `json:"text"`
}

// MarkReadResponse reports how many messages transitioned to read.
type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}

// Dashboard is the owner's landing snapshot.
type Dashboard struct {
	Profile     *BusinessProfile `json:"profile"`
	Sessions    []ChatSession    `json:"sessions"`
	UnreadTotal int              `json:"unreadTotal"`
}

// UploadResponse is returned by the image upload endpoint.
type UploadResponse struct {
	URL string `json:"url"`
}
