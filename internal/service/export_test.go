package service

import "time"

// SetChatClock replaces the clock used to stamp messages.
func SetChatClock(s *ChatService, now func() time.Time) { s.now = now }
