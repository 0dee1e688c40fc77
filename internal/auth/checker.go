package auth

import "fmt"

// SenderChecker gates inbound messages against the configured allow-list of
// sender chats. Messages from anyone else never reach the handlers.
type SenderChecker struct {
	allowed map[int64]struct{}
}

// NewSenderChecker creates a SenderChecker. The allow-list must not be empty.
func NewSenderChecker(allowedChats []int64) (*SenderChecker, error) {
	if len(allowedChats) == 0 {
		return nil, fmt.Errorf("allowed sender chats list cannot be empty")
	}
	allowed := make(map[int64]struct{}, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = struct{}{}
	}
	return &SenderChecker{allowed: allowed}, nil
}

// IsAllowed reports whether the given chat is on the allow-list.
func (c *SenderChecker) IsAllowed(chatID int64) bool {
	_, ok := c.allowed[chatID]
	return ok
}
