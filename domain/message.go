// Package domain contains core concepts of the direct-messaging system.
// This file defines Message entities and the conversation pair identity.
// Messages are immutable once persisted, except for the IsRead flag.
package domain

import (
	"strings"
	"time"
)

// Message represents one direct message between two users.
// ID is assigned by the conversation store on persist and is monotonic;
// 0 is the sentinel for "not persisted". IsRead transitions false to true
// only, driven by the receiver-side read path.
type Message struct {
	ID         int64
	SenderID   string
	ReceiverID string
	Content    string
	CreatedAt  time.Time
	IsRead     bool
}

// PairKey returns the canonical identity of a two-party conversation.
// The pair is unordered: PairKey(a, b) == PairKey(b, a).
func PairKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}
