package contract

import (
	"context"
	"time"

	"dm-lab/domain"
)

// Event names pushed over the real-time transport. The set is part of
// the client protocol and must not be renamed.
const (
	EventNotify             = "Notify"
	EventOnlineUsers        = "OnlineUsers"
	EventReceiveMessageList = "ReceiveMessageList"
	EventReceiveNewMessage  = "ReceiveNewMessage"
	EventNotifyTypingToUser = "NotifyTypingToUser"

	// EventReceiveSearchResults is not part of the original event set;
	// it carries full-text search hits back to the requesting
	// connection only.
	EventReceiveSearchResults = "ReceiveSearchResults"
)

// IPresenceRegistry is the single source of truth for who is online and
// which connection reaches them. Implementations must keep at most one
// entry per username under concurrent upserts and removes.
type IPresenceRegistry interface {
	// Upsert returns true when the username just came online. A
	// reconnect overwrites the connection id in place and returns false.
	Upsert(username, connectionID, displayName, avatarURL string) bool
	Remove(username string) bool
	Lookup(username string) (string, bool)
	Snapshot() []domain.PresenceEntry
}

// IConversationStore is the durable storage contract the hub needs:
// append, pair range query, bulk read-mark, unread count. Ordering and
// transactional guarantees belong to the store.
type IConversationStore interface {
	// Append persists a new unread message and returns its monotonic id.
	Append(senderID, receiverID, content string, createdAt time.Time) (int64, error)
	// QueryPage returns messages of the unordered (userA, userB) pair,
	// most recent first, skipping skip messages and taking at most take.
	QueryPage(userA, userB string, skip, take int) ([]domain.Message, error)
	// MarkRead flips IsRead to true for the given ids in one batch.
	// Re-marking an already-read message is a no-op.
	MarkRead(ids []int64) error
	// CountUnread counts unread messages sent by senderID to receiverID.
	CountUnread(receiverID, senderID string) (int, error)
}

// IUserDirectory resolves stable identities. The hub uses it to check
// that senders and receivers are known users and to build the full
// OnlineUsers view.
type IUserDirectory interface {
	GetUserByUsername(username string) (domain.User, error)
	GetUserByID(id string) (domain.User, error)
	ListUsers() ([]domain.User, error)
}

// ConnContext is what the transport knows about an incoming connection
// before authentication.
type ConnContext struct {
	ConnectionID string
	Token        string
	// ResumePeer optionally names a user whose conversation should be
	// loaded immediately after connecting (page 1, connecting side only).
	ResumePeer string
}

// IIdentityResolver maps an authenticated session to a stable identity.
// The hub trusts the result fully. A false return means the connection
// stays unauthenticated and the hub fails closed.
type IIdentityResolver interface {
	Authenticate(ctx context.Context, cc ConnContext) (domain.User, bool)
}

// ITransport is the best-effort real-time push channel. The hub never
// blocks on, retries, or verifies delivery beyond the returned flag.
type ITransport interface {
	// Unicast pushes an event to exactly one connection. It returns
	// false when the connection vanished or its buffer is full.
	Unicast(connectionID, event string, payload any) bool
	// BroadcastExcept pushes an event to every known connection except
	// the given one. An empty exception broadcasts to all.
	BroadcastExcept(exceptConnectionID, event string, payload any)
}
