package domain

// RejectReason explains a soft failure. The hub degrades silently on
// the wire (no event is emitted for a rejected operation), but callers
// and tests can still assert on the outcome.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonUnknownSender   RejectReason = "unknown sender"
	ReasonUnknownReceiver RejectReason = "unknown receiver"
	ReasonUnknownPeer     RejectReason = "unknown peer"
	ReasonNoIdentity      RejectReason = "missing identity"
	ReasonEmptyContent    RejectReason = "empty content"
)

// SendOutcome is the result of a send attempt. MessageID is 0 unless
// the message was persisted. Delivered reports best-effort push only:
// a persisted message to an offline receiver is Sent but not Delivered.
type SendOutcome struct {
	Sent      bool
	MessageID int64
	Delivered bool
	Reason    RejectReason
}

// Rejected builds the sentinel outcome for a soft send failure.
func Rejected(reason RejectReason) SendOutcome {
	return SendOutcome{Sent: false, MessageID: 0, Reason: reason}
}

// PageOutcome is the result of a history page request. Count is the
// number of projections pushed; Delivered is false when the viewer's
// connection vanished before the push.
type PageOutcome struct {
	Delivered bool
	Count     int
	Reason    RejectReason
}

// SendMessageCommand carries a send intent. SenderUsername comes from
// the authenticated connection, never from the payload. Receiver may be
// a username or a stable user id.
type SendMessageCommand struct {
	SenderUsername string
	Receiver       string
	Content        string
}

// LoadMessagesCommand requests one history page of the conversation
// between the viewer and the peer. PageNumber is 1-based; zero or
// negative values fall back to the first page.
type LoadMessagesCommand struct {
	ViewerUsername string
	Peer           string
	PageNumber     int
}

// TypingCommand signals that the sender is typing to the target user.
type TypingCommand struct {
	SenderUsername string
	TargetUsername string
}
