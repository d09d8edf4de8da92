package domain

// PresenceEntry ties an online username to the single live connection
// that currently reaches it. At most one entry exists per username; a
// reconnect overwrites ConnectionID in place.
type PresenceEntry struct {
	Username     string
	ConnectionID string
	DisplayName  string
	AvatarURL    string
}

// OnlineUser is the per-viewer projection pushed on the OnlineUsers
// event: one row per known user, with the viewer's own unread count.
type OnlineUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	IsOnline    bool   `json:"isOnline"`
	UnreadCount int    `json:"unreadCount"`
}
