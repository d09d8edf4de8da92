// Package hub implements the presence-aware messaging hub: connection
// lifecycle, message routing, typing notifications, and paginated
// history with read receipts. The hub orchestrates the presence
// registry, the user directory, the conversation store and the
// transport; it owns no wire protocol of its own.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/moderation"
	"dm-lab/search"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

type Hub struct {
	log       *slog.Logger
	registry  contract.IPresenceRegistry
	users     contract.IUserDirectory
	store     contract.IConversationStore
	resolver  contract.IIdentityResolver
	transport contract.ITransport
	moderator *moderation.Moderator // optional, nil disables censoring
	index     *search.Index         // optional, nil disables search
	pageSize  int
}

func NewHub(log *slog.Logger, registry contract.IPresenceRegistry,
	users contract.IUserDirectory, store contract.IConversationStore,
	resolver contract.IIdentityResolver, transport contract.ITransport,
	moderator *moderation.Moderator, index *search.Index, pageSize int) *Hub {
	return &Hub{
		log:       log,
		registry:  registry,
		users:     users,
		store:     store,
		resolver:  resolver,
		transport: transport,
		moderator: moderator,
		index:     index,
		pageSize:  pageSize,
	}
}

// publicProfile is what the Notify event carries about a user who just
// came online. Credentials and internal fields never travel here.
type publicProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// messageView is the message projection pushed on ReceiveNewMessage and
// ReceiveMessageList events.
type messageView struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Connect runs the connect flow for an incoming connection. When the
// identity resolver cannot produce a user, the connection is left
// unauthenticated and nothing is emitted: the hub fails closed.
//
// A resolved identity is upserted into the presence registry. A user
// who just came online is announced to everyone else with a Notify
// event; a silent reconnect is not re-announced. An optional resume
// peer triggers an immediate first history page for the connecting
// side only. Finally the OnlineUsers views are recomputed and pushed,
// which is O(users) per connect and sized as such.
func (h *Hub) Connect(ctx context.Context, cc contract.ConnContext) (domain.User, bool) {
	user, ok := h.resolver.Authenticate(ctx, cc)
	if !ok || user.Username == "" {
		h.log.Debug("connection without identity left unauthenticated",
			"connection_id", cc.ConnectionID)
		return domain.User{}, false
	}

	newlyOnline := h.registry.Upsert(user.Username, cc.ConnectionID, user.DisplayName, user.AvatarURL)
	if newlyOnline {
		h.transport.BroadcastExcept(cc.ConnectionID, contract.EventNotify, publicProfile{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		})
	}

	if cc.ResumePeer != "" {
		if _, err := h.LoadMessages(ctx, domain.LoadMessagesCommand{
			ViewerUsername: user.Username,
			Peer:           cc.ResumePeer,
			PageNumber:     1,
		}); err != nil {
			h.log.Error("resume conversation load failed",
				"viewer", user.Username, "peer", cc.ResumePeer, "error", err)
		}
	}

	h.pushOnlineUsers()
	return user, true
}

// Disconnect removes the user from the presence registry. The views are
// only re-pushed when an entry was actually removed; there is no other
// per-connection cleanup.
func (h *Hub) Disconnect(ctx context.Context, username string) {
	if h.registry.Remove(username) {
		h.log.Info("user went offline", "username", username)
		h.pushOnlineUsers()
	}
}

// SendMessage persists a message and pushes it to the receiver when
// online. Unknown sender or receiver is a soft failure: the outcome is
// Rejected with the sentinel id 0, nothing is persisted and no event is
// emitted. A persistence error is a hard failure and aborts before any
// push. Delivery is best effort and reported separately from
// durability.
func (h *Hub) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.SendOutcome, error) {
	sender, err := h.users.GetUserByUsername(cmd.SenderUsername)
	if err != nil {
		h.log.Debug("send from unknown sender dropped", "sender", cmd.SenderUsername)
		return domain.Rejected(domain.ReasonUnknownSender), nil
	}
	receiver, ok := h.resolveUser(cmd.Receiver)
	if !ok {
		h.log.Debug("send to unknown receiver dropped",
			"sender", cmd.SenderUsername, "receiver", cmd.Receiver)
		return domain.Rejected(domain.ReasonUnknownReceiver), nil
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return domain.Rejected(domain.ReasonEmptyContent), nil
	}

	content := h.censor(cmd.Content, sender.Username)

	createdAt := time.Now().UTC()
	id, err := h.store.Append(sender.ID, receiver.ID, content, createdAt)
	if err != nil {
		return domain.SendOutcome{}, fmt.Errorf("persist message: %w", err)
	}

	message := domain.Message{
		ID:         id,
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    content,
		CreatedAt:  createdAt,
	}
	if h.index != nil {
		if err := h.index.Index(message); err != nil {
			h.log.Warn("message indexing failed", "id", id, "error", err)
		}
	}

	delivered := false
	if connectionID, online := h.registry.Lookup(receiver.Username); online {
		delivered = h.transport.Unicast(connectionID, contract.EventReceiveNewMessage, toView(message))
	}
	return domain.SendOutcome{Sent: true, MessageID: id, Delivered: delivered}, nil
}

// LoadMessages serves one history page of the viewer/peer conversation
// and marks the viewer's unread messages of that page as read.
//
// Pagination runs in two deliberate phases: the store selects the
// page walking backwards from the most recent message, then the page is
// re-ordered chronologically for display. The read-receipt update is a
// single batched commit, applied before the page is pushed. The page is
// unicast to the viewer's connection only.
func (h *Hub) LoadMessages(ctx context.Context, cmd domain.LoadMessagesCommand) (domain.PageOutcome, error) {
	viewer, err := h.users.GetUserByUsername(cmd.ViewerUsername)
	if err != nil {
		h.log.Debug("history request from unknown viewer dropped", "viewer", cmd.ViewerUsername)
		return domain.PageOutcome{Reason: domain.ReasonUnknownSender}, nil
	}
	peer, ok := h.resolveUser(cmd.Peer)
	if !ok {
		h.log.Debug("history request for unknown peer dropped",
			"viewer", cmd.ViewerUsername, "peer", cmd.Peer)
		return domain.PageOutcome{Reason: domain.ReasonUnknownPeer}, nil
	}

	pageNumber := cmd.PageNumber
	if pageNumber < 1 {
		pageNumber = 1
	}

	// Phase 1: select the N-th most-recent slice of the conversation.
	pageDesc, err := h.store.QueryPage(viewer.ID, peer.ID, (pageNumber-1)*h.pageSize, h.pageSize)
	if err != nil {
		return domain.PageOutcome{}, fmt.Errorf("query history page: %w", err)
	}

	// Phase 2: re-order the selected page chronologically for display.
	page := ascending(pageDesc)

	// Read receipts: one batched update, committed before the push.
	unreadIDs := lo.FilterMap(page, func(m domain.Message, _ int) (int64, bool) {
		return m.ID, m.ReceiverID == viewer.ID && !m.IsRead
	})
	if err := h.store.MarkRead(unreadIDs); err != nil {
		return domain.PageOutcome{}, fmt.Errorf("mark page read: %w", err)
	}

	views := lo.Map(page, func(m domain.Message, _ int) messageView {
		return toView(m)
	})

	delivered := false
	if connectionID, online := h.registry.Lookup(viewer.Username); online {
		delivered = h.transport.Unicast(connectionID, contract.EventReceiveMessageList, views)
	}
	return domain.PageOutcome{Delivered: delivered, Count: len(views)}, nil
}

// NotifyTyping forwards a typing indicator to the target's live
// connection. An offline target is a silent no-op; nothing is persisted
// or broadcast.
func (h *Hub) NotifyTyping(ctx context.Context, cmd domain.TypingCommand) {
	connectionID, online := h.registry.Lookup(cmd.TargetUsername)
	if !online {
		return
	}
	h.transport.Unicast(connectionID, contract.EventNotifyTypingToUser, cmd.SenderUsername)
}

// SearchMessages runs a full-text query over the viewer's conversation
// with the peer named in the query and unicasts the hits back to the
// requesting connection. No-op when no index is configured.
func (h *Hub) SearchMessages(ctx context.Context, viewerUsername, rawQuery string) error {
	if h.index == nil {
		return nil
	}
	viewer, err := h.users.GetUserByUsername(viewerUsername)
	if err != nil {
		return nil
	}
	query := search.ParseQuery(rawQuery)
	peer, ok := h.resolveUser(query.With)
	if !ok {
		return nil
	}

	hits, err := h.index.Search(ctx, domain.PairKey(viewer.ID, peer.ID), query.Terms, query.Limit)
	if err != nil {
		return fmt.Errorf("search messages: %w", err)
	}
	if connectionID, online := h.registry.Lookup(viewer.Username); online {
		h.transport.Unicast(connectionID, contract.EventReceiveSearchResults, hits)
	}
	return nil
}

// OnlineUsersView builds the viewer-relative projection of every known
// user: online flag from the presence registry and the viewer's unread
// count per sender. Online users sort first, then by username.
func (h *Hub) OnlineUsersView(viewer domain.User) ([]domain.OnlineUser, error) {
	all, err := h.users.ListUsers()
	if err != nil {
		return nil, err
	}

	view := make([]domain.OnlineUser, 0, len(all))
	for _, u := range all {
		_, online := h.registry.Lookup(u.Username)
		unread, err := h.store.CountUnread(viewer.ID, u.ID)
		if err != nil {
			return nil, err
		}
		view = append(view, domain.OnlineUser{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
			IsOnline:    online,
			UnreadCount: unread,
		})
	}
	sort.Slice(view, func(i, j int) bool {
		if view[i].IsOnline != view[j].IsOnline {
			return view[i].IsOnline
		}
		return view[i].Username < view[j].Username
	})
	return view, nil
}

// pushOnlineUsers recomputes and unicasts the OnlineUsers view for
// every live connection. Each recipient gets its own view, so unread
// counts are always the recipient's. Runs on every connect and
// disconnect; cost is O(connections x users).
func (h *Hub) pushOnlineUsers() {
	for _, entry := range h.registry.Snapshot() {
		viewer, err := h.users.GetUserByUsername(entry.Username)
		if err != nil {
			h.log.Warn("presence entry without directory user", "username", entry.Username)
			continue
		}
		view, err := h.OnlineUsersView(viewer)
		if err != nil {
			h.log.Error("online users view failed", "viewer", entry.Username, "error", err)
			continue
		}
		h.transport.Unicast(entry.ConnectionID, contract.EventOnlineUsers, view)
	}
}

// resolveUser accepts a username or a stable user id.
func (h *Hub) resolveUser(identifier string) (domain.User, bool) {
	if identifier == "" {
		return domain.User{}, false
	}
	if user, err := h.users.GetUserByUsername(identifier); err == nil {
		return user, true
	}
	user, err := h.users.GetUserByID(identifier)
	if err != nil {
		return domain.User{}, false
	}
	return user, true
}

// censor applies the moderation automaton when configured. Censored
// sends are logged with the detected language, never with credentials.
func (h *Hub) censor(content, sender string) string {
	if h.moderator == nil {
		return content
	}
	sanitized, foundWords := h.moderator.Censor(content)
	if len(foundWords) > 0 {
		info := whatlanggo.Detect(content)
		h.log.Warn("message content censored",
			"sender", sender,
			"words", len(foundWords),
			"lang", info.Lang.Iso6391())
	}
	return sanitized
}

// ascending re-sorts a most-recent-first page oldest first. Ids break
// createdAt ties since they are monotonic.
func ascending(pageDesc []domain.Message) []domain.Message {
	page := make([]domain.Message, len(pageDesc))
	copy(page, pageDesc)
	sort.Slice(page, func(i, j int) bool {
		if page[i].CreatedAt.Equal(page[j].CreatedAt) {
			return page[i].ID < page[j].ID
		}
		return page[i].CreatedAt.Before(page[j].CreatedAt)
	})
	return page
}

func toView(m domain.Message) messageView {
	return messageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
