package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"dm-lab/contract"
	"dm-lab/domain"
	"dm-lab/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientCommand is the single client-to-server message shape. Type
// selects the operation; unused fields stay empty.
type clientCommand struct {
	Type     string `json:"type"` // SendMessage | LoadMessages | NotifyTyping | Search
	Receiver string `json:"receiver,omitempty"`
	Content  string `json:"content,omitempty"`
	Peer     string `json:"peer,omitempty"`
	Page     int    `json:"page,omitempty"`
	Target   string `json:"target,omitempty"`
	Query    string `json:"query,omitempty"`
}

// WSHandler upgrades HTTP requests to WebSocket connections and bridges
// them to the messaging hub: the read pump dispatches client commands,
// the write pump drains the connection's transport sink.
type WSHandler struct {
	hub       *hub.Hub
	transport *ChannelTransport
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

func NewWSHandler(log *slog.Logger, h *hub.Hub, transport *ChannelTransport) *WSHandler {
	return &WSHandler{
		hub:       h,
		transport: transport,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect cross-origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	cc := contract.ConnContext{
		ConnectionID: uuid.NewString(),
		Token:        r.URL.Query().Get("access_token"),
		ResumePeer:   r.URL.Query().Get("peer"),
	}

	sink := s.transport.Register(cc.ConnectionID)
	user, ok := s.hub.Connect(r.Context(), cc)
	if !ok {
		// Fail closed: no error frame, the socket is simply dropped.
		s.transport.Unregister(cc.ConnectionID)
		_ = conn.Close()
		return
	}

	go s.writePump(conn, sink)
	s.readPump(r, conn, user)

	s.hub.Disconnect(r.Context(), user.Username)
	s.transport.Unregister(cc.ConnectionID)
	_ = conn.Close()
}

// readPump decodes client commands until the connection dies, then lets
// the caller run the disconnect flow.
func (s *WSHandler) readPump(r *http.Request, conn *websocket.Conn, user domain.User) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", "username", user.Username, "error", err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.log.Debug("malformed client command dropped", "username", user.Username)
			continue
		}

		ctx := r.Context()
		switch cmd.Type {
		case "SendMessage":
			if _, err := s.hub.SendMessage(ctx, domain.SendMessageCommand{
				SenderUsername: user.Username,
				Receiver:       cmd.Receiver,
				Content:        cmd.Content,
			}); err != nil {
				s.log.Error("send message failed", "sender", user.Username, "error", err)
			}
		case "LoadMessages":
			if _, err := s.hub.LoadMessages(ctx, domain.LoadMessagesCommand{
				ViewerUsername: user.Username,
				Peer:           cmd.Peer,
				PageNumber:     cmd.Page,
			}); err != nil {
				s.log.Error("history load failed", "viewer", user.Username, "error", err)
			}
		case "NotifyTyping":
			s.hub.NotifyTyping(ctx, domain.TypingCommand{
				SenderUsername: user.Username,
				TargetUsername: cmd.Target,
			})
		case "Search":
			if err := s.hub.SearchMessages(ctx, user.Username, cmd.Query); err != nil {
				s.log.Error("search failed", "viewer", user.Username, "error", err)
			}
		default:
			s.log.Debug("unknown command type dropped", "type", cmd.Type)
		}
	}
}

// writePump serializes sink events onto the socket and keeps the
// connection alive with pings. It exits when the sink is unregistered
// or a write fails.
func (s *WSHandler) writePump(conn *websocket.Conn, sink *Sink) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case envelope := <-sink.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sink.Done:
			return
		}
	}
}
