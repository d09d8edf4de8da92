// Package e2e runs full-stack scenarios against an in-process instance
// of the messaging server: real storage, real HTTP endpoints and real
// WebSocket connections.
package e2e

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"dm-lab/auth"
	"dm-lab/hub"
	"dm-lab/repositories"
	"dm-lab/server"
	"dm-lab/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const eventWait = 3 * time.Second

type BaseSuite struct {
	suite.Suite

	dir      string
	db       *badger.DB
	messages *repositories.MessageRepository
	httpSrv  *httptest.Server
}

func (s *BaseSuite) SetupSuite() {
	log := logs.GetLoggerFromLevel(slog.LevelError)

	dir, err := os.MkdirTemp("", "dm-lab-e2e-")
	s.Require().NoError(err)
	s.dir = dir

	s.db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	users := repositories.NewUserRepository(s.db)
	s.messages, err = repositories.NewMessageRepository(s.db, log)
	s.Require().NoError(err)

	transport := server.NewChannelTransport(log, 64)
	h := hub.NewHub(log, hub.NewRegistry(), users, s.messages,
		auth.NewResolver(users, log), transport, nil, nil, 10)

	router := server.NewRouter(log,
		services.NewAuthService(users, time.Hour),
		server.NewWSHandler(log, h, transport))
	s.httpSrv = httptest.NewServer(router)
}

func (s *BaseSuite) TearDownSuite() {
	s.httpSrv.Close()
	s.Require().NoError(s.messages.Close())
	s.Require().NoError(s.db.Close())
	s.Require().NoError(os.RemoveAll(s.dir))
}

// Register creates an account over the HTTP API and returns its session
// token.
func (s *BaseSuite) Register(username string) string {
	body, err := json.Marshal(auth.RegisterRequest{
		Username:    username,
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
		Password:    "ComplexPass123!",
	})
	s.Require().NoError(err)

	resp, err := http.Post(s.httpSrv.URL+"/api/account/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var tokenResp struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tokenResp))
	s.Require().NotEmpty(tokenResp.Token)
	return tokenResp.Token
}

// Login exchanges credentials for a session token over the HTTP API.
func (s *BaseSuite) Login(username, password string) (string, int) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	s.Require().NoError(err)

	resp, err := http.Post(s.httpSrv.URL+"/api/account/login", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode
	}

	var tokenResp struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&tokenResp))
	return tokenResp.Token, resp.StatusCode
}

// wsClient is one live WebSocket connection speaking the server's
// envelope protocol.
type wsClient struct {
	suite *BaseSuite
	conn  *websocket.Conn
}

// Dial opens an authenticated WebSocket connection. An empty peer skips
// the resume-conversation query parameter.
func (s *BaseSuite) Dial(token, peer string) *wsClient {
	url := "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws?access_token=" + token
	if peer != "" {
		url += "&peer=" + peer
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	s.Require().NoError(err)
	return &wsClient{suite: s, conn: conn}
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}

// Send writes one client command frame.
func (c *wsClient) Send(command map[string]any) {
	c.suite.Require().NoError(c.conn.WriteJSON(command))
}

// Expect reads frames until the named event arrives and returns its raw
// payload. Unrelated events in between are skipped.
func (c *wsClient) Expect(event string) json.RawMessage {
	deadline := time.Now().Add(eventWait)
	for {
		c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))
		var envelope struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		err := c.conn.ReadJSON(&envelope)
		c.suite.Require().NoError(err, "waiting for event %q", event)
		if envelope.Event == event {
			return envelope.Payload
		}
	}
}

// ExpectSilence asserts that no frame arrives within the window. The
// expired read deadline poisons the connection, so this is always the
// last call on a client.
func (c *wsClient) ExpectSilence(window time.Duration) {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(window)))
	var discard json.RawMessage
	err := c.conn.ReadJSON(&discard)
	c.suite.Require().Error(err, "expected no frame, got %s", discard)
}

func decode[T any](s *BaseSuite, raw json.RawMessage) T {
	var value T
	s.Require().NoError(json.Unmarshal(raw, &value), "payload=%s", string(raw))
	return value
}
