package e2e

import (
	"strings"
	"testing"
	"time"

	"dm-lab/contract"
	"dm-lab/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type testMessagingSuite struct {
	BaseSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

func (s *testMessagingSuite) TestFullMessagingFlow() {
	aliceToken := s.Register("alice")
	bobToken := s.Register("bob")

	var alice, bob *wsClient
	var messageID float64

	// --- STEP 1: PRESENCE ---
	s.Run("Step 1: Connections announce presence", func() {
		alice = s.Dial(aliceToken, "")
		view := decode[[]domain.OnlineUser](&s.BaseSuite, alice.Expect(contract.EventOnlineUsers))
		s.Require().Len(view, 2) // both accounts exist, only alice is online

		bob = s.Dial(bobToken, "")
		bob.Expect(contract.EventOnlineUsers)

		// Alice learns about bob twice: the announcement, then her refreshed view
		profile := decode[map[string]any](&s.BaseSuite, alice.Expect(contract.EventNotify))
		s.Require().Equal("bob", profile["username"])
		view = decode[[]domain.OnlineUser](&s.BaseSuite, alice.Expect(contract.EventOnlineUsers))
		for _, row := range view {
			s.Require().True(row.IsOnline, "username=%s", row.Username)
		}
	})

	// --- STEP 2: DIRECT MESSAGE ---
	s.Run("Step 2: Message reaches the online receiver", func() {
		alice.Send(map[string]any{
			"type": "SendMessage", "receiver": "bob", "content": "hello bob",
		})

		payload := decode[map[string]any](&s.BaseSuite, bob.Expect(contract.EventReceiveNewMessage))
		s.Require().Equal("hello bob", payload["content"])
		s.Require().NotZero(payload["id"])
		messageID = payload["id"].(float64)
	})

	// --- STEP 3: HISTORY ---
	s.Run("Step 3: History page returns the persisted message", func() {
		bob.Send(map[string]any{"type": "LoadMessages", "peer": "alice", "page": 1})

		page := decode[[]map[string]any](&s.BaseSuite, bob.Expect(contract.EventReceiveMessageList))
		s.Require().Len(page, 1)
		s.Require().Equal(messageID, page[0]["id"])
		s.Require().Equal("hello bob", page[0]["content"])
	})

	// --- STEP 4: TYPING ---
	s.Run("Step 4: Typing indicator is unicast to the target", func() {
		alice.Send(map[string]any{"type": "NotifyTyping", "target": "bob"})

		sender := decode[string](&s.BaseSuite, bob.Expect(contract.EventNotifyTypingToUser))
		s.Require().Equal("alice", sender)
	})

	// --- STEP 5: DISCONNECT ---
	s.Run("Step 5: Disconnect flips the presence view", func() {
		bob.Close()

		view := decode[[]domain.OnlineUser](&s.BaseSuite, alice.Expect(contract.EventOnlineUsers))
		for _, row := range view {
			if row.Username == "bob" {
				s.Require().False(row.IsOnline)
			}
		}
	})

	// --- STEP 6: UNKNOWN RECEIVER ---
	s.Run("Step 6: Message to an unknown user vanishes silently", func() {
		alice.Send(map[string]any{
			"type": "SendMessage", "receiver": "nobody", "content": "anyone there?",
		})
		alice.ExpectSilence(500 * time.Millisecond)
	})

	alice.Close()
}

type testAuthSuite struct {
	BaseSuite
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, &testAuthSuite{})
}

func (s *testAuthSuite) TestLoginFlow() {
	s.Register("clara")

	s.Run("login with valid credentials returns a fresh token", func() {
		token, status := s.Login("clara", "ComplexPass123!")
		s.Require().Equal(200, status)
		s.Require().NotEmpty(token)
	})

	s.Run("login with a wrong password is unauthorized", func() {
		_, status := s.Login("clara", "WrongPass123!")
		s.Require().Equal(401, status)
	})

	s.Run("login for an unknown account is unauthorized", func() {
		_, status := s.Login("nobody", "ComplexPass123!")
		s.Require().Equal(401, status)
	})
}

func (s *testAuthSuite) TestConnectionWithoutIdentityIsDropped() {
	// The upgrade succeeds, then the server closes without any frame
	url := "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws?access_token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(eventWait)))
	_, _, err = conn.ReadMessage()
	s.Require().Error(err)
}

type testResumeSuite struct {
	BaseSuite
}

func TestResumeSuite(t *testing.T) {
	suite.Run(t, &testResumeSuite{})
}

func (s *testResumeSuite) TestResumePeerLoadsHistoryOnConnect() {
	danToken := s.Register("dan")
	eveToken := s.Register("eve")

	dan := s.Dial(danToken, "")
	defer dan.Close()
	dan.Send(map[string]any{
		"type": "SendMessage", "receiver": "eve", "content": "see you at 9",
	})

	// Offline sends are persisted, so give the write a moment to land
	// before the resume query runs against the store.
	time.Sleep(100 * time.Millisecond)

	eve := s.Dial(eveToken, "dan")
	defer eve.Close()

	page := decode[[]map[string]any](&s.BaseSuite, eve.Expect(contract.EventReceiveMessageList))
	s.Require().Len(page, 1)
	s.Require().Equal("see you at 9", page[0]["content"])
}
