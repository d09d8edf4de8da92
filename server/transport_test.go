package server

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestTransport(bufferSize int) *ChannelTransport {
	return NewChannelTransport(logs.GetLoggerFromLevel(slog.LevelError), bufferSize)
}

func TestChannelTransport_Unicast(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(4)

	sink := transport.Register("conn-1")
	req.Equal(1, transport.ConnectionCount())

	// When unicasting to a live connection
	req.True(transport.Unicast("conn-1", "Notify", "hello"))
	envelope := <-sink.Events
	req.Equal("Notify", envelope.Event)
	req.Equal("hello", envelope.Payload)

	// Then an unknown connection reports undelivered
	req.False(transport.Unicast("ghost", "Notify", "hello"))
}

func TestChannelTransport_Full_Sink_Drops_Without_Blocking(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(2)
	transport.Register("conn-1")

	req.True(transport.Unicast("conn-1", "e", 1))
	req.True(transport.Unicast("conn-1", "e", 2))

	// Buffer full: the push must return immediately and report false
	req.False(transport.Unicast("conn-1", "e", 3))
}

func TestChannelTransport_BroadcastExcept(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(4)
	alice := transport.Register("alice-conn")
	bob := transport.Register("bob-conn")
	clara := transport.Register("clara-conn")

	// When broadcasting with alice excepted
	transport.BroadcastExcept("alice-conn", "Notify", "payload")

	// Then everyone but alice got exactly one event
	req.Len(bob.Events, 1)
	req.Len(clara.Events, 1)
	req.Empty(alice.Events)

	// And an empty exception reaches all connections
	transport.BroadcastExcept("", "Notify", "payload")
	req.Len(alice.Events, 1)
	req.Len(bob.Events, 2)
	req.Len(clara.Events, 2)
}

func TestChannelTransport_Unregister(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(4)
	sink := transport.Register("conn-1")

	transport.Unregister("conn-1")

	// Then the write pump is released and late pushes are undelivered
	_, open := <-sink.Done
	req.False(open)
	req.False(transport.Unicast("conn-1", "Notify", "late"))
	req.Zero(transport.ConnectionCount())

	// And a second unregister of the same id is a no-op
	transport.Unregister("conn-1")
}

func TestChannelTransport_Concurrent_Pushes(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport(1024)
	sink := transport.Register("conn-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				transport.Unicast("conn-1", "e", fmt.Sprintf("%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	req.Len(sink.Events, 100)
}
