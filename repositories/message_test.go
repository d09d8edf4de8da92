package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T) *MessageRepository {
	t.Helper()
	repository, err := NewMessageRepository(openTestDB(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Append_Assigns_Monotonic_Ids_Starting_At_One(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	// When appending several messages
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := repository.Append("alice-id", "bob-id", "hello", at.Add(time.Duration(i)*time.Minute))
		req.NoError(err)
		ids = append(ids, id)
	}

	// Then ids are strictly increasing and never the sentinel 0
	req.Equal(int64(1), ids[0])
	for i := 1; i < len(ids); i++ {
		req.Greater(ids[i], ids[i-1])
	}
}

func Test_QueryPage_Returns_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	// Given 5 messages exchanged in both directions of the same pair
	for i := 0; i < 5; i++ {
		sender, receiver := "alice-id", "bob-id"
		if i%2 == 1 {
			sender, receiver = receiver, sender
		}
		_, err := repository.Append(sender, receiver, "message", at.Add(time.Duration(i)*time.Minute))
		req.NoError(err)
	}

	// When querying the first page
	page, err := repository.QueryPage("alice-id", "bob-id", 0, 3)
	req.NoError(err)

	// Then the slice is most recent first
	req.Len(page, 3)
	req.Equal(int64(5), page[0].ID)
	req.Equal(int64(4), page[1].ID)
	req.Equal(int64(3), page[2].ID)

	// And the pair is unordered: both argument orders see the thread
	mirrored, err := repository.QueryPage("bob-id", "alice-id", 0, 3)
	req.NoError(err)
	req.Equal(page, mirrored)
}

func Test_QueryPage_Pagination_Is_Deterministic(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	for i := 0; i < 25; i++ {
		_, err := repository.Append("alice-id", "bob-id", "message", at.Add(time.Duration(i)*time.Second))
		req.NoError(err)
	}

	// When requesting the same page repeatedly
	first, err := repository.QueryPage("alice-id", "bob-id", 10, 10)
	req.NoError(err)
	second, err := repository.QueryPage("alice-id", "bob-id", 10, 10)
	req.NoError(err)

	// Then the slice is identical and holds the expected window
	req.Equal(first, second)
	req.Len(first, 10)
	req.Equal(int64(15), first[0].ID)
	req.Equal(int64(6), first[9].ID)

	// And a page past the end is empty
	tail, err := repository.QueryPage("alice-id", "bob-id", 30, 10)
	req.NoError(err)
	req.Empty(tail)
}

func Test_QueryPage_Does_Not_Leak_Other_Conversations(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	_, err := repository.Append("alice-id", "bob-id", "for bob", at)
	req.NoError(err)
	_, err = repository.Append("alice-id", "clara-id", "for clara", at)
	req.NoError(err)

	page, err := repository.QueryPage("alice-id", "bob-id", 0, 10)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("for bob", page[0].Content)
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	id, err := repository.Append("alice-id", "bob-id", "unread", at)
	req.NoError(err)

	// Given a freshly persisted message
	message, err := repository.GetMessage(id)
	req.NoError(err)
	req.False(message.IsRead)

	// When marking it read twice
	req.NoError(repository.MarkRead([]int64{id}))
	req.NoError(repository.MarkRead([]int64{id}))

	// Then the flag stays true with no other change
	reread, err := repository.GetMessage(id)
	req.NoError(err)
	req.True(reread.IsRead)
	req.Equal(message.Content, reread.Content)
	req.Equal(message.CreatedAt, reread.CreatedAt)

	// And unknown ids are skipped, not failed
	req.NoError(repository.MarkRead([]int64{9999}))
}

func Test_CountUnread_Counts_One_Direction_Only(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)
	at := time.Now().UTC()

	// Given 3 unread messages from alice to bob and 1 from bob to alice
	var aliceToBob []int64
	for i := 0; i < 3; i++ {
		id, err := repository.Append("alice-id", "bob-id", "hi bob", at.Add(time.Duration(i)*time.Second))
		req.NoError(err)
		aliceToBob = append(aliceToBob, id)
	}
	_, err := repository.Append("bob-id", "alice-id", "hi alice", at)
	req.NoError(err)

	// Then each receiver sees only its own unread count
	count, err := repository.CountUnread("bob-id", "alice-id")
	req.NoError(err)
	req.Equal(3, count)

	count, err = repository.CountUnread("alice-id", "bob-id")
	req.NoError(err)
	req.Equal(1, count)

	// When bob reads part of the thread
	req.NoError(repository.MarkRead(lo.Slice(aliceToBob, 0, 2)))

	count, err = repository.CountUnread("bob-id", "alice-id")
	req.NoError(err)
	req.Equal(1, count)
}
