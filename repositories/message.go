//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"dm-lab/domain"
	apperrors "dm-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// IMessageRepository is the conversation store: append, pair range
// query, bulk read-mark and unread count. It backs the hub's history
// pagination and read-receipt paths.
type IMessageRepository interface {
	Append(senderID, receiverID, content string, createdAt time.Time) (int64, error)
	QueryPage(userA, userB string, skip, take int) ([]domain.Message, error)
	MarkRead(ids []int64) error
	CountUnread(receiverID, senderID string) (int, error)
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// NewMessageRepository opens the message id sequence. Ids start at 1 so
// that 0 stays available as the "not sent" sentinel.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence. Unused leases are discarded, which
// may leave gaps in ids; monotonicity is preserved.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the stored representation of a message.
type diskMessage struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	IsRead     bool      `json:"isRead"`
}

// Keyspace:
//
//	msg:{%020d id}              -> JSON record (primary)
//	conv:{pair}:{%020d id}      -> primary key (conversation index)
//
// Ids are monotonic, so id order equals insertion order and the padded
// id gives lexicographic chronological order within a pair. A reverse
// prefix scan over the index is therefore the "most recent first" phase
// of pagination.
func messageKey(id int64) []byte {
	return fmt.Appendf(nil, "msg:%020d", id)
}

func conversationKey(pair string, id int64) []byte {
	return fmt.Appendf(nil, "conv:%s:%020d", pair, id)
}

// Append persists a new unread message and returns its assigned id.
func (m *MessageRepository) Append(senderID, receiverID, content string, createdAt time.Time) (int64, error) {
	n, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	id := int64(n) + 1

	record := diskMessage{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  createdAt.UTC(),
		IsRead:     false,
	}
	bytes, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}

	pair := domain.PairKey(senderID, receiverID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(id), bytes); err != nil {
			return err
		}
		return txn.Set(conversationKey(pair, id), messageKey(id))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// QueryPage returns the conversation slice between userA and userB,
// most recent first. It walks the conversation index backwards, skips
// the first skip entries and resolves at most take primary records.
func (m *MessageRepository) QueryPage(userA, userB string, skip, take int) ([]domain.Message, error) {
	if take <= 0 {
		return nil, nil
	}
	var records []diskMessage
	pair := domain.PairKey(userA, userB)
	prefix := []byte("conv:" + pair + ":")

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// In reverse mode the seek position must sit past the last
		// possible key of the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xFF)

		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			if len(records) == take {
				break
			}
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if err != nil {
				return err
			}
			var record diskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r diskMessage, _ int) domain.Message {
		return toMessage(r)
	}), nil
}

// MarkRead flips IsRead to true for every given id in a single batch.
// Already-read and unknown ids are skipped, which makes the operation
// idempotent under concurrent history fetches.
func (m *MessageRepository) MarkRead(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return m.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(messageKey(id))
			if err == badger.ErrKeyNotFound {
				m.log.Warn("mark read skipped unknown message", "id", id)
				continue
			}
			if err != nil {
				return err
			}
			var record diskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if record.IsRead {
				continue
			}
			record.IsRead = true
			bytes, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(id), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountUnread counts messages sent by senderID to receiverID that the
// receiver has not retrieved yet. It scans the pair's conversation
// index; retention is unbounded so the cost grows with the thread.
func (m *MessageRepository) CountUnread(receiverID, senderID string) (int, error) {
	count := 0
	pair := domain.PairKey(receiverID, senderID)
	prefix := []byte("conv:" + pair + ":")

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if err != nil {
				return err
			}
			var record diskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if !record.IsRead && record.ReceiverID == receiverID && record.SenderID == senderID {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetMessage fetches one message by id. Used by tests and the inspect
// tooling rather than the hub's hot paths.
func (m *MessageRepository) GetMessage(id int64) (domain.Message, error) {
	var record diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id))
		if err == badger.ErrKeyNotFound {
			return apperrors.ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

func toMessage(r diskMessage) domain.Message {
	return domain.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt.UTC(),
		IsRead:     r.IsRead,
	}
}
