// Package search maintains a bluge full-text index over persisted
// messages, scoped by conversation pair. Indexing is best effort: the
// conversation store stays the source of truth and the index can be
// rebuilt from it.
package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dm-lab/domain"

	"github.com/blugelabs/bluge"
)

type Index struct {
	writer *bluge.Writer
}

// NewIndex opens (or creates) the on-disk index at path.
func NewIndex(path string) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open bluge writer: %w", err)
	}
	return &Index{writer: writer}, nil
}

// NewMemoryIndex opens an in-memory index, used by tests.
func NewMemoryIndex() (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// Hit is one search result, carrying enough stored fields to render a
// result row without a store round trip.
type Hit struct {
	MessageID  int64     `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Index upserts one message document. The document id is the message
// id, so re-indexing the same message is idempotent.
func (i *Index) Index(message domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatInt(message.ID, 10)).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("pair", domain.PairKey(message.SenderID, message.ReceiverID))).
		AddField(bluge.NewStoredOnlyField("senderId", []byte(message.SenderID))).
		AddField(bluge.NewStoredOnlyField("receiverId", []byte(message.ReceiverID))).
		AddField(bluge.NewStoredOnlyField("createdAt", []byte(message.CreatedAt.UTC().Format(time.RFC3339Nano))))
	return i.writer.Update(doc.ID(), doc)
}

// Search matches terms against message content within one conversation
// pair and returns at most limit hits, best score first.
func (i *Index) Search(ctx context.Context, pair, terms string, limit int) ([]Hit, error) {
	if terms == "" || limit <= 0 {
		return nil, nil
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open bluge reader: %w", err)
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(pair).SetField("pair"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = strconv.ParseInt(string(value), 10, 64)
			case "content":
				hit.Content = string(value)
			case "senderId":
				hit.SenderID = string(value)
			case "receiverId":
				hit.ReceiverID = string(value)
			case "createdAt":
				hit.CreatedAt, _ = time.Parse(time.RFC3339Nano, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
