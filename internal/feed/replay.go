package feed

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// ReplayFeed reads a JSON array of {"id", "text"} objects from a file on
// every snapshot. Appending to or editing the file simulates new and edited
// messages, which makes it the feed for paper trading.
type ReplayFeed struct {
	path string
}

// NewReplayFeed creates a feed backed by path
func NewReplayFeed(path string) *ReplayFeed {
	return &ReplayFeed{path: path}
}

func (r *ReplayFeed) Name() string {
	return "replay:" + r.path
}

func (r *ReplayFeed) Close() error {
	return nil
}

// Snapshot re-reads the file. Entries without an id are skipped.
func (r *ReplayFeed) Snapshot(ctx context.Context) ([]types.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("replay file %s is not valid JSON", r.path)
	}

	root := gjson.ParseBytes(data)
	if root.Get("messages").IsArray() {
		root = root.Get("messages")
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("replay file %s must hold an array of messages", r.path)
	}

	var messages []types.RawMessage
	root.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id == "" {
			return true
		}
		messages = append(messages, types.RawMessage{ID: id, Text: item.Get("text").String()})
		return true
	})
	return messages, nil
}
