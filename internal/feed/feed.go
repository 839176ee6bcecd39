// Package feed supplies snapshots of the chat messages the bot watches.
package feed

import (
	"context"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// Feed returns the messages currently visible in the channel, in display
// order. Ids are stable across snapshots; texts may change when edited.
type Feed interface {
	Snapshot(ctx context.Context) ([]types.RawMessage, error)
	Name() string
	Close() error
}
