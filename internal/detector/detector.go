// Package detector filters a feed snapshot down to the messages whose text
// is new or has changed since the previous snapshot.
package detector

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// Fingerprint returns the digest of whitespace-normalized text
func Fingerprint(text string) uint64 {
	return xxhash.Sum64String(strings.Join(strings.Fields(text), " "))
}

// Table holds the last seen fingerprint per message id. The zero value is
// not usable, use NewTable.
type Table struct {
	seen      map[string]uint64
	baselined bool
}

func NewTable() *Table {
	return &Table{seen: make(map[string]uint64)}
}

// Len returns the number of tracked message ids
func (t *Table) Len() int {
	return len(t.seen)
}

// Baselined reports whether the first snapshot has been recorded
func (t *Table) Baselined() bool {
	return t.baselined
}

// Detect records every message of snapshot and returns, in snapshot order,
// the ones whose id is new or whose text changed. The first call only
// records fingerprints and returns nothing.
func Detect(t *Table, snapshot []types.RawMessage) []types.RawMessage {
	if !t.baselined {
		for _, msg := range snapshot {
			t.seen[msg.ID] = Fingerprint(msg.Text)
		}
		t.baselined = true
		return nil
	}

	var changed []types.RawMessage
	for _, msg := range snapshot {
		fp := Fingerprint(msg.Text)
		if prev, ok := t.seen[msg.ID]; ok && prev == fp {
			continue
		}
		t.seen[msg.ID] = fp
		changed = append(changed, msg)
	}
	return changed
}
