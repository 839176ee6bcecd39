package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppendsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.xlsx")
	j := New(path)
	assert.Equal(t, path, j.Path())

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tp := 3100.0
	require.NoError(t, j.Record(Entry{
		Time: at, Event: "opened", Asset: "ETH", Direction: "long",
		Entry: 3000, StopLoss: 2950, TakeProfit: &tp, Quantity: 2,
	}))
	require.NoError(t, j.Record(Entry{
		Time: at.Add(time.Hour), Event: "closed", Asset: "ETH", Direction: "long",
		Entry: 3000, StopLoss: 2950, Quantity: 2, Reason: "2.5R booked",
	}))

	rows, err := j.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2025-03-01 12:00:00", rows[0][0])
	assert.Equal(t, "opened", rows[0][1])
	assert.Equal(t, "3100", rows[0][6])
	assert.Equal(t, "closed", rows[1][1])
	assert.Equal(t, "2.5R booked", rows[1][8])
}

func TestJournalRowsMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.xlsx")).Rows()
	assert.Error(t, err)
}
