package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectionFor(t *testing.T) {
	d, ok := DirectionFor(50000, 49500)
	assert.True(t, ok)
	assert.Equal(t, DirectionLong, d)

	d, ok = DirectionFor(60000, 61000)
	assert.True(t, ok)
	assert.Equal(t, DirectionShort, d)

	_, ok = DirectionFor(100, 100)
	assert.False(t, ok)
}
