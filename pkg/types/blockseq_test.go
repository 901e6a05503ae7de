package types_test

import (
	"testing"

	"github.com/milosgajdos/go-tftp/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestIsExpectedBlock(t *testing.T) {
	assert.True(t, types.IsExpectedBlock(5, 5))
	assert.False(t, types.IsExpectedBlock(5, 6))
}

func TestIsDuplicateBlock(t *testing.T) {
	assert.True(t, types.IsDuplicateBlock(5, 4))
	assert.False(t, types.IsDuplicateBlock(5, 5))
	assert.False(t, types.IsDuplicateBlock(5, 6))
}

func TestBlockNumberWraparound(t *testing.T) {
	// The receiver expects block 0 (after block 65535 wrapped); a
	// datagram carrying 65535 is the prior, already-accepted block.
	assert.True(t, types.IsDuplicateBlock(0, 65535))
	assert.True(t, types.IsExpectedBlock(65535, 65535))
}
