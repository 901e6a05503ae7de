package types_test

import (
	"testing"

	"github.com/milosgajdos/go-tftp/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestFilterRequestOptionsClampsBlksize(t *testing.T) {
	out := types.FilterRequestOptions(types.Options{types.OptBlksize: types.MaxBlockSize + 1000})
	assert.Equal(t, uint64(types.MaxBlockSize), out[types.OptBlksize])
}

func TestFilterRequestOptionsDropsUndersizedBlksize(t *testing.T) {
	out := types.FilterRequestOptions(types.Options{types.OptBlksize: types.MinBlockSize - 1})
	_, ok := out[types.OptBlksize]
	assert.False(t, ok)
}

func TestFilterRequestOptionsDropsOutOfRangeTimeout(t *testing.T) {
	out := types.FilterRequestOptions(types.Options{types.OptTimeout: types.MaxTimeout + 1})
	_, ok := out[types.OptTimeout]
	assert.False(t, ok)
}

func TestFilterRequestOptionsDropsUnknownOption(t *testing.T) {
	out := types.FilterRequestOptions(types.Options{"rollover": 1})
	assert.Empty(t, out)
}

func TestFilterOackOptionsKeepsNonZeroTsizeWithinMax(t *testing.T) {
	out := types.FilterOackOptions(types.Options{types.OptTsize: 123456})
	assert.Equal(t, uint64(123456), out[types.OptTsize])
}

func TestFilterOackOptionsDropsTsizeAboveMax(t *testing.T) {
	out := types.FilterOackOptions(types.Options{types.OptTsize: types.MaxTsize + 1})
	_, ok := out[types.OptTsize]
	assert.False(t, ok)
}

func TestFilterWrqOptionsKeepsNonZeroTsize(t *testing.T) {
	out := types.FilterWrqOptions(types.Options{types.OptTsize: 999})
	assert.Equal(t, uint64(999), out[types.OptTsize])
}
