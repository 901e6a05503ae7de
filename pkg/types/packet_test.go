package types_test

import (
	"testing"

	"github.com/milosgajdos/go-tftp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &types.Request{
		Opcode:   types.OpCodeRRQ,
		Filename: "boot.img",
		Mode:     "octet",
		Options: types.Options{
			types.OptBlksize: 1024,
			types.OptTimeout: 3,
		},
	}

	b, err := req.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got, ok := pkt.(*types.Request)
	require.True(t, ok)

	assert.Equal(t, req.Filename, got.Filename)
	assert.Equal(t, "octet", got.Mode)
	assert.Equal(t, uint64(1024), got.Options[types.OptBlksize])
	assert.Equal(t, uint64(3), got.Options[types.OptTimeout])
}

func TestRequestUnmarshalEmptyFilenameRejected(t *testing.T) {
	var req types.Request

	b := []byte{0, byte(types.OpCodeRRQ), 0, 'o', 'c', 't', 'e', 't', 0}

	err := req.UnmarshalBinary(b)
	require.Error(t, err)
}

func TestWrqTsizeSurvivesFilter(t *testing.T) {
	req := &types.Request{
		Opcode:   types.OpCodeWRQ,
		Filename: "upload.bin",
		Mode:     "octet",
		Options:  types.Options{types.OptTsize: 4096},
	}

	b, err := req.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Request)
	assert.Equal(t, uint64(4096), got.Options[types.OptTsize])
}

func TestRrqNonZeroTsizeDropped(t *testing.T) {
	req := &types.Request{
		Opcode:   types.OpCodeRRQ,
		Filename: "download.bin",
		Mode:     "octet",
		Options:  types.Options{types.OptTsize: 4096},
	}

	b, err := req.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Request)
	_, present := got.Options[types.OptTsize]
	assert.False(t, present)
}

func TestDataRoundTrip(t *testing.T) {
	d := &types.Data{Opcode: types.OpCodeDATA, BlockNum: 7, Payload: []byte("hello world")}

	b, err := d.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Data)
	assert.Equal(t, uint16(7), got.BlockNum)
	assert.Equal(t, []byte("hello world"), got.Payload)
}

func TestDataPayloadTooLargeRejected(t *testing.T) {
	d := &types.Data{Opcode: types.OpCodeDATA, BlockNum: 1, Payload: make([]byte, types.MaxPayloadSize+1)}

	_, err := d.MarshalBinary()
	require.Error(t, err)
}

func TestAckRoundTrip(t *testing.T) {
	a := &types.Ack{Opcode: types.OpCodeACK, BlockNum: 42}

	b, err := a.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Ack)
	assert.Equal(t, uint16(42), got.BlockNum)
}

func TestErrorRoundTrip(t *testing.T) {
	e := &types.Error{Opcode: types.OpCodeError, ErrorCode: types.ErrFileNotFound, ErrMsg: "no such file"}

	b, err := e.MarshalBinary()
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Error)
	assert.Equal(t, types.ErrFileNotFound, got.ErrorCode)
	assert.Equal(t, "no such file", got.ErrMsg)
}

func TestErrorRejectsUnknownCode(t *testing.T) {
	b := []byte{0, byte(types.OpCodeError), 0, 99, 'x', 0}

	_, err := types.Parse(b)
	require.Error(t, err)
}

func TestOackRoundTrip(t *testing.T) {
	o := types.NewOack(types.Options{types.OptBlksize: 1024, types.OptTsize: 2048})

	b, err := types.Marshal(o)
	require.NoError(t, err)

	pkt, err := types.Parse(b)
	require.NoError(t, err)

	got := pkt.(*types.Oack)
	assert.Equal(t, uint64(1024), got.Options[types.OptBlksize])
	assert.Equal(t, uint64(2048), got.Options[types.OptTsize])
}

func TestOackRejectsUnparseableValue(t *testing.T) {
	b := append([]byte{0, byte(types.OpCodeOack)}, []byte("blksize\x00notanumber\x00")...)

	_, err := types.Parse(b)
	require.Error(t, err)
}

func TestParseRejectsShortDatagram(t *testing.T) {
	_, err := types.Parse([]byte{0})
	require.Error(t, err)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	_, err := types.Parse([]byte{0, 99})
	require.Error(t, err)
}
