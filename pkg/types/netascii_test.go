package types_test

import (
	"testing"

	"github.com/milosgajdos/go-tftp/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNetasciiEncodeDecodeRoundTrip(t *testing.T) {
	var enc types.NetasciiEncoder

	wire := enc.Encode(nil, []byte("line one\nline two\r"))

	var dec types.NetasciiDecoder

	out := dec.Decode(nil, wire)
	out = dec.Flush(out)

	assert.Equal(t, []byte("line one\nline two\r"), out)
}

func TestNetasciiDecodeCRLFSplitAcrossCalls(t *testing.T) {
	var dec types.NetasciiDecoder

	out := dec.Decode(nil, []byte("abc\r"))
	out = dec.Decode(out, []byte("\ndef"))

	assert.Equal(t, []byte("abc\ndef"), out)
}

func TestNetasciiDecodeCRNulSplitAcrossCalls(t *testing.T) {
	var dec types.NetasciiDecoder

	out := dec.Decode(nil, []byte("abc\r"))
	out = dec.Decode(out, []byte{0, 'd'})

	assert.Equal(t, []byte("abc\rd"), out)
}

func TestNetasciiEncodeCR(t *testing.T) {
	var enc types.NetasciiEncoder

	out := enc.Encode(nil, []byte("a\rb"))
	assert.Equal(t, []byte{'a', '\r', 0, 'b'}, out)
}
