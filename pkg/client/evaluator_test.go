package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConnector struct {
	gotRemote    string
	gotLocal     string
	putFile      string
	connectAddr  string
	timeout      uint
	blockSize    uint
	traceEnabled bool
}

func (f *fakeConnector) Connect(addr string) error {
	f.connectAddr = addr

	return nil
}

func (f *fakeConnector) Get(_ context.Context, remoteFile, localDest string) error {
	f.gotRemote = remoteFile
	f.gotLocal = localDest

	return nil
}

func (f *fakeConnector) Put(_ context.Context, remoteDest string) error {
	f.putFile = remoteDest

	return nil
}

func (f *fakeConnector) SetTimeout(timeout uint) { f.timeout = timeout }
func (f *fakeConnector) SetBlockSize(size uint)  { f.blockSize = size }
func (f *fakeConnector) SetTrace()               { f.traceEnabled = true }
func (f *fakeConnector) Close() error            { return nil }

func TestEvaluatorGet(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "get boot.img"
	done, err := e.evaluate()

	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "boot.img", fc.gotRemote)
	assert.Equal(t, "boot.img", fc.gotLocal)
}

func TestEvaluatorPut(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "put image.bin"
	_, err := e.evaluate()

	require.NoError(t, err)
	assert.Equal(t, "image.bin", fc.putFile)
}

func TestEvaluatorConnect(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "connect 10.0.0.1 69"
	_, err := e.evaluate()

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:69", fc.connectAddr)
}

func TestEvaluatorTimeout(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "timeout 10"
	_, err := e.evaluate()

	require.NoError(t, err)
	assert.EqualValues(t, 10, fc.timeout)
}

func TestEvaluatorBlksize(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "blksize 1024"
	_, err := e.evaluate()

	require.NoError(t, err)
	assert.EqualValues(t, 1024, fc.blockSize)
}

func TestEvaluatorQuit(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "quit"
	done, err := e.evaluate()

	require.NoError(t, err)
	assert.True(t, done)
}

func TestEvaluatorUnknownCommand(t *testing.T) {
	fc := &fakeConnector{}
	e := NewEvaluator(zap.NewNop().Sugar(), fc)

	e.line = "frobnicate"
	_, err := e.evaluate()

	require.Error(t, err)
}
