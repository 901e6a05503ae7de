// Package client is the requester half of the protocol: it resolves a
// server address, negotiates options, and drives a session.Session the
// same way the dispatcher does on the other end, the way the teacher
// implementation's Client bundled dialing and transfer behind a small
// Connector interface for its CLI to drive.
package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jackpal/gateway"
	"github.com/milosgajdos/go-tftp/pkg/fs"
	"github.com/milosgajdos/go-tftp/pkg/session"
	"github.com/milosgajdos/go-tftp/pkg/types"
	"go.uber.org/zap"
)

// Connector is the surface the CLI evaluator drives; Client is its only
// implementation, kept as an interface so the evaluator can be tested
// against a fake.
type Connector interface {
	Connect(addr string) error
	// Get downloads remoteFile from the connected server to localDest.
	Get(ctx context.Context, remoteFile, localDest string) error
	// Put uploads standard input to remoteDest on the connected server,
	// per the client driver's "data source is standard input" contract.
	Put(ctx context.Context, remoteDest string) error
	SetTimeout(timeout uint)
	SetBlockSize(size uint)
	SetTrace()
	Close() error
}

// Client is a stateful TFTP requester: one Connect call fixes the
// server address for every subsequent Get/Put.
type Client struct {
	l          *zap.SugaredLogger
	serverAddr *net.UDPAddr
	timeout    time.Duration
	blockSize  uint
	mode       types.DataMode
	fsImpl     fs.FileSystem
	trace      bool
}

// NewClient builds a Connector using octet mode and the default block
// size and timeout until SetBlockSize/SetTimeout say otherwise.
func NewClient(l *zap.SugaredLogger) Connector {
	return &Client{
		l:         l,
		timeout:   types.DefaultClientTimeout * time.Second,
		blockSize: types.DefaultBlockSize,
		mode:      types.ModeOctet,
		fsImpl:    fs.OSFileSystem{},
	}
}

func (c *Client) SetTimeout(timeout uint) {
	c.timeout = time.Duration(timeout) * time.Second
}

func (c *Client) SetBlockSize(size uint) {
	c.blockSize = size
}

// SetTrace makes every following transfer log the request it is about
// to send (opcode, filename, mode, requested blksize and timeout) at
// info level; the transfer's outcome is not logged by it. Mirrors the rfc1350.c "trace" CLI
// toggle this command set was modeled on.
func (c *Client) SetTrace() {
	c.trace = true
}

// Connect resolves addr ("host:port"). An empty host (":69") falls back
// to the machine's default gateway, the way a
// network boot client reaches the DHCP-advertised TFTP server without
// being told its address explicitly.
func (c *Client) Connect(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("error while parsing address %q: %w", addr, err)
	}

	if host == "" {
		gw, err := gateway.DiscoverGateway()
		if err != nil {
			return fmt.Errorf("error while discovering default gateway: %w", err)
		}

		host = gw.String()
	}

	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("error while resolving %s: %w", addr, err)
	}

	c.serverAddr = udpAddr

	return nil
}

// Get downloads remoteFile from the connected server to localDest on
// disk.
func (c *Client) Get(ctx context.Context, remoteFile, localDest string) error {
	if c.serverAddr == nil {
		return fmt.Errorf("%w: call Connect first", errNotConnected)
	}

	dst, err := c.fsImpl.Create(localDest)
	if err != nil {
		return fmt.Errorf("error while creating local file %q: %w", localDest, err)
	}

	opts := types.Options{
		types.OptBlksize: uint64(c.blockSize),
		types.OptTimeout: uint64(c.timeout / time.Second),
		types.OptTsize:   0,
	}

	req := &types.Request{
		Opcode:   types.OpCodeRRQ,
		Filename: remoteFile,
		Mode:     c.mode.String(),
		Options:  types.FilterRequestOptions(opts),
	}

	return c.run(ctx, req, session.Incoming, nil, dst)
}

// Put uploads standard input to remoteDest on the connected server: per
// the client driver's contract the upload source is always stdin, never
// a local file picked by name.
func (c *Client) Put(ctx context.Context, remoteDest string) error {
	if c.serverAddr == nil {
		return fmt.Errorf("%w: call Connect first", errNotConnected)
	}

	src := stdinReader{os.Stdin}

	// tsize is deliberately omitted: stdin's length isn't known up
	// front, and advertising 0 would misreport an empty upload.
	opts := types.Options{
		types.OptBlksize: uint64(c.blockSize),
		types.OptTimeout: uint64(c.timeout / time.Second),
	}

	req := &types.Request{
		Opcode:   types.OpCodeWRQ,
		Filename: remoteDest,
		Mode:     c.mode.String(),
		Options:  types.FilterWrqOptions(opts),
	}

	return c.run(ctx, req, session.Outgoing, src, nil)
}

// stdinReader adapts os.Stdin to fs.Reader without letting the session's
// cleanup routine close the process's standard input.
type stdinReader struct {
	*os.File
}

func (stdinReader) Close() error { return nil }

func (c *Client) run(ctx context.Context, req *types.Request, direction session.Direction, src fs.Reader, dst fs.Writer) error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("error while binding local socket: %w", err)
	}

	stop := newCtxStop(ctx)
	defer stop.cancel()

	if c.trace {
		c.l.Infof("requesting %s %q mode=%s blksize=%d timeout=%s", req.Opcode, req.Filename, c.mode, c.blockSize, c.timeout)
	}

	sess := session.New(session.Config{
		Conn:           conn,
		Logger:         c.l,
		Stop:           stop,
		Side:           session.ClientSide,
		Direction:      direction,
		ReqOpcode:      req.Opcode,
		Mode:           c.mode,
		PeerAddr:       c.serverAddr,
		PeerLocked:     false,
		Source:         src,
		Dest:           dst,
		BlockSize:      int(c.blockSize),
		InitialTimeout: c.timeout,
	})

	if err := sess.SendRequest(req); err != nil {
		_ = conn.Close()

		return fmt.Errorf("error while sending request: %w", err)
	}

	if err := sess.Run(); err != nil {
		return fmt.Errorf("error while running transfer: %w", err)
	}

	return nil
}

// Close is a no-op: Client holds no long-lived connection between
// transfers, only the resolved server address.
func (c *Client) Close() error {
	return nil
}
