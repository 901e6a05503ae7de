package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/milosgajdos/go-tftp/pkg/fs"
	"github.com/milosgajdos/go-tftp/pkg/types"
	"go.uber.org/zap"
)

// StopFlag is the narrow, process-wide signal the session core polls at
// the top of every loop iteration; the real implementation lives in
// internal/stopflag and is set by the SIGINT handler.
type StopFlag interface {
	Stopped() bool
}

// Config bundles everything a Session needs at construction time. The
// server dispatcher and the client driver each build one of these after
// doing their own role-specific bootstrap (validating the requested
// file, negotiating which options to offer) and then hand control to
// Run.
type Config struct {
	Conn      net.PacketConn
	Logger    *zap.SugaredLogger
	Stop      StopFlag
	Side      Side
	Direction Direction
	ReqOpcode types.OpCode
	Mode      types.DataMode

	// PeerAddr is the address this session sends to. For a server
	// session it is already the client's locked TID. For a client
	// session it is the server's well-known or configured address; the
	// real TID (the server's ephemeral reply port) is locked on the
	// first datagram received.
	PeerAddr net.Addr
	// PeerLocked is true for server sessions (the TID is the client's
	// request source, known immediately) and false for client sessions
	// (the TID is learned from the first reply).
	PeerLocked bool

	// Source supplies bytes for an Outgoing session; Dest receives
	// bytes for an Incoming session. Exactly one of the two is set.
	Source fs.Reader
	Dest   fs.Writer

	BlockSize      int
	InitialTimeout time.Duration

	// OnTerminal, if set, is invoked once with the final success/failure
	// outcome as the session exits, letting a caller (e.g. the
	// dispatcher's audit log) observe completion without subclassing
	// Session.
	OnTerminal func(success bool, err error)
}

// Session drives one transfer end to end. It is not safe for concurrent
// use: the server and client both run exactly one Session per
// goroutine, per spec's "single-threaded cooperative within its task"
// concurrency model.
type Session struct {
	conn   net.PacketConn
	logger *zap.SugaredLogger
	stop   StopFlag

	side      Side
	direction Direction
	reqOpcode types.OpCode
	mode      types.DataMode

	peerAddr net.Addr
	locked   bool

	state   State
	lastErr error

	blockSize      int
	timeout        time.Duration
	initialTimeout time.Duration
	tsize          *uint64

	retries int

	// block is the last block written (Incoming) or the last block sent
	// and awaiting its ACK (Outgoing).
	block    uint16
	lastSent types.Packet

	// req is the original RRQ/WRQ the client sent, kept around so an
	// ERROR(8) reply to it can be resent stripped of every option.
	req *types.Request

	src fs.Reader
	dst fs.Writer

	decoder  types.NetasciiDecoder
	encoder  types.NetasciiEncoder
	encCarry []byte
	srcEOF   bool

	onTerminal func(success bool, err error)
}

func New(cfg Config) *Session {
	blockSize := cfg.BlockSize
	if blockSize == 0 {
		blockSize = types.DefaultBlockSize
	}

	initTimeout := cfg.InitialTimeout
	if initTimeout == 0 {
		initTimeout = types.DefaultClientTimeout * time.Second
	}

	return &Session{
		conn:           cfg.Conn,
		logger:         cfg.Logger,
		stop:           cfg.Stop,
		side:           cfg.Side,
		direction:      cfg.Direction,
		reqOpcode:      cfg.ReqOpcode,
		mode:           cfg.Mode,
		peerAddr:       cfg.PeerAddr,
		locked:         cfg.PeerLocked,
		blockSize:      blockSize,
		timeout:        initTimeout,
		initialTimeout: initTimeout,
		src:            cfg.Source,
		dst:            cfg.Dest,
		onTerminal:     cfg.OnTerminal,
	}
}

// ApplyOptions activates the negotiated option values: blksize becomes
// the segment ceiling, timeout becomes the initial and current receive
// timeout, tsize is kept for informational logging only.
func (s *Session) ApplyOptions(opts types.Options) {
	if v, ok := opts[types.OptBlksize]; ok {
		s.blockSize = int(v)
	}

	if v, ok := opts[types.OptTimeout]; ok {
		s.initialTimeout = time.Duration(v) * time.Second
		s.timeout = s.initialTimeout
	}

	if v, ok := opts[types.OptTsize]; ok {
		tsize := v
		s.tsize = &tsize
	}
}

// SendRequest is used only by the client driver: it marshals and sends
// the initial RRQ/WRQ and sets the starting state, entering WaitingOack
// when options were requested or Initial (awaiting the counterpart's
// first DATA/ACK) otherwise.
func (s *Session) SendRequest(req *types.Request) error {
	if err := s.send(req, true); err != nil {
		return err
	}

	s.req = req

	if len(req.Options) > 0 {
		s.state = WaitingOack
	} else {
		s.state = Initial
	}

	return nil
}

// SendInitialOack is used only by the server dispatcher, after it has
// decided to honor one or more options: it sends the OACK and moves to
// WaitingAfterOack.
func (s *Session) SendInitialOack(opts types.Options) error {
	if err := s.send(types.NewOack(opts), true); err != nil {
		return err
	}

	s.state = WaitingAfterOack

	return nil
}

// SendAckZero is used only by the server dispatcher answering a WRQ
// with no options: it acknowledges block 0 and moves to WaitingData.
func (s *Session) SendAckZero() error {
	if err := s.send(&types.Ack{Opcode: types.OpCodeACK, BlockNum: 0}, true); err != nil {
		return err
	}

	s.state = WaitingData

	return nil
}

// SendFirstData is used only by the server dispatcher answering an RRQ
// with no options: it reads and sends block 1.
func (s *Session) SendFirstData() error {
	return s.sendNextDataBlock()
}

// SendErrorAndAbort fires a terminal ERROR packet straight to the peer
// without touching the retransmission buffer, for use by callers that
// reject a request before a Session's steady-state loop even starts
// (file not found, access violation, file exists, disk full).
func SendErrorAndAbort(conn net.PacketConn, addr net.Addr, code types.ErrCode, msg string) error {
	pkt := &types.Error{Opcode: types.OpCodeError, ErrorCode: code, ErrMsg: msg}

	b, err := pkt.MarshalBinary()
	if err != nil {
		return fmt.Errorf("error while marshalling error packet: %w", err)
	}

	if _, err := conn.WriteTo(b, addr); err != nil {
		return fmt.Errorf("error while sending error packet: %w", err)
	}

	return nil
}

// Run executes the receive/classify/transition/send loop until the
// session reaches a terminal state, then releases every resource it
// owns unconditionally.
func (s *Session) Run() error {
	defer s.finalize()

	for !s.state.Terminal() {
		if s.stop.Stopped() {
			s.handleStop()

			break
		}

		s.step()
	}

	return s.lastErr
}

func (s *Session) handleStop() {
	if s.side == ServerSide {
		s.sendNoRetransmit(&types.Error{Opcode: types.OpCodeError, ErrorCode: types.ErrNotDefined, ErrMsg: "Server shutdown"})
	}

	s.state = Error
	s.lastErr = ErrStopped
}

func (s *Session) step() {
	switch s.state {
	case Initial:
		s.stepInitial()
	case WaitingOack:
		s.stepWaitingOack()
	case WaitingAfterOack:
		s.stepWaitingAfterOack()
	case WaitingAck, WaitingLastAck:
		s.stepWaitingAck()
	case WaitingData:
		s.stepWaitingData()
	default:
		s.state = Error
		s.lastErr = fmt.Errorf("%w: unreachable state %s", ErrProtocolViolation, s.state)
	}
}

func (s *Session) stepInitial() {
	pkt, err := s.receive()
	if err != nil {
		s.fail(err)

		return
	}

	switch s.direction {
	case Incoming:
		d, ok := pkt.(*types.Data)
		if !ok {
			s.unexpected(pkt, "expected first data block")

			return
		}

		s.handleIncomingData(d)
	case Outgoing:
		a, ok := pkt.(*types.Ack)
		if !ok || a.BlockNum != 0 {
			s.unexpected(pkt, "expected ack 0")

			return
		}

		s.sendNextDataBlockOrFail()
	}
}

func (s *Session) stepWaitingOack() {
	pkt, err := s.receive()
	if err != nil {
		s.fail(err)

		return
	}

	switch p := pkt.(type) {
	case *types.Oack:
		s.ApplyOptions(p.Options)

		switch s.direction {
		case Incoming:
			if err := s.send(&types.Ack{Opcode: types.OpCodeACK, BlockNum: 0}, true); err != nil {
				s.fail(err)

				return
			}

			s.state = WaitingData
		case Outgoing:
			s.sendNextDataBlockOrFail()
		}
	case *types.Data:
		if s.direction != Incoming {
			s.unexpected(pkt, "unexpected data while waiting for oack")

			return
		}

		s.handleIncomingData(p)
	case *types.Ack:
		if s.direction != Outgoing || p.BlockNum != 0 {
			s.unexpected(pkt, "unexpected ack while waiting for oack")

			return
		}

		s.sendNextDataBlockOrFail()
	case *types.Error:
		if p.ErrorCode == types.ErrInvalidOptions {
			if err := s.resendRequestWithoutOptions(); err != nil {
				s.fail(err)
			}

			return
		}

		s.peerError(p)
	default:
		s.unexpected(pkt, "unexpected packet while waiting for oack")
	}
}

// resendRequestWithoutOptions implements the WaitingOack + ERROR(8)
// transition: the peer rejected the negotiated options outright, so the
// request is resent with none at all and the session falls back to
// unnegotiated defaults, the same way SendRequest starts an option-free
// transfer.
func (s *Session) resendRequestWithoutOptions() error {
	if s.req == nil {
		return fmt.Errorf("%w: no original request to resend", ErrProtocolViolation)
	}

	s.req.Options = nil
	s.tsize = nil
	s.blockSize = types.DefaultBlockSize
	s.initialTimeout = types.DefaultClientTimeout * time.Second
	s.timeout = s.initialTimeout
	s.retries = 0

	if err := s.send(s.req, true); err != nil {
		return err
	}

	s.state = Initial

	return nil
}

func (s *Session) stepWaitingAfterOack() {
	pkt, err := s.receive()
	if err != nil {
		s.fail(err)

		return
	}

	switch p := pkt.(type) {
	case *types.Ack:
		if s.direction != Outgoing || p.BlockNum != 0 {
			s.unexpected(pkt, "unexpected ack after oack")

			return
		}

		s.sendNextDataBlockOrFail()
	case *types.Data:
		if s.direction != Incoming {
			s.unexpected(pkt, "unexpected data after oack")

			return
		}

		s.handleIncomingData(p)
	default:
		s.unexpected(pkt, "unexpected packet after oack")
	}
}

func (s *Session) stepWaitingAck() {
	pkt, err := s.receive()
	if err != nil {
		s.fail(err)

		return
	}

	switch p := pkt.(type) {
	case *types.Ack:
		s.handleAck(p)
	case *types.Error:
		s.peerError(p)
	default:
		s.unexpected(pkt, "expected ack")
	}
}

func (s *Session) stepWaitingData() {
	pkt, err := s.receive()
	if err != nil {
		s.fail(err)

		return
	}

	switch p := pkt.(type) {
	case *types.Data:
		s.handleIncomingData(p)
	case *types.Error:
		s.peerError(p)
	default:
		s.unexpected(pkt, "expected data")
	}
}

// handleIncomingData is the shared receiver-side transition used from
// Initial (client RRQ), WaitingAfterOack (server WRQ), and WaitingData:
// validate the block number and payload size, translate and write the
// payload, ACK it, and move to the next state.
func (s *Session) handleIncomingData(d *types.Data) {
	expected := s.block + 1

	switch {
	case types.IsDuplicateBlock(expected, d.BlockNum):
		// A retransmission of a block we already wrote and ACKed; the
		// expected-block counter does not move and we send nothing.
		return
	case !types.IsExpectedBlock(expected, d.BlockNum):
		s.protocolError(types.ErrIllegalTftpOp, "unexpected data block number")

		return
	}

	if len(d.Payload) > s.blockSize {
		s.protocolError(types.ErrIllegalTftpOp, "data payload exceeds negotiated block size")

		return
	}

	payload := d.Payload
	if s.mode == types.ModeNetascii {
		payload = s.decoder.Decode(nil, d.Payload)
	}

	if _, err := s.dst.Write(payload); err != nil {
		s.protocolError(types.ErrDiskFull, "error while writing received block")

		return
	}

	s.block = d.BlockNum

	final := len(d.Payload) < s.blockSize

	if final && s.mode == types.ModeNetascii {
		if tail := s.decoder.Flush(nil); len(tail) > 0 {
			if _, err := s.dst.Write(tail); err != nil {
				s.protocolError(types.ErrDiskFull, "error while flushing trailing netascii byte")

				return
			}
		}
	}

	if err := s.send(&types.Ack{Opcode: types.OpCodeACK, BlockNum: d.BlockNum}, true); err != nil {
		s.fail(err)

		return
	}

	if final {
		s.state = s.finalState()
	} else {
		s.state = WaitingData
	}
}

// handleAck is the sender-side transition used from WaitingAck and
// WaitingLastAck: validate the ACKed block and either send the next
// block or finish.
func (s *Session) handleAck(a *types.Ack) {
	switch {
	case types.IsDuplicateBlock(s.block, a.BlockNum):
		return
	case !types.IsExpectedBlock(s.block, a.BlockNum):
		s.protocolError(types.ErrIllegalTftpOp, "unexpected ack block number")

		return
	}

	if s.state == WaitingLastAck {
		s.state = s.finalState()

		return
	}

	s.sendNextDataBlockOrFail()
}

func (s *Session) sendNextDataBlockOrFail() {
	if err := s.sendNextDataBlock(); err != nil {
		s.protocolError(types.ErrDiskFull, "error while reading next block")
	}
}

func (s *Session) sendNextDataBlock() error {
	payload, final, err := s.readBlock()
	if err != nil {
		return err
	}

	block := s.block + 1

	if err := s.send(&types.Data{Opcode: types.OpCodeDATA, BlockNum: block, Payload: payload}, true); err != nil {
		s.fail(err)

		return nil
	}

	s.block = block

	if final {
		s.state = WaitingLastAck
	} else {
		s.state = WaitingAck
	}

	return nil
}

func (s *Session) finalState() State {
	if s.reqOpcode == types.OpCodeRRQ {
		return RrqEnd
	}

	return WrqEnd
}

func (s *Session) readBlock() ([]byte, bool, error) {
	if s.mode == types.ModeOctet {
		return s.readOctetBlock()
	}

	return s.readNetasciiBlock()
}

func (s *Session) readOctetBlock() ([]byte, bool, error) {
	buf := make([]byte, s.blockSize)

	n, err := io.ReadFull(s.src, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, false, fmt.Errorf("error while reading source block: %w", err)
	}

	return buf[:n], n < s.blockSize, nil
}

func (s *Session) readNetasciiBlock() ([]byte, bool, error) {
	out := s.encCarry
	s.encCarry = nil

	raw := make([]byte, s.blockSize)

	for len(out) < s.blockSize && !s.srcEOF {
		n, err := s.src.Read(raw)
		if n > 0 {
			out = s.encoder.Encode(out, raw[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.srcEOF = true

				break
			}

			return nil, false, fmt.Errorf("error while reading source block: %w", err)
		}

		if n == 0 {
			s.srcEOF = true
		}
	}

	final := s.srcEOF

	if len(out) > s.blockSize {
		s.encCarry = append([]byte(nil), out[s.blockSize:]...)
		out = out[:s.blockSize]
		final = false
	}

	return out, final, nil
}

// receive blocks for the current timeout, re-sending the last recorded
// packet and doubling the timeout on every expiry, up to MaxRetries. A
// datagram from a source whose port does not match the locked TID
// elicits an out-of-band ErrUnknownTransferId reply and does not affect
// this session's state.
func (s *Session) receive() (types.Packet, error) {
	buf := make([]byte, types.DatagramSize)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return nil, fmt.Errorf("error while setting read deadline: %w", err)
		}

		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.retries++

				if s.retries > types.MaxRetries {
					return nil, ErrRetriesExhausted
				}

				if s.lastSent != nil {
					_ = s.resend()
				}

				s.timeout *= types.BackoffFactor

				continue
			}

			return nil, fmt.Errorf("error while reading datagram: %w", err)
		}

		if s.locked && !samePort(addr, s.peerAddr) {
			s.logger.Debugf("dropping datagram from stray tid %s, session tid is %s", addr, s.peerAddr)
			_ = SendErrorAndAbort(s.conn, addr, types.ErrUnknownTransferId, "unknown transfer id")

			continue
		}

		if !s.locked {
			s.peerAddr = addr
			s.locked = true
		}

		pkt, perr := types.Parse(buf[:n])
		if perr != nil {
			return nil, perr
		}

		s.retries = 0
		s.timeout = s.initialTimeout

		return pkt, nil
	}
}

func samePort(a, b net.Addr) bool {
	ua, aok := a.(*net.UDPAddr)
	ub, bok := b.(*net.UDPAddr)

	if aok && bok {
		return ua.Port == ub.Port
	}

	return a.String() == b.String()
}

func (s *Session) send(pkt types.Packet, storeForRetransmit bool) error {
	b, err := types.Marshal(pkt)
	if err != nil {
		return fmt.Errorf("error while marshalling packet: %w", err)
	}

	if _, err := s.conn.WriteTo(b, s.peerAddr); err != nil {
		return fmt.Errorf("error while sending packet: %w", err)
	}

	if storeForRetransmit {
		s.lastSent = pkt
	}

	return nil
}

func (s *Session) resend() error {
	b, err := types.Marshal(s.lastSent)
	if err != nil {
		return fmt.Errorf("error while marshalling packet for retransmission: %w", err)
	}

	if _, err := s.conn.WriteTo(b, s.peerAddr); err != nil {
		return fmt.Errorf("error while retransmitting packet: %w", err)
	}

	return nil
}

// sendNoRetransmit fires an ERROR packet and deliberately does not
// touch the retransmission buffer: ERROR packets are fire-and-forget
// terminal signals, never retried.
func (s *Session) sendNoRetransmit(pkt *types.Error) {
	b, err := pkt.MarshalBinary()
	if err != nil {
		s.logger.Errorf("error while marshalling error packet: %s", err.Error())

		return
	}

	if _, err := s.conn.WriteTo(b, s.peerAddr); err != nil {
		s.logger.Errorf("error while sending error packet: %s", err.Error())
	}
}

func (s *Session) protocolError(code types.ErrCode, reason string) {
	s.sendNoRetransmit(&types.Error{Opcode: types.OpCodeError, ErrorCode: code, ErrMsg: reason})
	s.state = Error
	s.lastErr = fmt.Errorf("%w: %s", ErrProtocolViolation, reason)
}

func (s *Session) unexpected(pkt types.Packet, reason string) {
	opcode := types.OpCode(0)
	if pkt != nil {
		opcode = pkt.OpCode()
	}

	s.logger.Errorf("%s (got opcode %d)", reason, opcode)
	s.protocolError(types.ErrIllegalTftpOp, reason)
}

func (s *Session) peerError(e *types.Error) {
	s.logger.Errorf("peer reported error %d: %s", e.ErrorCode, e.ErrMsg)
	s.state = Error
	s.lastErr = fmt.Errorf("%w: %d %s", ErrPeerReportedError, e.ErrorCode, e.ErrMsg)
}

// fail terminates the session on a receive-side error. A malformed
// datagram or an unparseable option is a wire/protocol error (spec
// category 1): the peer gets an ERROR reply before the session gives up.
// A timeout/retry exhaustion or a local socket failure is environmental
// and gets no reply - there's nobody left to usefully send one to.
func (s *Session) fail(err error) {
	var perr *types.ParsingError

	var operr *types.OptionError

	switch {
	case errors.As(err, &perr):
		s.sendNoRetransmit(&types.Error{Opcode: types.OpCodeError, ErrorCode: types.ErrIllegalTftpOp, ErrMsg: perr.Error()})
	case errors.As(err, &operr):
		s.sendNoRetransmit(&types.Error{Opcode: types.OpCodeError, ErrorCode: types.ErrInvalidOptions, ErrMsg: operr.Error()})
	}

	s.state = Error
	s.lastErr = err
}

func (s *Session) finalize() {
	success := s.state == RrqEnd || s.state == WrqEnd

	if s.dst != nil {
		if success {
			if err := s.dst.Close(); err != nil {
				s.logger.Errorf("error while closing destination: %s", err.Error())
			}
		} else if err := s.dst.Abort(); err != nil {
			s.logger.Errorf("error while removing partial destination: %s", err.Error())
		}
	}

	if s.src != nil {
		if err := s.src.Close(); err != nil {
			s.logger.Errorf("error while closing source: %s", err.Error())
		}
	}

	if err := s.conn.Close(); err != nil {
		s.logger.Errorf("error while closing session socket: %s", err.Error())
	}

	if s.onTerminal != nil {
		s.onTerminal(success, s.lastErr)
	}
}
