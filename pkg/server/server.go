// Package server implements the dispatcher half of the protocol: a
// listening socket that turns each inbound RRQ/WRQ into its own
// ephemeral-socket session, the way the teacher implementation's
// tftp.Server spun up one per-request goroutine off a shared listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/milosgajdos/go-tftp/internal/audit"
	"github.com/milosgajdos/go-tftp/pkg/fs"
	"github.com/milosgajdos/go-tftp/pkg/session"
	"github.com/milosgajdos/go-tftp/pkg/types"
	"go.uber.org/zap"
)

// pollInterval bounds how long ListenAndServe blocks between checks of
// the stop flag, so shutdown is observed promptly without busy-looping.
const pollInterval = 500 * time.Millisecond

// Server is the dispatcher: it owns the well-known listening socket and
// the root directory every request is confined to.
type Server struct {
	port           string
	rootDir        string
	logger         *zap.SugaredLogger
	stop           session.StopFlag
	fsImpl         fs.FileSystem
	audit          *audit.Logger
	initialTimeout time.Duration

	conn net.PacketConn
	wg   sync.WaitGroup
}

// New builds a dispatcher listening on port, serving files rooted at
// rootDir. auditLogger may be nil, in which case transfer outcomes are
// only logged, never persisted.
func New(logger *zap.SugaredLogger, port, rootDir string, readTimeout uint, auditLogger *audit.Logger, stop session.StopFlag) *Server {
	return &Server{
		port:           port,
		rootDir:        rootDir,
		logger:         logger,
		fsImpl:         fs.OSFileSystem{},
		audit:          auditLogger,
		initialTimeout: time.Duration(readTimeout) * time.Second,
		stop:           stop,
	}
}

// ListenAndServe binds the listening socket and accepts requests until
// Close is called or the shared stop flag is set.
func (s *Server) ListenAndServe() error {
	lc := net.ListenConfig{Control: reusePortControl()}

	conn, err := lc.ListenPacket(context.Background(), "udp", net.JoinHostPort("", s.port))
	if err != nil {
		return fmt.Errorf("%w: %w", errStartingServer, err)
	}

	s.conn = conn

	buf := make([]byte, types.DatagramSize)

	for {
		if s.stop.Stopped() {
			break
		}

		if err := conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("error while setting read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if s.stop.Stopped() || errors.Is(err, net.ErrClosed) {
				break
			}

			s.logger.Errorf("error while reading request datagram: %s", err.Error())

			continue
		}

		datagram := append([]byte(nil), buf[:n]...)

		s.wg.Add(1)

		go func(addr net.Addr, datagram []byte) {
			defer s.wg.Done()

			s.handleRequest(addr, datagram)
		}(addr, datagram)
	}

	s.wg.Wait()

	return nil
}

// Close stops accepting new requests and releases the listening socket.
// In-flight sessions run to their own completion on their own sockets.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("error while closing listening socket: %w", err)
	}

	return nil
}

func (s *Server) handleRequest(addr net.Addr, datagram []byte) {
	pkt, err := types.Parse(datagram)
	if err != nil {
		s.logger.Debugf("rejecting unparseable datagram from %s: %s", addr, err.Error())

		if serr := session.SendErrorAndAbort(s.conn, addr, types.ErrIllegalTftpOp, "malformed packet"); serr != nil {
			s.logger.Errorf("error while replying to %s: %s", addr, serr.Error())
		}

		return
	}

	req, ok := pkt.(*types.Request)
	if !ok {
		s.logger.Debugf("rejecting non-request opcode %d from %s", pkt.OpCode(), addr)

		if serr := session.SendErrorAndAbort(s.conn, addr, types.ErrIllegalTftpOp, "expected read or write request"); serr != nil {
			s.logger.Errorf("error while replying to %s: %s", addr, serr.Error())
		}

		return
	}

	reqConn, err := s.bindSessionSocket()
	if err != nil {
		s.logger.Errorf("error while binding session socket for %s: %s", addr, err.Error())

		return
	}

	path, err := resolvePath(s.rootDir, req.Filename)
	if err != nil {
		s.logger.Warnf("rejecting request for %q from %s: %s", req.Filename, addr, err.Error())
		sendErrorAndClose(reqConn, addr, types.ErrAccessViolation, "access violation")

		return
	}

	mode, _ := types.ParseDataMode(req.Mode)

	switch req.Opcode {
	case types.OpCodeRRQ:
		s.startRRQ(reqConn, addr, req, path, mode)
	case types.OpCodeWRQ:
		s.startWRQ(reqConn, addr, req, path, mode)
	default:
		sendErrorAndClose(reqConn, addr, types.ErrIllegalTftpOp, "expected read or write request")
	}
}

func (s *Server) bindSessionSocket() (net.PacketConn, error) {
	lc := net.ListenConfig{Control: reusePortControl()}

	conn, err := lc.ListenPacket(context.Background(), "udp", net.JoinHostPort("", "0"))
	if err != nil {
		return nil, fmt.Errorf("error while binding ephemeral session socket: %w", err)
	}

	return conn, nil
}

func (s *Server) startRRQ(conn net.PacketConn, addr net.Addr, req *types.Request, path string, mode types.DataMode) {
	exists, size, err := s.fsImpl.Stat(path)
	if err != nil || !exists {
		sendErrorAndClose(conn, addr, types.ErrFileNotFound, "file not found")

		return
	}

	src, err := s.fsImpl.Open(path)
	if err != nil {
		sendErrorAndClose(conn, addr, types.ErrAccessViolation, "error while opening file")

		return
	}

	opts := types.FilterOackOptions(req.Options)
	if _, ok := req.Options[types.OptTsize]; ok {
		opts[types.OptTsize] = uint64(size)
	}

	sess := session.New(session.Config{
		Conn:           conn,
		Logger:         s.logger,
		Stop:           s.stop,
		Side:           session.ServerSide,
		Direction:      session.Outgoing,
		ReqOpcode:      types.OpCodeRRQ,
		Mode:           mode,
		PeerAddr:       addr,
		PeerLocked:     true,
		Source:         src,
		BlockSize:      types.DefaultBlockSize,
		InitialTimeout: s.initialTimeout,
		OnTerminal:     s.onTerminal(addr, req.Filename, "RRQ"),
	})

	sess.ApplyOptions(opts)

	var startErr error
	if len(opts) > 0 {
		startErr = sess.SendInitialOack(opts)
	} else {
		startErr = sess.SendFirstData()
	}

	s.runSession(sess, startErr, conn)
}

func (s *Server) startWRQ(conn net.PacketConn, addr net.Addr, req *types.Request, path string, mode types.DataMode) {
	exists, _, err := s.fsImpl.Stat(path)
	if err != nil {
		sendErrorAndClose(conn, addr, types.ErrNotDefined, "error while checking destination")

		return
	}

	if exists {
		sendErrorAndClose(conn, addr, types.ErrFileAlreadyExists, "file already exists")

		return
	}

	if tsize, ok := req.Options[types.OptTsize]; ok && tsize > 0 {
		if free, err := s.fsImpl.FreeBytes(s.rootDir); err == nil && tsize > free {
			sendErrorAndClose(conn, addr, types.ErrDiskFull, "insufficient space for declared tsize")

			return
		}
	}

	dst, err := s.fsImpl.Create(path)
	if err != nil {
		sendErrorAndClose(conn, addr, types.ErrAccessViolation, "error while creating destination file")

		return
	}

	opts := types.FilterOackOptions(req.Options)

	sess := session.New(session.Config{
		Conn:           conn,
		Logger:         s.logger,
		Stop:           s.stop,
		Side:           session.ServerSide,
		Direction:      session.Incoming,
		ReqOpcode:      types.OpCodeWRQ,
		Mode:           mode,
		PeerAddr:       addr,
		PeerLocked:     true,
		Dest:           dst,
		BlockSize:      types.DefaultBlockSize,
		InitialTimeout: s.initialTimeout,
		OnTerminal:     s.onTerminal(addr, req.Filename, "WRQ"),
	})

	sess.ApplyOptions(opts)

	var startErr error
	if len(opts) > 0 {
		startErr = sess.SendInitialOack(opts)
	} else {
		startErr = sess.SendAckZero()
	}

	s.runSession(sess, startErr, conn)
}

func (s *Server) runSession(sess *session.Session, startErr error, conn net.PacketConn) {
	if startErr != nil {
		s.logger.Errorf("error while starting session: %s", startErr.Error())
		_ = conn.Close()

		return
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := sess.Run(); err != nil {
			s.logger.Debugf("session ended: %s", err.Error())
		}
	}()
}

func (s *Server) onTerminal(addr net.Addr, filename, opcode string) func(success bool, err error) {
	return func(success bool, err error) {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}

		s.logger.Infow("transfer finished", "peer", addr.String(), "file", filename, "opcode", opcode, "success", success, "detail", detail)

		if s.audit != nil {
			if rerr := s.audit.Record(addr.String(), filename, opcode, success, detail); rerr != nil {
				s.logger.Errorf("error while recording audit entry: %s", rerr.Error())
			}
		}
	}
}
