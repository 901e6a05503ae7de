package server

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/milosgajdos/go-tftp/pkg/session"
	"github.com/milosgajdos/go-tftp/pkg/types"
)

// reusePortControl lets the listening socket rebind its port
// immediately across a quick restart instead of waiting out TIME_WAIT,
// the same SO_REUSEPORT control function the teacher implementation
// used to let per-request sockets share the listener's port.
func reusePortControl() func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error

		err := c.Control(func(fd uintptr) {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}

		return opErr
	}
}

func sendErrorAndClose(conn net.PacketConn, addr net.Addr, code types.ErrCode, msg string) {
	_ = session.SendErrorAndAbort(conn, addr, code, msg)
	_ = conn.Close()
}
