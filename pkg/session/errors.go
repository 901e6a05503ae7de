package session

import "errors"

var (
	// ErrRetriesExhausted is returned when a session's retransmission
	// budget (spec: 3 retries) is spent with no reply from the peer.
	ErrRetriesExhausted = errors.New("tftp: retries exhausted, giving up on transfer")

	// ErrStopped is returned when the session observes the shared stop
	// flag and winds down instead of continuing the exchange.
	ErrStopped = errors.New("tftp: session stopped")

	// ErrPeerReportedError is returned when the remote side sends an
	// ERROR packet; the session never answers an ERROR with another
	// packet, it simply terminates.
	ErrPeerReportedError = errors.New("tftp: peer reported an error")

	// ErrProtocolViolation is returned when the session observes a
	// packet that is not legal in its current state (wrong opcode,
	// unexpected block number, oversize payload).
	ErrProtocolViolation = errors.New("tftp: protocol violation")
)
