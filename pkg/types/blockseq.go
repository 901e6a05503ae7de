package types

// CompareBlock performs a modular comparison of a received block number
// against the block the receiver currently expects, using 16-bit
// wraparound arithmetic rather than plain equality: it returns 0 when
// got is the expected block, a negative value when got is an older,
// already-acknowledged block (a duplicate retransmission to be ignored
// silently), and a positive value when got is any other, unexpected
// block (a protocol violation answered with ErrIllegalTftpOp).
func CompareBlock(expected, got uint16) int {
	return int(int16(got - expected))
}

// IsDuplicateBlock reports whether got is a retransmission of a block
// already accepted, given the block currently expected.
func IsDuplicateBlock(expected, got uint16) bool {
	return CompareBlock(expected, got) < 0
}

// IsExpectedBlock reports whether got is exactly the block the receiver
// is waiting for.
func IsExpectedBlock(expected, got uint16) bool {
	return CompareBlock(expected, got) == 0
}
