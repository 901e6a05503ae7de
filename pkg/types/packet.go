package types

import (
	"bytes"
	"encoding/binary"
	"net"
)

// Packet is implemented by every one of the six TFTP packet types. It
// carries no behavior beyond naming its own opcode: handling lives in
// the session package, which pattern-matches on the concrete type
// rather than dispatching virtually.
type Packet interface {
	OpCode() OpCode
}

func (r *Request) OpCode() OpCode { return r.Opcode }
func (d *Data) OpCode() OpCode    { return d.Opcode }
func (a *Ack) OpCode() OpCode     { return a.Opcode }
func (e *Error) OpCode() OpCode   { return e.Opcode }
func (o *Oack) OpCode() OpCode    { return o.Opcode }

// Envelope pairs a parsed packet with the peer address it was received
// from, keeping the wire codec itself free of any notion of a network
// address.
type Envelope struct {
	Addr   net.Addr
	Packet Packet
}

// Parse classifies a raw datagram by its leading opcode and decodes it
// into the matching concrete type. It never returns a partially
// populated packet: on error the returned Packet is nil.
func Parse(data []byte) (Packet, error) {
	if len(data) < 2 {
		return nil, &ParsingError{Reason: "datagram shorter than opcode"}
	}

	var opcode OpCode
	if err := binary.Read(bytes.NewReader(data[:2]), binary.BigEndian, &opcode); err != nil {
		return nil, &ParsingError{Reason: "cannot read opcode"}
	}

	switch opcode {
	case OpCodeRRQ, OpCodeWRQ:
		var r Request
		if err := r.UnmarshalBinary(data); err != nil {
			return nil, err
		}

		return &r, nil
	case OpCodeDATA:
		var d Data
		if err := d.UnmarshalBinary(data); err != nil {
			return nil, err
		}

		return &d, nil
	case OpCodeACK:
		var a Ack
		if err := a.UnmarshalBinary(data); err != nil {
			return nil, err
		}

		return &a, nil
	case OpCodeError:
		var e Error
		if err := e.UnmarshalBinary(data); err != nil {
			return nil, err
		}

		return &e, nil
	case OpCodeOack:
		var o Oack
		if err := o.UnmarshalBinary(data); err != nil {
			return nil, err
		}

		return &o, nil
	default:
		return nil, &ParsingError{Reason: "unrecognized opcode"}
	}
}

// Marshal encodes any of the six packet types; it exists so callers that
// hold a Packet interface value don't need a type switch just to call
// MarshalBinary.
func Marshal(p Packet) ([]byte, error) {
	type binaryMarshaler interface {
		MarshalBinary() ([]byte, error)
	}

	return p.(binaryMarshaler).MarshalBinary()
}
