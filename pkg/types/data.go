package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Data is a DATA packet: a 16-bit block number and 0..blksize bytes of
// payload. A payload shorter than the negotiated block size marks the
// final block of the transfer.
type Data struct {
	Payload  []byte
	BlockNum uint16
	Opcode   OpCode
}

func (d *Data) MarshalBinary() ([]byte, error) {
	if len(d.Payload) > MaxPayloadSize {
		return nil, &ParsingError{Reason: "payload exceeds maximum block size"}
	}

	b := new(bytes.Buffer)
	dataLen := 2 + 2 + len(d.Payload)
	b.Grow(dataLen)

	if err := binary.Write(b, binary.BigEndian, &d.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if err := binary.Write(b, binary.BigEndian, &d.BlockNum); err != nil {
		return nil, fmt.Errorf("error while writing block#: %w", err)
	}

	if _, err := b.Write(d.Payload); err != nil {
		return nil, fmt.Errorf("error while writing payload: %w", err)
	}

	return b.Bytes(), nil
}

func (d *Data) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return &ParsingError{Reason: "data packet shorter than header"}
	}

	b := bytes.NewBuffer(data)

	if err := binary.Read(b, binary.BigEndian, &d.Opcode); err != nil {
		return fmt.Errorf("error while reading opcode: %w", err)
	}

	if d.Opcode != OpCodeDATA {
		return &ParsingError{Reason: "not a data opcode"}
	}

	if err := binary.Read(b, binary.BigEndian, &d.BlockNum); err != nil {
		return fmt.Errorf("error while reading block#: %w", err)
	}

	d.Payload = data[4:]

	return nil
}
