package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Oack is the Option Acknowledgement packet: the subset of a request's
// options the server accepts, with the values it accepts them at.
type Oack struct {
	Opcode  OpCode
	Options Options
}

func NewOack(options Options) *Oack {
	return &Oack{Opcode: OpCodeOack, Options: options}
}

func (o *Oack) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	b.Grow(2)

	if err := binary.Write(b, binary.BigEndian, &o.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	for name, value := range o.Options {
		if _, err := b.WriteString(name); err != nil {
			return nil, fmt.Errorf("error while writing option name: %w", err)
		}

		if err := b.WriteByte(0); err != nil {
			return nil, fmt.Errorf("error while writing null byte after option name: %w", err)
		}

		if _, err := b.WriteString(strconv.FormatUint(value, 10)); err != nil {
			return nil, fmt.Errorf("error while writing option value: %w", err)
		}

		if err := b.WriteByte(0); err != nil {
			return nil, fmt.Errorf("error while writing null byte after option value: %w", err)
		}
	}

	return b.Bytes(), nil
}

func (o *Oack) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return &ParsingError{Reason: "oack packet shorter than opcode"}
	}

	b := bytes.NewBuffer(data)

	if err := binary.Read(b, binary.BigEndian, &o.Opcode); err != nil {
		return fmt.Errorf("error while reading opcode: %w", err)
	}

	if o.Opcode != OpCodeOack {
		return &ParsingError{Reason: "not an oack opcode"}
	}

	fields, err := readNulFields(b)
	if err != nil {
		return err
	}

	opts, err := splitOptionPairs(fields, true)
	if err != nil {
		return err
	}

	o.Options = FilterOackOptions(opts)

	return nil
}
