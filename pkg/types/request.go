package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Request is the RRQ or WRQ packet: filename, transfer mode, and zero or
// more negotiated options (RFC 2347).
type Request struct {
	Filename string
	Mode     string
	Opcode   OpCode
	Options  Options
}

func (r *Request) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	rqLen := 2 + len(r.Filename) + 1 + len(r.Mode) + 1

	b.Grow(rqLen)

	if err := binary.Write(b, binary.BigEndian, &r.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if _, err := b.WriteString(r.Filename); err != nil {
		return nil, fmt.Errorf("error while writing filename: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after filename: %w", err)
	}

	if _, err := b.WriteString(r.Mode); err != nil {
		return nil, fmt.Errorf("error while writing mode: %w", err)
	}

	if err := b.WriteByte(0); err != nil {
		return nil, fmt.Errorf("error while writing null byte after mode: %w", err)
	}

	for name, value := range r.Options {
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

func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return &ParsingError{Reason: "request shorter than opcode"}
	}

	var err error

	rd := bytes.NewBuffer(data)

	if err = binary.Read(rd, binary.BigEndian, &r.Opcode); err != nil {
		return fmt.Errorf("error while decoding opcode: %w", err)
	}

	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return &ParsingError{Reason: "not a request opcode"}
	}

	r.Filename, err = rd.ReadString(0)
	if err != nil {
		return &ParsingError{Reason: "filename not NUL-terminated"}
	}

	r.Filename = strings.TrimRight(r.Filename, "\x00")

	if r.Filename == "" {
		return &ParsingError{Reason: "empty filename"}
	}

	r.Mode, err = rd.ReadString(0)
	if err != nil {
		return &ParsingError{Reason: "mode not NUL-terminated"}
	}

	r.Mode = strings.TrimRight(r.Mode, "\x00")

	if r.Mode == "" {
		return &ParsingError{Reason: "empty mode"}
	}

	if _, ok := ParseDataMode(r.Mode); !ok {
		return &ParsingError{Reason: "unsupported mode: " + r.Mode}
	}

	r.Mode = toLower(r.Mode)

	fields, err := readNulFields(rd)
	if err != nil {
		return err
	}

	opts, err := splitOptionPairs(fields, false)
	if err != nil {
		return err
	}

	if r.Opcode == OpCodeRRQ {
		r.Options = FilterRequestOptions(opts)
	} else {
		r.Options = FilterWrqOptions(opts)
	}

	return nil
}

// FilterWrqOptions applies the shared clamp/drop rules, but unlike a
// read request a write request's tsize is meaningful as given (it
// advertises the upload's size), so it is not forced to zero.
func FilterWrqOptions(in Options) Options {
	out := make(Options)

	for name, value := range in {
		switch name {
		case OptBlksize:
			if value < MinBlockSize {
				continue
			}

			if value > MaxBlockSize {
				value = MaxBlockSize
			}

			out[name] = value
		case OptTimeout:
			if value < MinTimeout || value > MaxTimeout {
				continue
			}

			out[name] = value
		case OptTsize:
			if value > MaxTsize {
				continue
			}

			out[name] = value
		default:
		}
	}

	return out
}

// readNulFields reads every remaining NUL-terminated string in rd.
func readNulFields(rd *bytes.Buffer) ([]string, error) {
	var fields []string

	for rd.Len() > 0 {
		s, err := rd.ReadString(0)
		if err != nil {
			return nil, &ParsingError{Reason: "option not NUL-terminated"}
		}

		fields = append(fields, strings.TrimRight(s, "\x00"))
	}

	return fields, nil
}
