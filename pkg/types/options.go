package types

import "strconv"

// Options is the negotiated-option set carried by a request or an OACK:
// lowercase option name to unsigned integer value.
type Options map[string]uint64

const (
	OptBlksize = "blksize"
	OptTimeout = "timeout"
	OptTsize   = "tsize"
)

// splitOptionPairs walks a sequence of NUL-terminated name/value strings
// and groups them into pairs, failing if the count is odd or a name/value
// is empty, or if a name repeats. strict controls whether an unparseable
// value is dropped (RRQ/WRQ, rule 5) or is an error (OACK).
func splitOptionPairs(fields []string, strict bool) (Options, error) {
	if len(fields)%2 != 0 {
		return nil, &OptionError{Reason: "dangling option name without a value"}
	}

	opts := make(Options)
	seen := make(map[string]struct{})

	for i := 0; i < len(fields); i += 2 {
		name := toLower(fields[i])
		value := fields[i+1]

		if name == "" || value == "" {
			return nil, &OptionError{Reason: "empty option name or value"}
		}

		if _, dup := seen[name]; dup {
			return nil, &OptionError{Reason: "duplicate option: " + name}
		}

		seen[name] = struct{}{}

		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			if strict {
				return nil, &OptionError{Reason: "option value not a valid integer: " + name}
			}

			continue
		}

		opts[name] = n
	}

	return opts, nil
}

// FilterRequestOptions applies the clamp/drop rules of the option
// negotiation spec to an incoming RRQ option set (WRQ uses
// FilterWrqOptions): unknown names are dropped, blksize is clamped or
// dropped, timeout is dropped out of range, and a non-zero tsize is
// dropped while tsize 0 ("ask the server for the size") is kept.
func FilterRequestOptions(in Options) Options {
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
			if value != 0 {
				continue
			}

			out[name] = value
		default:
			// Unknown option names are dropped silently.
		}
	}

	return out
}

// FilterOackOptions applies the same clamp rules as FilterRequestOptions
// but without the RRQ-specific "tsize must be zero" restriction, since an
// OACK's tsize is the server's answer.
func FilterOackOptions(in Options) Options {
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
