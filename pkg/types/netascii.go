package types

// NetasciiDecoder turns a wire-format netascii byte stream into local
// line endings: "CR LF" becomes "LF", "CR NUL" becomes "CR", a lone NUL
// terminates. Because these two-byte sequences can straddle a DATA
// block boundary, the decoder carries a single pending-CR bit across
// calls to Decode instead of requiring the caller to buffer whole
// blocks; once a lone NUL has been seen, later calls emit nothing.
type NetasciiDecoder struct {
	pendingCR  bool
	terminated bool
}

// Decode appends the translation of in to out and returns the result.
func (d *NetasciiDecoder) Decode(out []byte, in []byte) []byte {
	for _, c := range in {
		if d.terminated {
			break
		}

		switch {
		case d.pendingCR && c == '\n':
			out = append(out, '\n')
			d.pendingCR = false
		case d.pendingCR && c == 0:
			out = append(out, '\r')
			d.pendingCR = false
		case d.pendingCR:
			// A bare CR followed by something other than LF/NUL is not
			// valid netascii; emit the CR as-is and reprocess c.
			out = append(out, '\r')
			d.pendingCR = false

			if c == '\r' {
				d.pendingCR = true
			} else {
				out = append(out, c)
			}
		case c == 0:
			d.terminated = true
		case c == '\r':
			d.pendingCR = true
		default:
			out = append(out, c)
		}
	}

	return out
}

// Flush emits a trailing bare CR left pending at end of stream. RFC 764
// never leaves a CR unterminated in valid netascii, but a defensive
// decoder should not silently drop bytes.
func (d *NetasciiDecoder) Flush(out []byte) []byte {
	if d.pendingCR {
		out = append(out, '\r')
		d.pendingCR = false
	}

	return out
}

// NetasciiEncoder turns local line endings into the wire netascii form:
// LF becomes "CR LF", CR becomes "CR NUL". Unlike the decoder it keeps
// no state, because every input byte maps to a self-contained output; the type
// exists for symmetry and so callers can encode a source stream block
// by block without re-deriving the substitution rules at each call
// site.
type NetasciiEncoder struct{}

func (NetasciiEncoder) Encode(out []byte, in []byte) []byte {
	for _, c := range in {
		switch c {
		case '\n':
			out = append(out, '\r', '\n')
		case '\r':
			out = append(out, '\r', 0)
		default:
			out = append(out, c)
		}
	}

	return out
}
