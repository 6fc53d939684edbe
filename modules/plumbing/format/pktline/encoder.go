package pktline

import (
	"errors"
	"fmt"
	"io"
)

// pkt-line framing: each line is prefixed by 4 lowercase ascii hex digits
// encoding the length of the whole line, the 4 length bytes included. "0000"
// is the flush packet.

const (
	// lenSize is the size of the length prefix.
	lenSize = 4
	// MaxPayloadSize is the maximum payload of a single pkt-line.
	MaxPayloadSize = 65516
)

var (
	// Flush is the flush packet.
	Flush = []byte("0000")

	ErrPayloadTooLong = errors.New("payload is too long")
)

const hexDigits = "0123456789abcdef"

// asciiHex16 renders n as exactly 4 lowercase hex digits.
func asciiHex16(n int) string {
	var b [lenSize]byte
	for i := lenSize - 1; i >= 0; i-- {
		b[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return string(b[:])
}

// Encoder writes pkt-lines to an output stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Flush encodes a flush-pkt to the output stream.
func (e *Encoder) Flush() error {
	_, err := e.w.Write(Flush)
	return err
}

// Encode encodes a pkt-line with the payload specified and write it to
// the output stream.
func (e *Encoder) Encode(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLong
	}
	if _, err := io.WriteString(e.w, asciiHex16(len(payload)+lenSize)); err != nil {
		return err
	}
	_, err := e.w.Write(payload)
	return err
}

// EncodeString encodes a string payload.
func (e *Encoder) EncodeString(s string) error {
	if len(s) > MaxPayloadSize {
		return ErrPayloadTooLong
	}
	if _, err := io.WriteString(e.w, asciiHex16(len(s)+lenSize)); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, s)
	return err
}

// Encodef encodes a printf-formatted payload.
func (e *Encoder) Encodef(format string, a ...any) error {
	return e.EncodeString(fmt.Sprintf(format, a...))
}
