package pktline

import (
	"errors"
	"io"
)

var (
	ErrInvalidPktLen = errors.New("invalid pkt-len found")
)

// hexDecode parses a 4-byte ascii hex length prefix.
func hexDecode(b [lenSize]byte) (int, error) {
	var n int
	for _, c := range b {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		default:
			return 0, ErrInvalidPktLen
		}
		n = n<<4 | v
	}
	return n, nil
}

// Scanner reads pkt-lines from an input stream. Scan returns false on a
// flush-pkt, at end of input, or on a framing error; Err distinguishes the
// two failure modes.
type Scanner struct {
	r       io.Reader
	payload []byte
	err     error
	flushed bool
}

// NewScanner returns a new Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Scan advances to the next pkt-line. A flush-pkt stops the scan without
// error; further calls keep returning false.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.flushed {
		return false
	}
	var lb [lenSize]byte
	if _, err := io.ReadFull(s.r, lb[:]); err != nil {
		if err != io.EOF {
			s.err = err
		}
		return false
	}
	n, err := hexDecode(lb)
	if err != nil {
		s.err = err
		return false
	}
	if n == 0 {
		s.flushed = true
		return false
	}
	if n < lenSize {
		s.err = ErrInvalidPktLen
		return false
	}
	payload := make([]byte, n-lenSize)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		s.err = err
		return false
	}
	s.payload = payload
	return true
}

// Bytes returns the payload of the last scanned pkt-line.
func (s *Scanner) Bytes() []byte {
	return s.payload
}

// Text returns the payload of the last scanned pkt-line as a string.
func (s *Scanner) Text() string {
	return string(s.payload)
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	return s.err
}
