// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

var (
	ErrZlibRecovery = errors.New("zlib stream recovery failed")
)

func inflateZlib(data []byte) ([]byte, bool) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer zr.Close() // nolint
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	return out, true
}

func inflateRaw(data []byte) ([]byte, bool) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close() // nolint
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, false
	}
	return out, true
}

// inflateConsumed decompresses the stream at the head of data and reports how
// many input bytes the stream occupied. Pack object bodies do not carry their
// compressed length, so the boundary is recovered by binary-searching the
// smallest prefix that still decompresses: a zlib stream is only complete
// once its trailer is present, which makes the predicate monotonic in the
// prefix length. Raw deflate is tried when the standard framing fails.
func inflateConsumed(data []byte) ([]byte, int, error) {
	inflate := inflateZlib
	out, ok := inflate(data)
	if !ok {
		inflate = inflateRaw
		if out, ok = inflate(data); !ok {
			return nil, 0, ErrZlibRecovery
		}
	}
	lo, hi := 1, len(data)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if _, ok := inflate(data[:mid]); ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return out, lo, nil
}
