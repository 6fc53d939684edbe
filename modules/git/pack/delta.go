// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedVarint = errors.New("truncated varint")
	ErrMalformedDelta  = errors.New("malformed delta")
)

// readSizeVarint reads a little-endian 7-bit-group size varint.
func readSizeVarint(data []byte) (int64, int, error) {
	var value int64
	var shift uint
	for i, b := range data {
		value |= int64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
		if shift > 63 {
			break
		}
	}
	return 0, 0, ErrTruncatedVarint
}

// readOfsVarint reads the ofs-delta negative-offset varint with its
// ((v+1)<<7)|b accumulation rule.
func readOfsVarint(data []byte) (int64, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrTruncatedVarint
	}
	b := data[0]
	value := int64(b & 0x7f)
	n := 1
	for b&0x80 != 0 {
		if n >= len(data) {
			return 0, 0, ErrTruncatedVarint
		}
		b = data[n]
		n++
		value = ((value + 1) << 7) | int64(b&0x7f)
	}
	return value, n, nil
}

// applyDelta replays a delta body against base. The body is base-size varint,
// result-size varint, then copy/insert commands.
func applyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n, err := readSizeVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]
	if baseSize != int64(len(base)) {
		return nil, fmt.Errorf("delta base size mismatch: declared %d, have %d", baseSize, len(base))
	}
	resultSize, n, err := readSizeVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]

	result := make([]byte, 0, resultSize)
	for len(delta) > 0 {
		cmd := delta[0]
		delta = delta[1:]
		if cmd&0x80 != 0 {
			// copy from base: low bits select which of 4 offset and
			// 3 size bytes follow, little-endian
			var offset, size int64
			for i := 0; i < 4; i++ {
				if cmd&(1<<i) != 0 {
					if len(delta) == 0 {
						return nil, ErrMalformedDelta
					}
					offset |= int64(delta[0]) << (8 * i)
					delta = delta[1:]
				}
			}
			for i := 0; i < 3; i++ {
				if cmd&(0x10<<i) != 0 {
					if len(delta) == 0 {
						return nil, ErrMalformedDelta
					}
					size |= int64(delta[0]) << (8 * i)
					delta = delta[1:]
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if offset < 0 || offset+size > int64(len(base)) {
				return nil, ErrMalformedDelta
			}
			result = append(result, base[offset:offset+size]...)
			continue
		}
		// insert: cmd literal bytes, zero is reserved
		if cmd == 0 {
			return nil, ErrMalformedDelta
		}
		if int(cmd) > len(delta) {
			return nil, ErrMalformedDelta
		}
		result = append(result, delta[:cmd]...)
		delta = delta[cmd:]
	}
	if int64(len(result)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: declared %d, got %d", resultSize, len(result))
	}
	return result, nil
}
