// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pack

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

// entryHeader encodes the object header varint: 3-bit type and low size
// nibble in the first byte, 7-bit groups after.
func entryHeader(code byte, size int) []byte {
	out := []byte{(code << 4) | byte(size&0x0f)}
	size >>= 4
	for size > 0 {
		out[len(out)-1] |= 0x80
		out = append(out, byte(size&0x7f))
		size >>= 7
	}
	return out
}

func ofsVarint(rel int64) []byte {
	out := []byte{byte(rel & 0x7f)}
	for rel >>= 7; rel > 0; rel >>= 7 {
		rel--
		out = append([]byte{0x80 | byte(rel&0x7f)}, out...)
	}
	return out
}

func packHeader(count uint32) []byte {
	h := make([]byte, headerSize)
	copy(h, Signature)
	binary.BigEndian.PutUint32(h[4:8], 2)
	binary.BigEndian.PutUint32(h[8:12], count)
	return h
}

// delta building blocks: size varints under 128 are single bytes
func simpleDelta(baseSize, resultSize int, commands ...byte) []byte {
	out := []byte{byte(baseSize), byte(resultSize)}
	return append(out, commands...)
}

func TestDecodePlainObjects(t *testing.T) {
	blob := []byte("hello\n")
	var buf bytes.Buffer
	buf.Write(packHeader(1))
	buf.Write(entryHeader(typeBlob, len(blob)))
	buf.Write(deflate(t, blob))

	got := make(map[plumbing.Hash]*Record)
	result, err := Decode(context.Background(), buf.Bytes(), &Options{
		OnObject: func(ctx context.Context, oid plumbing.Hash, rec *Record) error {
			got[oid] = rec
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Objects)
	assert.Equal(t, 0, result.Skipped)
	rec, ok := got[plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a")]
	require.True(t, ok)
	assert.Equal(t, object.BlobObject, rec.Type)
	assert.Equal(t, blob, rec.Payload)
}

func TestDecodeOfsDelta(t *testing.T) {
	base := []byte("hello, world")
	// copy "hello, " from the base, then insert "gitbruv"
	delta := simpleDelta(len(base), 14, append([]byte{0x90, 7, 7}, []byte("gitbruv")...)...)

	var buf bytes.Buffer
	buf.Write(packHeader(2))
	baseOffset := buf.Len()
	buf.Write(entryHeader(typeBlob, len(base)))
	buf.Write(deflate(t, base))
	deltaOffset := buf.Len()
	buf.Write(entryHeader(typeOfsDelta, len(delta)))
	buf.Write(ofsVarint(int64(deltaOffset - baseOffset)))
	buf.Write(deflate(t, delta))

	var payloads [][]byte
	result, err := Decode(context.Background(), buf.Bytes(), &Options{
		OnObject: func(ctx context.Context, oid plumbing.Hash, rec *Record) error {
			payloads = append(payloads, rec.Payload)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Objects)
	require.Len(t, payloads, 2)
	assert.Equal(t, []byte("hello, gitbruv"), payloads[1])
}

func TestDecodeRefDeltaExternalBase(t *testing.T) {
	base := []byte("base-content\n")
	baseOID := object.Hash(object.BlobObject, base)
	// copy the whole base, then append one byte
	delta := simpleDelta(len(base), len(base)+1, append([]byte{0x90, byte(len(base))}, 0x01, 'x')...)

	var buf bytes.Buffer
	buf.Write(packHeader(1))
	buf.Write(entryHeader(typeRefDelta, len(delta)))
	buf.Write(baseOID[:])
	buf.Write(deflate(t, delta))

	var resolved []byte
	result, err := Decode(context.Background(), buf.Bytes(), &Options{
		LoadExternal: func(ctx context.Context, oids []plumbing.Hash) (map[plumbing.Hash]*Record, error) {
			require.Equal(t, []plumbing.Hash{baseOID}, oids)
			return map[plumbing.Hash]*Record{
				baseOID: {Type: object.BlobObject, Payload: base},
			}, nil
		},
		OnObject: func(ctx context.Context, oid plumbing.Hash, rec *Record) error {
			resolved = rec.Payload
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Objects)
	assert.Equal(t, []byte("base-content\nx"), resolved)
}

func TestDecodeSkipsUnresolvableBase(t *testing.T) {
	missing := plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a")
	delta := simpleDelta(6, 6, append([]byte{0x06}, []byte("abcdef")...)...)

	var buf bytes.Buffer
	buf.Write(packHeader(1))
	buf.Write(entryHeader(typeRefDelta, len(delta)))
	buf.Write(missing[:])
	buf.Write(deflate(t, delta))

	result, err := Decode(context.Background(), buf.Bytes(), &Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Objects)
	assert.Equal(t, 1, result.Skipped)
}

func TestDecodeBadInput(t *testing.T) {
	_, err := Decode(context.Background(), []byte("JUNKJUNKJUNKJUNK"), &Options{})
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = Decode(context.Background(), []byte("PACK"), &Options{})
	assert.ErrorIs(t, err, ErrTruncatedPack)

	bad := packHeader(0)
	binary.BigEndian.PutUint32(bad[4:8], 9)
	_, err = Decode(context.Background(), bad, &Options{})
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestApplyDeltaSizeMismatch(t *testing.T) {
	_, err := applyDelta([]byte("short"), simpleDelta(99, 1, 0x01, 'x'))
	assert.Error(t, err)
}

func TestOfsVarintRoundTrip(t *testing.T) {
	for _, rel := range []int64{1, 127, 128, 300, 20000} {
		value, n, err := readOfsVarint(ofsVarint(rel))
		require.NoError(t, err)
		assert.Equal(t, rel, value)
		assert.Equal(t, len(ofsVarint(rel)), n)
	}
}
