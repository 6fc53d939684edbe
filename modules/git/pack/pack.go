// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pack decodes version 2/3 packfiles as received from git push:
// varint object headers, zlib bodies with boundary recovery, and ofs/ref
// delta resolution against in-pack and already-stored base objects.
package pack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

var (
	Signature = []byte{'P', 'A', 'C', 'K'}

	ErrBadSignature  = errors.New("pack: bad signature")
	ErrBadVersion    = errors.New("pack: unsupported version")
	ErrTruncatedPack = errors.New("pack: truncated")
)

const (
	headerSize = 12

	typeCommit   = 1
	typeTree     = 2
	typeBlob     = 3
	typeTag      = 4
	typeOfsDelta = 6
	typeRefDelta = 7
)

// Record is a fully resolved pack object.
type Record struct {
	Type    object.ObjectType
	Payload []byte
}

// Options control delta resolution and object delivery.
type Options struct {
	// LoadExternal fetches already-stored base objects by OID. Missing
	// OIDs are simply absent from the returned map.
	LoadExternal func(ctx context.Context, oids []plumbing.Hash) (map[plumbing.Hash]*Record, error)
	// OnObject is invoked once per resolved object in file order.
	OnObject func(ctx context.Context, oid plumbing.Hash, rec *Record) error
}

type Result struct {
	Objects int // resolved and delivered
	Skipped int // unresolvable bases, counted and dropped
}

type entry struct {
	offset   int64
	typeCode byte
	body     []byte
	baseOfs  int64
	baseOID  plumbing.Hash

	resolved  *Record
	oid       plumbing.Hash
	failed    bool
	resolving bool
}

// parseEntryHeader reads the object header varint: 3-bit type, size nibble,
// then 7-bit continuation groups. The declared size is informational only.
func parseEntryHeader(data []byte) (typeCode byte, size int64, n int, err error) {
	if len(data) == 0 {
		return 0, 0, 0, ErrTruncatedPack
	}
	b := data[0]
	typeCode = (b >> 4) & 0x7
	size = int64(b & 0x0f)
	shift := uint(4)
	n = 1
	for b&0x80 != 0 {
		if n >= len(data) {
			return 0, 0, 0, ErrTruncatedPack
		}
		b = data[n]
		size |= int64(b&0x7f) << shift
		shift += 7
		n++
	}
	return typeCode, size, n, nil
}

func objectTypeOf(code byte) (object.ObjectType, bool) {
	switch code {
	case typeCommit:
		return object.CommitObject, true
	case typeTree:
		return object.TreeObject, true
	case typeBlob:
		return object.BlobObject, true
	case typeTag:
		return object.TagObject, true
	}
	return object.InvalidObject, false
}

// Decode parses and resolves every object in the pack. It is lenient about
// unresolvable delta bases: those objects are skipped and counted, the decode
// itself does not abort.
func Decode(ctx context.Context, data []byte, opts *Options) (*Result, error) {
	if len(data) < headerSize {
		return nil, ErrTruncatedPack
	}
	if string(data[:4]) != string(Signature) {
		return nil, ErrBadSignature
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	entries := make([]*entry, 0, count)
	byOffset := make(map[int64]*entry, count)
	offset := int64(headerSize)
	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if offset >= int64(len(data)) {
			return nil, ErrTruncatedPack
		}
		typeCode, _, n, err := parseEntryHeader(data[offset:])
		if err != nil {
			return nil, err
		}
		e := &entry{offset: offset, typeCode: typeCode}
		pos := offset + int64(n)
		switch typeCode {
		case typeOfsDelta:
			rel, n, err := readOfsVarint(data[pos:])
			if err != nil {
				return nil, err
			}
			e.baseOfs = offset - rel
			pos += int64(n)
		case typeRefDelta:
			if pos+plumbing.HASH_DIGEST_SIZE > int64(len(data)) {
				return nil, ErrTruncatedPack
			}
			e.baseOID = plumbing.NewRawHash(data[pos : pos+plumbing.HASH_DIGEST_SIZE])
			pos += plumbing.HASH_DIGEST_SIZE
		}
		body, consumed, err := inflateConsumed(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("pack: object at offset %d: %w", offset, err)
		}
		e.body = body
		entries = append(entries, e)
		byOffset[offset] = e
		offset = pos + int64(consumed)
	}

	// Load external ref-delta bases up front, batched by the loader.
	external := make(map[plumbing.Hash]*Record)
	if opts.LoadExternal != nil {
		seen := make(map[plumbing.Hash]bool)
		wanted := make([]plumbing.Hash, 0, 8)
		for _, e := range entries {
			if e.typeCode == typeRefDelta && !seen[e.baseOID] {
				seen[e.baseOID] = true
				wanted = append(wanted, e.baseOID)
			}
		}
		if len(wanted) != 0 {
			loaded, err := opts.LoadExternal(ctx, wanted)
			if err != nil {
				return nil, err
			}
			for oid, rec := range loaded {
				external[oid] = rec
			}
		}
	}

	byOID := make(map[plumbing.Hash]*entry, count)
	var resolve func(e *entry) *Record
	resolve = func(e *entry) *Record {
		if e.resolved != nil || e.failed || e.resolving {
			return e.resolved
		}
		e.resolving = true
		defer func() { e.resolving = false }()
		var base *Record
		switch e.typeCode {
		case typeOfsDelta:
			b, ok := byOffset[e.baseOfs]
			if !ok {
				e.failed = true
				return nil
			}
			base = resolve(b)
		case typeRefDelta:
			if b, ok := byOID[e.baseOID]; ok {
				base = resolve(b)
			} else {
				base = external[e.baseOID]
			}
		default:
			t, ok := objectTypeOf(e.typeCode)
			if !ok {
				e.failed = true
				return nil
			}
			e.resolved = &Record{Type: t, Payload: e.body}
			e.oid = object.Hash(t, e.body)
			byOID[e.oid] = e
			return e.resolved
		}
		if base == nil {
			e.failed = true
			return nil
		}
		payload, err := applyDelta(base.Payload, e.body)
		if err != nil {
			e.failed = true
			return nil
		}
		e.resolved = &Record{Type: base.Type, Payload: payload}
		e.oid = object.Hash(base.Type, payload)
		byOID[e.oid] = e
		return e.resolved
	}

	result := &Result{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec := resolve(e)
		if rec == nil {
			result.Skipped++
			continue
		}
		if opts.OnObject != nil {
			if err := opts.OnObject(ctx, e.oid, rec); err != nil {
				return result, err
			}
		}
		result.Objects++
	}
	return result, nil
}
