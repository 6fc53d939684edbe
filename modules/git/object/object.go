// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object implements the git loose-object codec: commits, trees, tags
// and the "<type> <size>\x00" header framing objects are hashed and stored
// with.
package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/klauspost/compress/zlib"
)

var (
	ErrUnsupportedObject = errors.New("unsupported object type")
	ErrMalformedObject   = errors.New("malformed object")
)

// ObjectType internal object type
type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	default:
		return "unknown"
	}
}

func (t ObjectType) Valid() bool {
	return t >= CommitObject && t <= TagObject
}

// ParseObjectType parses an object type name.
func ParseObjectType(value string) (ObjectType, error) {
	switch value {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, ErrUnsupportedObject
	}
}

// Hash computes the OID of an object payload.
func Hash(t ObjectType, payload []byte) plumbing.Hash {
	return plumbing.HashObject(t.String(), payload)
}

// MarshalLoose produces the loose on-store encoding:
// zlib("<type> <size>\x00" + payload). The OID of the encoded object is
// returned alongside.
func MarshalLoose(t ObjectType, payload []byte) (plumbing.Hash, []byte, error) {
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	if _, err := fmt.Fprintf(zw, "%s %d\x00", t, len(payload)); err != nil {
		return plumbing.ZeroHash, nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		return plumbing.ZeroHash, nil, err
	}
	if err := zw.Close(); err != nil {
		return plumbing.ZeroHash, nil, err
	}
	return Hash(t, payload), b.Bytes(), nil
}

// UnmarshalLoose reverses MarshalLoose: inflate, split at the first NUL,
// parse "<type> <size>".
func UnmarshalLoose(data []byte) (ObjectType, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return InvalidObject, nil, fmt.Errorf("inflate loose object: %w", err)
	}
	defer zr.Close() // nolint
	raw, err := io.ReadAll(zr)
	if err != nil {
		return InvalidObject, nil, fmt.Errorf("inflate loose object: %w", err)
	}
	pos := bytes.IndexByte(raw, '\x00')
	if pos == -1 {
		return InvalidObject, nil, ErrMalformedObject
	}
	var typeName string
	var size int
	if _, err := fmt.Sscanf(string(raw[:pos]), "%s %d", &typeName, &size); err != nil {
		return InvalidObject, nil, ErrMalformedObject
	}
	t, err := ParseObjectType(typeName)
	if err != nil {
		return InvalidObject, nil, err
	}
	payload := raw[pos+1:]
	if size != len(payload) {
		return InvalidObject, nil, ErrMalformedObject
	}
	return t, payload, nil
}
