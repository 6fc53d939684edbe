// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gitbruv/gitbruv/modules/plumbing"
)

// Tree entry modes as they appear on the wire. Subtrees are encoded without
// the leading zero ("40000") but accepted either way.
const (
	ModeDir        = "40000"
	ModeRegular    = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
)

type TreeEntry struct {
	Mode string        `json:"mode"`
	Name string        `json:"name"`
	Hash plumbing.Hash `json:"oid"`
}

// IsTree reports whether the entry names a subtree.
func (e *TreeEntry) IsTree() bool {
	mode := strings.TrimLeft(e.Mode, "0")
	return mode == ModeDir
}

func (e *TreeEntry) Type() ObjectType {
	if e.IsTree() {
		return TreeObject
	}
	return BlobObject
}

type Tree struct {
	Hash    plumbing.Hash `json:"hash"`
	Entries []TreeEntry   `json:"entries"`
}

// Decode parses repeated "mode SP name NUL oid(20 raw bytes)" records.
func (t *Tree) Decode(payload []byte) error {
	rest := payload
	for len(rest) > 0 {
		space := bytes.IndexByte(rest, ' ')
		if space == -1 {
			return ErrMalformedObject
		}
		mode := string(rest[:space])
		rest = rest[space+1:]
		nul := bytes.IndexByte(rest, '\x00')
		if nul == -1 || len(rest) < nul+1+plumbing.HASH_DIGEST_SIZE {
			return ErrMalformedObject
		}
		name := string(rest[:nul])
		oid := plumbing.NewRawHash(rest[nul+1 : nul+1+plumbing.HASH_DIGEST_SIZE])
		rest = rest[nul+1+plumbing.HASH_DIGEST_SIZE:]
		t.Entries = append(t.Entries, TreeEntry{Mode: mode, Name: name, Hash: oid})
	}
	return nil
}

// Encode writes the canonical tree record. Entries must already be sorted.
func (t *Tree) Encode(w io.Writer) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		mode := e.Mode
		if e.IsTree() {
			mode = ModeDir
		}
		if _, err := fmt.Fprintf(w, "%s %s\x00", mode, e.Name); err != nil {
			return err
		}
		if _, err := w.Write(e.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

// Payload returns the encoded tree record.
func (t *Tree) Payload() []byte {
	var b bytes.Buffer
	_ = t.Encode(&b)
	return b.Bytes()
}

// Find returns the entry with the given name, or nil.
func (t *Tree) Find(name string) *TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}

// sortName is git's canonical tree ordering: subtrees sort as if their name
// had a trailing '/'.
func sortName(e *TreeEntry) string {
	if e.IsTree() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries sorts entries into git's canonical byte order.
func (t *Tree) SortEntries() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return sortName(&t.Entries[i]) < sortName(&t.Entries[j])
	})
}
