// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"testing"
	"time"

	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobOID(t *testing.T) {
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", Hash(BlobObject, []byte("hello\n")).String())
}

func TestMarshalLooseRoundTrip(t *testing.T) {
	payload := []byte("hello\n")
	oid, encoded, err := MarshalLoose(BlobObject, payload)
	require.NoError(t, err)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", oid.String())

	typ, decoded, err := UnmarshalLoose(encoded)
	require.NoError(t, err)
	assert.Equal(t, BlobObject, typ)
	assert.Equal(t, payload, decoded)
}

func TestUnmarshalLooseMalformed(t *testing.T) {
	_, _, err := UnmarshalLoose([]byte("not zlib"))
	require.Error(t, err)
}

func TestCommitEncodeDecodeStable(t *testing.T) {
	when := time.Unix(1494258422, 0).In(time.FixedZone("", -6*3600))
	cc := &Commit{
		Tree:    plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904"),
		Parents: []plumbing.Hash{plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a")},
		Author:  Signature{Name: "Taylor Blau", Email: "ttaylorr@github.com", When: when},
		Committer: Signature{
			Name: "Taylor Blau", Email: "ttaylorr@github.com", When: when,
		},
		Message: "initial commit\n\nbody\n",
	}
	payload := cc.Payload()

	decoded := &Commit{}
	require.NoError(t, decoded.Decode(payload))
	assert.Equal(t, cc.Tree, decoded.Tree)
	assert.Equal(t, cc.Parents, decoded.Parents)
	assert.Equal(t, cc.Message, decoded.Message)
	assert.Equal(t, "initial commit", decoded.Subject())
	assert.Equal(t, "Taylor Blau", decoded.Author.Name)
	assert.Equal(t, "ttaylorr@github.com", decoded.Author.Email)
	assert.Equal(t, int64(1494258422), decoded.Author.When.Unix())

	// a decoded commit re-encodes byte identical
	assert.Equal(t, payload, decoded.Payload())
}

func TestSignatureString(t *testing.T) {
	when := time.Unix(1494258422, 0).In(time.FixedZone("", -6*3600))
	s := Signature{Name: "Taylor Blau", Email: "ttaylorr@github.com", When: when}
	assert.Equal(t, "Taylor Blau <ttaylorr@github.com> 1494258422 -0600", s.String())
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Mode: ModeRegular, Name: "README", Hash: plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a")},
		{Mode: ModeDir, Name: "src", Hash: plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")},
	}}
	payload := tree.Payload()

	decoded := &Tree{}
	require.NoError(t, decoded.Decode(payload))
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "README", decoded.Entries[0].Name)
	assert.Equal(t, ModeRegular, decoded.Entries[0].Mode)
	assert.False(t, decoded.Entries[0].IsTree())
	assert.Equal(t, "src", decoded.Entries[1].Name)
	assert.True(t, decoded.Entries[1].IsTree())
	assert.Equal(t, TreeObject, decoded.Entries[1].Type())
}

func TestTreeSortEntries(t *testing.T) {
	// git sorts subtrees as if their name had a trailing slash, so the
	// subtree "a" sorts after the blob "a.txt"
	tree := &Tree{Entries: []TreeEntry{
		{Mode: ModeRegular, Name: "a.txt"},
		{Mode: ModeDir, Name: "a"},
		{Mode: ModeRegular, Name: "a-b"},
	}}
	tree.SortEntries()
	names := []string{tree.Entries[0].Name, tree.Entries[1].Name, tree.Entries[2].Name}
	assert.Equal(t, []string{"a-b", "a.txt", "a"}, names)
}

func TestEmptyTreeOID(t *testing.T) {
	tree := &Tree{}
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", Hash(TreeObject, tree.Payload()).String())
}

func TestTreeFind(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{{Mode: ModeRegular, Name: "README"}}}
	require.NotNil(t, tree.Find("README"))
	assert.Nil(t, tree.Find("missing"))
}

func TestParseObjectType(t *testing.T) {
	for name, want := range map[string]ObjectType{
		"commit": CommitObject, "tree": TreeObject, "blob": BlobObject, "tag": TagObject,
	} {
		got, err := ParseObjectType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseObjectType("bogus")
	assert.ErrorIs(t, err, ErrUnsupportedObject)
}
