// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/gitfs"
	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testODB(t *testing.T) *ODB {
	t.Helper()
	return NewODB(1, gitfs.New(oss.NewMemBucket(), "repos/1/demo"), nil)
}

func testSignature() object.Signature {
	return object.Signature{
		Name:  "dev",
		Email: "dev@example.com",
		When:  time.Unix(1700000000, 0).UTC(),
	}
}

func writeCommit(t *testing.T, o *ODB, tree plumbing.Hash, parents []plumbing.Hash, message string) plumbing.Hash {
	t.Helper()
	oid, err := o.WriteCommit(context.Background(), &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    testSignature(),
		Committer: testSignature(),
		Message:   message + "\n",
	})
	require.NoError(t, err)
	return oid
}

func writeBlob(t *testing.T, o *ODB, content string) plumbing.Hash {
	t.Helper()
	oid, err := o.WriteObject(context.Background(), object.BlobObject, []byte(content))
	require.NoError(t, err)
	return oid
}

func writeTree(t *testing.T, o *ODB, entries ...object.TreeEntry) plumbing.Hash {
	t.Helper()
	oid, err := o.WriteTree(context.Background(), &object.Tree{Entries: entries})
	require.NoError(t, err)
	return oid
}

func TestWriteReadObject(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	oid := writeBlob(t, o, "hello\n")
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", oid.String())

	payload, err := o.Blob(ctx, oid)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(payload))

	ok, err := o.Exists(ctx, oid)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = o.Object(ctx, plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904"))
	assert.True(t, plumbing.IsNoSuchObject(err))

	// type mismatch on a typed read
	_, err = o.Commit(ctx, oid)
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestCommitTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	blob := writeBlob(t, o, "readme\n")
	tree := writeTree(t, o, object.TreeEntry{Mode: object.ModeRegular, Name: "README", Hash: blob})
	commit := writeCommit(t, o, tree, nil, "initial commit")

	cc, err := o.Commit(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, tree, cc.Tree)
	assert.Equal(t, "initial commit", cc.Subject())

	tt, err := o.Tree(ctx, tree)
	require.NoError(t, err)
	require.Len(t, tt.Entries, 1)
	assert.Equal(t, "README", tt.Entries[0].Name)
}

func TestRefs(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	oid := writeBlob(t, o, "x")
	main := plumbing.NewReferenceName("main")

	require.NoError(t, o.WriteRef(ctx, main, oid))
	ref, err := o.ReadRef(ctx, main)
	require.NoError(t, err)
	assert.Equal(t, oid, ref.Hash())

	_, err = o.ReadRef(ctx, plumbing.NewReferenceName("missing"))
	assert.Equal(t, plumbing.ErrReferenceNotFound, err)

	// HEAD points at main symbolically
	require.NoError(t, o.FS().WriteFile(ctx, "HEAD", []byte("ref: refs/heads/main\n")))
	resolved, err := o.Resolve(ctx, plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, oid, resolved)
	assert.Equal(t, plumbing.Main, o.DefaultBranch(ctx))

	// literal OID and short branch name both resolve
	got, err := o.ResolveRevision(ctx, oid.String())
	require.NoError(t, err)
	assert.Equal(t, oid, got)
	got, err = o.ResolveRevision(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	require.NoError(t, o.DeleteRef(ctx, main))
	_, err = o.ReadRef(ctx, main)
	assert.Equal(t, plumbing.ErrReferenceNotFound, err)
}

func TestPackedRefsShadowing(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	looseOID := writeBlob(t, o, "loose")
	packedOID := writeBlob(t, o, "packed")

	packed := fmt.Sprintf("# pack-refs with: peeled fully-peeled sorted\n%s refs/heads/main\n%s refs/tags/v1\n^%s\n",
		packedOID, packedOID, packedOID)
	require.NoError(t, o.FS().WriteFile(ctx, "packed-refs", []byte(packed)))

	// packed entry is visible until a loose ref shadows it
	ref, err := o.ReadRef(ctx, plumbing.NewReferenceName("main"))
	require.NoError(t, err)
	assert.Equal(t, packedOID, ref.Hash())

	require.NoError(t, o.WriteRef(ctx, plumbing.NewReferenceName("main"), looseOID))
	ref, err = o.ReadRef(ctx, plumbing.NewReferenceName("main"))
	require.NoError(t, err)
	assert.Equal(t, looseOID, ref.Hash())

	refs, err := o.ListRefs(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "refs/heads/main", refs[0].Name().String())
	assert.Equal(t, looseOID, refs[0].Hash())
	assert.Equal(t, "refs/tags/v1", refs[1].Name().String())

	branches, err := o.ListBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)
}

// chain builds c1 <- c2 <- ... <- cn first-parent history and returns the
// commits in that order.
func chain(t *testing.T, o *ODB, n int) []plumbing.Hash {
	t.Helper()
	tree := writeTree(t, o)
	oids := make([]plumbing.Hash, 0, n)
	var parents []plumbing.Hash
	for i := 0; i < n; i++ {
		oid := writeCommit(t, o, tree, parents, fmt.Sprintf("commit %d", i+1))
		oids = append(oids, oid)
		parents = []plumbing.Hash{oid}
	}
	return oids
}

func TestWalkFirstParent(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	c := chain(t, o, 5)
	head := c[4]

	commits, hasMore, err := o.WalkFirstParent(ctx, head, 2, 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "commit 5", commits[0].Subject())
	assert.Equal(t, "commit 4", commits[1].Subject())

	commits, hasMore, err = o.WalkFirstParent(ctx, head, 10, 3)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.False(t, hasMore)
	assert.Equal(t, "commit 2", commits[0].Subject())

	count, err := o.CountFirstParent(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestMergeBaseAndAncestry(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	tree := writeTree(t, o)
	root := writeCommit(t, o, tree, nil, "root")
	left := writeCommit(t, o, tree, []plumbing.Hash{root}, "left")
	right := writeCommit(t, o, tree, []plumbing.Hash{root}, "right")

	base, err := o.MergeBase(ctx, left, right)
	require.NoError(t, err)
	assert.Equal(t, root, base)

	base, err = o.MergeBase(ctx, left, left)
	require.NoError(t, err)
	assert.Equal(t, left, base)

	ok, err := o.IsAncestor(ctx, root, left)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = o.IsAncestor(ctx, left, right)
	require.NoError(t, err)
	assert.False(t, ok)

	// merge commits are searched through every parent
	merge := writeCommit(t, o, tree, []plumbing.Hash{left, right}, "merge")
	ok, err = o.IsAncestor(ctx, right, merge)
	require.NoError(t, err)
	assert.True(t, ok)

	commits, err := o.CommitsBetween(ctx, left, root)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "left", commits[0].Subject())
}

func TestDiffTrees(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	blob1 := writeBlob(t, o, "one\n")
	blob2 := writeBlob(t, o, "two\n")

	sub := writeTree(t, o, object.TreeEntry{Mode: object.ModeRegular, Name: "b.txt", Hash: blob1})
	oldTree := writeTree(t, o,
		object.TreeEntry{Mode: object.ModeRegular, Name: "a.txt", Hash: blob1},
		object.TreeEntry{Mode: object.ModeDir, Name: "dir", Hash: sub},
	)
	newTree := writeTree(t, o,
		object.TreeEntry{Mode: object.ModeRegular, Name: "a.txt", Hash: blob2},
		object.TreeEntry{Mode: object.ModeRegular, Name: "c.txt", Hash: blob2},
		object.TreeEntry{Mode: object.ModeDir, Name: "dir", Hash: sub},
	)

	changes, err := o.DiffTrees(ctx, oldTree, newTree)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "a.txt", changes[0].Path)
	assert.Equal(t, Modified, changes[0].Status)
	assert.Equal(t, blob1, changes[0].OldHash)
	assert.Equal(t, blob2, changes[0].NewHash)
	assert.Equal(t, "c.txt", changes[1].Path)
	assert.Equal(t, Added, changes[1].Status)

	// the zero OID stands for the empty tree
	changes, err = o.DiffTrees(ctx, plumbing.ZeroHash, oldTree)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, Added, changes[0].Status)
	assert.Equal(t, "dir/b.txt", changes[1].Path)

	files, err := o.TreeFiles(ctx, newTree)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, blob2, files["a.txt"].Hash)
	assert.Equal(t, blob1, files["dir/b.txt"].Hash)
}

func packify(t *testing.T, entries ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte("PACK"))
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], 2)
	buf.Write(word[:])
	binary.BigEndian.PutUint32(word[:], uint32(len(entries)))
	buf.Write(word[:])
	for _, e := range entries {
		buf.Write(e)
	}
	return buf.Bytes()
}

func packEntry(t *testing.T, typeCode byte, prefix, body []byte) []byte {
	t.Helper()
	out := []byte{(typeCode << 4) | byte(len(body)&0x0f)}
	for size := len(body) >> 4; size > 0; size >>= 7 {
		out[len(out)-1] |= 0x80
		out = append(out, byte(size&0x7f))
	}
	out = append(out, prefix...)
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return append(out, z.Bytes()...)
}

func TestUnpackStoresLooseObjects(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)

	data := packify(t, packEntry(t, 3, nil, []byte("hello\n")))
	result, err := o.Unpack(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Objects)
	assert.Equal(t, 0, result.Skipped)

	payload, err := o.Blob(ctx, plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(payload))
}

func TestUnpackResolvesStoredBase(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	base := []byte("base-content")
	baseOID := writeBlob(t, o, string(base))

	// delta copies the whole base and appends one byte
	delta := append([]byte{byte(len(base)), byte(len(base) + 1), 0x90, byte(len(base)), 0x01}, '!')
	data := packify(t, packEntry(t, 7, baseOID[:], delta))

	result, err := o.Unpack(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Objects)

	derived := object.Hash(object.BlobObject, append(base, '!'))
	payload, err := o.Blob(ctx, derived)
	require.NoError(t, err)
	assert.Equal(t, "base-content!", string(payload))
}

func TestUnpackSkipsMissingBase(t *testing.T) {
	ctx := context.Background()
	o := testODB(t)
	missing := plumbing.NewHash("ffffffffffffffffffffffffffffffffffffffff")
	delta := []byte{1, 1, 0x01, 'x'}
	data := packify(t, packEntry(t, 7, missing[:], delta))

	result, err := o.Unpack(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Objects)
	assert.Equal(t, 1, result.Skipped)
}

func TestCacheDB(t *testing.T) {
	ctx := context.Background()
	cdb, err := NewCacheDB(1000, 1, 64)
	require.NoError(t, err)

	cc := &object.Commit{
		Hash:      plumbing.NewHash("ce013625030ba8dba906f756967f9e9ca394464a"),
		Author:    testSignature(),
		Committer: testSignature(),
		Message:   "cached\n",
	}
	require.NoError(t, cdb.Store(ctx, 7, cc))
	assert.ErrorIs(t, cdb.Store(ctx, 7, "not an object"), ErrUncacheableObject)

	// ristretto admits asynchronously, so poll briefly
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := cdb.Commit(ctx, 7, cc.Hash); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, err := cdb.Commit(ctx, 7, cc.Hash)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Subject())

	// per-repo keying keeps repositories apart
	_, err = cdb.Commit(ctx, 8, cc.Hash)
	assert.True(t, plumbing.IsNoSuchObject(err))
}
