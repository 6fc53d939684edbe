// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package odb is the object database of a single repository: loose objects,
// refs and commit-graph walks over an object-store bucket, with a shared
// in-memory cache for decoded objects.
package odb

import (
	"context"
	"fmt"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/gitfs"
	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

type DB interface {
	Object(ctx context.Context, oid plumbing.Hash) (object.ObjectType, []byte, error)
	Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error)
	Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error)
	Tag(ctx context.Context, oid plumbing.Hash) (*object.Tag, error)
	Blob(ctx context.Context, oid plumbing.Hash) ([]byte, error)
	Exists(ctx context.Context, oid plumbing.Hash) (bool, error)
	WriteObject(ctx context.Context, t object.ObjectType, payload []byte) (plumbing.Hash, error)
}

// ODB binds a repository's filesystem view to the shared object cache.
type ODB struct {
	fs  *gitfs.FS
	cdb CacheDB
	rid int64
}

var (
	_ DB = &ODB{}
)

func NewODB(rid int64, fs *gitfs.FS, cdb CacheDB) *ODB {
	return &ODB{fs: fs, cdb: cdb, rid: rid}
}

func (o *ODB) FS() *gitfs.FS {
	return o.fs
}

func (o *ODB) RID() int64 {
	return o.rid
}

func loosePath(oid plumbing.Hash) string {
	return "objects/" + oid.LoosePath()
}

// Object reads and decodes a loose object, verifying nothing: the OID is the
// storage key, rehashing happens on the write side.
func (o *ODB) Object(ctx context.Context, oid plumbing.Hash) (object.ObjectType, []byte, error) {
	data, err := o.fs.ReadFile(ctx, loosePath(oid))
	if err != nil {
		if oss.IsNotExist(err) {
			return object.InvalidObject, nil, plumbing.NoSuchObject(oid)
		}
		return object.InvalidObject, nil, err
	}
	t, payload, err := object.UnmarshalLoose(data)
	if err != nil {
		return object.InvalidObject, nil, fmt.Errorf("decode object %s: %w", oid, err)
	}
	return t, payload, nil
}

func (o *ODB) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	if o.cdb != nil {
		if cc, err := o.cdb.Commit(ctx, o.rid, oid); err == nil {
			return cc, nil
		}
	}
	t, payload, err := o.Object(ctx, oid)
	if err != nil {
		return nil, err
	}
	if t != object.CommitObject {
		return nil, plumbing.NoSuchObject(oid)
	}
	cc := &object.Commit{Hash: oid}
	if err := cc.Decode(payload); err != nil {
		return nil, err
	}
	if o.cdb != nil {
		_ = o.cdb.Store(ctx, o.rid, cc)
	}
	return cc, nil
}

func (o *ODB) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	if o.cdb != nil {
		if t, err := o.cdb.Tree(ctx, o.rid, oid); err == nil {
			return t, nil
		}
	}
	t, payload, err := o.Object(ctx, oid)
	if err != nil {
		return nil, err
	}
	if t != object.TreeObject {
		return nil, plumbing.NoSuchObject(oid)
	}
	tree := &object.Tree{Hash: oid}
	if err := tree.Decode(payload); err != nil {
		return nil, err
	}
	if o.cdb != nil {
		_ = o.cdb.Store(ctx, o.rid, tree)
	}
	return tree, nil
}

func (o *ODB) Tag(ctx context.Context, oid plumbing.Hash) (*object.Tag, error) {
	t, payload, err := o.Object(ctx, oid)
	if err != nil {
		return nil, err
	}
	if t != object.TagObject {
		return nil, plumbing.NoSuchObject(oid)
	}
	tag := &object.Tag{Hash: oid}
	if err := tag.Decode(payload); err != nil {
		return nil, err
	}
	return tag, nil
}

func (o *ODB) Blob(ctx context.Context, oid plumbing.Hash) ([]byte, error) {
	t, payload, err := o.Object(ctx, oid)
	if err != nil {
		return nil, err
	}
	if t != object.BlobObject {
		return nil, plumbing.NoSuchObject(oid)
	}
	return payload, nil
}

func (o *ODB) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	if o.cdb != nil && o.cdb.Exist(o.rid, oid) {
		return true, nil
	}
	return o.fs.Exists(ctx, loosePath(oid))
}

// WriteObject stores a loose object and returns its OID.
func (o *ODB) WriteObject(ctx context.Context, t object.ObjectType, payload []byte) (plumbing.Hash, error) {
	oid, encoded, err := object.MarshalLoose(t, payload)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := o.fs.WriteFile(ctx, loosePath(oid), encoded); err != nil {
		return plumbing.ZeroHash, err
	}
	if o.cdb != nil {
		o.cdb.Mark(o.rid, oid)
	}
	return oid, nil
}

// WriteCommit canonicalizes and stores a commit.
func (o *ODB) WriteCommit(ctx context.Context, cc *object.Commit) (plumbing.Hash, error) {
	oid, err := o.WriteObject(ctx, object.CommitObject, cc.Payload())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	cc.Hash = oid
	return oid, nil
}

// WriteTree sorts entries canonically and stores a tree.
func (o *ODB) WriteTree(ctx context.Context, tree *object.Tree) (plumbing.Hash, error) {
	tree.SortEntries()
	oid, err := o.WriteObject(ctx, object.TreeObject, tree.Payload())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	tree.Hash = oid
	return oid, nil
}
