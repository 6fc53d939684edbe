// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

func cacheKey(rid int64, oid plumbing.Hash) string {
	return fmt.Sprintf("%d/%s", rid, oid)
}

// CacheDB is the process-wide decoded-object cache shared by every ODB.
type CacheDB interface {
	Commit(ctx context.Context, rid int64, oid plumbing.Hash) (*object.Commit, error)
	Tree(ctx context.Context, rid int64, oid plumbing.Hash) (*object.Tree, error)
	Store(ctx context.Context, rid int64, a any) error
	Mark(rid int64, oid plumbing.Hash)
	Exist(rid int64, oid plumbing.Hash) bool
}

type cacheDB struct {
	*ristretto.Cache[string, any]
}

func NewCacheDB(numCounters int64, maxCost int64, bufferItems int64) (CacheDB, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: numCounters,
		MaxCost:     maxCost << 30,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("unable initialize memory cache, error: %w", err)
	}
	return &cacheDB{Cache: c}, nil
}

func (d *cacheDB) Commit(ctx context.Context, rid int64, oid plumbing.Hash) (*object.Commit, error) {
	if o, ok := d.Get(cacheKey(rid, oid)); ok {
		if c, ok := o.(*object.Commit); ok {
			return c, nil
		}
	}
	return nil, plumbing.NoSuchObject(oid)
}

func (d *cacheDB) Tree(ctx context.Context, rid int64, oid plumbing.Hash) (*object.Tree, error) {
	if o, ok := d.Get(cacheKey(rid, oid)); ok {
		if t, ok := o.(*object.Tree); ok {
			return t, nil
		}
	}
	return nil, plumbing.NoSuchObject(oid)
}

var (
	ErrUncacheableObject = errors.New("uncacheable object")
)

func (d *cacheDB) Store(ctx context.Context, rid int64, a any) error {
	switch v := a.(type) {
	case *object.Commit:
		d.SetWithTTL(cacheKey(rid, v.Hash), v, 1, time.Hour*24)
	case *object.Tree:
		d.SetWithTTL(cacheKey(rid, v.Hash), v, 1, time.Hour*24)
	default:
		return ErrUncacheableObject
	}
	return nil
}

// Mark remembers that the object exists without caching its bytes.
func (d *cacheDB) Mark(rid int64, oid plumbing.Hash) {
	d.SetWithTTL(cacheKey(rid, oid)+"!", true, 1, time.Hour*24)
}

func (d *cacheDB) Exist(rid int64, oid plumbing.Hash) bool {
	if _, ok := d.Get(cacheKey(rid, oid)); ok {
		return true
	}
	_, ok := d.Get(cacheKey(rid, oid) + "!")
	return ok
}
