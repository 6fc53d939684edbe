// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"sync"

	"github.com/gitbruv/gitbruv/modules/git/pack"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"golang.org/x/sync/errgroup"
)

const (
	// externalBaseBatchLimit bounds parallel loads of ref-delta bases.
	externalBaseBatchLimit = 20
	// storeBatchLimit bounds parallel loose-object stores during unpack.
	storeBatchLimit = 50
)

// LoadExternalBases fetches already-stored objects by OID with bounded
// parallelism. Missing objects are silently absent from the result.
func (o *ODB) LoadExternalBases(ctx context.Context, oids []plumbing.Hash) (map[plumbing.Hash]*pack.Record, error) {
	loaded := make(map[plumbing.Hash]*pack.Record, len(oids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(externalBaseBatchLimit)
	for _, oid := range oids {
		oid := oid
		g.Go(func() error {
			t, payload, err := o.Object(gctx, oid)
			if err != nil {
				if plumbing.IsNoSuchObject(err) {
					return nil
				}
				return err
			}
			mu.Lock()
			loaded[oid] = &pack.Record{Type: t, Payload: payload}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Unpack decodes a received packfile and stores every resolved object as a
// loose object, batching stores to amortize backend latency. Objects whose
// delta base cannot be resolved are skipped by the decoder and counted in the
// result.
func (o *ODB) Unpack(ctx context.Context, packData []byte) (*pack.Result, error) {
	batch := make([]*pack.Record, 0, storeBatchLimit)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(storeBatchLimit)
		for _, rec := range batch {
			rec := rec
			g.Go(func() error {
				_, err := o.WriteObject(gctx, rec.Type, rec.Payload)
				return err
			})
		}
		batch = batch[:0]
		return g.Wait()
	}
	result, err := pack.Decode(ctx, packData, &pack.Options{
		LoadExternal: o.LoadExternalBases,
		OnObject: func(ctx context.Context, oid plumbing.Hash, rec *pack.Record) error {
			batch = append(batch, rec)
			if len(batch) == storeBatchLimit {
				return flush()
			}
			return nil
		},
	})
	if err != nil {
		return result, err
	}
	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}
