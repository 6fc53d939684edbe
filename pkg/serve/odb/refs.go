// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"sort"
	"strings"

	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

const (
	// maxSymrefDepth bounds symbolic ref chains during resolution.
	maxSymrefDepth = 10

	headsPrefix = "refs/heads/"
	tagsPrefix  = "refs/tags/"
)

// ReadRef reads a single ref without following symbolic targets. Loose refs
// win over packed-refs entries.
func (o *ODB) ReadRef(ctx context.Context, name plumbing.ReferenceName) (*plumbing.Reference, error) {
	data, err := o.fs.ReadFile(ctx, name.String())
	if err == nil {
		return plumbing.NewReferenceFromStrings(name.String(), strings.TrimSpace(string(data))), nil
	}
	if !oss.IsNotExist(err) {
		return nil, err
	}
	packed, perr := o.packedRefs(ctx)
	if perr == nil {
		if oid, ok := packed[name.String()]; ok {
			return plumbing.NewHashReference(name, oid), nil
		}
	}
	return nil, plumbing.ErrReferenceNotFound
}

// Resolve normalizes and resolves a ref to an OID, following symbolic refs a
// bounded number of times.
func (o *ODB) Resolve(ctx context.Context, name plumbing.ReferenceName) (plumbing.Hash, error) {
	current := name
	for i := 0; i < maxSymrefDepth; i++ {
		ref, err := o.ReadRef(ctx, current)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if ref.Type() == plumbing.HashReference {
			return ref.Hash(), nil
		}
		current = ref.Target()
	}
	return plumbing.ZeroHash, plumbing.NewErrRevNotFound("symbolic ref chain too deep: %s", name)
}

// ResolveRevision resolves a branch short name, full ref, HEAD, or a literal
// 40-hex OID.
func (o *ODB) ResolveRevision(ctx context.Context, rev string) (plumbing.Hash, error) {
	if plumbing.ValidateHashHex(rev) {
		return plumbing.NewHash(rev), nil
	}
	return o.Resolve(ctx, plumbing.NewReferenceName(rev))
}

// RefExists reports whether the ref resolves and its target object exists.
func (o *ODB) RefExists(ctx context.Context, name plumbing.ReferenceName) (bool, error) {
	oid, err := o.Resolve(ctx, name)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound || plumbing.IsErrRevNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return o.Exists(ctx, oid)
}

// WriteRef writes "<oid>\n" to the normalized ref key.
func (o *ODB) WriteRef(ctx context.Context, name plumbing.ReferenceName, oid plumbing.Hash) error {
	return o.fs.WriteFile(ctx, name.String(), []byte(oid.String()+"\n"))
}

func (o *ODB) DeleteRef(ctx context.Context, name plumbing.ReferenceName) error {
	return o.fs.Unlink(ctx, name.String())
}

// HEAD returns the symbolic HEAD reference.
func (o *ODB) HEAD(ctx context.Context) (*plumbing.Reference, error) {
	return o.ReadRef(ctx, plumbing.HEAD)
}

// DefaultBranch returns the branch HEAD points at, falling back to main.
func (o *ODB) DefaultBranch(ctx context.Context) plumbing.ReferenceName {
	ref, err := o.HEAD(ctx)
	if err == nil && ref.Type() == plumbing.SymbolicReference {
		return ref.Target()
	}
	return plumbing.Main
}

// ListBranches returns branch leaf names.
func (o *ODB) ListBranches(ctx context.Context) ([]string, error) {
	refs, err := o.ListRefs(ctx)
	if err != nil {
		return nil, err
	}
	branches := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Name().IsBranch() {
			branches = append(branches, ref.Name().BranchName())
		}
	}
	return branches, nil
}

// ListRefs returns every ref under refs/ in deterministic name order. Loose
// refs shadow packed-refs entries.
func (o *ODB) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	prefix := o.fs.Key("refs") + "/"
	keys, err := oss.ListAll(ctx, o.fs.Bucket(), prefix)
	if err != nil {
		return nil, err
	}
	values := make(map[string]plumbing.Hash, len(keys))
	packed, perr := o.packedRefs(ctx)
	if perr == nil {
		for name, oid := range packed {
			values[name] = oid
		}
	}
	for _, key := range keys {
		name := "refs/" + key[len(prefix):]
		oid, err := o.Resolve(ctx, plumbing.ReferenceName(name))
		if err != nil {
			continue
		}
		values[name] = oid
	}
	refs := make([]*plumbing.Reference, 0, len(values))
	for name, oid := range values {
		refs = append(refs, plumbing.NewHashReference(plumbing.ReferenceName(name), oid))
	}
	sort.Sort(plumbing.ReferenceSlice(refs))
	return refs, nil
}

// packedRefs parses the optional packed-refs file: "<oid> <name>" lines,
// '#' comments and '^' peeled lines skipped.
func (o *ODB) packedRefs(ctx context.Context) (map[string]plumbing.Hash, error) {
	data, err := o.fs.ReadFile(ctx, "packed-refs")
	if err != nil {
		return nil, err
	}
	refs := make(map[string]plumbing.Hash)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' || line[0] == '^' {
			continue
		}
		oid, name, ok := strings.Cut(line, " ")
		if !ok || !plumbing.ValidateHashHex(oid) {
			continue
		}
		refs[name] = plumbing.NewHash(oid)
	}
	return refs, nil
}
