// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"sort"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

type ChangeStatus string

const (
	Added    ChangeStatus = "added"
	Deleted  ChangeStatus = "deleted"
	Modified ChangeStatus = "modified"
)

// Change is a blob-level difference between two trees.
type Change struct {
	Path    string        `json:"path"`
	Status  ChangeStatus  `json:"status"`
	OldHash plumbing.Hash `json:"oldOid,omitempty"`
	NewHash plumbing.Hash `json:"newOid,omitempty"`
	OldMode string        `json:"oldMode,omitempty"`
	NewMode string        `json:"newMode,omitempty"`
}

func joinPath(dir, name string) string {
	if len(dir) == 0 {
		return name
	}
	return dir + "/" + name
}

// DiffTrees structurally compares two trees and returns blob-level changes in
// path order. A zero OID stands for the empty tree.
func (o *ODB) DiffTrees(ctx context.Context, oldOID, newOID plumbing.Hash) ([]Change, error) {
	changes, err := o.diffTrees(ctx, oldOID, newOID, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func (o *ODB) treeEntries(ctx context.Context, oid plumbing.Hash) (map[string]object.TreeEntry, error) {
	if oid.IsZero() {
		return map[string]object.TreeEntry{}, nil
	}
	tree, err := o.Tree(ctx, oid)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]object.TreeEntry, len(tree.Entries))
	for _, e := range tree.Entries {
		entries[e.Name] = e
	}
	return entries, nil
}

func (o *ODB) diffTrees(ctx context.Context, oldOID, newOID plumbing.Hash, dir string) ([]Change, error) {
	if oldOID == newOID {
		return nil, nil
	}
	oldEntries, err := o.treeEntries(ctx, oldOID)
	if err != nil {
		return nil, err
	}
	newEntries, err := o.treeEntries(ctx, newOID)
	if err != nil {
		return nil, err
	}
	var changes []Change
	for name, oe := range oldEntries {
		path := joinPath(dir, name)
		ne, ok := newEntries[name]
		if !ok {
			sub, err := o.enumerate(ctx, &oe, path, Deleted)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
			continue
		}
		if oe.Hash == ne.Hash {
			continue
		}
		switch {
		case oe.IsTree() && ne.IsTree():
			sub, err := o.diffTrees(ctx, oe.Hash, ne.Hash, path)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
		default:
			// both blobs, or a type flip: a blob-level modification
			changes = append(changes, Change{
				Path: path, Status: Modified,
				OldHash: oe.Hash, NewHash: ne.Hash,
				OldMode: oe.Mode, NewMode: ne.Mode,
			})
		}
	}
	for name, ne := range newEntries {
		if _, ok := oldEntries[name]; ok {
			continue
		}
		sub, err := o.enumerate(ctx, &ne, joinPath(dir, name), Added)
		if err != nil {
			return nil, err
		}
		changes = append(changes, sub...)
	}
	return changes, nil
}

// enumerate expands a one-sided entry: a blob becomes a single change, a tree
// recurses to enumerate every contained blob.
func (o *ODB) enumerate(ctx context.Context, e *object.TreeEntry, path string, status ChangeStatus) ([]Change, error) {
	if !e.IsTree() {
		c := Change{Path: path, Status: status}
		if status == Added {
			c.NewHash, c.NewMode = e.Hash, e.Mode
		} else {
			c.OldHash, c.OldMode = e.Hash, e.Mode
		}
		return []Change{c}, nil
	}
	tree, err := o.Tree(ctx, e.Hash)
	if err != nil {
		return nil, err
	}
	var changes []Change
	for i := range tree.Entries {
		sub, err := o.enumerate(ctx, &tree.Entries[i], joinPath(path, tree.Entries[i].Name), status)
		if err != nil {
			return nil, err
		}
		changes = append(changes, sub...)
	}
	return changes, nil
}

// TreeFile is a flattened tree member.
type TreeFile struct {
	Hash plumbing.Hash
	Mode string
}

// TreeFiles flattens a tree into path → (oid, mode) for every blob.
func (o *ODB) TreeFiles(ctx context.Context, treeOID plumbing.Hash) (map[string]TreeFile, error) {
	files := make(map[string]TreeFile)
	if treeOID.IsZero() {
		return files, nil
	}
	if err := o.flatten(ctx, treeOID, "", files); err != nil {
		return nil, err
	}
	return files, nil
}

func (o *ODB) flatten(ctx context.Context, treeOID plumbing.Hash, dir string, files map[string]TreeFile) error {
	tree, err := o.Tree(ctx, treeOID)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		path := joinPath(dir, e.Name)
		if e.IsTree() {
			if err := o.flatten(ctx, e.Hash, path, files); err != nil {
				return err
			}
			continue
		}
		files[path] = TreeFile{Hash: e.Hash, Mode: e.Mode}
	}
	return nil
}
