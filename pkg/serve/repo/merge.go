// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve/odb"
	"github.com/sirupsen/logrus"
)

// ErrMergeConflict carries the paths that changed to different contents on
// both sides since the merge base.
type ErrMergeConflict struct {
	Paths []string
}

func (e *ErrMergeConflict) Error() string {
	return fmt.Sprintf("merge conflict in %s", strings.Join(e.Paths, ", "))
}

func IsErrMergeConflict(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrMergeConflict)
	return ok
}

func (r *repository) sameRepository(other Repository) bool {
	return r.owner.ID == other.Owner().ID && r.repo.Name == other.Metadata().Name
}

// Merge performs the pull request merge: the head branch of the head
// repository is merged into baseBranch of this repository. The merge commit
// adopts the head tree wholesale, no merged tree is synthesized on this
// path. Parent order is [base, head], the first parent is the advanced ref.
func (r *repository) Merge(ctx context.Context, head Repository, baseBranch, headBranch string, author object.Signature, message string) (plumbing.Hash, error) {
	baseRef := plumbing.NewReferenceName(baseBranch)
	headRef := plumbing.NewReferenceName(headBranch)
	baseOID, err := r.odb.Resolve(ctx, baseRef)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("resolve %s: %w", baseRef, err)
	}
	headOID, err := head.ODB().Resolve(ctx, headRef)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("resolve %s: %w", headRef, err)
	}

	if !r.sameRepository(head) {
		// Fork case: the head graph must be present locally before the
		// merge commit can reference it.
		mergeBase, err := head.ODB().MergeBase(ctx, baseOID, headOID)
		if err != nil {
			logrus.Warnf("cross repo merge base error: %v", err)
		}
		if err := copyReachable(ctx, head.ODB(), r.odb, headOID, mergeBase); err != nil {
			return plumbing.Hash{}, fmt.Errorf("copy head objects: %w", err)
		}
	}

	headCommit, err := r.odb.Commit(ctx, headOID)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("read head commit: %w", err)
	}
	now := time.Now()
	author.When = now
	merge := &object.Commit{
		Tree:      headCommit.Tree,
		Parents:   []plumbing.Hash{baseOID, headOID},
		Author:    author,
		Committer: author,
		Message:   message,
	}
	mergeOID, err := r.odb.WriteCommit(ctx, merge)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if err := r.advanceVerified(ctx, baseRef, mergeOID); err != nil {
		return plumbing.Hash{}, err
	}
	r.afterBranchUpdate(ctx, baseRef, mergeOID)
	return mergeOID, nil
}

// UpdateBranch advances the head branch of this repository over a moved
// base: a three way merge against the merge base is synthesized and a merge
// commit with parents [head, base] is written. Conflicting paths abort the
// operation with ErrMergeConflict.
func (r *repository) UpdateBranch(ctx context.Context, base Repository, headBranch, baseBranch string, author object.Signature) (plumbing.Hash, error) {
	headRef := plumbing.NewReferenceName(headBranch)
	baseRef := plumbing.NewReferenceName(baseBranch)
	headOID, err := r.odb.Resolve(ctx, headRef)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("resolve %s: %w", headRef, err)
	}
	baseOID, err := base.ODB().Resolve(ctx, baseRef)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("resolve %s: %w", baseRef, err)
	}

	if !r.sameRepository(base) {
		mergeBase, err := base.ODB().MergeBase(ctx, headOID, baseOID)
		if err != nil {
			logrus.Warnf("cross repo merge base error: %v", err)
		}
		if err := copyReachable(ctx, base.ODB(), r.odb, baseOID, mergeBase); err != nil {
			return plumbing.Hash{}, fmt.Errorf("copy base objects: %w", err)
		}
	}

	mergeBase, err := r.odb.MergeBase(ctx, headOID, baseOID)
	if err != nil {
		return plumbing.Hash{}, err
	}
	mergedTree, err := r.mergeTrees(ctx, mergeBase, headOID, baseOID)
	if err != nil {
		return plumbing.Hash{}, err
	}
	now := time.Now()
	author.When = now
	merge := &object.Commit{
		Tree:      mergedTree,
		Parents:   []plumbing.Hash{headOID, baseOID},
		Author:    author,
		Committer: author,
		Message:   fmt.Sprintf("Merge branch '%s' into %s", baseRef.BranchName(), headRef.BranchName()),
	}
	mergeOID, err := r.odb.WriteCommit(ctx, merge)
	if err != nil {
		return plumbing.Hash{}, err
	}
	if err := r.advanceVerified(ctx, headRef, mergeOID); err != nil {
		return plumbing.Hash{}, err
	}
	r.afterBranchUpdate(ctx, headRef, mergeOID)
	return mergeOID, nil
}

// advanceVerified writes the ref and reads it back, a mismatch means a
// concurrent writer won the race.
func (r *repository) advanceVerified(ctx context.Context, ref plumbing.ReferenceName, oid plumbing.Hash) error {
	if err := r.odb.WriteRef(ctx, ref, oid); err != nil {
		return err
	}
	current, err := r.odb.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("read back %s: %w", ref, err)
	}
	if current != oid {
		return fmt.Errorf("ref %s moved concurrently: want %s have %s", ref, oid, current)
	}
	return nil
}

func (r *repository) commitFiles(ctx context.Context, commitOID plumbing.Hash) (map[string]odb.TreeFile, error) {
	if commitOID.IsZero() {
		return map[string]odb.TreeFile{}, nil
	}
	cc, err := r.odb.Commit(ctx, commitOID)
	if err != nil {
		return nil, err
	}
	return r.odb.TreeFiles(ctx, cc.Tree)
}

// mergeTrees builds the three way merged tree. A path conflicts iff head and
// base both changed it from the merge base to distinct contents.
func (r *repository) mergeTrees(ctx context.Context, mergeBase, headOID, baseOID plumbing.Hash) (plumbing.Hash, error) {
	mFiles, err := r.commitFiles(ctx, mergeBase)
	if err != nil {
		return plumbing.Hash{}, err
	}
	headFiles, err := r.commitFiles(ctx, headOID)
	if err != nil {
		return plumbing.Hash{}, err
	}
	baseFiles, err := r.commitFiles(ctx, baseOID)
	if err != nil {
		return plumbing.Hash{}, err
	}

	paths := make(map[string]bool, len(headFiles)+len(baseFiles))
	for p := range mFiles {
		paths[p] = true
	}
	for p := range headFiles {
		paths[p] = true
	}
	for p := range baseFiles {
		paths[p] = true
	}

	var conflicts []string
	merged := make(map[string]odb.TreeFile, len(paths))
	for p := range paths {
		m, inM := mFiles[p]
		h, inHead := headFiles[p]
		b, inBase := baseFiles[p]
		headChanged := inHead != inM || (inHead && h.Hash != m.Hash)
		baseChanged := inBase != inM || (inBase && b.Hash != m.Hash)
		switch {
		case headChanged && baseChanged:
			if inHead == inBase && (!inHead || h.Hash == b.Hash) {
				// Both sides converged on the same content.
				if inHead {
					merged[p] = h
				}
				continue
			}
			conflicts = append(conflicts, p)
		case headChanged:
			if inHead {
				merged[p] = h
			}
		case baseChanged:
			if inBase {
				merged[p] = b
			}
		default:
			if inHead {
				merged[p] = h
			} else if inM {
				merged[p] = m
			}
		}
	}
	if len(conflicts) != 0 {
		sort.Strings(conflicts)
		return plumbing.Hash{}, &ErrMergeConflict{Paths: conflicts}
	}
	return r.writeMergedTree(ctx, merged)
}

type treeNode struct {
	files    map[string]odb.TreeFile
	children map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{files: make(map[string]odb.TreeFile), children: make(map[string]*treeNode)}
}

func (n *treeNode) insert(path string, f odb.TreeFile) {
	if dir, rest, ok := strings.Cut(path, "/"); ok {
		child, exists := n.children[dir]
		if !exists {
			child = newTreeNode()
			n.children[dir] = child
		}
		child.insert(rest, f)
		return
	}
	n.files[path] = f
}

// writeMergedTree groups the flat path map into a directory trie and writes
// subtrees bottom up.
func (r *repository) writeMergedTree(ctx context.Context, files map[string]odb.TreeFile) (plumbing.Hash, error) {
	root := newTreeNode()
	for p, f := range files {
		root.insert(p, f)
	}
	return r.writeTreeNode(ctx, root)
}

func (r *repository) writeTreeNode(ctx context.Context, n *treeNode) (plumbing.Hash, error) {
	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(n.files)+len(n.children))}
	for name, child := range n.children {
		oid, err := r.writeTreeNode(ctx, child)
		if err != nil {
			return plumbing.Hash{}, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Mode: object.ModeDir, Name: name, Hash: oid})
	}
	for name, f := range n.files {
		tree.Entries = append(tree.Entries, object.TreeEntry{Mode: f.Mode, Name: name, Hash: f.Hash})
	}
	return r.odb.WriteTree(ctx, tree)
}

// copyReachable copies every object reachable from tip that the destination
// lacks, stopping the commit walk at stop and at commits the destination
// already holds.
func copyReachable(ctx context.Context, src, dst *odb.ODB, tip, stop plumbing.Hash) error {
	seen := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{tip}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]
		if oid.IsZero() || seen[oid] || oid == stop {
			continue
		}
		seen[oid] = true
		if exists, err := dst.Exists(ctx, oid); err != nil {
			return err
		} else if exists {
			continue
		}
		cc, err := src.Commit(ctx, oid)
		if err != nil {
			return err
		}
		if err := copyTree(ctx, src, dst, cc.Tree); err != nil {
			return err
		}
		if err := copyObject(ctx, src, dst, oid); err != nil {
			return err
		}
		queue = append(queue, cc.Parents...)
	}
	return nil
}

func copyTree(ctx context.Context, src, dst *odb.ODB, treeOID plumbing.Hash) error {
	if exists, err := dst.Exists(ctx, treeOID); err != nil {
		return err
	} else if exists {
		return nil
	}
	tree, err := src.Tree(ctx, treeOID)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		if e.IsTree() {
			if err := copyTree(ctx, src, dst, e.Hash); err != nil {
				return err
			}
			continue
		}
		if exists, err := dst.Exists(ctx, e.Hash); err != nil {
			return err
		} else if !exists {
			if err := copyObject(ctx, src, dst, e.Hash); err != nil {
				return err
			}
		}
	}
	return copyObject(ctx, src, dst, treeOID)
}

func copyObject(ctx context.Context, src, dst *odb.ODB, oid plumbing.Hash) error {
	t, payload, err := src.Object(ctx, oid)
	if err != nil {
		return err
	}
	_, err = dst.WriteObject(ctx, t, payload)
	return err
}
