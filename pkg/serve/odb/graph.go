// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
)

const (
	// mergeBaseAncestorCap bounds the ancestor set collected on one side
	// of a merge-base computation.
	mergeBaseAncestorCap = 10000
	// ancestorVisitCap bounds the multi-parent BFS of an ancestry test.
	ancestorVisitCap = 10000
	// commitsBetweenCap bounds a first-parent range walk.
	commitsBetweenCap = 1000
)

// WalkFirstParent yields commits along the first-parent chain starting at
// from, applying skip then limit. hasMore reports whether the chain continues
// past the returned page.
func (o *ODB) WalkFirstParent(ctx context.Context, from plumbing.Hash, limit, skip int) (commits []*object.Commit, hasMore bool, err error) {
	current := from
	seen := make(map[plumbing.Hash]bool)
	for !current.IsZero() {
		if seen[current] {
			break
		}
		seen[current] = true
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				break
			}
			return nil, false, err
		}
		if skip > 0 {
			skip--
		} else {
			if limit > 0 && len(commits) == limit {
				return commits, true, nil
			}
			commits = append(commits, cc)
		}
		if cc.NumParents() == 0 {
			break
		}
		current = cc.Parents[0]
	}
	return commits, false, nil
}

// CountFirstParent counts commits along the first-parent chain, capped.
func (o *ODB) CountFirstParent(ctx context.Context, from plumbing.Hash) (int, error) {
	count := 0
	current := from
	seen := make(map[plumbing.Hash]bool)
	for !current.IsZero() && count < mergeBaseAncestorCap {
		if seen[current] {
			break
		}
		seen[current] = true
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				break
			}
			return 0, err
		}
		count++
		if cc.NumParents() == 0 {
			break
		}
		current = cc.Parents[0]
	}
	return count, nil
}

// MergeBase walks a's first-parent ancestors into a capped set, then walks
// b's first-parent chain and returns the first common commit. Zero when the
// histories are unrelated.
func (o *ODB) MergeBase(ctx context.Context, a, b plumbing.Hash) (plumbing.Hash, error) {
	ancestors := make(map[plumbing.Hash]bool, 256)
	current := a
	for !current.IsZero() && len(ancestors) < mergeBaseAncestorCap {
		if ancestors[current] {
			break
		}
		ancestors[current] = true
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				break
			}
			return plumbing.ZeroHash, err
		}
		if cc.NumParents() == 0 {
			break
		}
		current = cc.Parents[0]
	}
	current = b
	seen := make(map[plumbing.Hash]bool)
	for !current.IsZero() && !seen[current] {
		if ancestors[current] {
			return current, nil
		}
		seen[current] = true
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				break
			}
			return plumbing.ZeroHash, err
		}
		if cc.NumParents() == 0 {
			break
		}
		current = cc.Parents[0]
	}
	return plumbing.ZeroHash, nil
}

// IsAncestor reports whether a is reachable from d, multi-parent BFS with a
// visit cap.
func (o *ODB) IsAncestor(ctx context.Context, a, d plumbing.Hash) (bool, error) {
	if a == d {
		return true, nil
	}
	queue := []plumbing.Hash{d}
	visited := make(map[plumbing.Hash]bool, 256)
	for len(queue) > 0 && len(visited) < ancestorVisitCap {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		if current == a {
			return true, nil
		}
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return false, err
		}
		queue = append(queue, cc.Parents...)
	}
	return false, nil
}

// CommitsBetween walks first-parent from head until stop or root, capped.
// The stop commit itself is excluded.
func (o *ODB) CommitsBetween(ctx context.Context, head, stop plumbing.Hash) ([]*object.Commit, error) {
	commits := make([]*object.Commit, 0, 32)
	current := head
	seen := make(map[plumbing.Hash]bool)
	for !current.IsZero() && current != stop && len(commits) < commitsBetweenCap {
		if seen[current] {
			break
		}
		seen[current] = true
		cc, err := o.Commit(ctx, current)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				break
			}
			return nil, err
		}
		commits = append(commits, cc)
		if cc.NumParents() == 0 {
			break
		}
		current = cc.Parents[0]
	}
	return commits, nil
}
