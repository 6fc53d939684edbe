// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gitbruv/gitbruv/modules/diff"
	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve/cache"
	"github.com/gitbruv/gitbruv/pkg/serve/odb"
)

type BranchInfo struct {
	Name            string    `json:"name"`
	OID             string    `json:"oid"`
	IsDefault       bool      `json:"isDefault"`
	CommitCount     int64     `json:"commitCount,omitempty"`
	LastSubject     string    `json:"lastSubject,omitempty"`
	LastAuthor      string    `json:"lastAuthor,omitempty"`
	LastCommittedAt time.Time `json:"lastCommittedAt,omitempty"`
}

type SignatureInfo struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

type CommitInfo struct {
	OID       string        `json:"oid"`
	Subject   string        `json:"subject"`
	Message   string        `json:"message"`
	Author    SignatureInfo `json:"author"`
	Committer SignatureInfo `json:"committer"`
	Parents   []string      `json:"parents"`
}

type EntryInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Mode string `json:"mode"`
	OID  string `json:"oid"`
}

type FileInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	OID     string `json:"oid"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

type FileDiff struct {
	Path      string      `json:"path"`
	Status    string      `json:"status"`
	Additions int         `json:"additions"`
	Deletions int         `json:"deletions"`
	Hunks     []diff.Hunk `json:"hunks"`
}

type DiffInfo struct {
	Commit    *CommitInfo `json:"commit,omitempty"`
	Files     []FileDiff  `json:"files"`
	Additions int         `json:"additions"`
	Deletions int         `json:"deletions"`
}

type CompareInfo struct {
	MergeBase string        `json:"mergeBase,omitempty"`
	Commits   []*CommitInfo `json:"commits"`
	Files     []FileDiff    `json:"files"`
	Additions int           `json:"additions"`
	Deletions int           `json:"deletions"`
}

func newCommitInfo(cc *object.Commit) *CommitInfo {
	parents := make([]string, 0, len(cc.Parents))
	for _, p := range cc.Parents {
		parents = append(parents, p.String())
	}
	return &CommitInfo{
		OID:       cc.Hash.String(),
		Subject:   cc.Subject(),
		Message:   cc.Message,
		Author:    SignatureInfo{Name: cc.Author.Name, Email: cc.Author.Email, Date: cc.Author.When},
		Committer: SignatureInfo{Name: cc.Committer.Name, Email: cc.Committer.Email, Date: cc.Committer.When},
		Parents:   parents,
	}
}

// Branches lists branch heads from the ref store, enriched with the
// denormalized metadata rows. Empty listings are never cached.
func (r *repository) Branches(ctx context.Context) ([]*BranchInfo, error) {
	key := cache.Key("branches", r.owner.UserName, r.repo.Name)
	var cached []*BranchInfo
	if r.rc.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	names, err := r.odb.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	defaultBranch := r.DefaultBranch(ctx)
	branches := make([]*BranchInfo, 0, len(names))
	for _, name := range names {
		oid, err := r.odb.Resolve(ctx, plumbing.NewBranchReferenceName(name))
		if err != nil {
			continue
		}
		bi := &BranchInfo{Name: name, OID: oid.String(), IsDefault: name == defaultBranch}
		if b, err := r.mdb.FindBranch(ctx, r.repo.ID, name); err == nil {
			bi.CommitCount = b.CommitCount
			bi.LastSubject = b.LastSubject
			bi.LastAuthor = b.LastAuthor
			bi.LastCommittedAt = b.LastCommittedAt
		}
		branches = append(branches, bi)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	if len(branches) != 0 {
		r.rc.SetJSON(ctx, key, branches, cache.TTLBranches)
	}
	return branches, nil
}

// Commits pages the first parent history of a branch.
func (r *repository) Commits(ctx context.Context, branch string, limit, skip int) ([]*CommitInfo, bool, error) {
	key := cache.Key("commits", r.owner.UserName, r.repo.Name, branch, fmt.Sprintf("%d:%d", limit, skip))
	var cached struct {
		Commits []*CommitInfo `json:"commits"`
		HasMore bool          `json:"hasMore"`
	}
	if r.rc.GetJSON(ctx, key, &cached) {
		return cached.Commits, cached.HasMore, nil
	}
	tip, err := r.odb.Resolve(ctx, plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return nil, false, err
	}
	commits, hasMore, err := r.odb.WalkFirstParent(ctx, tip, limit, skip)
	if err != nil {
		return nil, false, err
	}
	infos := make([]*CommitInfo, 0, len(commits))
	for _, cc := range commits {
		infos = append(infos, newCommitInfo(cc))
	}
	if len(infos) != 0 {
		cached.Commits, cached.HasMore = infos, hasMore
		r.rc.SetJSON(ctx, key, &cached, cache.TTLCommits)
	}
	return infos, hasMore, nil
}

func (r *repository) CommitCount(ctx context.Context, branch string) (int, error) {
	key := cache.Key("commit-count", r.owner.UserName, r.repo.Name, branch)
	var cached int
	if r.rc.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	tip, err := r.odb.Resolve(ctx, plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return 0, err
	}
	count, err := r.odb.CountFirstParent(ctx, tip)
	if err != nil {
		return 0, err
	}
	if count != 0 {
		r.rc.SetJSON(ctx, key, count, cache.TTLCommitCount)
	}
	return count, nil
}

func (r *repository) treeAt(ctx context.Context, rev, path string) (*object.Tree, error) {
	oid, err := r.odb.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, err
	}
	cc, err := r.odb.Commit(ctx, oid)
	if err != nil {
		return nil, err
	}
	tree, err := r.odb.Tree(ctx, cc.Tree)
	if err != nil {
		return nil, err
	}
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		e := tree.Find(name)
		if e == nil || !e.IsTree() {
			return nil, plumbing.NewErrRevNotFound("path '%s' not found at '%s'", path, rev)
		}
		if tree, err = r.odb.Tree(ctx, e.Hash); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// Tree lists one directory level at a revision, trees first in name order.
func (r *repository) Tree(ctx context.Context, rev, path string) ([]*EntryInfo, error) {
	key := cache.Key("trees", r.owner.UserName, r.repo.Name, rev, path)
	var cached []*EntryInfo
	if r.rc.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	tree, err := r.treeAt(ctx, rev, path)
	if err != nil {
		return nil, err
	}
	entries := make([]*EntryInfo, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, &EntryInfo{
			Name: e.Name,
			Path: joinBrowsePath(path, e.Name),
			Type: e.Type().String(),
			Mode: e.Mode,
			OID:  e.Hash.String(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == "tree"
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) != 0 {
		r.rc.SetJSON(ctx, key, entries, cache.TTLTrees)
	}
	return entries, nil
}

func joinBrowsePath(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// File reads one blob at a revision. Content is decoded as UTF-8 with
// replacement.
func (r *repository) File(ctx context.Context, rev, path string) (*FileInfo, error) {
	key := cache.Key("files", r.owner.UserName, r.repo.Name, rev, path)
	var cached FileInfo
	if r.rc.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}
	dir, name := "", strings.Trim(path, "/")
	if i := strings.LastIndexByte(name, '/'); i != -1 {
		dir, name = name[:i], name[i+1:]
	}
	tree, err := r.treeAt(ctx, rev, dir)
	if err != nil {
		return nil, err
	}
	e := tree.Find(name)
	if e == nil || e.IsTree() {
		return nil, plumbing.NewErrRevNotFound("file '%s' not found at '%s'", path, rev)
	}
	data, err := r.odb.Blob(ctx, e.Hash)
	if err != nil {
		return nil, err
	}
	fi := &FileInfo{
		Name:    name,
		Path:    joinBrowsePath(dir, name),
		OID:     e.Hash.String(),
		Size:    len(data),
		Content: diff.Text(data),
	}
	r.rc.SetJSON(ctx, key, fi, cache.TTLFiles)
	return fi, nil
}

// Readme finds the readme blob in the root tree of a revision, matching the
// name case-insensitively the way the web UI expects.
func (r *repository) Readme(ctx context.Context, rev string) (*FileInfo, error) {
	entries, err := r.Tree(ctx, rev, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type == "blob" && strings.EqualFold(e.Name, "README.md") {
			return r.File(ctx, rev, e.Name)
		}
	}
	return nil, plumbing.NewErrRevNotFound("no readme at '%s'", rev)
}

func (r *repository) fileDiffs(ctx context.Context, changes []odb.Change) ([]FileDiff, int, int, error) {
	files := make([]FileDiff, 0, len(changes))
	var additions, deletions int
	for _, ch := range changes {
		var oldData, newData []byte
		var err error
		if !ch.OldHash.IsZero() {
			if oldData, err = r.odb.Blob(ctx, ch.OldHash); err != nil {
				return nil, 0, 0, err
			}
		}
		if !ch.NewHash.IsZero() {
			if newData, err = r.odb.Blob(ctx, ch.NewHash); err != nil {
				return nil, 0, 0, err
			}
		}
		hunks := diff.Unified(oldData, newData)
		adds, dels := diff.Stats(hunks)
		additions += adds
		deletions += dels
		files = append(files, FileDiff{
			Path:      ch.Path,
			Status:    string(ch.Status),
			Additions: adds,
			Deletions: dels,
			Hunks:     hunks,
		})
	}
	return files, additions, deletions, nil
}

// CommitDiff diffs a commit against its first parent, parentless commits
// diff against the empty tree.
func (r *repository) CommitDiff(ctx context.Context, rev string) (*DiffInfo, error) {
	oid, err := r.odb.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, err
	}
	cc, err := r.odb.Commit(ctx, oid)
	if err != nil {
		return nil, err
	}
	var parentTree plumbing.Hash
	if len(cc.Parents) != 0 {
		parent, err := r.odb.Commit(ctx, cc.Parents[0])
		if err != nil {
			return nil, err
		}
		parentTree = parent.Tree
	}
	changes, err := r.odb.DiffTrees(ctx, parentTree, cc.Tree)
	if err != nil {
		return nil, err
	}
	files, additions, deletions, err := r.fileDiffs(ctx, changes)
	if err != nil {
		return nil, err
	}
	return &DiffInfo{
		Commit:    newCommitInfo(cc),
		Files:     files,
		Additions: additions,
		Deletions: deletions,
	}, nil
}

// Compare diffs two revisions the pull request way: commits between head
// and the merge base, plus the tree diff from base to head.
func (r *repository) Compare(ctx context.Context, baseRev, headRev string) (*CompareInfo, error) {
	baseOID, err := r.odb.ResolveRevision(ctx, baseRev)
	if err != nil {
		return nil, err
	}
	headOID, err := r.odb.ResolveRevision(ctx, headRev)
	if err != nil {
		return nil, err
	}
	mergeBase, err := r.odb.MergeBase(ctx, baseOID, headOID)
	if err != nil {
		return nil, err
	}
	commits, err := r.odb.CommitsBetween(ctx, headOID, mergeBase)
	if err != nil {
		return nil, err
	}
	infos := make([]*CommitInfo, 0, len(commits))
	for _, cc := range commits {
		infos = append(infos, newCommitInfo(cc))
	}
	baseCommit, err := r.odb.Commit(ctx, baseOID)
	if err != nil {
		return nil, err
	}
	headCommit, err := r.odb.Commit(ctx, headOID)
	if err != nil {
		return nil, err
	}
	changes, err := r.odb.DiffTrees(ctx, baseCommit.Tree, headCommit.Tree)
	if err != nil {
		return nil, err
	}
	files, additions, deletions, err := r.fileDiffs(ctx, changes)
	if err != nil {
		return nil, err
	}
	ci := &CompareInfo{
		Commits:   infos,
		Files:     files,
		Additions: additions,
		Deletions: deletions,
	}
	if !mergeBase.IsZero() {
		ci.MergeBase = mergeBase.String()
	}
	return ci, nil
}
