// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/modules/plumbing/format/pktline"
	"github.com/klauspost/compress/zlib"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitbruv/gitbruv/pkg/serve"
	"github.com/gitbruv/gitbruv/pkg/serve/cache"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/odb"
)

func TestMain(m *testing.M) {
	// the redis cache is deliberately unreachable in tests, every access
	// degrades to a miss and would log a warning
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

// fakeDB is an in-memory database.DB for exercising repository operations
// without a mysql server.
type fakeDB struct {
	nextID      int64
	users       map[int64]*database.User
	repos       map[int64]*database.Repository
	branches    map[string]*database.Branch
	protections map[string]*database.BranchProtection
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       make(map[int64]*database.User),
		repos:       make(map[int64]*database.Repository),
		branches:    make(map[string]*database.Branch),
		protections: make(map[string]*database.BranchProtection),
	}
}

func branchKey(rid int64, name string) string {
	return fmt.Sprintf("%d/%s", rid, name)
}

func (d *fakeDB) Database() *sql.DB { return nil }
func (d *fakeDB) Close() error      { return nil }

func (d *fakeDB) FindUser(ctx context.Context, uid int64) (*database.User, error) {
	if u, ok := d.users[uid]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (d *fakeDB) SearchUser(ctx context.Context, emailOrName string) (*database.User, error) {
	for _, u := range d.users {
		if u.UserName == emailOrName || u.Email == emailOrName {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d *fakeDB) NewUser(ctx context.Context, u *database.User) (*database.User, error) {
	d.nextID++
	u.ID = d.nextID
	d.users[u.ID] = u
	return u, nil
}

func (d *fakeDB) FindRepositoryByID(ctx context.Context, rid int64) (*database.User, *database.Repository, error) {
	r, ok := d.repos[rid]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	u, ok := d.users[r.OwnerID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	return u, r, nil
}

func (d *fakeDB) FindRepositoryByPath(ctx context.Context, ownerName, repoName string) (*database.User, *database.Repository, error) {
	owner, err := d.SearchUser(ctx, ownerName)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range d.repos {
		if r.OwnerID == owner.ID && r.Name == repoName {
			return owner, r, nil
		}
	}
	return nil, nil, sql.ErrNoRows
}

func (d *fakeDB) NewRepository(ctx context.Context, r *database.Repository) (*database.Repository, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	d.nextID++
	r.ID = d.nextID
	d.repos[r.ID] = r
	return r, nil
}

func (d *fakeDB) DeleteRepository(ctx context.Context, rid int64) error {
	delete(d.repos, rid)
	return nil
}

func (d *fakeDB) ListRepositories(ctx context.Context, ownerID int64) ([]*database.Repository, error) {
	repos := make([]*database.Repository, 0, 4)
	for _, r := range d.repos {
		if r.OwnerID == ownerID {
			repos = append(repos, r)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

func (d *fakeDB) FindBranch(ctx context.Context, rid int64, branchName string) (*database.Branch, error) {
	if b, ok := d.branches[branchKey(rid, branchName)]; ok {
		return b, nil
	}
	return nil, &database.ErrRevisionNotFound{Revision: branchName}
}

func (d *fakeDB) ListBranches(ctx context.Context, rid int64) ([]*database.Branch, error) {
	branches := make([]*database.Branch, 0, 4)
	for _, b := range d.branches {
		if b.RID == rid {
			branches = append(branches, b)
		}
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (d *fakeDB) UpsertBranch(ctx context.Context, b *database.Branch) error {
	d.branches[branchKey(b.RID, b.Name)] = b
	return nil
}

func (d *fakeDB) RemoveBranch(ctx context.Context, rid int64, branchName string) error {
	delete(d.branches, branchKey(rid, branchName))
	return nil
}

func (d *fakeDB) FindBranchProtection(ctx context.Context, rid int64, branchName string) (*database.BranchProtection, error) {
	if p, ok := d.protections[branchKey(rid, branchName)]; ok {
		return p, nil
	}
	return nil, nil
}

func (d *fakeDB) UpsertBranchProtection(ctx context.Context, p *database.BranchProtection) error {
	d.protections[branchKey(p.RID, p.Branch)] = p
	return nil
}

var _ database.DB = &fakeDB{}

type fixture struct {
	db    *fakeDB
	repos Repositories
	owner *database.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newFakeDB()
	owner, err := db.NewUser(context.Background(), &database.User{
		UserName: "alice", Name: "Alice", Email: "alice@example.com",
	})
	require.NoError(t, err)
	repos := NewRepositoriesWith(oss.NewMemBucket(), nil, db, cache.New("127.0.0.1:1", "", 0))
	return &fixture{db: db, repos: repos, owner: owner}
}

func (f *fixture) newRepository(t *testing.T, owner *database.User, name string) Repository {
	t.Helper()
	_, err := f.repos.New(context.Background(), &database.Repository{
		Name:          name,
		DefaultBranch: "main",
		VisibleLevel:  database.PublicRepository,
	}, owner)
	require.NoError(t, err)
	rr, err := f.repos.OpenByPath(context.Background(), owner.UserName, name)
	require.NoError(t, err)
	return rr
}

func testAuthor() object.Signature {
	return object.Signature{Name: "Alice", Email: "alice@example.com", When: time.Unix(1700000000, 0).UTC()}
}

// commitFiles writes blobs and a flat tree and commits them.
func commitFiles(t *testing.T, o *odb.ODB, parents []plumbing.Hash, message string, files map[string]string) plumbing.Hash {
	t.Helper()
	ctx := context.Background()
	tree := &object.Tree{}
	for name, content := range files {
		oid, err := o.WriteObject(ctx, object.BlobObject, []byte(content))
		require.NoError(t, err)
		tree.Entries = append(tree.Entries, object.TreeEntry{Mode: object.ModeRegular, Name: name, Hash: oid})
	}
	treeOID, err := o.WriteTree(ctx, tree)
	require.NoError(t, err)
	oid, err := o.WriteCommit(ctx, &object.Commit{
		Tree:      treeOID,
		Parents:   parents,
		Author:    testAuthor(),
		Committer: testAuthor(),
		Message:   message + "\n",
	})
	require.NoError(t, err)
	return oid
}

func setBranch(t *testing.T, o *odb.ODB, name string, oid plumbing.Hash) {
	t.Helper()
	require.NoError(t, o.WriteRef(context.Background(), plumbing.NewBranchReferenceName(name), oid))
}

func pushBody(t *testing.T, packData []byte, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	e := pktline.NewEncoder(&buf)
	for i, line := range lines {
		if i == 0 {
			line += "\x00report-status"
		}
		require.NoError(t, e.EncodeString(line+"\n"))
	}
	require.NoError(t, e.Flush())
	buf.Write(packData)
	return buf.Bytes()
}

func zdeflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

// buildPack assembles a version 2 pack of plain objects.
func buildPack(t *testing.T, objects []*object.Commit, trees []*object.Tree, blobs [][]byte) []byte {
	t.Helper()
	type item struct {
		code byte
		body []byte
	}
	items := make([]item, 0, len(objects)+len(trees)+len(blobs))
	for _, b := range blobs {
		items = append(items, item{code: 3, body: b})
	}
	for _, tr := range trees {
		tr.SortEntries()
		items = append(items, item{code: 2, body: tr.Payload()})
	}
	for _, cc := range objects {
		items = append(items, item{code: 1, body: cc.Payload()})
	}
	var buf bytes.Buffer
	buf.WriteString("PACK")
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], 2)
	buf.Write(word[:])
	binary.BigEndian.PutUint32(word[:], uint32(len(items)))
	buf.Write(word[:])
	for _, it := range items {
		header := []byte{(it.code << 4) | byte(len(it.body)&0x0f)}
		for size := len(it.body) >> 4; size > 0; size >>= 7 {
			header[len(header)-1] |= 0x80
			header = append(header, byte(size&0x7f))
		}
		buf.Write(header)
		buf.Write(zdeflate(t, it.body))
	}
	return buf.Bytes()
}

func TestNewRepositories(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	repos, err := NewRepositories(context.Background(),
		&serve.OSS{
			Endpoint:        "http://127.0.0.1:9000",
			Bucket:          "gitbruv",
			AccessKeyID:     "ak",
			AccessKeySecret: "sk",
			Region:          "us-east-1",
			PathStyle:       true,
		},
		&serve.Cache{NumCounters: 10000, MaxCost: 1, BufferItems: 64},
		&serve.Redis{Addr: "127.0.0.1:1"},
		newFakeDB())
	require.NoError(t, err)
	require.NoError(t, repos.Close())
}

func TestInitializeAndDefaultBranch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")

	head, err := rr.ODB().HEAD(ctx)
	require.NoError(t, err)
	require.Equal(t, plumbing.SymbolicReference, head.Type())
	assert.Equal(t, "refs/heads/main", head.Target().String())
	assert.Equal(t, "main", rr.DefaultBranch(ctx))

	config, err := rr.ODB().FS().ReadFile(ctx, "config")
	require.NoError(t, err)
	assert.Contains(t, string(config), "bare = true")
	assert.Contains(t, string(config), "repositoryformatversion = 0")

	description, err := rr.ODB().FS().ReadFile(ctx, "description")
	require.NoError(t, err)
	assert.Equal(t, "Unnamed repository; edit this file to name the repository.\n", string(description))
}

func TestReadme(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	tip := commitFiles(t, rr.ODB(), nil, "initial", map[string]string{
		"ReadMe.md": "# demo\n",
		"main.go":   "package main\n",
	})
	setBranch(t, rr.ODB(), "main", tip)

	file, err := rr.Readme(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "ReadMe.md", file.Name)
	assert.Equal(t, "# demo\n", file.Content)
	assert.Equal(t, object.Hash(object.BlobObject, []byte("# demo\n")).String(), file.OID)

	bare := f.newRepository(t, f.owner, "no-readme")
	tip = commitFiles(t, bare.ODB(), nil, "initial", map[string]string{"main.go": "package main\n"})
	setBranch(t, bare.ODB(), "main", tip)
	_, err = bare.Readme(ctx, "main")
	assert.True(t, plumbing.IsErrRevNotFound(err))
}

func TestPushCreateBranch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")

	tree := &object.Tree{}
	treeOID := object.Hash(object.TreeObject, tree.Payload())
	commit := &object.Commit{
		Tree:      treeOID,
		Author:    testAuthor(),
		Committer: testAuthor(),
		Message:   "initial commit\n",
	}
	commitOID := object.Hash(object.CommitObject, commit.Payload())

	pack := buildPack(t, []*object.Commit{commit}, []*object.Tree{tree}, nil)
	body := pushBody(t, pack, fmt.Sprintf("%s %s refs/heads/main", plumbing.ZERO_OID, commitOID))

	var out bytes.Buffer
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Equal(t, "000eunpack ok\n0017ok refs/heads/main\n0000", out.String())

	got, err := rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, commitOID, got)

	cc, err := rr.ODB().Commit(ctx, commitOID)
	require.NoError(t, err)
	assert.Equal(t, "initial commit", cc.Subject())

	// the denormalized branch row follows the push
	b, err := f.db.FindBranch(ctx, rr.Metadata().ID, "main")
	require.NoError(t, err)
	assert.Equal(t, commitOID.String(), b.Hash)
	assert.Equal(t, int64(1), b.CommitCount)
	assert.Equal(t, "initial commit", b.LastSubject)
}

func TestPushDeleteBranch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	tip := commitFiles(t, rr.ODB(), nil, "initial commit", map[string]string{"a.txt": "a\n"})
	setBranch(t, rr.ODB(), "dev", tip)

	body := pushBody(t, nil, fmt.Sprintf("%s %s refs/heads/dev", tip, plumbing.ZERO_OID))
	var out bytes.Buffer
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Equal(t, "000eunpack ok\n0016ok refs/heads/dev\n0000", out.String())

	_, err := rr.ODB().Resolve(ctx, plumbing.NewBranchReferenceName("dev"))
	assert.Equal(t, plumbing.ErrReferenceNotFound, err)
}

func TestPushDeletionProtected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	tip := commitFiles(t, rr.ODB(), nil, "initial commit", map[string]string{"a.txt": "a\n"})
	setBranch(t, rr.ODB(), "main", tip)
	require.NoError(t, f.db.UpsertBranchProtection(ctx, &database.BranchProtection{
		RID: rr.Metadata().ID, Branch: "main", PreventDeletion: true,
	}))

	body := pushBody(t, nil, fmt.Sprintf("%s %s refs/heads/main", tip, plumbing.ZERO_OID))
	var out bytes.Buffer
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Contains(t, out.String(), "unpack ok\n")
	assert.Contains(t, out.String(), "ng refs/heads/main protected branch - deletion not allowed\n")

	got, err := rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, tip, got)
}

func TestPushDirectPushProtectedSkipsUnpack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	tip := commitFiles(t, rr.ODB(), nil, "initial commit", map[string]string{"a.txt": "a\n"})
	setBranch(t, rr.ODB(), "main", tip)
	require.NoError(t, f.db.UpsertBranchProtection(ctx, &database.BranchProtection{
		RID: rr.Metadata().ID, Branch: "main", PreventDirectPush: true,
	}))

	blob := []byte("sneaky content\n")
	pack := buildPack(t, nil, nil, [][]byte{blob})
	body := pushBody(t, pack, fmt.Sprintf("%s %s refs/heads/main", tip, object.Hash(object.BlobObject, blob)))

	var out bytes.Buffer
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Contains(t, out.String(), "ng refs/heads/main protected branch - direct push not allowed, use a pull request\n")

	// every update was rejected up front, the pack never reached the store
	exists, err := rr.ODB().Exists(ctx, object.Hash(object.BlobObject, blob))
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, tip, got)
}

func TestPushForcePushProtected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	first := commitFiles(t, rr.ODB(), nil, "first", map[string]string{"a.txt": "a\n"})
	second := commitFiles(t, rr.ODB(), []plumbing.Hash{first}, "second", map[string]string{"a.txt": "b\n"})
	setBranch(t, rr.ODB(), "main", second)
	require.NoError(t, f.db.UpsertBranchProtection(ctx, &database.BranchProtection{
		RID: rr.Metadata().ID, Branch: "main", PreventForcePush: true,
	}))

	// rewinding the branch is not a fast forward
	body := pushBody(t, nil, fmt.Sprintf("%s %s refs/heads/main", second, first))
	var out bytes.Buffer
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Contains(t, out.String(), "ng refs/heads/main protected branch - force push not allowed\n")

	got, err := rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// a fast forward passes the same gate
	third := commitFiles(t, rr.ODB(), []plumbing.Hash{second}, "third", map[string]string{"a.txt": "c\n"})
	body = pushBody(t, nil, fmt.Sprintf("%s %s refs/heads/main", second, third))
	out.Reset()
	require.NoError(t, rr.DoPush(ctx, f.owner.ID, body, &out))
	assert.Contains(t, out.String(), "ok refs/heads/main\n")
	got, err = rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, third, got)
}

func TestMergeSameRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	root := commitFiles(t, rr.ODB(), nil, "root", map[string]string{"a.txt": "a\n"})
	head := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "feature work", map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	setBranch(t, rr.ODB(), "main", root)
	setBranch(t, rr.ODB(), "dev", head)

	mergeOID, err := rr.Merge(ctx, rr, "main", "dev", testAuthor(), "Merge pull request #1 from alice/dev")
	require.NoError(t, err)

	merge, err := rr.ODB().Commit(ctx, mergeOID)
	require.NoError(t, err)
	headCommit, err := rr.ODB().Commit(ctx, head)
	require.NoError(t, err)
	// the merge commit adopts the head tree wholesale
	assert.Equal(t, headCommit.Tree, merge.Tree)
	assert.Equal(t, []plumbing.Hash{root, head}, merge.Parents)
	assert.Equal(t, "Merge pull request #1 from alice/dev", merge.Subject())

	got, err := rr.ODB().Resolve(ctx, plumbing.Main)
	require.NoError(t, err)
	assert.Equal(t, mergeOID, got)
}

func TestMergeFromFork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob, err := f.db.NewUser(ctx, &database.User{UserName: "bob", Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	base := f.newRepository(t, f.owner, "demo")
	fork := f.newRepository(t, bob, "demo")

	root := commitFiles(t, base.ODB(), nil, "root", map[string]string{"a.txt": "a\n"})
	setBranch(t, base.ODB(), "main", root)
	// the fork shares history up to root
	forkRoot := commitFiles(t, fork.ODB(), nil, "root", map[string]string{"a.txt": "a\n"})
	require.Equal(t, root, forkRoot)
	head := commitFiles(t, fork.ODB(), []plumbing.Hash{forkRoot}, "fork work", map[string]string{"a.txt": "a\n", "c.txt": "c\n"})
	setBranch(t, fork.ODB(), "dev", head)

	mergeOID, err := base.Merge(ctx, fork, "main", "dev", testAuthor(), "Merge pull request #2 from bob/demo")
	require.NoError(t, err)

	// the head commit and its tree now live in the base repository
	cc, err := base.ODB().Commit(ctx, head)
	require.NoError(t, err)
	files, err := base.ODB().TreeFiles(ctx, cc.Tree)
	require.NoError(t, err)
	assert.Contains(t, files, "c.txt")

	merge, err := base.ODB().Commit(ctx, mergeOID)
	require.NoError(t, err)
	assert.Equal(t, []plumbing.Hash{root, head}, merge.Parents)
}

func TestUpdateBranchCleanMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	root := commitFiles(t, rr.ODB(), nil, "root", map[string]string{"base.txt": "base\n"})
	head := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "head work", map[string]string{"base.txt": "base\n", "a.txt": "a\n"})
	baseTip := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "base moved", map[string]string{"base.txt": "base\n", "b.txt": "b\n"})
	setBranch(t, rr.ODB(), "dev", head)
	setBranch(t, rr.ODB(), "main", baseTip)

	mergeOID, err := rr.UpdateBranch(ctx, rr, "dev", "main", testAuthor())
	require.NoError(t, err)

	merge, err := rr.ODB().Commit(ctx, mergeOID)
	require.NoError(t, err)
	assert.Equal(t, []plumbing.Hash{head, baseTip}, merge.Parents)
	assert.Equal(t, "Merge branch 'main' into dev", merge.Subject())

	files, err := rr.ODB().TreeFiles(ctx, merge.Tree)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Contains(t, files, "a.txt")
	assert.Contains(t, files, "b.txt")
	assert.Contains(t, files, "base.txt")

	got, err := rr.ODB().Resolve(ctx, plumbing.NewBranchReferenceName("dev"))
	require.NoError(t, err)
	assert.Equal(t, mergeOID, got)
}

func TestUpdateBranchConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	root := commitFiles(t, rr.ODB(), nil, "root", map[string]string{"conflict.txt": "base\n"})
	head := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "head change", map[string]string{"conflict.txt": "head\n"})
	baseTip := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "base change", map[string]string{"conflict.txt": "base side\n"})
	setBranch(t, rr.ODB(), "dev", head)
	setBranch(t, rr.ODB(), "main", baseTip)

	_, err := rr.UpdateBranch(ctx, rr, "dev", "main", testAuthor())
	require.Error(t, err)
	require.True(t, IsErrMergeConflict(err))
	assert.Equal(t, []string{"conflict.txt"}, err.(*ErrMergeConflict).Paths)

	// the head branch did not move
	got, err := rr.ODB().Resolve(ctx, plumbing.NewBranchReferenceName("dev"))
	require.NoError(t, err)
	assert.Equal(t, head, got)
}

func TestUpdateBranchConvergentChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	root := commitFiles(t, rr.ODB(), nil, "root", map[string]string{"same.txt": "base\n"})
	head := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "head change", map[string]string{"same.txt": "converged\n"})
	baseTip := commitFiles(t, rr.ODB(), []plumbing.Hash{root}, "base change", map[string]string{"same.txt": "converged\n"})
	setBranch(t, rr.ODB(), "dev", head)
	setBranch(t, rr.ODB(), "main", baseTip)

	mergeOID, err := rr.UpdateBranch(ctx, rr, "dev", "main", testAuthor())
	require.NoError(t, err)
	files, err := rr.ODB().TreeFiles(ctx, mustCommit(t, rr.ODB(), mergeOID).Tree)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func mustCommit(t *testing.T, o *odb.ODB, oid plumbing.Hash) *object.Commit {
	t.Helper()
	cc, err := o.Commit(context.Background(), oid)
	require.NoError(t, err)
	return cc
}

func TestBranchesAndCommits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	first := commitFiles(t, rr.ODB(), nil, "first", map[string]string{"a.txt": "a\n"})
	second := commitFiles(t, rr.ODB(), []plumbing.Hash{first}, "second", map[string]string{"a.txt": "b\n"})
	setBranch(t, rr.ODB(), "main", second)
	setBranch(t, rr.ODB(), "dev", first)

	branches, err := rr.Branches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "dev", branches[0].Name)
	assert.False(t, branches[0].IsDefault)
	assert.Equal(t, "main", branches[1].Name)
	assert.True(t, branches[1].IsDefault)
	assert.Equal(t, second.String(), branches[1].OID)

	commits, hasMore, err := rr.Commits(ctx, "main", 1, 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.True(t, hasMore)
	assert.Equal(t, "second", commits[0].Subject)

	commits, hasMore, err = rr.Commits(ctx, "main", 10, 1)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.False(t, hasMore)
	assert.Equal(t, "first", commits[0].Subject)

	count, err := rr.CommitCount(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTreeAndFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")

	readme, err := rr.ODB().WriteObject(ctx, object.BlobObject, []byte("# demo\n"))
	require.NoError(t, err)
	inner, err := rr.ODB().WriteObject(ctx, object.BlobObject, []byte("package main\n"))
	require.NoError(t, err)
	sub, err := rr.ODB().WriteTree(ctx, &object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeRegular, Name: "main.go", Hash: inner},
	}})
	require.NoError(t, err)
	rootTree, err := rr.ODB().WriteTree(ctx, &object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeRegular, Name: "README.md", Hash: readme},
		{Mode: object.ModeDir, Name: "cmd", Hash: sub},
	}})
	require.NoError(t, err)
	tip, err := rr.ODB().WriteCommit(ctx, &object.Commit{
		Tree: rootTree, Author: testAuthor(), Committer: testAuthor(), Message: "initial commit\n",
	})
	require.NoError(t, err)
	setBranch(t, rr.ODB(), "main", tip)

	entries, err := rr.Tree(ctx, "main", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// trees sort ahead of blobs
	assert.Equal(t, "cmd", entries[0].Name)
	assert.Equal(t, "tree", entries[0].Type)
	assert.Equal(t, "README.md", entries[1].Name)

	entries, err = rr.Tree(ctx, "main", "cmd")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main.go", entries[0].Name)
	assert.Equal(t, "cmd/main.go", entries[0].Path)

	fi, err := rr.File(ctx, "main", "cmd/main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", fi.Name)
	assert.Equal(t, "cmd/main.go", fi.Path)
	assert.Equal(t, "package main\n", fi.Content)
	assert.Equal(t, 13, fi.Size)

	_, err = rr.Tree(ctx, "main", "no/such/dir")
	assert.True(t, plumbing.IsErrRevNotFound(err))
	_, err = rr.File(ctx, "main", "cmd")
	assert.True(t, plumbing.IsErrRevNotFound(err))
}

func TestCommitDiffAndCompare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	first := commitFiles(t, rr.ODB(), nil, "first", map[string]string{"a.txt": "one\n"})
	second := commitFiles(t, rr.ODB(), []plumbing.Hash{first}, "second", map[string]string{"a.txt": "two\n", "b.txt": "new\n"})
	setBranch(t, rr.ODB(), "main", first)
	setBranch(t, rr.ODB(), "dev", second)

	di, err := rr.CommitDiff(ctx, second.String())
	require.NoError(t, err)
	assert.Equal(t, "second", di.Commit.Subject)
	require.Len(t, di.Files, 2)
	assert.Equal(t, "a.txt", di.Files[0].Path)
	assert.Equal(t, "modified", di.Files[0].Status)
	assert.Equal(t, "b.txt", di.Files[1].Path)
	assert.Equal(t, "added", di.Files[1].Status)
	assert.Equal(t, 2, di.Additions)
	assert.Equal(t, 1, di.Deletions)

	// a parentless commit diffs against the empty tree
	di, err = rr.CommitDiff(ctx, first.String())
	require.NoError(t, err)
	require.Len(t, di.Files, 1)
	assert.Equal(t, "added", di.Files[0].Status)

	ci, err := rr.Compare(ctx, "main", "dev")
	require.NoError(t, err)
	assert.Equal(t, first.String(), ci.MergeBase)
	require.Len(t, ci.Commits, 1)
	assert.Equal(t, "second", ci.Commits[0].Subject)
	require.Len(t, ci.Files, 2)
	assert.Equal(t, 2, ci.Additions)
	assert.Equal(t, 1, ci.Deletions)
}

func TestDeleteRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := f.newRepository(t, f.owner, "demo")
	tip := commitFiles(t, rr.ODB(), nil, "initial commit", map[string]string{"a.txt": "a\n"})
	setBranch(t, rr.ODB(), "main", tip)

	require.NoError(t, f.repos.Delete(ctx, "alice", "demo"))
	_, err := f.repos.OpenByPath(ctx, "alice", "demo")
	assert.True(t, database.IsNotFound(err))

	// the object store prefix is gone
	exists, err := rr.ODB().Exists(ctx, tip)
	require.NoError(t, err)
	assert.False(t, exists)
}
