// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo glues the object store, the metadata database and the content
// cache into per-repository operations: push, merge, update-branch and the
// browse queries behind the web UI.
package repo

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/gitfs"
	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve"
	"github.com/gitbruv/gitbruv/pkg/serve/cache"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/odb"
)

type Repositories interface {
	Open(ctx context.Context, owner *database.User, r *database.Repository) (Repository, error)
	OpenByPath(ctx context.Context, ownerName, repoName string) (Repository, error)
	New(ctx context.Context, newRepo *database.Repository, u *database.User) (*database.Repository, error)
	Delete(ctx context.Context, ownerName, repoName string) error
	DB() database.DB
	Cache() *cache.Cache
	Close() error
}

var (
	_ Repositories = &repositories{}
)

type repositories struct {
	cdb    odb.CacheDB
	mdb    database.DB
	bucket oss.Bucket
	rc     *cache.Cache
}

func NewRepositories(ctx context.Context, ossConfig *serve.OSS, cacheConfig *serve.Cache, redisConfig *serve.Redis, mdb database.DB) (Repositories, error) {
	bucket, err := oss.NewBucket(ctx, &oss.NewBucketOptions{
		Endpoint:        ossConfig.Endpoint,
		Bucket:          ossConfig.Bucket,
		AccessKeyID:     ossConfig.AccessKeyID,
		AccessKeySecret: ossConfig.AccessKeySecret,
		Region:          ossConfig.Region,
		PathStyle:       ossConfig.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	cdb, err := odb.NewCacheDB(cacheConfig.NumCounters, cacheConfig.MaxCost, cacheConfig.BufferItems)
	if err != nil {
		return nil, err
	}
	rc := cache.New(redisConfig.Addr, redisConfig.Password, redisConfig.DB)
	return &repositories{cdb: cdb, mdb: mdb, bucket: bucket, rc: rc}, nil
}

// NewRepositoriesWith assembles a Repositories over existing collaborators,
// tests hand it a memory bucket.
func NewRepositoriesWith(bucket oss.Bucket, cdb odb.CacheDB, mdb database.DB, rc *cache.Cache) Repositories {
	return &repositories{cdb: cdb, mdb: mdb, bucket: bucket, rc: rc}
}

func (r *repositories) DB() database.DB {
	return r.mdb
}

func (r *repositories) Cache() *cache.Cache {
	return r.rc
}

func (r *repositories) Close() error {
	if r.rc != nil {
		return r.rc.Close()
	}
	return nil
}

func (r *repositories) Open(ctx context.Context, owner *database.User, repo *database.Repository) (Repository, error) {
	prefix := gitfs.RepoPrefix(strconv.FormatInt(owner.ID, 10), repo.Name)
	o := odb.NewODB(repo.ID, gitfs.New(r.bucket, prefix), r.cdb)
	return &repository{odb: o, mdb: r.mdb, rc: r.rc, owner: owner, repo: repo}, nil
}

func (r *repositories) OpenByPath(ctx context.Context, ownerName, repoName string) (Repository, error) {
	owner, repo, err := r.mdb.FindRepositoryByPath(ctx, ownerName, repoName)
	if err != nil {
		return nil, err
	}
	return r.Open(ctx, owner, repo)
}

func (r *repositories) New(ctx context.Context, newRepo *database.Repository, u *database.User) (*database.Repository, error) {
	newRepo.OwnerID = u.ID
	repo, err := r.mdb.NewRepository(ctx, newRepo)
	if err != nil {
		return nil, err
	}
	rr, err := r.Open(ctx, u, repo)
	if err != nil {
		return nil, err
	}
	if err := rr.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Delete drops the repository row, every object store key under the
// repository prefix and all its cache entries.
func (r *repositories) Delete(ctx context.Context, ownerName, repoName string) error {
	owner, repo, err := r.mdb.FindRepositoryByPath(ctx, ownerName, repoName)
	if err != nil {
		return err
	}
	if err := r.mdb.DeleteRepository(ctx, repo.ID); err != nil {
		return err
	}
	prefix := gitfs.RepoPrefix(strconv.FormatInt(owner.ID, 10), repo.Name)
	if err := oss.DeletePrefix(ctx, r.bucket, prefix+"/"); err != nil {
		return fmt.Errorf("delete repository objects: %w", err)
	}
	r.rc.InvalidateRepo(ctx, ownerName, repoName)
	return nil
}

type Repository interface {
	ODB() *odb.ODB
	Owner() *database.User
	Metadata() *database.Repository
	Initialize(ctx context.Context) error
	DefaultBranch(ctx context.Context) string
	DoPush(ctx context.Context, uid int64, body []byte, w io.Writer) error
	Merge(ctx context.Context, head Repository, baseBranch, headBranch string, author object.Signature, message string) (plumbing.Hash, error)
	UpdateBranch(ctx context.Context, base Repository, headBranch, baseBranch string, author object.Signature) (plumbing.Hash, error)
	Branches(ctx context.Context) ([]*BranchInfo, error)
	Commits(ctx context.Context, branch string, limit, skip int) ([]*CommitInfo, bool, error)
	CommitCount(ctx context.Context, branch string) (int, error)
	Tree(ctx context.Context, rev, path string) ([]*EntryInfo, error)
	File(ctx context.Context, rev, path string) (*FileInfo, error)
	Readme(ctx context.Context, rev string) (*FileInfo, error)
	CommitDiff(ctx context.Context, rev string) (*DiffInfo, error)
	Compare(ctx context.Context, baseRev, headRev string) (*CompareInfo, error)
}

type repository struct {
	mdb   database.DB
	odb   *odb.ODB
	rc    *cache.Cache
	owner *database.User
	repo  *database.Repository
}

func (r *repository) ODB() *odb.ODB {
	return r.odb
}

func (r *repository) Owner() *database.User {
	return r.owner
}

func (r *repository) Metadata() *database.Repository {
	return r.repo
}

const (
	bareConfig         = "[core]\n\trepositoryformatversion = 0\n\tfilemode = true\n\tbare = true\n"
	initialDescription = "Unnamed repository; edit this file to name the repository.\n"
)

// Initialize lays out an empty bare repository the way git init --bare
// does: a HEAD symref pointing at the configured default branch, a minimal
// config and the placeholder description. No objects and no refs exist yet.
func (r *repository) Initialize(ctx context.Context) error {
	head := plumbing.NewReferenceName(r.repo.DefaultBranch)
	if err := r.odb.FS().WriteFile(ctx, "HEAD", []byte("ref: "+head.String()+"\n")); err != nil {
		return err
	}
	if err := r.odb.FS().WriteFile(ctx, "config", []byte(bareConfig)); err != nil {
		return err
	}
	return r.odb.FS().WriteFile(ctx, "description", []byte(initialDescription))
}

func (r *repository) DefaultBranch(ctx context.Context) string {
	return r.odb.DefaultBranch(ctx).BranchName()
}
