// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package gitfs adapts the file-oriented expectations of the repository
// machinery onto a flat object-store bucket. A repository's entire state
// lives under a single hierarchical key prefix; directories are synthetic.
package gitfs

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gitbruv/gitbruv/modules/oss"
)

// FS maps git file paths to bucket keys under a repository prefix.
type FS struct {
	bucket oss.Bucket
	prefix string
}

// RepoPrefix returns the bucket prefix a repository lives under.
func RepoPrefix(ownerID, repoName string) string {
	return "repos/" + ownerID + "/" + repoName
}

func New(bucket oss.Bucket, prefix string) *FS {
	return &FS{bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}
}

func (f *FS) Bucket() oss.Bucket {
	return f.bucket
}

func (f *FS) Prefix() string {
	return f.prefix
}

// Key normalizes a git path to its bucket key. A leading '/' is stripped, a
// ".git" or ".git/" prefix is dropped (bare layout), runs of '/' collapse and
// the result never ends with '/'.
func (f *FS) Key(name string) string {
	name = strings.TrimPrefix(name, "/")
	if name == ".git" {
		name = ""
	} else if rest, ok := strings.CutPrefix(name, ".git/"); ok {
		name = rest
	}
	parts := make([]string, 0, 8)
	parts = append(parts, f.prefix)
	for _, p := range strings.Split(name, "/") {
		if len(p) != 0 {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

func (f *FS) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return f.bucket.Get(ctx, f.Key(name))
}

func (f *FS) WriteFile(ctx context.Context, name string, data []byte) error {
	return f.bucket.Put(ctx, f.Key(name), bytes.NewReader(data), "")
}

func (f *FS) Unlink(ctx context.Context, name string) error {
	return f.bucket.Delete(ctx, f.Key(name))
}

// ReadDir lists the unique first path components under name.
func (f *FS) ReadDir(ctx context.Context, name string) ([]string, error) {
	prefix := f.Key(name) + "/"
	keys, err := oss.ListAll(ctx, f.bucket, prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		rel := key[len(prefix):]
		if pos := strings.IndexByte(rel, '/'); pos != -1 {
			rel = rel[:pos]
		}
		if len(rel) == 0 || seen[rel] {
			continue
		}
		seen[rel] = true
		entries = append(entries, rel)
	}
	sort.Strings(entries)
	return entries, nil
}

type FileInfo struct {
	Name    string
	Size    int64
	Dir     bool
	ModTime time.Time
}

// Stat reports a directory when the key is the repository root or has keys
// beneath it, a file when the key itself exists. Timestamps are synthetic.
func (f *FS) Stat(ctx context.Context, name string) (*FileInfo, error) {
	key := f.Key(name)
	if key == f.prefix {
		return &FileInfo{Name: name, Dir: true, ModTime: time.Now()}, nil
	}
	objects, _, err := f.bucket.ListObjects(ctx, key+"/", "")
	if err != nil {
		return nil, err
	}
	if len(objects) != 0 {
		return &FileInfo{Name: name, Dir: true, ModTime: time.Now()}, nil
	}
	stat, err := f.bucket.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	return &FileInfo{Name: name, Size: stat.Size, ModTime: time.Now()}, nil
}

func (f *FS) Exists(ctx context.Context, name string) (bool, error) {
	return f.bucket.Head(ctx, f.Key(name))
}

// Mkdir is a no-op, the store has no directories.
func (f *FS) Mkdir(ctx context.Context, name string) error {
	return nil
}

// Chmod is a no-op, the store has no modes.
func (f *FS) Chmod(ctx context.Context, name string, mode uint32) error {
	return nil
}

func (f *FS) Rename(ctx context.Context, oldName, newName string) error {
	data, err := f.ReadFile(ctx, oldName)
	if err != nil {
		return err
	}
	if err := f.WriteFile(ctx, newName, data); err != nil {
		return err
	}
	return f.Unlink(ctx, oldName)
}
