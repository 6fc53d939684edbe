// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oss

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
)

// Bucket is the storage capability the repository machinery runs on. Keys are
// case-sensitive, '/'-separated and never end with '/'. Not-found is
// distinguished from transport errors; transport errors propagate unchanged.
type Bucket interface {
	Stat(ctx context.Context, key string) (*Stat, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, mime string) error
	Delete(ctx context.Context, key string) error
	Head(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	DeleteMultipleObjects(ctx context.Context, keys []string) error
	ListObjects(ctx context.Context, prefix, continuationToken string) ([]*Object, string, error)
}

type Stat struct {
	Size int64
	Mime string
	ETag string
}

type Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}

const (
	// MaxKeys is the page size of a single list call.
	MaxKeys = 1000
	// deleteBatchLimit is the largest multi-delete the backend accepts.
	deleteBatchLimit = 1000
)

// IsNotExist reports whether err denotes a missing object.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func notExist(key string) error {
	return &fs.PathError{Op: "oss", Path: key, Err: fs.ErrNotExist}
}

// ListAll paginates ListObjects to completion and returns every key under
// prefix.
func ListAll(ctx context.Context, b Bucket, prefix string) ([]string, error) {
	keys := make([]string, 0, MaxKeys)
	var continuationToken string
	for {
		objects, next, err := b.ListObjects(ctx, prefix, continuationToken)
		if err != nil {
			return nil, err
		}
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
		if len(next) == 0 {
			return keys, nil
		}
		continuationToken = next
	}
}

// DeletePrefix removes every object under prefix, batching deletes.
func DeletePrefix(ctx context.Context, b Bucket, prefix string) error {
	keys, err := ListAll(ctx, b, prefix)
	if err != nil {
		return err
	}
	for len(keys) > 0 {
		n := min(len(keys), deleteBatchLimit)
		if err := b.DeleteMultipleObjects(ctx, keys[:n]); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

// CopyPrefix server-side copies every object under srcPrefix to the same
// relative key under dstPrefix.
func CopyPrefix(ctx context.Context, b Bucket, srcPrefix, dstPrefix string) error {
	keys, err := ListAll(ctx, b, srcPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		dst := dstPrefix + strings.TrimPrefix(key, srcPrefix)
		if err := b.Copy(ctx, key, dst); err != nil {
			return err
		}
	}
	return nil
}
