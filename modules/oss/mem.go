// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package oss

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// memBucket is an in-memory Bucket used by tests and local development.
type memBucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
	mimes   map[string]string
}

var (
	_ Bucket = &memBucket{}
)

func NewMemBucket() Bucket {
	return &memBucket{
		objects: make(map[string][]byte),
		mimes:   make(map[string]string),
	}
}

func (b *memBucket) Stat(ctx context.Context, key string) (*Stat, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, notExist(key)
	}
	return &Stat{Size: int64(len(data)), Mime: b.mimes[key]}, nil
}

func (b *memBucket) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, notExist(key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *memBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBucket) Put(ctx context.Context, key string, r io.Reader, mime string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.mimes[key] = mime
	return nil
}

func (b *memBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	delete(b.mimes, key)
	return nil
}

func (b *memBucket) Head(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBucket) Copy(ctx context.Context, srcKey, dstKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[srcKey]
	if !ok {
		return notExist(srcKey)
	}
	out := make([]byte, len(data))
	copy(out, data)
	b.objects[dstKey] = out
	b.mimes[dstKey] = b.mimes[srcKey]
	return nil
}

func (b *memBucket) DeleteMultipleObjects(ctx context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.objects, key)
		delete(b.mimes, key)
	}
	return nil
}

func (b *memBucket) ListObjects(ctx context.Context, prefix, continuationToken string) ([]*Object, string, error) {
	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) && key > continuationToken {
			keys = append(keys, key)
		}
	}
	b.mu.RUnlock()
	sort.Strings(keys)
	objects := make([]*Object, 0, len(keys))
	for _, key := range keys {
		if len(objects) == MaxKeys {
			return objects, objects[len(objects)-1].Key, nil
		}
		b.mu.RLock()
		size := int64(len(b.objects[key]))
		b.mu.RUnlock()
		objects = append(objects, &Object{Key: key, Size: size})
	}
	return objects, "", nil
}
