// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cache is the JSON TTL cache in front of the object store, keyed by
// "<app>:<kind>:<owner>:<repo>[:<branch>[:<extra>]]" with branch-scoped
// invalidation.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const appPrefix = "gitbruv"

const (
	TTLBranches    = 5 * time.Minute
	TTLCommits     = 10 * time.Minute
	TTLCommitCount = 10 * time.Minute
	TTLTrees       = 30 * time.Minute
	TTLFiles       = time.Hour
)

type Cache struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Key builds a cache key from kind and scope parts.
func Key(kind, owner, repo string, extra ...string) string {
	parts := append([]string{appPrefix, kind, owner, repo}, extra...)
	return strings.Join(parts, ":")
}

// GetJSON loads and decodes a cached value. Cache errors degrade to a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("cache get %s error: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logrus.Warnf("cache decode %s error: %v", key, err)
		return false
	}
	return true
}

// SetJSON stores a value with a TTL. Failures are logged and swallowed, the
// cache is best-effort.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Warnf("cache encode %s error: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logrus.Warnf("cache set %s error: %v", key, err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logrus.Warnf("cache delete error: %v", err)
	}
}

// DeletePattern removes every key matching a glob pattern, scanning in
// batches.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	keys := make([]string, 0, 64)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logrus.Warnf("cache scan %s error: %v", pattern, err)
		return
	}
	c.Delete(ctx, keys...)
}

// InvalidateBranch drops commits/trees/files entries of one branch plus the
// branches list and the branch's commit count.
func (c *Cache) InvalidateBranch(ctx context.Context, owner, repo, branch string) {
	for _, kind := range []string{"commits", "trees", "files"} {
		c.DeletePattern(ctx, Key(kind, owner, repo, branch)+"*")
	}
	c.Delete(ctx,
		Key("branches", owner, repo),
		Key("commit-count", owner, repo, branch),
	)
}

// InvalidateRepo drops every cache entry of a repository.
func (c *Cache) InvalidateRepo(ctx context.Context, owner, repo string) {
	c.DeletePattern(ctx, appPrefix+":*:"+owner+":"+repo)
	c.DeletePattern(ctx, appPrefix+":*:"+owner+":"+repo+":*")
}
