// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package cachekit wraps github.com/hashicorp/golang-lru behind a small
// Cache interface so callers can swap the eviction policy (plain LRU or
// sharded LRU) without touching call sites.
package cachekit

import (
	"errors"
	"math"

	lru "github.com/hashicorp/golang-lru"

	"github.com/clawshake/shake/log"
)

var logger = log.NewModuleLogger(log.Store)

// Key is anything that can be sharded. Shake ids (uint64) implement it
// trivially via ShardIndex.
type Key interface {
	ShardIndex(shardMask int) int
}

type Cache interface {
	Add(key Key, value interface{}) (evicted bool)
	Get(key Key) (value interface{}, ok bool)
	Contains(key Key) bool
	Remove(key Key)
	Len() int
	Purge()
}

type Configer interface {
	newCache() (Cache, error)
}

// New builds a Cache from a Configer, mirroring the constructor pattern
// used for every other pluggable policy in this module (Store, FeePolicy,
// Ledger).
func New(config Configer) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.newCache()
}

type lruCache struct {
	lru *lru.Cache
}

func (c *lruCache) Add(key Key, value interface{}) (evicted bool) { return c.lru.Add(key, value) }
func (c *lruCache) Get(key Key) (interface{}, bool)                { return c.lru.Get(key) }
func (c *lruCache) Contains(key Key) bool                          { return c.lru.Contains(key) }
func (c *lruCache) Remove(key Key)                                 { c.lru.Remove(key) }
func (c *lruCache) Len() int                                       { return c.lru.Len() }
func (c *lruCache) Purge()                                         { c.lru.Purge() }

// LRUConfig builds a single, unsharded LRU cache.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) newCache() (Cache, error) {
	l, err := lru.New(c.CacheSize)
	if err != nil {
		return nil, err
	}
	return &lruCache{l}, nil
}

const (
	minShardSize = 16
	minNumShards = 2
)

// ShardedLRUConfig splits the cache across NumShards independent LRUs,
// each guarding its own lock, for stores with enough concurrent readers
// that a single LRU's internal mutex becomes contended. NumShards is
// capped at max(CacheSize/minShardSize, minNumShards), raised to
// minNumShards if smaller, and rounded down to a power of two.
type ShardedLRUConfig struct {
	CacheSize int
	NumShards int
}

type shardedCache struct {
	shards         []*lru.Cache
	shardIndexMask int
}

func (c *shardedCache) Add(key Key, value interface{}) (evicted bool) {
	return c.shards[key.ShardIndex(c.shardIndexMask)].Add(key, value)
}

func (c *shardedCache) Get(key Key) (interface{}, bool) {
	return c.shards[key.ShardIndex(c.shardIndexMask)].Get(key)
}

func (c *shardedCache) Contains(key Key) bool {
	return c.shards[key.ShardIndex(c.shardIndexMask)].Contains(key)
}

func (c *shardedCache) Remove(key Key) {
	c.shards[key.ShardIndex(c.shardIndexMask)].Remove(key)
}

func (c *shardedCache) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *shardedCache) Purge() {
	for _, s := range c.shards {
		s.Purge()
	}
}

func (c ShardedLRUConfig) newCache() (Cache, error) {
	if c.CacheSize < 1 {
		logger.Error("non-positive cache size", "size", c.CacheSize)
		return nil, errors.New("cache size must be positive")
	}
	numShards := c.powOf2Shards()
	sc := &shardedCache{shards: make([]*lru.Cache, numShards), shardIndexMask: numShards - 1}
	shardSize := c.CacheSize / numShards
	if shardSize < 1 {
		shardSize = 1
	}
	for i := 0; i < numShards; i++ {
		l, err := lru.New(shardSize)
		if err != nil {
			return nil, err
		}
		sc.shards[i] = l
	}
	return sc, nil
}

func (c ShardedLRUConfig) powOf2Shards() int {
	maxShards := math.Max(float64(c.CacheSize/minShardSize), float64(minNumShards))
	n := int(math.Min(float64(c.NumShards), maxShards))
	if n < minNumShards {
		return minNumShards
	}
	for n&(n-1) != 0 {
		n &= n - 1
	}
	return n
}
