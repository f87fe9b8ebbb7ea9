/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"encoding/json"
	"sync"
)

// Cache memoizes tool results for the lifetime of one run, keyed by tool
// name and the canonical JSON form of the input. Only successful results
// are inserted, so a failing call is always re-attempted.
type Cache struct {
	mu      sync.Mutex
	entries map[string]string
	hits    int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]string{}}
}

// Get returns the cached result for a call, if present.
func (c *Cache) Get(name string, input map[string]any) (string, bool) {
	key, ok := cacheKey(name, input)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return result, ok
}

// Hits returns how many calls were answered from the cache.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Insert stores a successful result.
func (c *Cache) Insert(name string, input map[string]any, result string) {
	key, ok := cacheKey(name, input)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// cacheKey joins the tool name and input with a NUL so distinct pairs
// cannot collide. json.Marshal sorts map keys, which canonicalizes
// equivalent inputs.
func cacheKey(name string, input map[string]any) (string, bool) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", false
	}
	return name + "\x00" + string(data), true
}
