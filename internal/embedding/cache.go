// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import "sync"

// Cache is an append-only memoization of text embeddings shared across
// requests. It is never evicted; concurrent overwrites of the same key are
// harmless because the value for a given text is the same vector either way.
type Cache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewCache creates an empty embedding cache.
func NewCache() *Cache {
	return &Cache{vectors: make(map[string][]float32)}
}

// Get returns the cached vector for text, if any.
func (c *Cache) Get(text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[text]
	return v, ok
}

// Put stores the vector for text.
func (c *Cache) Put(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[text] = vector
}

// Len returns the number of cached texts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
