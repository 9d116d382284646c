/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package chunkcache is the in-process cache of recently served byte
// ranges.  Entries are keyed by the exact (fileId, start, end) triple; a
// request for a different range is a miss even when it is fully contained
// in a cached buffer.
//
// Eviction is TTL-based, not LRU: inserts past the soft entry cap trigger
// a sweep that removes every expired entry.  If nothing has expired yet
// the new entry is still kept -- the cap is a sweep trigger rather than a
// hard bound, and the TTL bounds growth over time.
package chunkcache

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	chunkKey struct {
		fileID string
		start  int64
		end    int64
	}

	chunkEntry struct {
		data       []byte
		insertedAt time.Time
	}

	Cache struct {
		mutex      sync.Mutex
		entries    map[chunkKey]chunkEntry
		ttl        time.Duration
		maxEntries int
		maxChunk   int64

		// Overridable for TTL tests
		now func() time.Time
	}
)

func New(ttl time.Duration, maxEntries int, maxChunk int64) *Cache {
	return &Cache{
		entries:    make(map[chunkKey]chunkEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		maxChunk:   maxChunk,
		now:        time.Now,
	}
}

// Get returns the cached buffer for the exact range [start, end] of the
// given file, or nil on a miss.  An entry past its TTL is removed and
// treated as a miss.  Callers must not modify the returned buffer.
func (c *Cache) Get(fileID string, start, end int64) []byte {
	key := chunkKey{fileID: fileID, start: start, end: end}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil
	}
	return entry.data
}

// Put inserts a buffer for the exact range [start, end].  Buffers larger
// than the configured chunk bound are never cached, keeping total memory
// use proportional to maxEntries * maxChunk.
func (c *Cache) Put(fileID string, start, end int64, data []byte) {
	if int64(len(data)) > c.maxChunk {
		return
	}
	if int64(len(data)) != end-start+1 {
		log.Warningf("Refusing to cache chunk for %s: buffer length %d does not match range %d-%d",
			fileID, len(data), start, end)
		return
	}

	key := chunkKey{fileID: fileID, start: start, end: end}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = chunkEntry{data: data, insertedAt: c.now()}
	if len(c.entries) > c.maxEntries {
		c.sweep()
	}
}

// Len returns the current entry count, expired entries included.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// sweep removes every expired entry.  Caller must hold the mutex.
func (c *Cache) sweep() {
	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for key, entry := range c.entries {
		if entry.insertedAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("Chunk cache sweep removed %d expired entries; %d remain", removed, len(c.entries))
	}
}
