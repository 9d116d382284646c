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

package chunkcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxChunk = 1024 * 1024

func TestGetExactRangeOnly(t *testing.T) {
	cache := New(10*time.Minute, 100, testMaxChunk)
	cache.Put("file1", 0, 3, []byte("abcd"))

	assert.Equal(t, []byte("abcd"), cache.Get("file1", 0, 3))

	// A contained sub-range is still a miss
	assert.Nil(t, cache.Get("file1", 0, 2))
	assert.Nil(t, cache.Get("file1", 1, 3))
	assert.Nil(t, cache.Get("file2", 0, 3))
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	cache := New(10*time.Minute, 100, testMaxChunk)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Put("file1", 0, 3, []byte("abcd"))
	require.NotNil(t, cache.Get("file1", 0, 3))

	current = current.Add(10*time.Minute + time.Second)
	assert.Nil(t, cache.Get("file1", 0, 3))
	// Expired entry is removed on access
	assert.Equal(t, 0, cache.Len())
}

func TestOversizedChunksAreNotCached(t *testing.T) {
	cache := New(10*time.Minute, 100, 8)
	cache.Put("file1", 0, 15, make([]byte, 16))
	assert.Nil(t, cache.Get("file1", 0, 15))
	assert.Equal(t, 0, cache.Len())
}

func TestMismatchedBufferLengthIsRejected(t *testing.T) {
	cache := New(10*time.Minute, 100, testMaxChunk)
	cache.Put("file1", 0, 9, []byte("short"))
	assert.Nil(t, cache.Get("file1", 0, 9))
}

func TestCapTriggersSweepOfExpiredEntries(t *testing.T) {
	cache := New(10*time.Minute, 5, testMaxChunk)
	current := time.Now()
	cache.now = func() time.Time { return current }

	for i := range 5 {
		cache.Put(fmt.Sprintf("old%d", i), 0, 0, []byte("x"))
	}
	require.Equal(t, 5, cache.Len())

	// All five expire; the next insert crosses the cap and sweeps them
	current = current.Add(11 * time.Minute)
	cache.Put("fresh", 0, 0, []byte("y"))

	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, []byte("y"), cache.Get("fresh", 0, 0))
}

func TestCapIsNotAHardBound(t *testing.T) {
	cache := New(10*time.Minute, 5, testMaxChunk)

	// Nothing is expired, so exceeding the cap keeps every entry,
	// including the newest one.
	for i := range 8 {
		cache.Put(fmt.Sprintf("file%d", i), 0, 0, []byte("x"))
	}
	assert.Equal(t, 8, cache.Len())
	assert.NotNil(t, cache.Get("file7", 0, 0))
}

func TestConcurrentAccess(t *testing.T) {
	cache := New(10*time.Minute, 100, testMaxChunk)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				fileID := fmt.Sprintf("file%d", j%8)
				cache.Put(fileID, 0, 3, []byte("abcd"))
				if buf := cache.Get(fileID, 0, 3); buf != nil {
					assert.Equal(t, []byte("abcd"), buf)
				}
			}
		}()
	}
	wg.Wait()
}
