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

package diskcache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeta(fileID string, size int64, ts time.Time) Metadata {
	return Metadata{
		Timestamp: ts.UnixMilli(),
		MimeType:  "audio/mpeg",
		Size:      size,
		FileID:    fileID,
	}
}

func TestStoreThenLookup(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	content := []byte("audio content bytes")
	fileID := "65a1b2c3d4e5f6a7b8c9d0e1"
	require.NoError(t, cache.Store(fileID, bytes.NewReader(content), testMeta(fileID, int64(len(content)), time.Now())))

	path, meta, ok := cache.Lookup(fileID)
	require.True(t, ok)
	assert.Equal(t, "audio/mpeg", meta.MimeType)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, fileID, meta.FileID)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLookupMissOnUnknownFile(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	_, _, ok := cache.Lookup("65a1b2c3d4e5f6a7b8c9d0e1")
	assert.False(t, ok)
}

func TestExpiredEntryIsDeletedOnLookup(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir, 24*time.Hour)
	require.NoError(t, err)

	fileID := "65a1b2c3d4e5f6a7b8c9d0e1"
	content := []byte("stale entry")
	require.NoError(t, cache.Store(fileID, bytes.NewReader(content), testMeta(fileID, int64(len(content)), time.Now())))

	cache.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, _, ok := cache.Lookup(fileID)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, fileID+".mp3"))
	assert.NoFileExists(t, filepath.Join(dir, fileID+".json"))

	// The miss persists
	_, _, ok = cache.Lookup(fileID)
	assert.False(t, ok)
}

func TestCorruptSidecarIsSelfHealed(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir, 24*time.Hour)
	require.NoError(t, err)

	fileID := "65a1b2c3d4e5f6a7b8c9d0e1"
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileID+".mp3"), []byte("content"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileID+".json"), []byte("{not json"), 0644))

	_, _, ok := cache.Lookup(fileID)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, fileID+".mp3"))
	assert.NoFileExists(t, filepath.Join(dir, fileID+".json"))
}

func TestSidecarWithoutContentIsSelfHealed(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir, 24*time.Hour)
	require.NoError(t, err)

	fileID := "65a1b2c3d4e5f6a7b8c9d0e1"
	meta, err := os.Create(filepath.Join(dir, fileID+".json"))
	require.NoError(t, err)
	_, err = meta.WriteString(`{"timestamp": 1, "mimeType": "audio/mpeg", "size": 7, "fileId": "x"}`)
	require.NoError(t, err)
	require.NoError(t, meta.Close())

	_, _, ok := cache.Lookup(fileID)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, fileID+".json"))
}

func TestClearAllReturnsEntryCount(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	for i := range 5 {
		fileID := fmt.Sprintf("65a1b2c3d4e5f6a7b8c9d0e%d", i)
		content := []byte("entry")
		require.NoError(t, cache.Store(fileID, bytes.NewReader(content), testMeta(fileID, int64(len(content)), time.Now())))
	}

	deleted, err := cache.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	stats, err := cache.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFiles)
}

func TestClearExpiredIsIdempotent(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	oldID := "65a1b2c3d4e5f6a7b8c9d0e1"
	freshID := "65a1b2c3d4e5f6a7b8c9d0e2"
	content := []byte("entry")
	require.NoError(t, cache.Store(oldID, bytes.NewReader(content),
		testMeta(oldID, int64(len(content)), time.Now().Add(-48*time.Hour))))
	require.NoError(t, cache.Store(freshID, bytes.NewReader(content),
		testMeta(freshID, int64(len(content)), time.Now())))

	deleted, err := cache.ClearExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Nothing left to expire; the directory is unchanged
	deleted, err = cache.ClearExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	_, _, ok := cache.Lookup(freshID)
	assert.True(t, ok)
}

func TestGetStats(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	oldID := "65a1b2c3d4e5f6a7b8c9d0e1"
	newID := "65a1b2c3d4e5f6a7b8c9d0e2"
	require.NoError(t, cache.Store(oldID, bytes.NewReader(make([]byte, 2048)), testMeta(oldID, 2048, time.Now())))
	time.Sleep(20 * time.Millisecond) // distinct mtimes
	require.NoError(t, cache.Store(newID, bytes.NewReader(make([]byte, 1024)), testMeta(newID, 1024, time.Now())))

	stats, err := cache.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, oldID+".mp3", stats.OldestFile)
	assert.Equal(t, newID+".mp3", stats.NewestFile)
}

func TestStoreRejectsTruncatedContent(t *testing.T) {
	cache, err := New(t.TempDir(), 24*time.Hour)
	require.NoError(t, err)

	fileID := "65a1b2c3d4e5f6a7b8c9d0e1"
	err = cache.Store(fileID, bytes.NewReader([]byte("short")), testMeta(fileID, 100, time.Now()))
	assert.Error(t, err)

	_, _, ok := cache.Lookup(fileID)
	assert.False(t, ok)
}
