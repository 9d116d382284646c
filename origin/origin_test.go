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

package origin

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFileID = "65a1b2c3d4e5f6a7b8c9d0e1"

func TestValidateFileID(t *testing.T) {
	assert.True(t, ValidateFileID("65a1b2c3d4e5f6a7b8c9d0e1"))
	assert.True(t, ValidateFileID("65A1B2C3D4E5F6A7B8C9D0E1"))

	assert.False(t, ValidateFileID(""))
	assert.False(t, ValidateFileID("not-a-file-id"))
	assert.False(t, ValidateFileID("65a1b2c3d4e5f6a7b8c9d0e"))    // too short
	assert.False(t, ValidateFileID("65a1b2c3d4e5f6a7b8c9d0e1a"))  // too long
	assert.False(t, ValidateFileID("65a1b2c3d4e5f6a7b8c9d0ez"))   // non-hex
	assert.False(t, ValidateFileID("../../../../../etc/passwd1")) // traversal attempt
}

func TestPosixStoreStat(t *testing.T) {
	dir := t.TempDir()
	content := []byte("some audio bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, testFileID), content, 0644))

	store, err := NewPosixStore(dir)
	require.NoError(t, err)

	info, err := store.Stat(context.Background(), testFileID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Length)
	assert.Equal(t, DefaultMimeType, info.MimeType)

	_, err = store.Stat(context.Background(), "65a1b2c3d4e5f6a7b8c9d0e2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Stat(context.Background(), "junk")
	assert.ErrorIs(t, err, ErrInvalidFileID)
}

func TestPosixStoreRangedReader(t *testing.T) {
	dir := t.TempDir()
	content := []byte("0123456789abcdefghij")
	require.NoError(t, os.WriteFile(filepath.Join(dir, testFileID), content, 0644))

	store, err := NewPosixStore(dir)
	require.NoError(t, err)

	reader, err := store.Reader(context.Background(), testFileID, 5, 9)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("56789"), got)
}

// A store wrapper that counts Stat calls so the metadata cache behavior
// is observable.
type countingStore struct {
	*PosixStore
	statCalls int
}

func (s *countingStore) Stat(ctx context.Context, fileID string) (FileInfo, error) {
	s.statCalls++
	return s.PosixStore.Stat(ctx, fileID)
}

func TestCachedStoreStatOnlyHitsInnerOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, testFileID), []byte("hello"), 0644))

	posix, err := NewPosixStore(dir)
	require.NoError(t, err)
	counting := &countingStore{PosixStore: posix}

	cached := NewCachedStore(counting, time.Minute)
	defer func() {
		require.NoError(t, cached.Close(context.Background()))
	}()

	for range 3 {
		info, err := cached.Stat(context.Background(), testFileID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Length)
	}
	assert.Equal(t, 1, counting.statCalls)
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	dir := t.TempDir()
	posix, err := NewPosixStore(dir)
	require.NoError(t, err)
	counting := &countingStore{PosixStore: posix}

	cached := NewCachedStore(counting, time.Minute)
	defer func() {
		require.NoError(t, cached.Close(context.Background()))
	}()

	_, err = cached.Stat(context.Background(), testFileID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Stat(context.Background(), testFileID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, counting.statCalls)
}
