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

// Package diskcache stores whole audio blobs on local disk so repeat
// requests skip the origin store entirely.
//
// Each cached fileId is a pair of files in the cache directory: the
// content file (<fileId>.mp3) and a JSON sidecar (<fileId>.json) holding
// the timestamp, mime type, and size.  The sidecar is written only after
// the content file has been fully published, so observing a sidecar
// implies the content beside it is complete.  A sidecar or content file
// on its own is corruption and both are removed on sight.
//
// Expiry is lazy: entry age is checked against the TTL at lookup time,
// and stale pairs are deleted then reported as a miss.  The clear-old
// admin operation covers entries that are never looked up again.
package diskcache

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	contentSuffix = ".mp3"
	sidecarSuffix = ".json"
)

type (
	// Metadata is the JSON sidecar record.  Field names are part of the
	// on-disk format; existing cache directories must keep parsing.
	Metadata struct {
		Timestamp int64  `json:"timestamp"` // unix milliseconds
		MimeType  string `json:"mimeType"`
		Size      int64  `json:"size"`
		FileID    string `json:"fileId"`
	}

	// Stats is an aggregate view of the cache directory.
	Stats struct {
		TotalFiles int
		TotalSize  float64 // megabytes, rounded to two decimals
		OldestFile string
		NewestFile string
	}

	Cache struct {
		basePath string
		ttl      time.Duration

		// Overridable for TTL tests
		now func() time.Time
	}
)

func New(basePath string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(basePath, os.FileMode(0755)); err != nil {
		return nil, errors.Wrap(err, "failed to create disk cache directory")
	}
	return &Cache{
		basePath: basePath,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (c *Cache) contentPath(fileID string) string {
	return filepath.Join(c.basePath, fileID+contentSuffix)
}

func (c *Cache) sidecarPath(fileID string) string {
	return filepath.Join(c.basePath, fileID+sidecarSuffix)
}

// Lookup returns the content path and sidecar metadata for a cached
// fileId.  Returns ok=false on a miss; an expired or corrupt entry is
// deleted before the miss is reported.
func (c *Cache) Lookup(fileID string) (contentPath string, meta Metadata, ok bool) {
	contentPath = c.contentPath(fileID)
	sidecarBytes, err := os.ReadFile(c.sidecarPath(fileID))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warningf("Failed to read cache sidecar for %s: %v", fileID, err)
		}
		// A content file without a sidecar is either a populate in its
		// publish window (content renamed, sidecar not yet written) or
		// debris from a crash.  Leave it; ClearExpired removes orphans.
		return
	}
	if err := json.Unmarshal(sidecarBytes, &meta); err != nil {
		log.Warningf("Corrupt cache sidecar for %s; removing entry: %v", fileID, err)
		c.removeEntry(fileID)
		meta = Metadata{}
		return
	}
	if _, err := os.Stat(contentPath); err != nil {
		log.Warningf("Cache sidecar for %s has no content file; removing entry", fileID)
		c.removeEntry(fileID)
		meta = Metadata{}
		return
	}

	age := c.now().Sub(time.UnixMilli(meta.Timestamp))
	if age > c.ttl {
		log.Debugf("Cache entry for %s aged out (%v old); removing", fileID, age)
		c.removeEntry(fileID)
		meta = Metadata{}
		return
	}

	ok = true
	return
}

// Store writes the blob content from the reader and then the sidecar.
// The content goes to a temporary file first and is renamed into place,
// so a concurrent Lookup never sees a sidecar pointing at a partially
// written content file.  Concurrent writers for the same fileId race
// benignly (last rename wins); both stream identical origin bytes.
func (c *Cache) Store(fileID string, content io.Reader, meta Metadata) error {
	tmp, err := os.CreateTemp(c.basePath, fileID+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary cache file")
	}
	tmpName := tmp.Name()
	defer func() {
		// No-ops once the rename has happened
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Warningf("Failed to remove temporary cache file %s: %v", tmpName, err)
		}
	}()

	written, err := io.Copy(tmp, content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to write cache content for %s", fileID)
	}
	if meta.Size > 0 && written != meta.Size {
		return errors.Errorf("cache write for %s is truncated: wrote %d of %d bytes", fileID, written, meta.Size)
	}

	if err := os.Rename(tmpName, c.contentPath(fileID)); err != nil {
		return errors.Wrapf(err, "failed to publish cache content for %s", fileID)
	}

	sidecarBytes, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "failed to encode cache sidecar")
	}
	if err := os.WriteFile(c.sidecarPath(fileID), sidecarBytes, 0644); err != nil {
		return errors.Wrapf(err, "failed to write cache sidecar for %s", fileID)
	}
	return nil
}

// ClearAll deletes every entry regardless of age and returns the number
// of fileIds removed.
func (c *Cache) ClearAll() (int, error) {
	fileIDs, err := c.listEntries()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, fileID := range fileIDs {
		c.removeEntry(fileID)
		deleted++
	}
	return deleted, nil
}

// ClearExpired deletes entries whose sidecar timestamp is older than the
// given age and returns the number of fileIds removed.  Idempotent: a
// second call with no qualifying entries returns 0.
func (c *Cache) ClearExpired(maxAge time.Duration) (int, error) {
	fileIDs, err := c.listEntries()
	if err != nil {
		return 0, err
	}
	cutoff := c.now().Add(-maxAge)
	deleted := 0
	for _, fileID := range fileIDs {
		sidecarBytes, err := os.ReadFile(c.sidecarPath(fileID))
		if err != nil {
			// Orphaned content file; clean it up but don't count it as
			// an expired entry.
			c.removeEntry(fileID)
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(sidecarBytes, &meta); err != nil {
			c.removeEntry(fileID)
			continue
		}
		if time.UnixMilli(meta.Timestamp).Before(cutoff) {
			c.removeEntry(fileID)
			deleted++
		}
	}
	return deleted, nil
}

// GetStats scans the cache directory.  O(n) in entry count; acceptable
// off the hot path given TTL eviction bounds the directory size.
func (c *Cache) GetStats() (stats Stats, err error) {
	fileIDs, err := c.listEntries()
	if err != nil {
		return
	}

	var totalBytes int64
	var oldest, newest time.Time
	for _, fileID := range fileIDs {
		fi, statErr := os.Stat(c.contentPath(fileID))
		if statErr != nil {
			continue
		}
		totalBytes += fi.Size()
		stats.TotalFiles++
		if oldest.IsZero() || fi.ModTime().Before(oldest) {
			oldest = fi.ModTime()
			stats.OldestFile = fileID + contentSuffix
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
			stats.NewestFile = fileID + contentSuffix
		}
	}
	stats.TotalSize = math.Round(float64(totalBytes)/1024/1024*100) / 100
	return
}

// listEntries returns the fileIds present in the cache directory, based
// on content files.
func (c *Cache) listEntries() ([]string, error) {
	dirEntries, err := os.ReadDir(c.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan cache directory")
	}
	fileIDs := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		name := entry.Name()
		if strings.HasSuffix(name, contentSuffix) {
			fileIDs = append(fileIDs, strings.TrimSuffix(name, contentSuffix))
		}
	}
	return fileIDs, nil
}

// removeEntry deletes both halves of an entry, tolerating either being
// already gone.
func (c *Cache) removeEntry(fileID string) {
	for _, p := range []string{c.contentPath(fileID), c.sidecarPath(fileID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warningf("Failed to remove cache file %s: %v", p, err)
		}
	}
}
