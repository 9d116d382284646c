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

// Package origin adapts the authoritative blob store behind a small
// interface: stat a file's metadata and open a ranged read stream.
// All higher cache tiers fall back to this package on a miss.
package origin

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

const DefaultMimeType = "audio/mpeg"

var (
	// ErrNotFound indicates the fileId does not resolve to a stored blob.
	ErrNotFound = errors.New("file not found in origin store")

	// ErrInvalidFileID indicates the fileId is malformed and was rejected
	// before any store access.
	ErrInvalidFileID = errors.New("invalid file id")
)

type (
	// FileInfo holds the immutable metadata of a stored blob.
	FileInfo struct {
		ID         string
		Length     int64
		MimeType   string
		UploadDate time.Time
	}

	// Store is the origin store adapter.  Reader returns a stream over the
	// inclusive byte range [start, end]; implementations must not return
	// more than end-start+1 bytes.
	Store interface {
		Stat(ctx context.Context, fileID string) (FileInfo, error)
		Reader(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error)
		Close(ctx context.Context) error
	}
)

// ValidateFileID reports whether the given id has the 24-character hex
// form of a stored blob identifier.  Malformed ids are rejected up front
// so a garbage URL never triggers a store round trip.
func ValidateFileID(fileID string) bool {
	if len(fileID) != 24 {
		return false
	}
	for _, c := range fileID {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
