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

	"github.com/pkg/errors"
)

// PosixStore serves blobs out of a flat directory, one file per fileId.
// Intended for development deployments and tests where a MongoDB
// instance is unavailable; the production origin is GridFS.
type PosixStore struct {
	basePath string
}

func NewPosixStore(basePath string) (*PosixStore, error) {
	fi, err := os.Stat(basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat posix origin directory")
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("posix origin path %s is not a directory", basePath)
	}
	return &PosixStore{basePath: basePath}, nil
}

func (s *PosixStore) filePath(fileID string) string {
	return filepath.Join(s.basePath, fileID)
}

func (s *PosixStore) Stat(ctx context.Context, fileID string) (info FileInfo, err error) {
	if !ValidateFileID(fileID) {
		err = ErrInvalidFileID
		return
	}
	fi, err := os.Stat(s.filePath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrNotFound
		} else {
			err = errors.Wrap(err, "failed to stat origin file")
		}
		return
	}
	info = FileInfo{
		ID:         fileID,
		Length:     fi.Size(),
		MimeType:   DefaultMimeType,
		UploadDate: fi.ModTime(),
	}
	return
}

func (s *PosixStore) Reader(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	if !ValidateFileID(fileID) {
		return nil, ErrInvalidFileID
	}
	fp, err := os.Open(s.filePath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to open origin file")
	}
	return &rangedStream{
		Reader: io.NewSectionReader(fp, start, end-start+1),
		inner:  fp,
	}, nil
}

func (s *PosixStore) Close(ctx context.Context) error {
	return nil
}
