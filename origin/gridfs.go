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
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	// GridFSStore serves blobs out of a MongoDB GridFS bucket.
	GridFSStore struct {
		client *mongo.Client
		bucket *gridfs.Bucket
	}

	gridfsFile struct {
		ID         primitive.ObjectID `bson:"_id"`
		Length     int64              `bson:"length"`
		UploadDate primitive.DateTime `bson:"uploadDate"`
		Metadata   struct {
			MimeType string `bson:"mimeType"`
		} `bson:"metadata"`
	}

	// rangedStream trims a GridFS download stream to an inclusive
	// byte range.
	rangedStream struct {
		io.Reader
		inner io.Closer
	}
)

// NewGridFSStore connects to the given MongoDB URL and opens the named
// GridFS bucket.
func NewGridFSStore(ctx context.Context, mongoURL, database, bucketName string) (*GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to the origin store")
	}
	if err := client.Ping(ctx, nil); err != nil {
		if dErr := client.Disconnect(ctx); dErr != nil {
			log.Warningln("Failed to disconnect from origin store after ping failure:", dErr)
		}
		return nil, errors.Wrapf(err, "origin store at %s is not reachable", mongoURL)
	}
	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the origin bucket")
	}
	return &GridFSStore{client: client, bucket: bucket}, nil
}

func (s *GridFSStore) Stat(ctx context.Context, fileID string) (info FileInfo, err error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		err = ErrInvalidFileID
		return
	}

	cursor, err := s.bucket.Find(bson.M{"_id": oid})
	if err != nil {
		err = errors.Wrap(err, "failed to query the origin store")
		return
	}
	defer func() {
		if cErr := cursor.Close(ctx); cErr != nil {
			log.Warningln("Failed to close origin metadata cursor:", cErr)
		}
	}()

	if !cursor.Next(ctx) {
		err = ErrNotFound
		return
	}
	var file gridfsFile
	if err = cursor.Decode(&file); err != nil {
		err = errors.Wrap(err, "failed to decode origin file metadata")
		return
	}

	info = FileInfo{
		ID:         fileID,
		Length:     file.Length,
		MimeType:   file.Metadata.MimeType,
		UploadDate: file.UploadDate.Time(),
	}
	if info.MimeType == "" {
		info.MimeType = DefaultMimeType
	}
	return
}

// Reader opens a download stream positioned at the inclusive range
// [start, end].  The GridFS driver always starts a stream at offset 0,
// so the leading bytes are discarded; the driver reads whole 255KiB
// chunks internally either way, making the discard cheap relative to
// the chunk fetches it shares.
func (s *GridFSStore) Reader(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, ErrInvalidFileID
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetReadDeadline(deadline); err != nil {
			log.Warningln("Failed to set origin read deadline:", err)
		}
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to open origin download stream")
	}

	if start > 0 {
		if _, err := io.CopyN(io.Discard, stream, start); err != nil {
			if cErr := stream.Close(); cErr != nil {
				log.Warningln("Failed to close origin stream after seek failure:", cErr)
			}
			return nil, errors.Wrapf(err, "failed to seek origin stream to offset %d", start)
		}
	}

	return &rangedStream{
		Reader: io.LimitReader(stream, end-start+1),
		inner:  stream,
	}, nil
}

func (s *GridFSStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (r *rangedStream) Close() error {
	return r.inner.Close()
}
