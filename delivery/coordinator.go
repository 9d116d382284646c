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

// Package delivery turns a fileId plus an optional Range header into a
// correctly framed partial-content response, consulting the cache tiers
// in order: memory chunk cache, disk file cache, origin store.
//
// Every successful byte-serving response is a 206, including the initial
// no-Range request a browser issues before seeking.  A 200 would promise
// a full-length Content-Length the server will not buffer; the 206 with
// a Content-Range trailer tells the client the total length so it can
// issue follow-up range requests.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/resonate-audio/resonate/chunkcache"
	"github.com/resonate-audio/resonate/diskcache"
	"github.com/resonate-audio/resonate/metrics"
	"github.com/resonate-audio/resonate/origin"
	"github.com/resonate-audio/resonate/server_structs"
)

type Coordinator struct {
	store     origin.Store
	chunks    *chunkcache.Cache
	disk      *diskcache.Cache
	populator *diskcache.Populator

	defaultChunkSize int64
	maxChunkSize     int64
	originTimeout    time.Duration
}

func NewCoordinator(store origin.Store, chunks *chunkcache.Cache, disk *diskcache.Cache,
	populator *diskcache.Populator, defaultChunkSize, maxChunkSize int64, originTimeout time.Duration) *Coordinator {
	return &Coordinator{
		store:            store,
		chunks:           chunks,
		disk:             disk,
		populator:        populator,
		defaultChunkSize: defaultChunkSize,
		maxChunkSize:     maxChunkSize,
		originTimeout:    originTimeout,
	}
}

func contentETag(info origin.FileInfo) string {
	return fmt.Sprintf(`"%s-%d"`, info.ID, info.UploadDate.UnixMilli())
}

// resolve validates the fileId and fetches blob metadata, writing the
// error response itself when the request cannot proceed.
func (c *Coordinator) resolve(ginCtx *gin.Context) (info origin.FileInfo, ok bool) {
	fileID := ginCtx.Param("fileId")
	if !origin.ValidateFileID(fileID) {
		ginCtx.JSON(http.StatusBadRequest,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Invalid file ID"})
		return
	}

	info, err := c.store.Stat(ginCtx.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, origin.ErrNotFound) {
			ginCtx.JSON(http.StatusNotFound,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Audio file not found"})
		} else if errors.Is(err, origin.ErrInvalidFileID) {
			ginCtx.JSON(http.StatusBadRequest,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Invalid file ID"})
		} else {
			log.Errorln("Failed to resolve file metadata:", err)
			ginCtx.JSON(http.StatusInternalServerError,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to stream audio file"})
		}
		return
	}
	ok = true
	return
}

// setCommonHeaders applies the headers shared by every byte-serving
// response.  Blob content is immutable once uploaded, so long-lived
// client caching of ranges is safe; audio tags may fetch cross-origin,
// hence the permissive CORS surface.
func setCommonHeaders(ginCtx *gin.Context, info origin.FileInfo) {
	header := ginCtx.Writer.Header()
	mimeType := info.MimeType
	if mimeType == "" {
		mimeType = origin.DefaultMimeType
	}
	header.Set("Content-Type", mimeType)
	header.Set("Accept-Ranges", "bytes")
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("ETag", contentETag(info))
	header.Set("Last-Modified", info.UploadDate.UTC().Format(http.TimeFormat))
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Range")
	header.Set("Access-Control-Expose-Headers", "Accept-Ranges, Content-Length, Content-Range")
}

func setRangeHeaders(ginCtx *gin.Context, rng ByteRange, totalLength int64, xCache string) {
	header := ginCtx.Writer.Header()
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, totalLength))
	header.Set("Content-Length", strconv.FormatInt(rng.Size(), 10))
	header.Set("X-Cache", xCache)
}

// ServeAudio handles GET requests for one contiguous byte slice of a blob.
func (c *Coordinator) ServeAudio(ginCtx *gin.Context) {
	info, ok := c.resolve(ginCtx)
	if !ok {
		return
	}

	setCommonHeaders(ginCtx, info)
	if ginCtx.GetHeader("If-None-Match") == contentETag(info) {
		ginCtx.Status(http.StatusNotModified)
		return
	}

	if info.Length == 0 {
		// Degenerate zero-length blob; nothing to slice
		ginCtx.Writer.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", 0))
		ginCtx.Writer.Header().Set("Content-Length", "0")
		ginCtx.Status(http.StatusPartialContent)
		return
	}

	rng := ParseRange(ginCtx.GetHeader("Range"), info.Length, c.defaultChunkSize)
	log.Debugf("Audio request for %s: range %d-%d of %d bytes", info.ID, rng.Start, rng.End, info.Length)

	if buf := c.chunks.Get(info.ID, rng.Start, rng.End); buf != nil {
		metrics.RecordHit(metrics.TierMemory)
		setRangeHeaders(ginCtx, rng, info.Length, "HIT")
		ginCtx.Status(http.StatusPartialContent)
		c.writeBody(ginCtx, info.ID, buf)
		return
	}

	if path, _, ok := c.disk.Lookup(info.ID); ok {
		if c.serveFromDisk(ginCtx, info, rng, path) {
			return
		}
		// Disk read failed; the origin is still authoritative
	}

	c.serveFromOrigin(ginCtx, info, rng)
}

// serveFromDisk answers the range via a positioned read of the cached
// content file.  Returns false if the response was not produced and the
// origin path should take over.
func (c *Coordinator) serveFromDisk(ginCtx *gin.Context, info origin.FileInfo, rng ByteRange, path string) bool {
	fp, err := os.Open(path)
	if err != nil {
		log.Warningf("Failed to open disk cache entry for %s: %v", info.ID, err)
		return false
	}
	defer fp.Close()

	size := rng.Size()
	if size <= c.maxChunkSize {
		buf := make([]byte, size)
		if _, err := fp.ReadAt(buf, rng.Start); err != nil {
			log.Warningf("Failed positioned read of disk cache entry for %s: %v", info.ID, err)
			return false
		}
		metrics.RecordHit(metrics.TierDisk)
		setRangeHeaders(ginCtx, rng, info.Length, "HIT")
		ginCtx.Status(http.StatusPartialContent)
		c.writeBody(ginCtx, info.ID, buf)
		// The slice is bounded, so keep it warm in memory too
		c.chunks.Put(info.ID, rng.Start, rng.End, buf)
		return true
	}

	metrics.RecordHit(metrics.TierDisk)
	setRangeHeaders(ginCtx, rng, info.Length, "HIT")
	ginCtx.Status(http.StatusPartialContent)
	if _, err := io.Copy(ginCtx.Writer, io.NewSectionReader(fp, rng.Start, size)); err != nil {
		// Headers are out; all we can do is truncate
		log.Debugf("Stream from disk cache aborted for %s: %v", info.ID, err)
		ginCtx.Abort()
	}
	return true
}

// serveFromOrigin streams the range from the authoritative store and,
// as side effects, triggers background disk population and inserts
// bounded slices into the memory cache.
func (c *Coordinator) serveFromOrigin(ginCtx *gin.Context, info origin.FileInfo, rng ByteRange) {
	ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), c.originTimeout)
	defer cancel()

	reader, err := c.store.Reader(ctx, info.ID, rng.Start, rng.End)
	if err != nil {
		log.Errorln("Failed to open origin stream:", err)
		ginCtx.JSON(http.StatusInternalServerError,
			server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Stream error"})
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warningln("Failed to close origin stream:", err)
		}
	}()

	metrics.RecordMiss()
	// Whole-blob copy into the disk cache; fire and forget
	c.populator.Populate(info)

	size := rng.Size()
	if size <= c.maxChunkSize {
		buf := make([]byte, size)
		if _, err := io.ReadFull(reader, buf); err != nil {
			log.Errorln("Failed to read range from origin stream:", err)
			ginCtx.JSON(http.StatusInternalServerError,
				server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Stream error"})
			return
		}
		setRangeHeaders(ginCtx, rng, info.Length, "MISS")
		ginCtx.Status(http.StatusPartialContent)
		c.writeBody(ginCtx, info.ID, buf)
		c.chunks.Put(info.ID, rng.Start, rng.End, buf)
		return
	}

	setRangeHeaders(ginCtx, rng, info.Length, "MISS")
	ginCtx.Status(http.StatusPartialContent)
	if _, err := io.Copy(ginCtx.Writer, reader); err != nil {
		log.Debugf("Stream from origin aborted for %s: %v", info.ID, err)
		ginCtx.Abort()
	}
}

// writeBody writes an already-buffered slice, tolerating a client that
// has gone away mid-write (seek, pause, navigation).
func (c *Coordinator) writeBody(ginCtx *gin.Context, fileID string, buf []byte) {
	if _, err := ginCtx.Writer.Write(buf); err != nil {
		log.Debugf("Client disconnected while writing %s: %v", fileID, err)
		ginCtx.Abort()
	}
}

// HeadAudio answers metadata-only probes.  Players issue HEAD requests
// ahead of playback, so a HEAD also triggers background population to
// warm the disk cache.
func (c *Coordinator) HeadAudio(ginCtx *gin.Context) {
	info, ok := c.resolve(ginCtx)
	if !ok {
		return
	}
	setCommonHeaders(ginCtx, info)
	ginCtx.Writer.Header().Set("Content-Length", strconv.FormatInt(info.Length, 10))
	ginCtx.Status(http.StatusOK)

	c.populator.Populate(info)
}

// OptionsAudio answers CORS preflight checks.
func (c *Coordinator) OptionsAudio(ginCtx *gin.Context) {
	header := ginCtx.Writer.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Range")
	ginCtx.Status(http.StatusNoContent)
}
