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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/resonate-audio/resonate/origin"
)

// Populator streams whole blobs from the origin store into the disk
// cache in the background.  Request handlers fire it and forget it; the
// response path never waits on a populate.
//
// At most one populate per fileId is in flight at a time.  Duplicate
// triggers while one is running are dropped rather than queued -- the
// running writer is already streaming the same immutable bytes.
type Populator struct {
	cache   *Cache
	store   origin.Store
	timeout time.Duration

	mutex    sync.Mutex
	inflight map[string]struct{}
	egrp     *errgroup.Group
}

// NewPopulator creates a populator whose background writes are tracked
// by the given errgroup so server shutdown can wait for them.
func NewPopulator(cache *Cache, store origin.Store, timeout time.Duration, egrp *errgroup.Group) *Populator {
	return &Populator{
		cache:    cache,
		store:    store,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
		egrp:     egrp,
	}
}

// Populate kicks off a background copy of the whole blob into the disk
// cache.  Returns false when the populate was dropped: either a valid
// cache entry already exists or another populate for the same fileId is
// running.
func (p *Populator) Populate(info origin.FileInfo) bool {
	if _, _, ok := p.cache.Lookup(info.ID); ok {
		return false
	}

	p.mutex.Lock()
	if _, running := p.inflight[info.ID]; running {
		p.mutex.Unlock()
		return false
	}
	p.inflight[info.ID] = struct{}{}
	p.mutex.Unlock()

	jobID, err := uuid.NewV7()
	if err != nil {
		// Exceedingly unlikely; skip the populate rather than panic
		p.release(info.ID)
		log.Errorln("Failed to generate populate job id:", err)
		return false
	}

	p.egrp.Go(func() error {
		defer p.release(info.ID)
		p.run(jobID, info)
		// Populate failures only cost a future cache miss; never
		// propagate them into the server's errgroup.
		return nil
	})
	return true
}

func (p *Populator) release(fileID string) {
	p.mutex.Lock()
	delete(p.inflight, fileID)
	p.mutex.Unlock()
}

func (p *Populator) run(jobID uuid.UUID, info origin.FileInfo) {
	fields := log.Fields{"job": jobID.String(), "file": info.ID}
	log.WithFields(fields).Debugln("Starting background cache populate")

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	reader, err := p.store.Reader(ctx, info.ID, 0, info.Length-1)
	if err != nil {
		log.WithFields(fields).Warningln("Failed to open origin stream for cache populate:", err)
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.WithFields(fields).Warningln("Failed to close origin stream:", err)
		}
	}()

	meta := Metadata{
		Timestamp: time.Now().UnixMilli(),
		MimeType:  info.MimeType,
		Size:      info.Length,
		FileID:    info.ID,
	}
	if err := p.cache.Store(info.ID, reader, meta); err != nil {
		log.WithFields(fields).Warningln("Failed to populate disk cache:", err)
		return
	}
	log.WithFields(fields).Debugf("Cached %d bytes to disk", info.Length)
}
