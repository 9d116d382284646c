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

	"github.com/jellydator/ttlcache/v3"
)

// CachedStore wraps a Store with a short-lived metadata cache so repeated
// range requests for the same file don't each pay a store round trip.
// Blob metadata is immutable once uploaded, so the only staleness the TTL
// guards against is deletion.
//
// This cache holds metadata only; byte content is handled by the chunk
// and disk cache tiers.
type CachedStore struct {
	inner Store
	infos *ttlcache.Cache[string, FileInfo]
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, FileInfo](ttl),
		ttlcache.WithDisableTouchOnHit[string, FileInfo](),
	)
	go cache.Start()
	return &CachedStore{
		inner: inner,
		infos: cache,
	}
}

func (s *CachedStore) Stat(ctx context.Context, fileID string) (FileInfo, error) {
	if item := s.infos.Get(fileID); item != nil {
		return item.Value(), nil
	}
	info, err := s.inner.Stat(ctx, fileID)
	if err != nil {
		return FileInfo{}, err
	}
	s.infos.Set(fileID, info, ttlcache.DefaultTTL)
	return info, nil
}

func (s *CachedStore) Reader(ctx context.Context, fileID string, start, end int64) (io.ReadCloser, error) {
	return s.inner.Reader(ctx, fileID, start, end)
}

func (s *CachedStore) Close(ctx context.Context) error {
	s.infos.Stop()
	return s.inner.Close(ctx)
}
