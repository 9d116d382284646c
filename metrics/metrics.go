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

// Package metrics tracks cache effectiveness.  Counters are exported to
// Prometheus and mirrored in process-local atomics so the admin stats
// endpoint can report a hit rate without scraping itself.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache tiers, used as the "tier" label value.
const (
	TierMemory = "memory"
	TierDisk   = "disk"
	TierOrigin = "origin"
)

var (
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_cache_requests_total",
		Help: "Audio requests served, labeled by the tier that provided the bytes and whether it was a cache hit",
	}, []string{"tier", "result"})

	hits   atomic.Uint64
	misses atomic.Uint64
)

// RecordHit notes a request served out of the memory or disk tier.
func RecordHit(tier string) {
	CacheRequests.WithLabelValues(tier, "hit").Inc()
	hits.Add(1)
}

// RecordMiss notes a request that fell through to the origin store.
func RecordMiss() {
	CacheRequests.WithLabelValues(TierOrigin, "miss").Inc()
	misses.Add(1)
}

// HitRate returns the fraction of requests served from a cache tier
// since process start, in [0, 1].  Returns 0 before any request.
func HitRate() float64 {
	h := hits.Load()
	m := misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// Reset zeroes the local hit/miss counters.  Test helper; the
// cumulative Prometheus counters are left alone.
func Reset() {
	hits.Store(0)
	misses.Store(0)
}
