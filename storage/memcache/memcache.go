// Package memcache implements the bounded in-memory response cache of
// spec.md §3/§4.F (component F): a fixed MaxBlocks-slot pool, a
// readers-writer discipline per entry, a single global writer mutex
// serializing stores, and approximate-LRU eviction by minimum
// last-visit logical timestamp.
//
// This supersedes the teacher's storage/bucket/memory.memoryBucket,
// which in the retrieved pack was an empty stub of panicking methods
// implementing api/defined/v1/storage.Bucket (a disk-object-metadata
// contract that has no analogue here); the package keeps the same
// "bucket" role — an in-memory response store — re-typed to the
// spec's plain (uri string) -> []byte contract.
package memcache

import (
	"sync"
	"sync/atomic"
)

const (
	// MaxBlocks is the fixed slot count (spec.md §6, MAX_BLOCK_NUM).
	MaxBlocks = 21
	// MaxURILen bounds a cache key, including its terminator (spec.md §6, MAX_URI_LEN).
	MaxURILen = 256
	// MaxObjectSize is the largest response the cache will store (spec.md §6).
	MaxObjectSize = 102_400
	// MaxCacheSize is the nominal total-bytes budget (spec.md §6). Tracked
	// for observability; not independently enforced beyond the implicit
	// bound of MaxBlocks*MaxObjectSize, per spec.md §8's allowance.
	MaxCacheSize = 1_049_000
)

// entry is one cache slot. The payload-exclusion lock is a
// sync.RWMutex: Go's implementation is writer-preferring (new readers
// block once a writer is waiting), which is exactly the fair/
// writer-preferring primitive spec.md §9's design notes recommend
// over a hand-rolled first-reader-in/last-reader-out idiom. readers is
// kept as an atomic counter mirroring the spec's explicit "readers"
// field; Stats, /debug/cache and the tests do not read it.
type entry struct {
	rw sync.RWMutex

	key       string
	payload   []byte
	size      int
	lastVisit uint64
	readers   atomic.Int32
}

// Cache is the fixed-pool response cache.
type Cache struct {
	writeMu      sync.Mutex // global_write_sem: serializes all Store calls
	clock        atomic.Uint64
	totalBytes   atomic.Int64
	maxCacheSize int64
	slots        []*entry

	// OnEvict, if set, is called from Store each time an occupied slot
	// (not an empty one) is replaced — i.e. a real eviction, not just
	// filling the pool. Wired by main.go to a metrics.Collector counter.
	OnEvict func()
}

// New allocates an empty cache with slots slots, matching conf.Cache.MaxBlocks.
// maxCacheSize is carried only for observability (Stats.Budget /
// /debug/cache); it is never independently enforced, per spec.md §9's
// resolution of the byte-budget Open Question.
func New(slots int, maxCacheSize int64) *Cache {
	if slots <= 0 {
		slots = MaxBlocks
	}
	c := &Cache{slots: make([]*entry, slots), maxCacheSize: maxCacheSize}
	for i := range c.slots {
		c.slots[i] = &entry{}
	}
	return c
}

// Handle is a read-lock handle returned by a successful Lookup. The
// caller must call Release exactly once.
type Handle struct {
	e *entry
}

// Payload returns the cached response bytes. The view is immutable and
// remains valid until Release is called.
func (h *Handle) Payload() []byte { return h.e.payload }

// Size returns the payload length.
func (h *Handle) Size() int { return h.e.size }

// Release releases the read lock acquired by Lookup.
func (h *Handle) Release() {
	h.e.readers.Add(-1)
	h.e.rw.RUnlock()
}

// Lookup walks the slots in fixed order looking for uri. On a hit it
// returns a Handle the caller must Release; on a miss it returns
// (nil, false). Every call advances the logical clock, and a hit
// stamps the entry's last-visit under the read lock — a relaxed,
// best-effort recency update the approximate-LRU policy tolerates
// (spec.md §4.F).
func (c *Cache) Lookup(uri string) (*Handle, bool) {
	now := c.clock.Add(1)

	for _, e := range c.slots {
		e.rw.RLock()
		if e.key == uri {
			e.readers.Add(1)
			atomic.StoreUint64(&e.lastVisit, now)
			return &Handle{e: e}, true
		}
		e.rw.RUnlock()
	}
	return nil, false
}

// Store takes ownership of payload and installs it under key uri,
// evicting a slot at minimum last-visit timestamp. The scan is a
// faithful port of cache.c's cache_store: maxLast seeds to the
// just-bumped logical clock (always >= any slot's last-visit) and the
// comparison is non-strict (<=), so on a tie the LAST slot scanned
// wins, not the first — on a cold pool (every last-visit still 0) this
// fills the pool back-to-front rather than front-to-back. The entire
// operation runs under the global writer mutex, so slot selection,
// eviction and the total-bytes update are atomic with respect to other
// Store calls.
func (c *Cache) Store(uri string, payload []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	now := c.clock.Add(1)

	maxLast := now
	victimIdx := 0
	for i, e := range c.slots {
		v := atomic.LoadUint64(&e.lastVisit)
		if v <= maxLast {
			maxLast = v
			victimIdx = i
		}
	}
	victim := c.slots[victimIdx]

	victim.rw.Lock() // blocks until current readers drain
	evicted := victim.key != ""
	if evicted {
		c.totalBytes.Add(-int64(victim.size))
	}
	victim.key = uri
	victim.payload = payload
	victim.size = len(payload)
	atomic.StoreUint64(&victim.lastVisit, now)
	c.totalBytes.Add(int64(len(payload)))
	victim.rw.Unlock()

	if evicted && c.OnEvict != nil {
		c.OnEvict()
	}
}

// Stats is a point-in-time snapshot for metrics/debug endpoints.
type Stats struct {
	TotalBytes   int64
	Budget       int64
	LogicalClock uint64
	Occupied     int
	Capacity     int
}

// Stats returns a snapshot of the cache's aggregate counters. It does
// not take the global writer lock; values are best-effort, matching
// the logical clock's own non-linearizable contract (spec.md §5).
func (c *Cache) Stats() Stats {
	occupied := 0
	for _, e := range c.slots {
		e.rw.RLock()
		if e.key != "" {
			occupied++
		}
		e.rw.RUnlock()
	}
	return Stats{
		TotalBytes:   c.totalBytes.Load(),
		Budget:       c.maxCacheSize,
		LogicalClock: c.clock.Load(),
		Occupied:     occupied,
		Capacity:     len(c.slots),
	}
}
