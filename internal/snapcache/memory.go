package snapcache

import (
	"sync"
	"sync/atomic"
)

// DefaultMemoryBudget is the default maximum memory size for the in-memory
// snapshot cache (256 MB).
const DefaultMemoryBudget = 256 * 1024 * 1024

// bytesPerKB is the number of bytes in a kilobyte.
const bytesPerKB = 1024.0

// averageSnapshotEstimate is the estimated average source file size in
// bytes for Bloom filter sizing. Typical source files are ~4 KB; the
// conservative estimate sizes the filter for more elements than likely
// needed, keeping the false-positive rate low.
const averageSnapshotEstimate = 4096

// bloomFPRate is the false-positive rate for the Bloom pre-filter. At 1%,
// 99% of definite cache misses are short-circuited without lock
// acquisition.
const bloomFPRate = 0.01

// minBloomElements is the minimum number of expected elements for the Bloom
// filter. Prevents degenerate sizing for very small budgets.
const minBloomElements = 64

// evictionSampleSize is the number of LRU candidates to sample for
// size-aware eviction, reducing the O(n) scan to O(k).
const evictionSampleSize = 5

// Memory is a byte-budgeted LRU cache for source snapshots. A Bloom filter
// pre-filters Get lookups to skip lock acquisition for definite misses, and
// eviction prefers large, rarely-read snapshots.
type Memory struct {
	mu          sync.RWMutex
	entries     map[string]*memEntry
	head        *memEntry // Most recently used.
	tail        *memEntry // Least recently used.
	filter      *Bloom
	maxBytes    int64
	currentSize int64

	// Metrics (atomic for lock-free reads).
	hits          atomic.Int64
	misses        atomic.Int64
	bloomFiltered atomic.Int64
}

// memEntry is a doubly-linked list node for LRU tracking.
type memEntry struct {
	key         string
	data        []byte
	size        int64
	accessCount int64
	prev        *memEntry
	next        *memEntry
}

// evictionCost is the cost of evicting this entry; higher cost means less
// desirable to evict. Access count over size in KB, so large cold
// snapshots go first.
func (e *memEntry) evictionCost() float64 {
	if e.size == 0 {
		return float64(e.accessCount)
	}

	sizeKB := float64(e.size) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// NewMemory creates an in-memory snapshot cache with the given byte budget.
// Non-positive budgets fall back to DefaultMemoryBudget.
func NewMemory(maxBytes int64) *Memory {
	if maxBytes <= 0 {
		maxBytes = DefaultMemoryBudget
	}

	expectedElements := max(uint(maxBytes/averageSnapshotEstimate), minBloomElements)

	// Error is structurally impossible: expectedElements > 0 and
	// bloomFPRate is in (0, 1).
	filter, err := NewBloom(expectedElements, bloomFPRate)
	if err != nil {
		panic("snapcache: bloom filter initialization failed: " + err.Error())
	}

	return &Memory{
		entries:  make(map[string]*memEntry),
		filter:   filter,
		maxBytes: maxBytes,
	}
}

// Get returns the cached snapshot for key, or (nil, false). The Bloom
// filter short-circuits definite misses before the lock.
func (c *Memory) Get(key string) ([]byte, bool) {
	if !c.filter.Test([]byte(key)) {
		c.bloomFiltered.Add(1)
		c.misses.Add(1)

		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	entry.accessCount++
	c.moveToFront(entry)

	return entry.data, true
}

// Put stores a snapshot under key, evicting low-cost entries until it fits.
// Snapshots larger than the whole budget are not cached. The stored copy is
// detached from the caller's slice.
func (c *Memory) Put(key string, data []byte) {
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.accessCount++
		c.moveToFront(entry)

		return
	}

	for c.currentSize+size > c.maxBytes && c.tail != nil {
		c.evictLowestCost()
	}

	if c.currentSize+size > c.maxBytes {
		return
	}

	detached := make([]byte, size)
	copy(detached, data)

	entry := &memEntry{
		key:         key,
		data:        detached,
		size:        size,
		accessCount: 1,
	}

	c.entries[key] = entry
	c.currentSize += size
	c.addToFront(entry)
	c.filter.Add([]byte(key))
}

// Stats returns cache performance counters.
func (c *Memory) Stats() MemoryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return MemoryStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		BloomFiltered: c.bloomFiltered.Load(),
		Entries:       len(c.entries),
		CurrentBytes:  c.currentSize,
		MaxBytes:      c.maxBytes,
	}
}

// Clear removes all entries and resets the Bloom filter.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*memEntry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
	c.filter.Reset()
}

// MemoryStats holds cache performance metrics.
type MemoryStats struct {
	Hits          int64
	Misses        int64
	BloomFiltered int64 // Lookups short-circuited by the Bloom pre-filter.
	Entries       int
	CurrentBytes  int64
	MaxBytes      int64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s MemoryStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// moveToFront moves an entry to the most-recently-used position.
func (c *Memory) moveToFront(entry *memEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

// addToFront adds an entry to the front of the LRU list.
func (c *Memory) addToFront(entry *memEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

// removeFromList unlinks an entry from the LRU list.
func (c *Memory) removeFromList(entry *memEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}

// evictLowestCost removes the entry with the lowest eviction cost from the
// LRU tail region, sampling up to evictionSampleSize entries to avoid a
// full scan.
func (c *Memory) evictLowestCost() {
	if c.tail == nil {
		return
	}

	var candidates [evictionSampleSize]*memEntry

	count := 0
	entry := c.tail

	for entry != nil && count < evictionSampleSize {
		candidates[count] = entry
		count++
		entry = entry.prev
	}

	if count == 0 {
		return
	}

	victim := candidates[0]
	lowestCost := victim.evictionCost()

	for i := 1; i < count; i++ {
		cost := candidates[i].evictionCost()
		if cost < lowestCost {
			lowestCost = cost
			victim = candidates[i]
		}
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size
}
