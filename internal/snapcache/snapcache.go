// Package snapcache caches source file snapshots fetched for dataset rows.
// A snapshot is immutable once written: the same (repository, revision,
// path) triple always names the same bytes, which makes a two-level
// memory-over-disk cache safe without invalidation.
package snapcache

import (
	"crypto/sha1" //nolint:gosec // SHA1 keys content-addressed cache entries, not security.
	"encoding/hex"
)

// Key derives the cache key for a snapshot: the SHA-1 digest of the
// repository, revision, and path joined the way the snapshots are addressed
// upstream.
func Key(repo, rev, path string) string {
	sum := sha1.Sum([]byte(repo + "/" + rev + "/" + path)) //nolint:gosec // See package note.

	return hex.EncodeToString(sum[:])
}

// Cache is the two-level snapshot cache: a byte-budgeted LRU in front of an
// optional LZ4 disk store.
type Cache struct {
	mem  *Memory
	disk *Disk
}

// New creates a cache with the given memory budget and disk directory. An
// empty dir disables the disk level.
func New(memBudget int64, dir string) (*Cache, error) {
	cache := &Cache{mem: NewMemory(memBudget)}

	if dir != "" {
		disk, err := NewDisk(dir)
		if err != nil {
			return nil, err
		}

		cache.disk = disk
	}

	return cache, nil
}

// Get returns the snapshot for key from memory or disk. Disk hits are
// promoted into memory.
func (c *Cache) Get(key string) ([]byte, bool) {
	if data, ok := c.mem.Get(key); ok {
		return data, true
	}

	if c.disk == nil {
		return nil, false
	}

	data, err := c.disk.Get(key)
	if err != nil {
		return nil, false
	}

	c.mem.Put(key, data)

	return data, true
}

// Put stores the snapshot at both levels. Disk write failures are ignored;
// the memory level still serves the entry for this run.
func (c *Cache) Put(key string, data []byte) {
	c.mem.Put(key, data)

	if c.disk != nil {
		_ = c.disk.Put(key, data)
	}
}

// Stats returns the memory-level counters.
func (c *Cache) Stats() MemoryStats {
	return c.mem.Stats()
}
