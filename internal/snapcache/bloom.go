package snapcache

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/bits"
	"sync"
)

// Bloom filter sizing errors.
var (
	ErrZeroElements  = errors.New("snapcache: expected element count must be positive")
	ErrInvalidFPRate = errors.New("snapcache: false-positive rate must be in the open interval (0, 1)")
)

const (
	// bitsPerWord is the number of bits in each uint64 word.
	bitsPerWord = 64

	// ln2Squared is ln(2) squared, used in the optimal bit-array size formula.
	ln2Squared = math.Ln2 * math.Ln2
)

// Bloom is a thread-safe Bloom filter used to short-circuit definite cache
// misses before any lock acquisition. It derives k bit positions from two
// base hashes via h(i) = h1 + i*h2 mod m (Kirsch-Mitzenmacher double
// hashing), so membership tests need a single FNV-128a pass.
type Bloom struct {
	mu    sync.RWMutex
	bits  []uint64
	m     uint // Total bits.
	k     uint // Number of hash functions.
	count uint // Approximate number of added elements.
}

// NewBloom creates a filter sized for n expected elements at a
// false-positive rate of fp.
func NewBloom(n uint, fp float64) (*Bloom, error) {
	if n == 0 {
		return nil, ErrZeroElements
	}

	if fp <= 0 || fp >= 1 {
		return nil, ErrInvalidFPRate
	}

	m := optimalM(n, fp)
	k := optimalK(m, n)
	words := (m + bitsPerWord - 1) / bitsPerWord

	return &Bloom{
		bits: make([]uint64, words),
		m:    m,
		k:    k,
	}, nil
}

// Add inserts data into the filter.
func (f *Bloom) Add(data []byte) {
	h1, h2 := hashKernel(data)

	f.mu.Lock()
	setBits(f.bits, f.m, f.k, h1, h2)

	f.count++
	f.mu.Unlock()
}

// Test reports whether data is possibly in the filter. False guarantees the
// element was never added; true means it might have been, subject to the
// configured false-positive rate.
func (f *Bloom) Test(data []byte) bool {
	h1, h2 := hashKernel(data)

	f.mu.RLock()
	defer f.mu.RUnlock()

	return testBits(f.bits, f.m, f.k, h1, h2)
}

// EstimatedCount returns an approximation of the number of elements added.
func (f *Bloom) EstimatedCount() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.count
}

// FillRatio returns the fraction of bits that are set, in the range [0, 1].
func (f *Bloom) FillRatio() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := uint(0)
	for _, word := range f.bits {
		total += uint(bits.OnesCount64(word))
	}

	return float64(total) / float64(f.m)
}

// Reset clears the filter without reallocating the bit array.
func (f *Bloom) Reset() {
	f.mu.Lock()
	for i := range f.bits {
		f.bits[i] = 0
	}

	f.count = 0
	f.mu.Unlock()
}

// setBits sets the k bit positions derived from h1 and h2.
func setBits(arr []uint64, m, k uint, h1, h2 uint64) {
	for i := range k {
		pos := (h1 + uint64(i)*h2) % uint64(m)
		arr[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}
}

// testBits returns true if all k bit positions derived from h1 and h2 are
// set.
func testBits(arr []uint64, m, k uint, h1, h2 uint64) bool {
	for i := range k {
		pos := (h1 + uint64(i)*h2) % uint64(m)
		if arr[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}

	return true
}

// optimalM computes the optimal bit-array size for n elements at
// false-positive rate fp: m = ceil(-n * ln(fp) / ln(2)^2).
func optimalM(n uint, fp float64) uint {
	return uint(math.Ceil(-float64(n) * math.Log(fp) / ln2Squared))
}

// optimalK computes the optimal number of hash functions:
// k = round(m/n * ln(2)).
func optimalK(m, n uint) uint {
	k := uint(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		return 1
	}

	return k
}

// hashKernel computes two independent 64-bit hashes from data using
// FNV-128a. The second half is forced odd so the step through the bit array
// is coprime with any even m.
func hashKernel(data []byte) (h1, h2 uint64) {
	h := fnv.New128a()
	_, _ = h.Write(data)
	sum := h.Sum(nil)

	h1 = binary.BigEndian.Uint64(sum[:8])
	h2 = binary.BigEndian.Uint64(sum[8:])

	h2 |= 1

	return h1, h2
}
