package snapcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// Disk store errors.
var (
	// ErrNotCached is returned by Get when the key has no disk entry.
	ErrNotCached = errors.New("snapcache: key not cached on disk")

	// ErrCorruptEntry is returned when a disk entry cannot be decoded.
	ErrCorruptEntry = errors.New("snapcache: corrupt disk entry")
)

// Disk entry frame layout: a 4-byte little-endian uncompressed length, a
// one-byte encoding flag, then the payload.
const (
	frameHeaderSize = 5

	encodingRaw = 0x00
	encodingLZ4 = 0x01

	// fanoutChars is how many leading digest characters name the
	// subdirectory, keeping directory listings bounded.
	fanoutChars = 2

	dirPerm = 0o755
)

// Disk persists snapshots as LZ4-compressed files under
// <dir>/<first two digest chars>/<digest>. Writes go through a temp file
// and rename, so a crashed run never leaves a truncated entry behind.
type Disk struct {
	dir string
}

// NewDisk creates a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Disk{dir: dir}, nil
}

// Get reads and decompresses the snapshot stored under key. Returns
// ErrNotCached when no entry exists.
func (d *Disk) Get(key string) ([]byte, error) {
	frame, err := os.ReadFile(d.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}

		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrCorruptEntry)
	}

	size := binary.LittleEndian.Uint32(frame[:4])
	encoding := frame[4]
	payload := frame[frameHeaderSize:]

	switch encoding {
	case encodingRaw:
		if uint32(len(payload)) != size {
			return nil, fmt.Errorf("%w: raw payload length mismatch", ErrCorruptEntry)
		}

		return payload, nil
	case encodingLZ4:
		data := make([]byte, size)

		n, uncompressErr := lz4.UncompressBlock(payload, data)
		if uncompressErr != nil || uint32(n) != size {
			return nil, fmt.Errorf("%w: lz4 block decode failed", ErrCorruptEntry)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding 0x%02x", ErrCorruptEntry, encoding)
	}
}

// Put compresses and stores a snapshot under key. Incompressible data is
// stored raw.
func (d *Disk) Put(key string, data []byte) error {
	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(data)))

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, compressed, nil)
	if err == nil && written > 0 && written < len(data) {
		frame[4] = encodingLZ4
		frame = append(frame, compressed[:written]...)
	} else {
		frame[4] = encodingRaw
		frame = append(frame, data...)
	}

	return d.writeAtomic(key, frame)
}

// writeAtomic writes the frame to a temp file in the target directory and
// renames it into place.
func (d *Disk) writeAtomic(key string, frame []byte) error {
	path := d.entryPath(key)

	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPerm)
	if mkdirErr != nil {
		return fmt.Errorf("create cache fanout dir: %w", mkdirErr)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}

	_, writeErr := tmp.Write(frame)

	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("write cache entry: %w", errors.Join(writeErr, closeErr))
	}

	renameErr := os.Rename(tmp.Name(), path)
	if renameErr != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("publish cache entry: %w", renameErr)
	}

	return nil
}

// entryPath maps a key digest to its fanned-out file path.
func (d *Disk) entryPath(key string) string {
	fanout := key
	if len(key) > fanoutChars {
		fanout = key[:fanoutChars]
	}

	return filepath.Join(d.dir, fanout, key)
}
