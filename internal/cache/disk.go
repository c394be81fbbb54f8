package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "clips.index"

	// Clips smaller than this are stored raw.
	compressThreshold = 1024
)

// DiskCache stores clips as files in a directory, optionally zstd
// compressed. The index is written on Close and read back on open, so
// clips survive restarts.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	File       string
	Size       int64 // bytes on disk
	RawSize    int64
	Compressed bool
	Created    time.Time
	LastAccess time.Time
}

// NewDiskCache opens (or creates) a disk cache in dir. A compressionLevel of
// zero stores clips uncompressed.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Tier: TierDisk, Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to read clips written by an earlier, compressing run.
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if err := dc.loadIndex(); err != nil {
		log.Warn("Ignoring unreadable cache index", "dir", dir, "err", err)
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}

	return dc, nil
}

// Get reads the clip stored under key. Missing or corrupt files count as a
// miss and are dropped from the index.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.dir, entry.File))
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		log.Debug("Dropping unreadable cached clip", "key", key, "err", err)
		dc.removeEntry(key, entry)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	dc.stats.Hits++
	return data, true
}

// Put writes pcm under key, evicting the least recently used clips when the
// directory would grow past its capacity.
func (dc *DiskCache) Put(key string, pcm []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, compressed := pcm, false
	if dc.encoder != nil && len(pcm) > compressThreshold {
		if packed := dc.encoder.EncodeAll(pcm, nil); len(packed) < len(pcm) {
			data, compressed = packed, true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrTooLarge
	}

	if existing, ok := dc.index[key]; ok {
		dc.removeEntry(key, existing)
	}
	dc.evictFor(n)

	name := fileName(key)
	if err := writeAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		File:       name,
		Size:       n,
		RawSize:    int64(len(pcm)),
		Compressed: compressed,
		Created:    now,
		LastAccess: now,
	}
	dc.size += n
	return nil
}

// Delete removes key and its file.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		dc.removeEntry(key, entry)
	}
}

// Prune removes clips created before maxAge ago and returns how many went.
func (dc *DiskCache) Prune(maxAge time.Duration) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, entry := range dc.index {
		if entry.Created.Before(cutoff) {
			dc.removeEntry(key, entry)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of indexed clips.
func (dc *DiskCache) Len() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.index)
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Close persists the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	err := dc.saveIndex()
	if dc.encoder != nil {
		err = errors.Join(err, dc.encoder.Close())
	}
	dc.decoder.Close()
	return err
}

// evictFor drops least recently used clips until n more bytes fit. Must be
// called with the lock held.
func (dc *DiskCache) evictFor(n int64) {
	if dc.size+n <= dc.capacity {
		return
	}

	keys := make([]string, 0, len(dc.index))
	for k := range dc.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.index[keys[i]].LastAccess.Before(dc.index[keys[j]].LastAccess)
	})

	for _, k := range keys {
		if dc.size+n <= dc.capacity {
			break
		}
		dc.removeEntry(k, dc.index[k])
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) removeEntry(key string, entry *diskEntry) {
	_ = os.Remove(filepath.Join(dc.dir, entry.File))
	delete(dc.index, key)
	dc.size -= entry.Size
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(dc.index); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".pcm"
}

// writeAtomic writes to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
