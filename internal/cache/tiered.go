package cache

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a Tiered cache.
type Options struct {
	MemoryBytes      int64
	Dir              string // empty disables the disk tier
	DiskBytes        int64
	CompressionLevel int
	MaxAge           time.Duration // disk clips older than this are pruned on open
}

// Tiered checks memory first, then disk, promoting disk hits into memory.
type Tiered struct {
	memory *MemoryCache
	disk   *DiskCache
}

// Open builds a Tiered cache from opts.
func Open(opts Options) (*Tiered, error) {
	t := &Tiered{memory: NewMemoryCache(opts.MemoryBytes)}
	if opts.Dir == "" || opts.DiskBytes <= 0 {
		return t, nil
	}

	disk, err := NewDiskCache(opts.Dir, opts.DiskBytes, opts.CompressionLevel)
	if err != nil {
		return nil, err
	}
	if opts.MaxAge > 0 {
		if n := disk.Prune(opts.MaxAge); n > 0 {
			log.Debug("Pruned stale clips", "count", n, "dir", opts.Dir)
		}
	}
	t.disk = disk
	return t, nil
}

// Get looks key up in memory, then on disk.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if pcm, ok := t.memory.Get(key); ok {
		return pcm, true
	}
	if t.disk == nil {
		return nil, false
	}
	pcm, ok := t.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := t.memory.Put(key, pcm); err != nil && !errors.Is(err, ErrTooLarge) {
		log.Debug("Could not promote clip", "key", key, "err", err)
	}
	return pcm, true
}

// Put stores pcm in both tiers. A clip too large for memory still goes to
// disk.
func (t *Tiered) Put(key string, pcm []byte) error {
	memErr := t.memory.Put(key, pcm)
	if errors.Is(memErr, ErrTooLarge) {
		memErr = nil
	}
	if t.disk == nil {
		return memErr
	}
	return errors.Join(memErr, t.disk.Put(key, pcm))
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(key string) {
	t.memory.Delete(key)
	if t.disk != nil {
		t.disk.Delete(key)
	}
}

// Len returns the number of distinct clips known to the largest tier.
func (t *Tiered) Len() int {
	if t.disk != nil {
		return max(t.disk.Len(), t.memory.Len())
	}
	return t.memory.Len()
}

// Stats reports the memory tier; TierStats reports every tier.
func (t *Tiered) Stats() Stats {
	return t.memory.Stats()
}

// TierStats returns one Stats per configured tier.
func (t *Tiered) TierStats() []Stats {
	stats := []Stats{t.memory.Stats()}
	if t.disk != nil {
		stats = append(stats, t.disk.Stats())
	}
	return stats
}

// Close flushes the disk index.
func (t *Tiered) Close() error {
	err := t.memory.Close()
	if t.disk != nil {
		err = errors.Join(err, t.disk.Close())
	}
	return err
}

var (
	_ Store = (*MemoryCache)(nil)
	_ Store = (*DiskCache)(nil)
	_ Store = (*Tiered)(nil)
)
