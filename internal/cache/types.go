package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrTooLarge is returned when a clip exceeds the capacity of a store.
var ErrTooLarge = errors.New("clip too large for cache")

// Tier identifies where a clip was found.
type Tier int

const (
	TierMemory Tier = iota
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Store is a size-bounded key/value store for PCM clips.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, pcm []byte) error
	Delete(key string)
	Len() int
	Stats() Stats
	Close() error
}

// Stats holds counters for one tier.
type Stats struct {
	Tier      Tier
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
	LastEvict time.Time
}

// HitRate is hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %d clips, %s of %s, %.0f%% hits",
		s.Tier,
		s.Items,
		humanize.Bytes(uint64(s.Size)),
		humanize.Bytes(uint64(s.Capacity)),
		s.HitRate()*100,
	)
}

// Key derives the cache key for text spoken with voice at speed.
func Key(text, voice string, speed float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%.2f", text, voice, speed))
	return hex.EncodeToString(sum[:16])
}
