package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer records clips instead of playing them. Each Play blocks for
// the clip's real duration scaled by Speedup, so tests can observe
// serialization without a sound card.
type MockPlayer struct {
	format Format

	// Speedup divides the simulated duration; zero means return at once.
	Speedup float64

	// Err, when set, is returned by every Play.
	Err error

	// OnPlay is called at the start of each Play.
	OnPlay func(pcm []byte)

	mu      sync.Mutex
	clips   [][]byte
	playing atomic.Int32
	maxLive atomic.Int32
	closed  atomic.Bool
	volume  float64
}

// NewMockPlayer returns a MockPlayer for format that returns immediately.
func NewMockPlayer(format Format) *MockPlayer {
	return &MockPlayer{format: format, volume: 1.0}
}

// Format returns the configured format.
func (m *MockPlayer) Format() Format {
	return m.format
}

// Play records pcm and simulates playback.
func (m *MockPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	if m.closed.Load() {
		return ErrClosed
	}

	live := m.playing.Add(1)
	defer m.playing.Add(-1)
	for {
		peak := m.maxLive.Load()
		if live <= peak || m.maxLive.CompareAndSwap(peak, live) {
			break
		}
	}

	if m.OnPlay != nil {
		m.OnPlay(pcm)
	}

	m.mu.Lock()
	m.clips = append(m.clips, append([]byte(nil), pcm...))
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	if m.Speedup > 0 {
		d := time.Duration(float64(m.format.Duration(len(pcm))) / m.Speedup)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return nil
}

// Clips returns copies of every clip played so far.
func (m *MockPlayer) Clips() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.clips...)
}

// MaxConcurrent reports the most Play calls that were ever in flight at once.
func (m *MockPlayer) MaxConcurrent() int {
	return int(m.maxLive.Load())
}

// SetVolume records the volume.
func (m *MockPlayer) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
	return nil
}

// Volume returns the last volume set.
func (m *MockPlayer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Close marks the player closed.
func (m *MockPlayer) Close() error {
	m.closed.Store(true)
	return nil
}
