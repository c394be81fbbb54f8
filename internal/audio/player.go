package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("player is closed")

// oto allows one context per process; every Player shares it.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat Format
)

func sharedContext(f Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != f {
			return nil, fmt.Errorf("audio device already open at %d Hz/%d ch, cannot reopen at %d Hz/%d ch",
				otoFormat.SampleRate, otoFormat.Channels, f.SampleRate, f.Channels)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx, otoFormat = ctx, f
	return ctx, nil
}

// Player plays PCM clips one at a time through the default output device.
type Player struct {
	ctx    *oto.Context
	format Format

	volume atomic.Uint64 // volume * 1e6
	closed atomic.Bool

	// Serializes Play so clips never overlap.
	mu sync.Mutex

	pollInterval time.Duration
}

// NewPlayer opens the output device for format.
func NewPlayer(format Format) (*Player, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}

	ctx, err := sharedContext(format)
	if err != nil {
		return nil, err
	}

	p := &Player{
		ctx:          ctx,
		format:       format,
		pollInterval: 10 * time.Millisecond,
	}
	p.volume.Store(1e6)
	return p, nil
}

// Format returns the PCM format the player expects.
func (p *Player) Format() Format {
	return p.format
}

// Play plays pcm and returns when it has finished or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	if p.closed.Load() {
		return ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Drop a trailing partial frame
	frame := p.format.FrameSize()
	data := pcm[:len(pcm)-len(pcm)%frame]

	player := p.ctx.NewPlayer(bytes.NewReader(data))
	defer player.Close() //nolint:errcheck

	player.SetVolume(p.Volume())
	player.Play()

	log.Debug("Playing clip", "bytes", len(data), "duration", p.format.Duration(len(data)))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// SetVolume sets the playback volume (0.0 to 1.0) for subsequent clips.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(uint64(volume * 1e6))
	return nil
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	return float64(p.volume.Load()) / 1e6
}

// Close stops accepting clips. The shared device stays open for the life of
// the process.
func (p *Player) Close() error {
	p.closed.Store(true)
	return nil
}
