// Package speech turns reply text into sound. A Manager owns the single
// worker that speaks queued utterances one at a time; a Speaker does the
// actual speaking, either by synthesizing PCM and playing it, by handing
// the text to an external program, or by printing it.
package speech

import (
	"context"
)

// Speaker speaks one piece of text and returns when it is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

func (f SpeakerFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// Synthesizer converts text to 16-bit little-endian PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)
	Info() EngineInfo
	Validate() error
	Close() error
}

// EngineInfo describes what a Synthesizer produces.
type EngineInfo struct {
	Name        string
	Voice       string
	SampleRate  int
	Channels    int
	BitDepth    int
	MaxTextSize int // characters, zero for no limit
	IsOnline    bool
}

// Player plays PCM and blocks until playback ends.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
	SetVolume(volume float64) error
	Close() error
}

// Cache stores synthesized clips by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, pcm []byte) error
	Close() error
}
