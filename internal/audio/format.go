package audio

import (
	"errors"
	"fmt"
	"time"
)

// Format describes raw PCM.
type Format struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // only 16 is supported
}

// DefaultFormat matches what the speech engines produce by default.
func DefaultFormat() Format {
	return Format{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
	}
}

// Validate reports whether the format can be played.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 96000 {
		return fmt.Errorf("sample rate must be between 8000 and 96000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return errors.New("bit depth must be 16")
	}
	return nil
}

// FrameSize is the number of bytes in one sample across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// Duration returns how long n bytes of PCM play for.
func (f Format) Duration(n int) time.Duration {
	frame := f.FrameSize()
	if frame == 0 || f.SampleRate == 0 {
		return 0
	}
	samples := n / frame
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
