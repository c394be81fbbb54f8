package app

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/biglexj/prisma-vtuber/internal/audio"
	"github.com/biglexj/prisma-vtuber/internal/cache"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/speech"
	"github.com/biglexj/prisma-vtuber/internal/speech/engines"
)

// NewSpeaker creates the configured speech backend. out receives text from
// the print engine.
func NewSpeaker(cfg config.SpeechConfig, out io.Writer) (speech.Speaker, error) {
	switch cfg.Engine {
	case "print":
		return speech.PrintSpeaker{W: out}, nil
	case "command":
		return speech.NewCommandSpeaker(cfg.Command.Program, cfg.Command.Args, cfg.Command.Timeout), nil
	case "piper":
		engine, err := engines.NewPiper(engines.PiperConfig{
			Binary:     cfg.Piper.Binary,
			ModelPath:  cfg.Piper.Model,
			ConfigPath: cfg.Piper.Config,
			Speaker:    cfg.Piper.Speaker,
			Timeout:    cfg.Piper.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("piper: %w", err)
		}
		return newSynthSpeaker(engine, cfg, cfg.Piper.Speed)
	case "gtts":
		engine, err := engines.NewGTTS(engines.GTTSConfig{
			Language:          cfg.GTTS.Language,
			Slow:              cfg.GTTS.Slow,
			RequestsPerMinute: cfg.GTTS.RequestsPerMinute,
			Timeout:           cfg.GTTS.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("gtts: %w", err)
		}
		return newSynthSpeaker(engine, cfg, 1.0)
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Engine)
	}
}

// newSynthSpeaker opens the audio device in the engine's format and the clip
// cache, if enabled.
func newSynthSpeaker(engine speech.Synthesizer, cfg config.SpeechConfig, speed float64) (speech.Speaker, error) {
	if err := engine.Validate(); err != nil {
		engine.Close() //nolint:errcheck
		return nil, err
	}

	info := engine.Info()
	player, err := audio.NewPlayer(audio.Format{
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
	})
	if err != nil {
		engine.Close() //nolint:errcheck
		return nil, fmt.Errorf("audio: %w", err)
	}
	if err := player.SetVolume(cfg.Volume); err != nil {
		log.Warn("Could not set volume", "volume", cfg.Volume, "err", err)
	}

	clips, err := OpenCache(cfg.Cache)
	if err != nil {
		log.Warn("Audio cache disabled", "err", err)
	}
	if clips == nil {
		return speech.NewSynthSpeaker(engine, player, nil, speed), nil
	}
	return speech.NewSynthSpeaker(engine, player, clips, speed), nil
}

// OpenCache opens the clip cache described by cfg. It returns nil when the
// cache is disabled.
func OpenCache(cfg config.CacheConfig) (*cache.Tiered, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	dir := cfg.Dir
	if dir == "" && cfg.DiskMB > 0 {
		base, err := gap.NewScope(gap.User, "prisma").CacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "clips")
	}

	t, err := cache.Open(cache.Options{
		MemoryBytes:      int64(cfg.MemoryMB) << 20,
		Dir:              dir,
		DiskBytes:        int64(cfg.DiskMB) << 20,
		CompressionLevel: cfg.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("Audio cache ready", "dir", dir)
	return t, nil
}
