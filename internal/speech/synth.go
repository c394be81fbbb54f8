package speech

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/cache"
	"github.com/biglexj/prisma-vtuber/internal/sanitize"
)

// SynthSpeaker synthesizes PCM with an engine and plays it. Clips are
// looked up in the cache first, so repeated phrases are synthesized once.
type SynthSpeaker struct {
	engine Synthesizer
	player Player
	cache  Cache // may be nil
	speed  float64
}

// NewSynthSpeaker creates a SynthSpeaker. cache may be nil.
func NewSynthSpeaker(engine Synthesizer, player Player, c Cache, speed float64) *SynthSpeaker {
	if speed <= 0 {
		speed = 1.0
	}
	return &SynthSpeaker{engine: engine, player: player, cache: c, speed: speed}
}

// Speak synthesizes text (or fetches it from cache) and blocks until it has
// played.
func (s *SynthSpeaker) Speak(ctx context.Context, text string) error {
	if sanitize.IsBlank(text) {
		return NewSynthesisError(ErrorCodeInvalidInput, "nothing to speak", ErrEmptyText)
	}

	info := s.engine.Info()
	if info.MaxTextSize > 0 && utf8.RuneCountInString(text) > info.MaxTextSize {
		return NewSynthesisError(ErrorCodeTextTooLong, "text exceeds engine limit", nil).
			WithContext("limit", info.MaxTextSize)
	}

	pcm, err := s.synthesize(ctx, info, text)
	if err != nil {
		return err
	}

	if err := s.player.Play(ctx, pcm); err != nil {
		if errors.Is(err, context.Canceled) {
			return NewSynthesisError(ErrorCodeCanceled, "playback canceled", err)
		}
		return NewSynthesisError(ErrorCodeAudioFailure, "playback failed", err)
	}
	return nil
}

func (s *SynthSpeaker) synthesize(ctx context.Context, info EngineInfo, text string) ([]byte, error) {
	key := cache.Key(text, info.Name+"/"+info.Voice, s.speed)
	if s.cache != nil {
		if pcm, ok := s.cache.Get(key); ok {
			log.Debug("Using cached clip", "key", key)
			return pcm, nil
		}
	}

	pcm, err := s.engine.Synthesize(ctx, text, s.speed)
	if err != nil {
		return nil, engineError(err).WithContext("engine", info.Name)
	}
	if len(pcm) == 0 {
		return nil, NewSynthesisError(ErrorCodeEngineFailure, "engine produced no audio", nil).
			WithContext("engine", info.Name)
	}

	if s.cache != nil {
		if err := s.cache.Put(key, pcm); err != nil {
			log.Warn("Could not cache clip", "err", err)
		}
	}
	return pcm, nil
}

// Close releases the engine, player and cache.
func (s *SynthSpeaker) Close() error {
	err := errors.Join(s.engine.Close(), s.player.Close())
	if s.cache != nil {
		err = errors.Join(err, s.cache.Close())
	}
	return err
}
