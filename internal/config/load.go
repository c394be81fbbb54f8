package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// SetDefaults registers every key with its default so viper can report it
// and env overrides work for keys absent from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("chat.source", d.Chat.Source)
	v.SetDefault("chat.poll_interval", d.Chat.PollInterval.String())
	v.SetDefault("chat.skip_backlog", d.Chat.SkipBacklog)

	v.SetDefault("generation.backend", d.Generation.Backend)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.timeout", d.Generation.Timeout.String())

	v.SetDefault("persona.personality", d.Persona.Personality)
	v.SetDefault("persona.rules", d.Persona.Rules)
	v.SetDefault("persona.fallback", d.Persona.Fallback)

	v.SetDefault("speech.engine", d.Speech.Engine)
	v.SetDefault("speech.volume", d.Speech.Volume)
	v.SetDefault("speech.piper.binary", d.Speech.Piper.Binary)
	v.SetDefault("speech.piper.speed", d.Speech.Piper.Speed)
	v.SetDefault("speech.piper.timeout", d.Speech.Piper.Timeout.String())
	v.SetDefault("speech.gtts.language", d.Speech.GTTS.Language)
	v.SetDefault("speech.gtts.requests_per_minute", d.Speech.GTTS.RequestsPerMinute)
	v.SetDefault("speech.command.program", d.Speech.Command.Program)
	v.SetDefault("speech.command.args", d.Speech.Command.Args)
	v.SetDefault("speech.command.timeout", d.Speech.Command.Timeout.String())
	v.SetDefault("speech.cache.enabled", d.Speech.Cache.Enabled)
	v.SetDefault("speech.cache.memory_mb", d.Speech.Cache.MemoryMB)
	v.SetDefault("speech.cache.disk_mb", d.Speech.Cache.DiskMB)
	v.SetDefault("speech.cache.compression_level", d.Speech.Cache.CompressionLevel)

	v.SetDefault("events.redis_channel", d.Events.RedisChannel)
}

// FromViper loads the configuration from v, then reads secrets from the
// environment and validates the result.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("chat.source") {
		cfg.Chat.Source = v.GetString("chat.source")
	}
	if v.IsSet("chat.poll_interval") {
		d, err := duration(v, "chat.poll_interval")
		if err != nil {
			return cfg, err
		}
		cfg.Chat.PollInterval = d
	}
	if v.IsSet("chat.skip_backlog") {
		cfg.Chat.SkipBacklog = v.GetBool("chat.skip_backlog")
	}

	if v.IsSet("generation.backend") {
		cfg.Generation.Backend = v.GetString("generation.backend")
	}
	if v.IsSet("generation.model") {
		cfg.Generation.Model = v.GetString("generation.model")
	}
	if v.IsSet("generation.timeout") {
		d, err := duration(v, "generation.timeout")
		if err != nil {
			return cfg, err
		}
		cfg.Generation.Timeout = d
	}

	if v.IsSet("persona.personality") {
		cfg.Persona.Personality = expand(v.GetString("persona.personality"))
	}
	if v.IsSet("persona.rules") {
		cfg.Persona.Rules = expand(v.GetString("persona.rules"))
	}
	if v.IsSet("persona.fallback") {
		cfg.Persona.Fallback = v.GetString("persona.fallback")
	}

	if err := loadSpeech(v, &cfg.Speech); err != nil {
		return cfg, err
	}

	if v.IsSet("events.redis_url") {
		cfg.Events.RedisURL = v.GetString("events.redis_url")
	}
	if v.IsSet("events.redis_channel") {
		cfg.Events.RedisChannel = v.GetString("events.redis_channel")
	}

	secrets, err := env.ParseAs[Secrets]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.Secrets = secrets

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadSpeech(v *viper.Viper, s *SpeechConfig) error {
	if v.IsSet("speech.engine") {
		s.Engine = v.GetString("speech.engine")
	}
	if v.IsSet("speech.volume") {
		s.Volume = v.GetFloat64("speech.volume")
	}

	if v.IsSet("speech.piper.binary") {
		s.Piper.Binary = expand(v.GetString("speech.piper.binary"))
	}
	if v.IsSet("speech.piper.model") {
		s.Piper.Model = expand(v.GetString("speech.piper.model"))
	}
	if v.IsSet("speech.piper.config") {
		s.Piper.Config = expand(v.GetString("speech.piper.config"))
	}
	if v.IsSet("speech.piper.speaker") {
		s.Piper.Speaker = v.GetString("speech.piper.speaker")
	}
	if v.IsSet("speech.piper.speed") {
		s.Piper.Speed = v.GetFloat64("speech.piper.speed")
	}
	if v.IsSet("speech.piper.timeout") {
		d, err := duration(v, "speech.piper.timeout")
		if err != nil {
			return err
		}
		s.Piper.Timeout = d
	}

	if v.IsSet("speech.gtts.language") {
		s.GTTS.Language = v.GetString("speech.gtts.language")
	}
	if v.IsSet("speech.gtts.slow") {
		s.GTTS.Slow = v.GetBool("speech.gtts.slow")
	}
	if v.IsSet("speech.gtts.requests_per_minute") {
		s.GTTS.RequestsPerMinute = v.GetInt("speech.gtts.requests_per_minute")
	}
	if v.IsSet("speech.gtts.timeout") {
		d, err := duration(v, "speech.gtts.timeout")
		if err != nil {
			return err
		}
		s.GTTS.Timeout = d
	}

	if v.IsSet("speech.command.program") {
		s.Command.Program = v.GetString("speech.command.program")
	}
	if v.IsSet("speech.command.args") {
		s.Command.Args = v.GetStringSlice("speech.command.args")
	}
	if v.IsSet("speech.command.timeout") {
		d, err := duration(v, "speech.command.timeout")
		if err != nil {
			return err
		}
		s.Command.Timeout = d
	}

	if v.IsSet("speech.cache.enabled") {
		s.Cache.Enabled = v.GetBool("speech.cache.enabled")
	}
	if v.IsSet("speech.cache.dir") {
		s.Cache.Dir = expand(v.GetString("speech.cache.dir"))
	}
	if v.IsSet("speech.cache.memory_mb") {
		s.Cache.MemoryMB = v.GetInt("speech.cache.memory_mb")
	}
	if v.IsSet("speech.cache.disk_mb") {
		s.Cache.DiskMB = v.GetInt("speech.cache.disk_mb")
	}
	if v.IsSet("speech.cache.compression_level") {
		s.Cache.CompressionLevel = v.GetInt("speech.cache.compression_level")
	}
	return nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func expand(path string) string {
	if p, err := homedir.Expand(path); err == nil {
		return p
	}
	return path
}
