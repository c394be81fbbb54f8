// Package config holds the runtime configuration for prisma: which chat
// source to read, which language model answers, which voice speaks and where
// the persona lives.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Supported adapter names.
var (
	ChatSources = []string{"youtube", "websocket", "console"}
	Backends    = []string{"gemini", "openai"}
	Engines     = []string{"piper", "gtts", "command", "print"}
)

// Config contains all prisma configuration options.
type Config struct {
	Chat       ChatConfig       `yaml:"chat"`
	Generation GenerationConfig `yaml:"generation"`
	Persona    PersonaConfig    `yaml:"persona"`
	Speech     SpeechConfig     `yaml:"speech"`
	Events     EventsConfig     `yaml:"events"`

	// Secrets are read from the environment only.
	Secrets Secrets `yaml:"-"`
}

// ChatConfig selects and tunes the message source.
type ChatConfig struct {
	Source       string        `yaml:"source"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SkipBacklog  bool          `yaml:"skip_backlog"`
}

// GenerationConfig selects the language model backend.
type GenerationConfig struct {
	Backend string        `yaml:"backend"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// PersonaConfig points at the personality record and the canned rules.
type PersonaConfig struct {
	Personality string `yaml:"personality"`
	Rules       string `yaml:"rules"`
	Fallback    string `yaml:"fallback"`
}

// SpeechConfig selects the speech backend.
type SpeechConfig struct {
	Engine  string        `yaml:"engine"`
	Volume  float64       `yaml:"volume"`
	Piper   PiperConfig   `yaml:"piper"`
	GTTS    GTTSConfig    `yaml:"gtts"`
	Command CommandConfig `yaml:"command"`
	Cache   CacheConfig   `yaml:"cache"`
}

// PiperConfig contains Piper engine settings.
type PiperConfig struct {
	Binary  string        `yaml:"binary"`
	Model   string        `yaml:"model"`
	Config  string        `yaml:"config"`
	Speaker string        `yaml:"speaker"`
	Speed   float64       `yaml:"speed"`
	Timeout time.Duration `yaml:"timeout"`
}

// GTTSConfig contains gTTS engine settings.
type GTTSConfig struct {
	Language          string        `yaml:"language"`
	Slow              bool          `yaml:"slow"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// CommandConfig describes an external program that speaks text read from stdin.
type CommandConfig struct {
	Program string        `yaml:"program"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	MemoryMB         int    `yaml:"memory_mb"`
	DiskMB           int    `yaml:"disk_mb"`
	CompressionLevel int    `yaml:"compression_level"`
}

// EventsConfig controls where status events are published besides the log.
type EventsConfig struct {
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
}

// Secrets are API credentials taken from the environment.
type Secrets struct {
	GoogleAPIKey  string `env:"GOOGLE_API_KEY"`
	YouTubeAPIKey string `env:"YOUTUBE_API_KEY"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
}

// DefaultFallback is spoken when the language model fails.
const DefaultFallback = "Ay, mi cerebro de IA tuvo un cortocircuito. ¿Puedes repetirlo?"

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Chat: ChatConfig{
			Source:       "youtube",
			PollInterval: time.Second,
			SkipBacklog:  true,
		},
		Generation: GenerationConfig{
			Backend: "gemini",
			Model:   "",
			Timeout: 60 * time.Second,
		},
		Persona: PersonaConfig{
			Personality: "context/personality.yml",
			Rules:       "context/rules.yml",
			Fallback:    DefaultFallback,
		},
		Speech: SpeechConfig{
			Engine: "print",
			Volume: 1.0,
			Piper: PiperConfig{
				Binary:  "piper",
				Speed:   1.0,
				Timeout: 30 * time.Second,
			},
			GTTS: GTTSConfig{
				Language:          "es",
				RequestsPerMinute: 50,
				Timeout:           30 * time.Second,
			},
			Command: CommandConfig{
				Program: "espeak-ng",
				Args:    []string{"-v", "es", "--stdin"},
				Timeout: 30 * time.Second,
			},
			Cache: CacheConfig{
				Enabled:          true,
				MemoryMB:         32,
				DiskMB:           256,
				CompressionLevel: 3,
			},
		},
		Events: EventsConfig{
			RedisChannel: "prisma:events",
		},
	}
}

// ModelName returns the configured model name, or the backend's default.
func (c GenerationConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Backend {
	case "openai":
		return "gpt-4o-mini"
	default:
		return "gemini-flash-lite-latest"
	}
}

// Validate checks if the configuration is valid. Names are lower-cased in
// place so the rest of the program can compare them directly.
func (c *Config) Validate() error {
	var err error
	if c.Chat.Source, err = oneOf("chat source", c.Chat.Source, ChatSources); err != nil {
		return err
	}
	if c.Chat.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative, got %v", c.Chat.PollInterval)
	}

	if c.Generation.Backend, err = oneOf("generation backend", c.Generation.Backend, Backends); err != nil {
		return err
	}
	if c.Generation.Timeout < time.Second {
		return fmt.Errorf("generation timeout must be at least 1 second, got %v", c.Generation.Timeout)
	}

	if strings.TrimSpace(c.Persona.Fallback) == "" {
		return fmt.Errorf("fallback phrase cannot be empty")
	}

	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}
	return nil
}

// Validate checks the speech settings, including the selected engine's own.
func (c *SpeechConfig) Validate() error {
	var err error
	if c.Engine, err = oneOf("speech engine", c.Engine, Engines); err != nil {
		return err
	}

	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}

	switch c.Engine {
	case "piper":
		if c.Piper.Binary == "" {
			return fmt.Errorf("piper binary cannot be empty")
		}
		if c.Piper.Model == "" {
			return fmt.Errorf("piper model cannot be empty")
		}
		if c.Piper.Speed < 0.1 || c.Piper.Speed > 3.0 {
			return fmt.Errorf("piper speed must be between 0.1 and 3.0, got %.2f", c.Piper.Speed)
		}
		if c.Piper.Timeout < time.Second {
			return fmt.Errorf("piper timeout must be at least 1 second, got %v", c.Piper.Timeout)
		}
	case "gtts":
		if len(c.GTTS.Language) < 2 || len(c.GTTS.Language) > 5 {
			return fmt.Errorf("gtts language code must be 2-5 characters, got %q", c.GTTS.Language)
		}
		if c.GTTS.RequestsPerMinute < 1 {
			return fmt.Errorf("gtts requests_per_minute must be positive, got %d", c.GTTS.RequestsPerMinute)
		}
	case "command":
		if c.Command.Program == "" {
			return fmt.Errorf("command program cannot be empty")
		}
		if c.Command.Timeout < time.Second {
			return fmt.Errorf("command timeout must be at least 1 second, got %v", c.Command.Timeout)
		}
	}

	if c.Cache.Enabled {
		if c.Cache.MemoryMB < 1 || c.Cache.MemoryMB > 10000 {
			return fmt.Errorf("cache memory_mb must be between 1 and 10000, got %d", c.Cache.MemoryMB)
		}
		if c.Cache.DiskMB < 0 || c.Cache.DiskMB > 100000 {
			return fmt.Errorf("cache disk_mb must be between 0 and 100000, got %d", c.Cache.DiskMB)
		}
		if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
			return fmt.Errorf("cache compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel)
		}
	}
	return nil
}

func oneOf(what, value string, valid []string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if !slices.Contains(valid, v) {
		return value, fmt.Errorf("invalid %s '%s': must be one of %v", what, value, valid)
	}
	return v, nil
}
