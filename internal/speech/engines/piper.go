package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/biglexj/prisma-vtuber/internal/speech"
)

const (
	piperMaxText  = 5000
	piperMaxAudio = 10 * 1024 * 1024
)

// Piper synthesizes speech with the offline Piper TTS program. Each call
// starts a fresh process with the text already attached to stdin.
type Piper struct {
	binary     string
	modelPath  string
	configPath string
	speaker    string
	sampleRate int
	timeout    time.Duration
}

// PiperConfig configures a Piper engine.
type PiperConfig struct {
	Binary     string // defaults to "piper"
	ModelPath  string // required .onnx voice
	ConfigPath string // defaults to the model path with .json (or .onnx.json)
	Speaker    string // speaker id for multi-speaker voices
	Timeout    time.Duration
}

// piperVoiceConfig is the part of a voice's JSON config we read.
type piperVoiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// NewPiper creates a Piper engine. The voice's sample rate is read from its
// JSON config when available and defaults to 22050 Hz.
func NewPiper(cfg PiperConfig) (*Piper, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = findVoiceConfig(cfg.ModelPath)
	}

	p := &Piper{
		binary:     cfg.Binary,
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		speaker:    cfg.Speaker,
		sampleRate: 22050,
		timeout:    cfg.Timeout,
	}

	if rate, err := readSampleRate(cfg.ConfigPath); err != nil {
		log.Warn("Could not read voice config, assuming 22050 Hz", "config", cfg.ConfigPath, "err", err)
	} else if rate > 0 {
		p.sampleRate = rate
	}
	return p, nil
}

func findVoiceConfig(model string) string {
	candidates := []string{
		model + ".json",
		strings.TrimSuffix(model, filepath.Ext(model)) + ".json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

func readSampleRate(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var vc piperVoiceConfig
	if err := json.Unmarshal(data, &vc); err != nil {
		return 0, err
	}
	return vc.Audio.SampleRate, nil
}

// Synthesize returns raw PCM for text. Speed 2.0 speaks twice as fast.
func (p *Piper) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.NewSynthesisError(speech.ErrorCodeInvalidInput, "text cannot be empty", speech.ErrEmptyText)
	}
	if len(text) > piperMaxText {
		return nil, speech.NewSynthesisError(speech.ErrorCodeTextTooLong,
			fmt.Sprintf("text too long: %d characters (max %d)", len(text), piperMaxText), nil)
	}
	if speed <= 0 {
		speed = 1.0
	}

	pcm, err := speech.RunCommand(ctx, p.timeout, text, p.binary, p.args(speed)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("piper produced no audio output")
	}
	if len(pcm) > piperMaxAudio {
		return nil, fmt.Errorf("piper output too large: %d bytes (max %d)", len(pcm), piperMaxAudio)
	}
	return pcm, nil
}

func (p *Piper) args(speed float64) []string {
	args := []string{
		"--model", p.modelPath,
		"--config", p.configPath,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1.0/speed),
	}
	if p.speaker != "" {
		args = append(args, "--speaker", p.speaker)
	}
	return args
}

// Info describes the audio Piper produces.
func (p *Piper) Info() speech.EngineInfo {
	voice := strings.TrimSuffix(filepath.Base(p.modelPath), filepath.Ext(p.modelPath))
	if p.speaker != "" {
		voice += "#" + p.speaker
	}
	return speech.EngineInfo{
		Name:        "piper",
		Voice:       voice,
		SampleRate:  p.sampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: piperMaxText,
		IsOnline:    false,
	}
}

// Validate checks the binary and model are usable.
func (p *Piper) Validate() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return speech.NewSynthesisError(speech.ErrorCodeEngineUnavailable, p.binary+" not found in PATH", err)
	}
	if _, err := os.Stat(p.modelPath); err != nil {
		return fmt.Errorf("model file not accessible: %w", err)
	}
	return nil
}

// Close is a no-op; every call uses its own process.
func (p *Piper) Close() error {
	return nil
}

var _ speech.Synthesizer = (*Piper)(nil)
