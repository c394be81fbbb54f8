package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/biglexj/prisma-vtuber/internal/speech"
)

const gttsMaxText = 5000

// GTTS synthesizes speech with Google Translate voices: gtts-cli produces
// MP3, which ffmpeg decodes to PCM. Requests are rate limited so Google
// does not block the stream mid-show.
type GTTS struct {
	gttsBinary   string
	ffmpegBinary string
	language     string
	slow         bool
	sampleRate   int
	tempDir      string
	timeout      time.Duration

	limiter *rate.Limiter
}

// GTTSConfig configures a GTTS engine.
type GTTSConfig struct {
	Language          string // defaults to "es"
	Slow              bool
	RequestsPerMinute int // defaults to 50
	SampleRate        int // defaults to 44100
	TempDir           string
	Timeout           time.Duration // per external program

	// Program names, mostly for tests.
	GTTSBinary   string
	FFmpegBinary string
}

// NewGTTS creates a GTTS engine.
func NewGTTS(cfg GTTSConfig) (*GTTS, error) {
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GTTSBinary == "" {
		cfg.GTTSBinary = "gtts-cli"
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &GTTS{
		gttsBinary:   cfg.GTTSBinary,
		ffmpegBinary: cfg.FFmpegBinary,
		language:     cfg.Language,
		slow:         cfg.Slow,
		sampleRate:   cfg.SampleRate,
		tempDir:      cfg.TempDir,
		timeout:      cfg.Timeout,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Synthesize fetches MP3 for text and decodes it to PCM.
func (g *GTTS) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, speech.NewSynthesisError(speech.ErrorCodeInvalidInput, "text cannot be empty", speech.ErrEmptyText)
	}
	if len(text) > gttsMaxText {
		return nil, speech.NewSynthesisError(speech.ErrorCodeTextTooLong,
			fmt.Sprintf("text too long: %d characters (max %d)", len(text), gttsMaxText), nil)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := g.fetchMP3(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}
	pcm, err := g.decode(ctx, mp3, speed)
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}
	return pcm, nil
}

func (g *GTTS) fetchMP3(ctx context.Context, text string) ([]byte, error) {
	args := []string{text, "-l", g.language}
	if g.slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")

	mp3, err := speech.RunCommand(ctx, g.timeout, "", g.gttsBinary, args...)
	if err != nil {
		return nil, err
	}
	if len(mp3) == 0 {
		return nil, errors.New("gtts-cli produced no MP3 output")
	}
	return mp3, nil
}

func (g *GTTS) decode(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	f, err := os.CreateTemp(g.tempDir, "prisma-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp MP3 file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(mp3); err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to write MP3 data: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	pcm, err := speech.RunCommand(ctx, g.timeout, "", g.ffmpegBinary, g.ffmpegArgs(f.Name(), speed)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("ffmpeg produced no PCM output")
	}
	return pcm, nil
}

func (g *GTTS) ffmpegArgs(input string, speed float64) []string {
	args := []string{
		"-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(g.sampleRate),
		"-ac", "1",
	}
	if speed > 0 && speed != 1.0 {
		// atempo accepts 0.5 to 2.0
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", min(max(speed, 0.5), 2.0)))
	}
	return append(args, "-")
}

// Info describes the audio GTTS produces.
func (g *GTTS) Info() speech.EngineInfo {
	voice := g.language
	if g.slow {
		voice += "-slow"
	}
	return speech.EngineInfo{
		Name:        "gtts",
		Voice:       voice,
		SampleRate:  g.sampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: gttsMaxText,
		IsOnline:    true,
	}
}

// Validate checks both programs are installed.
func (g *GTTS) Validate() error {
	for _, bin := range []string{g.gttsBinary, g.ffmpegBinary} {
		if _, err := exec.LookPath(bin); err != nil {
			return speech.NewSynthesisError(speech.ErrorCodeEngineUnavailable, bin+" not found in PATH", err)
		}
	}
	return nil
}

// Close is a no-op.
func (g *GTTS) Close() error {
	return nil
}

var _ speech.Synthesizer = (*GTTS)(nil)
