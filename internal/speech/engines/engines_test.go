package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/biglexj/prisma-vtuber/internal/speech"
)

// fakeProgram writes an executable shell script named name into dir.
func fakeProgram(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeModel(t *testing.T, dir string, config string) string {
	t.Helper()
	model := filepath.Join(dir, "es_MX-ald-medium.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(model+".json", []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model
}

func TestNewPiper(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewPiper(PiperConfig{}); err == nil {
		t.Error("missing model path should fail")
	}
	if _, err := NewPiper(PiperConfig{ModelPath: filepath.Join(dir, "nope.onnx")}); err == nil {
		t.Error("missing model file should fail")
	}

	model := fakeModel(t, dir, `{"audio": {"sample_rate": 16000}}`)
	p, err := NewPiper(PiperConfig{ModelPath: model, Speaker: "3"})
	if err != nil {
		t.Fatalf("NewPiper failed: %v", err)
	}

	info := p.Info()
	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000 from voice config", info.SampleRate)
	}
	if info.Voice != "es_MX-ald-medium#3" {
		t.Errorf("Voice = %q", info.Voice)
	}
	if info.IsOnline {
		t.Error("piper is offline")
	}
	if p.configPath != model+".json" {
		t.Errorf("configPath = %q", p.configPath)
	}
}

func TestNewPiper_DefaultSampleRate(t *testing.T) {
	model := fakeModel(t, t.TempDir(), "")
	p, err := NewPiper(PiperConfig{ModelPath: model})
	if err != nil {
		t.Fatal(err)
	}
	if p.Info().SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", p.Info().SampleRate)
	}
}

func TestPiper_Synthesize(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := fakeProgram(t, dir, "piper", `echo "$@" > `+argsFile+`; cat`)

	p, err := NewPiper(PiperConfig{Binary: bin, ModelPath: fakeModel(t, dir, "{}"), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	pcm, err := p.Synthesize(context.Background(), "hola chat", 2.0)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(pcm) != "hola chat" {
		t.Errorf("pcm = %q, want the text echoed back", pcm)
	}

	args, _ := os.ReadFile(argsFile)
	for _, want := range []string{"--output-raw", "--length-scale 0.50", "--model "} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if strings.Contains(string(args), "--speaker") {
		t.Error("--speaker should only be passed when configured")
	}
}

func TestPiper_SynthesizeErrors(t *testing.T) {
	dir := t.TempDir()
	model := fakeModel(t, dir, "{}")

	tests := []struct {
		name string
		body string
		text string
		code speech.ErrorCode
	}{
		{"empty text", "cat", "  ", speech.ErrorCodeInvalidInput},
		{"too long", "cat", strings.Repeat("a", piperMaxText+1), speech.ErrorCodeTextTooLong},
		{"timeout", "sleep 10", "hola", speech.ErrorCodeEngineTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := fakeProgram(t, t.TempDir(), "piper", tt.body)
			p, err := NewPiper(PiperConfig{Binary: bin, ModelPath: model, Timeout: 50 * time.Millisecond})
			if err != nil {
				t.Fatal(err)
			}

			_, err = p.Synthesize(context.Background(), tt.text, 1.0)
			var se *speech.SynthesisError
			if !errors.As(err, &se) || se.Code != tt.code {
				t.Errorf("Synthesize = %v, want %s", err, tt.code)
			}
		})
	}

	bin := fakeProgram(t, t.TempDir(), "piper", "cat > /dev/null")
	p, _ := NewPiper(PiperConfig{Binary: bin, ModelPath: model})
	if _, err := p.Synthesize(context.Background(), "hola", 1.0); err == nil {
		t.Error("empty output should be an error")
	}
}

func TestPiper_Validate(t *testing.T) {
	dir := t.TempDir()
	model := fakeModel(t, dir, "{}")

	p, _ := NewPiper(PiperConfig{Binary: "prisma-no-such-piper", ModelPath: model})
	var se *speech.SynthesisError
	if err := p.Validate(); !errors.As(err, &se) || !se.IsFatal() {
		t.Errorf("Validate = %v, want fatal unavailable error", err)
	}

	p, _ = NewPiper(PiperConfig{Binary: fakeProgram(t, dir, "piper", "cat"), ModelPath: model})
	if err := p.Validate(); err != nil {
		t.Errorf("Validate = %v", err)
	}
}

func newFakeGTTS(t *testing.T, ffmpegBody string) (*GTTS, string) {
	t.Helper()
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "ffmpeg-args")
	gtts := fakeProgram(t, dir, "gtts-cli", `printf 'MP3:%s' "$1"`)
	if ffmpegBody == "" {
		ffmpegBody = `echo "$@" > ` + argsFile + `
while [ "$1" != "-i" ]; do shift; done
printf 'PCM:'; cat "$2"`
	}
	ffmpeg := fakeProgram(t, dir, "ffmpeg", ffmpegBody)

	g, err := NewGTTS(GTTSConfig{
		GTTSBinary:        gtts,
		FFmpegBinary:      ffmpeg,
		TempDir:           filepath.Join(dir, "tmp"),
		RequestsPerMinute: 6000,
		Timeout:           5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g, argsFile
}

func TestGTTS_Synthesize(t *testing.T) {
	g, argsFile := newFakeGTTS(t, "")

	pcm, err := g.Synthesize(context.Background(), "hola", 1.5)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(pcm) != "PCM:MP3:hola" {
		t.Errorf("pcm = %q", pcm)
	}

	args, _ := os.ReadFile(argsFile)
	for _, want := range []string{"-f s16le", "-ar 44100", "-ac 1", "atempo=1.50"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("ffmpeg args %q missing %q", args, want)
		}
	}

	// Temp MP3 is removed afterwards
	entries, _ := os.ReadDir(g.tempDir)
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %v", entries)
	}
}

func TestGTTS_AtempoClamped(t *testing.T) {
	g, _ := newFakeGTTS(t, "")

	if args := strings.Join(g.ffmpegArgs("in.mp3", 4.0), " "); !strings.Contains(args, "atempo=2.00") {
		t.Errorf("speed 4 should clamp to 2.0: %s", args)
	}
	if args := strings.Join(g.ffmpegArgs("in.mp3", 1.0), " "); strings.Contains(args, "atempo") {
		t.Errorf("speed 1 should not add a filter: %s", args)
	}
}

func TestGTTS_Errors(t *testing.T) {
	g, _ := newFakeGTTS(t, "echo 'bad mp3' >&2; exit 1")

	_, err := g.Synthesize(context.Background(), "hola", 1.0)
	if err == nil || !strings.Contains(err.Error(), "bad mp3") {
		t.Errorf("Synthesize = %v, want ffmpeg stderr in error", err)
	}

	if _, err := g.Synthesize(context.Background(), "", 1.0); err == nil {
		t.Error("empty text should fail")
	}
}

func TestGTTS_RateLimitRespectsContext(t *testing.T) {
	g, _ := newFakeGTTS(t, "")
	g.limiter.SetLimit(0.001) // one token every ~17 minutes

	if _, err := g.Synthesize(context.Background(), "uno", 1.0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Synthesize(ctx, "dos", 1.0); err == nil {
		t.Error("second request should be refused by the rate limiter")
	}
}

func TestGTTS_Info(t *testing.T) {
	g, err := NewGTTS(GTTSConfig{Slow: true, TempDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	info := g.Info()
	if info.Name != "gtts" || info.Voice != "es-slow" || !info.IsOnline || info.SampleRate != 44100 {
		t.Errorf("Info = %+v", info)
	}
}
