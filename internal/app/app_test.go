package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biglexj/prisma-vtuber/internal/chat"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/events"
	"github.com/biglexj/prisma-vtuber/internal/persona"
	"github.com/biglexj/prisma-vtuber/internal/speech"
)

// syncBuffer is a bytes.Buffer safe for the speech worker and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

// chatServer streams "Hola, ¿cómo estás?" for every request and records the
// system prompt it was given.
func chatServer(t *testing.T, system *string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		if len(body.Messages) > 0 && body.Messages[0].Role == "system" {
			*system = body.Messages[0].Content
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"Hola, ", "¿cómo ", "estás?"} {
			chunk, _ := json.Marshal(map[string]any{
				"id": "c", "object": "chat.completion.chunk", "created": 1, "model": "m",
				"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": c}, "finish_reason": nil}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	personality := filepath.Join(dir, "personality.yml")
	rulesPath := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(personality, []byte("nombre: Ely\nmision: animar el chat\n"), 0o644))
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
nombre:
  pregunta: ["cual es tu nombre", "como te llamas"]
  respuesta: "Me llamo Ely"
`), 0o644))

	cfg := config.Default()
	cfg.Chat.Source = "console"
	cfg.Chat.PollInterval = 10 * time.Millisecond
	cfg.Generation.Backend = "openai"
	cfg.Persona.Personality = personality
	cfg.Persona.Rules = rulesPath
	cfg.Speech.Engine = "print"
	cfg.Secrets.OpenAIAPIKey = "test-key"
	cfg.Secrets.OpenAIBaseURL = baseURL
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestAppEndToEnd(t *testing.T) {
	var system string
	srv := chatServer(t, &system)
	defer srv.Close()

	out := &syncBuffer{}
	rec := &events.Recorder{}
	input := strings.NewReader("ana: ¿Cómo te llamas?\nluis: saluda\n")

	a, err := New(context.Background(), testConfig(t, srv.URL), Options{Events: rec, Input: input, Output: out})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Matcher.Len())
	assert.Equal(t, "Ely", a.Persona.Name())

	require.NoError(t, a.Start(context.Background(), "ensayo"))
	select {
	case <-a.Pipeline.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("console run did not end at EOF")
	}
	assert.False(t, a.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	assert.Equal(t, []string{"Me llamo Ely", "Hola cómo estás"}, out.Lines())
	assert.Contains(t, system, "- Nombre: Ely")
	assert.Contains(t, rec.Texts(events.KindSpeech), "Hola cómo estás")
	assert.Contains(t, rec.Texts(events.KindState), "chat processing finished")
	assert.Zero(t, a.Pending())
}

func TestAppDegradesWithoutPersonaFiles(t *testing.T) {
	var system string
	srv := chatServer(t, &system)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Persona.Personality = filepath.Join(t.TempDir(), "missing.yml")
	cfg.Persona.Rules = filepath.Join(t.TempDir(), "missing.yml")

	a, err := New(context.Background(), cfg, Options{Input: strings.NewReader("")})
	require.NoError(t, err)
	assert.Zero(t, a.Matcher.Len())
	assert.Equal(t, persona.GenericPrompt, a.Persona.SystemPrompt())
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestAppStartConnectionError(t *testing.T) {
	srv := chatServer(t, new(string))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Chat.Source = "websocket"
	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer a.Shutdown(context.Background())

	var cerr *chat.ConnectionError
	assert.ErrorAs(t, a.Start(context.Background(), "not a url"), &cerr)
	assert.False(t, a.IsRunning())
}

func TestAppRequiresModelKey(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Generation.Backend = "gemini"
	cfg.Secrets.GoogleAPIKey = ""

	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestAppIgnoresUnreachableRedis(t *testing.T) {
	srv := chatServer(t, new(string))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Events.RedisURL = "redis://127.0.0.1:1/0"
	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestNewSpeaker(t *testing.T) {
	s, err := NewSpeaker(config.SpeechConfig{Engine: "print"}, nil)
	require.NoError(t, err)
	assert.IsType(t, speech.PrintSpeaker{}, s)

	s, err = NewSpeaker(config.SpeechConfig{Engine: "command", Command: config.CommandConfig{Program: "espeak-ng"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &speech.CommandSpeaker{}, s)

	_, err = NewSpeaker(config.SpeechConfig{Engine: "piper", Piper: config.PiperConfig{Model: filepath.Join(t.TempDir(), "none.onnx")}}, nil)
	assert.Error(t, err)

	_, err = NewSpeaker(config.SpeechConfig{Engine: "tape"}, nil)
	assert.Error(t, err)
}

func TestOpenCache(t *testing.T) {
	c, err := OpenCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)

	dir := t.TempDir()
	c, err = OpenCache(config.CacheConfig{Enabled: true, Dir: dir, MemoryMB: 1, DiskMB: 1, CompressionLevel: 3})
	require.NoError(t, err)
	require.NoError(t, c.Put("k", []byte("pcm")))
	require.NoError(t, c.Close())
	assert.FileExists(t, filepath.Join(dir, "clips.index"))
}
