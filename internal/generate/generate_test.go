package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestCollect(t *testing.T) {
	ok := func(yield func(string, error) bool) {
		for _, s := range []string{"Hola, ", "¿cómo ", "estás?"} {
			if !yield(s, nil) {
				return
			}
		}
	}
	got, err := Collect(ok)
	require.NoError(t, err)
	assert.Equal(t, "Hola, ¿cómo estás?", got)

	boom := errors.New("boom")
	_, err = Collect(Fail(boom))
	assert.ErrorIs(t, err, boom)
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := &GenerationError{Backend: "gemini", Op: "stream reply", Err: cause}
	assert.Equal(t, "gemini: stream reply: quota exceeded", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "stream reply: no open session",
		(&GenerationError{Op: "stream reply", Err: ErrNoSession}).Error())
}

// fakeModels replays scripted responses and records what it was sent.
type fakeModels struct {
	replies [][]string
	failAt  int // fail after this many chunks of the current reply; -1 never
	calls   [][]*genai.Content
	config  *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContentStream(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.calls = append(f.calls, contents)
	f.config = cfg
	chunks := f.replies[len(f.calls)-1]
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for i, c := range chunks {
			if i == f.failAt {
				yield(nil, errors.New("stream broke"))
				return
			}
			resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: c}}},
			}}}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

func TestGeminiSession(t *testing.T) {
	fm := &fakeModels{replies: [][]string{{"Hola", " chat"}, {"Bien"}}, failAt: -1}
	g := &Gemini{models: fm, model: "test"}

	s, err := g.OpenSession(context.Background(), "Eres Ely.")
	require.NoError(t, err)

	got, err := Collect(s.StreamReply(context.Background(), "ana dice: hola"))
	require.NoError(t, err)
	assert.Equal(t, "Hola chat", got)
	assert.Equal(t, "Eres Ely.", fm.config.SystemInstruction.Parts[0].Text)

	_, err = Collect(s.StreamReply(context.Background(), "ana dice: como estas"))
	require.NoError(t, err)

	// Second call carries the first exchange
	second := fm.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, "user", second[0].Role)
	assert.Equal(t, "model", second[1].Role)
	assert.Equal(t, "Hola chat", second[1].Parts[0].Text)
	assert.Equal(t, "ana dice: como estas", second[2].Parts[0].Text)
}

func TestGeminiSessionErrorKeepsHistoryClean(t *testing.T) {
	fm := &fakeModels{replies: [][]string{{"a", "b"}, {"ok"}}, failAt: 1}
	g := &Gemini{models: fm, model: "test"}
	s, _ := g.OpenSession(context.Background(), "")

	var fragments []string
	var gotErr error
	for text, err := range s.StreamReply(context.Background(), "uno") {
		if err != nil {
			gotErr = err
			break
		}
		fragments = append(fragments, text)
	}
	assert.Equal(t, []string{"a"}, fragments)

	var ge *GenerationError
	require.ErrorAs(t, gotErr, &ge)
	assert.Equal(t, "gemini", ge.Backend)

	fm.failAt = -1
	_, err := Collect(s.StreamReply(context.Background(), "dos"))
	require.NoError(t, err)
	assert.Len(t, fm.calls[1], 1, "failed exchange must not enter the history")
	assert.Nil(t, fm.config.SystemInstruction)
}

func TestGeminiText(t *testing.T) {
	text, err := geminiText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "pienso", Thought: true}, {Text: "digo"}}},
	}}})
	require.NoError(t, err)
	assert.Equal(t, "digo", text)

	_, err = geminiText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}})
	assert.Error(t, err)

	text, err = geminiText(&genai.GenerateContentResponse{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNewBackendsRequireKeys(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "m")
	var ge *GenerationError
	assert.ErrorAs(t, err, &ge)

	_, err = NewOpenAI("", "", "m")
	assert.ErrorAs(t, err, &ge)
}

// sseServer answers every chat completion with the next scripted reply.
func sseServer(t *testing.T, replies [][]string, bodies *[]map[string]any) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)
		*bodies = append(*bodies, body)

		if call >= len(replies) {
			http.Error(w, `{"error":{"message":"no more replies"}}`, http.StatusInternalServerError)
			return
		}
		chunks := replies[call]
		call++

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "test",
				"choices": []any{map[string]any{
					"index":         0,
					"delta":         map[string]any{"content": c},
					"finish_reason": nil,
				}},
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAISession(t *testing.T) {
	var bodies []map[string]any
	srv := sseServer(t, [][]string{{"Hola, ", "¿cómo ", "estás?"}, {"Bien"}}, &bodies)
	defer srv.Close()

	o, err := NewOpenAI("test-key", srv.URL, "gpt-test")
	require.NoError(t, err)

	s, err := o.OpenSession(context.Background(), "Eres Ely.")
	require.NoError(t, err)

	var fragments []string
	for text, err := range s.StreamReply(context.Background(), "ana dice: hola") {
		require.NoError(t, err)
		fragments = append(fragments, text)
	}
	assert.Equal(t, []string{"Hola, ", "¿cómo ", "estás?"}, fragments)

	_, err = Collect(s.StreamReply(context.Background(), "ana dice: y tu"))
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, "gpt-test", bodies[0]["model"])
	assert.Equal(t, true, bodies[0]["stream"])

	msgs := bodies[1]["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.True(t, strings.Contains(fmt.Sprint(msgs[2]), "Hola, ¿cómo estás?"))
}

func TestOpenAISessionServerError(t *testing.T) {
	var bodies []map[string]any
	srv := sseServer(t, nil, &bodies)
	defer srv.Close()

	o, err := NewOpenAI("test-key", srv.URL, "gpt-test")
	require.NoError(t, err)
	s, _ := o.OpenSession(context.Background(), "")

	_, err = Collect(s.StreamReply(context.Background(), "hola"))
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "openai", ge.Backend)
}
