package generate

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"
)

// geminiModels is the part of *genai.Models a session uses.
type geminiModels interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Gemini is a Backend for Google's Gemini API.
type Gemini struct {
	models geminiModels
	model  string
}

// NewGemini creates a Gemini backend using apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &GenerationError{Backend: "gemini", Op: "connect", Err: errors.New("GOOGLE_API_KEY is not set")}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &GenerationError{Backend: "gemini", Op: "connect", Err: err}
	}
	return &Gemini{models: client.Models, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// OpenSession starts a conversation with systemPrompt as the instruction.
func (g *Gemini) OpenSession(_ context.Context, systemPrompt string) (Session, error) {
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		}
	}
	log.Debug("Opened gemini session", "model", g.model)
	return &geminiSession{models: g.models, model: g.model, config: cfg}, nil
}

type geminiSession struct {
	models  geminiModels
	model   string
	config  *genai.GenerateContentConfig
	history []*genai.Content
}

// StreamReply sends prompt with the conversation so far. The exchange is
// added to the history only when the stream is read to a clean end.
func (s *geminiSession) StreamReply(ctx context.Context, prompt string) Fragments {
	return func(yield func(string, error) bool) {
		user := &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}}
		contents := append(slices.Clone(s.history), user)

		var reply strings.Builder
		for resp, err := range s.models.GenerateContentStream(ctx, s.model, contents, s.config) {
			if err != nil {
				yield("", &GenerationError{Backend: "gemini", Op: "stream reply", Err: err})
				return
			}
			text, err := geminiText(resp)
			if err != nil {
				yield("", &GenerationError{Backend: "gemini", Op: "stream reply", Err: err})
				return
			}
			if text == "" {
				continue
			}
			reply.WriteString(text)
			if !yield(text, nil) {
				return
			}
		}

		s.history = append(s.history, user, &genai.Content{
			Role:  "model",
			Parts: []*genai.Part{genai.NewPartFromText(reply.String())},
		})
	}
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", nil
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", errors.New("prompt blocked: " + string(fb.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	c := resp.Candidates[0]
	if c.FinishReason == genai.FinishReasonSafety {
		return "", errors.New("reply blocked by safety filters")
	}
	if c.Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

var _ Backend = (*Gemini)(nil)
