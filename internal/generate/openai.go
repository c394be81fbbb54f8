package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is a Backend for the OpenAI chat completions API or any server
// that speaks it.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend. baseURL may be empty.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &GenerationError{Backend: "openai", Op: "connect", Err: errors.New("OPENAI_API_KEY is not set")}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// OpenSession starts a conversation with systemPrompt as the system message.
func (o *OpenAI) OpenSession(_ context.Context, systemPrompt string) (Session, error) {
	s := &openAISession{client: &o.client, model: o.model}
	if systemPrompt != "" {
		s.history = append(s.history, openai.SystemMessage(systemPrompt))
	}
	log.Debug("Opened openai session", "model", o.model)
	return s, nil
}

type openAISession struct {
	client  *openai.Client
	model   string
	history []openai.ChatCompletionMessageParamUnion
}

// StreamReply streams the assistant's answer to prompt. The exchange is
// added to the history only when the stream is read to a clean end.
func (s *openAISession) StreamReply(ctx context.Context, prompt string) Fragments {
	return func(yield func(string, error) bool) {
		messages := append(s.history[:len(s.history):len(s.history)], openai.UserMessage(prompt))

		stream := s.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    s.model,
			Messages: messages,
		})
		defer stream.Close() //nolint:errcheck

		var reply strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Refusal != "" {
				yield("", &GenerationError{Backend: "openai", Op: "stream reply", Err: errors.New("refused: " + delta.Refusal)})
				return
			}
			if delta.Content == "" {
				continue
			}
			reply.WriteString(delta.Content)
			if !yield(delta.Content, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", &GenerationError{Backend: "openai", Op: "stream reply", Err: err})
			return
		}

		s.history = append(messages, openai.AssistantMessage(reply.String()))
	}
}

var _ Backend = (*OpenAI)(nil)
