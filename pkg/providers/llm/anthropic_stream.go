package llm

import (
	"context"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// AnthropicStream wraps anthropic-sdk-go's message-stream iterator, replacing
// the teacher's hand-rolled net/http+encoding/json Anthropic client with the
// vendor SDK's real streaming surface.
type AnthropicStream struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicStream builds a provider against the Anthropic Messages API.
func NewAnthropicStream(apiKey, model string) *AnthropicStream {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5SonnetLatest
	}
	return &AnthropicStream{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     m,
		maxTokens: 1024,
	}
}

func toAnthropicMessages(history []dialogue.Message, userMessage string) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	for _, m := range history {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == dialogue.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	if userMessage != "" {
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))
	}
	return msgs
}

// Stream implements dialogue.LLMProvider.
func (p *AnthropicStream) Stream(ctx context.Context, systemPrompt string, history []dialogue.Message, userMessage string) (dialogue.LLMStream, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  toAnthropicMessages(history, userMessage),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	stream := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicMessageStream{stream: stream}, nil
}

type anthropicMessageStream struct {
	stream  *anthropic.Stream[anthropic.MessageStreamEventUnion]
	message anthropic.Message
	full    string
}

// Recv surfaces one text delta per call, matching the Recv/io.EOF contract
// every dialogue.LLMStream implements; non-text-delta events are consumed
// and skipped without surfacing a token.
func (s *anthropicMessageStream) Recv() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		s.message.Accumulate(event)

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
				s.full += textDelta.Text
				return textDelta.Text, nil
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *anthropicMessageStream) Text() string { return s.full }
func (s *anthropicMessageStream) Close() error { return s.stream.Close() }
