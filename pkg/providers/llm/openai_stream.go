// Package llm adapts third-party chat-completion SDKs to dialogue's
// streaming LLMProvider/LLMStream contract.
package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// OpenAIStream wraps sashabaranov/go-openai's streaming chat completions. A
// non-empty BaseURL repoints the same client at an OpenAI-compatible
// endpoint (e.g. Groq's), so one binding covers both teacher LLM vendors.
type OpenAIStream struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAIStream builds a provider for OpenAI (baseURL="") or any
// OpenAI-compatible chat completions endpoint.
func NewOpenAIStream(apiKey, model, baseURL string, temperature float64) *OpenAIStream {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIStream{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

// NewGroqStream builds a provider against Groq's OpenAI-compatible chat
// completions endpoint, matching the teacher's GroqLLM base URL.
func NewGroqStream(apiKey, model string, temperature float64) *OpenAIStream {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return NewOpenAIStream(apiKey, model, "https://api.groq.com/openai/v1", temperature)
}

func toOpenAIMessages(systemPrompt string, history []dialogue.Message, userMessage string) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	if userMessage != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})
	}
	return msgs
}

// Stream implements dialogue.LLMProvider.
func (p *OpenAIStream) Stream(ctx context.Context, systemPrompt string, history []dialogue.Message, userMessage string) (dialogue.LLMStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(systemPrompt, history, userMessage),
		Temperature: float32(p.temperature),
		Stream:      true,
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &openAIChatStream{stream: stream}, nil
}

type openAIChatStream struct {
	stream *openai.ChatCompletionStream
	full   string
}

func (s *openAIChatStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	delta := resp.Choices[0].Delta.Content
	s.full += delta
	return delta, nil
}

func (s *openAIChatStream) Text() string { return s.full }
func (s *openAIChatStream) Close() error { return s.stream.Close() }
