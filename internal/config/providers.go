package config

import (
	"fmt"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
	llmProvider "github.com/lokutor-ai/dialogue-orchestrator/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/dialogue-orchestrator/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/dialogue-orchestrator/pkg/providers/tts"
)

// BuildSTTProvider resolves the configured STT vendor, mirroring the
// teacher's cmd/agent/main.go provider-selection switch but returning the
// streaming dialogue.STTProvider contract instead of a batch Transcribe
// call.
func (c Config) BuildSTTProvider() (dialogue.STTProvider, error) {
	switch c.STTVendor {
	case "deepgram":
		return sttProvider.NewDeepgramProvider(c.DeepgramAPIKey, "", ""), nil
	case "generic":
		return sttProvider.NewGenericStreamProvider(c.STTAuthURL, c.STTStreamURL, c.STTClientID, c.STTClientSecret), nil
	default:
		return nil, fmt.Errorf("config: unknown STT_PROVIDER %q", c.STTVendor)
	}
}

// BuildLLMProvider resolves the configured LLM vendor. "openai" and "groq"
// both bind the same OpenAIStream client, pointed at Groq's OpenAI-compatible
// endpoint for the latter, matching the teacher's shared HTTP client for
// both vendors.
func (c Config) BuildLLMProvider() (dialogue.LLMProvider, error) {
	switch c.LLMVendor {
	case "openai":
		return llmProvider.NewOpenAIStream(c.LLMAPIKey, c.Dialogue.LLMModel, "", c.Dialogue.LLMTemperature), nil
	case "groq":
		return llmProvider.NewGroqStream(c.GroqAPIKey, c.Dialogue.LLMModel, c.Dialogue.LLMTemperature), nil
	case "anthropic":
		return llmProvider.NewAnthropicStream(c.LLMAPIKey, c.Dialogue.LLMModel), nil
	default:
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMVendor)
	}
}

// BuildTTSProvider resolves the configured TTS vendor. SPEC_FULL.md's
// TTS_VENDOR=streaming path is Lokutor's streaming token-push websocket;
// TTS_VENDOR=openai-blocking is an Open Question spec §9 explicitly leaves
// unresolved rather than silently picking one — BuildTTSProvider rejects it
// until a blocking-synthesize vendor is wired, rather than guessing at a
// binding the spec deliberately left open.
func (c Config) BuildTTSProvider() (dialogue.TTSProvider, error) {
	switch c.TTSVendor {
	case "streaming":
		return ttsProvider.NewLokutorProvider(c.LokutorAPIKey), nil
	case "openai-blocking":
		return nil, fmt.Errorf("config: TTS_VENDOR=openai-blocking is an open question (spec §9); no blocking-synthesize vendor is wired")
	default:
		return nil, fmt.Errorf("config: unknown TTS_VENDOR %q", c.TTSVendor)
	}
}
