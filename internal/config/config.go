// Package config loads the process environment into the dialogue core's
// tunables and resolves which STT/LLM/TTS vendor each provider slot binds
// to, the way the teacher's cmd/agent/main.go reads GROQ_API_KEY et al. and
// switches on *_PROVIDER env vars — generalized here into a loader
// cmd/server calls once at boot instead of inlining in main.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// Config is the fully resolved process configuration: the dialogue core's
// tunables (embedded Dialogue) plus the vendor selection and credentials
// needed to construct the STT/LLM/TTS providers cmd/server wires up.
type Config struct {
	BindAddr string

	Dialogue dialogue.Config

	STTVendor       string
	STTClientID     string
	STTClientSecret string
	STTAuthURL      string
	STTStreamURL    string
	DeepgramAPIKey  string

	LLMVendor      string
	LLMAPIKey      string
	GroqAPIKey     string

	TTSVendor      string
	LokutorAPIKey  string
}

// Load reads the process environment (after loading a .env file if present,
// matching the teacher's godotenv.Load() in cmd/agent/main.go) and applies
// the documented defaults for every tunable spec §6 names.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is the common case in a deployed container; the
		// teacher logs this at Println, not Fatal. Here the error is
		// neither fatal nor logged.
		_ = err
	}

	d := dialogue.DefaultConfig()
	d.SystemPrompt = os.Getenv("SYSTEM_PROMPT")
	d.Voice = dialogue.Voice(os.Getenv("TTS_VOICE"))
	d.Language = dialogue.Language(envOrDefault("AGENT_LANGUAGE", "en"))

	var err error
	if d.VADSilenceMs, err = intFromEnv("VAD_SILENCE_MS", d.VADSilenceMs); err != nil {
		return Config{}, err
	}
	if d.InterruptFastMs, err = intFromEnv("INTERRUPT_FAST_MS", d.InterruptFastMs); err != nil {
		return Config{}, err
	}
	if d.InterruptSafetyMs, err = intFromEnv("INTERRUPT_SAFETY_MS", d.InterruptSafetyMs); err != nil {
		return Config{}, err
	}
	if d.InterruptTTSRecentMs, err = intFromEnv("INTERRUPT_TTS_RECENT_MS", d.InterruptTTSRecentMs); err != nil {
		return Config{}, err
	}
	if d.TTSFlushQuietMs, err = intFromEnv("TTS_FLUSH_QUIET_MS", d.TTSFlushQuietMs); err != nil {
		return Config{}, err
	}
	if d.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", d.LLMTemperature); err != nil {
		return Config{}, err
	}
	d.LLMModel = os.Getenv("LLM_MODEL")

	cfg := Config{
		BindAddr: envOrDefault("BIND_ADDR", ":8080"),
		Dialogue: d,

		STTVendor:       envOrDefault("STT_PROVIDER", "deepgram"),
		STTClientID:     os.Getenv("STT_CLIENT_ID"),
		STTClientSecret: os.Getenv("STT_CLIENT_SECRET"),
		STTAuthURL:      os.Getenv("STT_AUTH_URL"),
		STTStreamURL:    os.Getenv("STT_STREAM_URL"),
		DeepgramAPIKey:  os.Getenv("DEEPGRAM_API_KEY"),

		LLMVendor:  envOrDefault("LLM_PROVIDER", "openai"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		GroqAPIKey: os.Getenv("GROQ_API_KEY"),

		TTSVendor:     envOrDefault("TTS_VENDOR", "streaming"),
		LokutorAPIKey: os.Getenv("LOKUTOR_API_KEY"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate enforces spec §6's "required" markers: STT client credentials
// and an LLM API key must be present for whichever vendor was selected.
func (c Config) validate() error {
	switch c.STTVendor {
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("config: DEEPGRAM_API_KEY is required for STT_PROVIDER=deepgram")
		}
	case "generic":
		if c.STTClientID == "" || c.STTClientSecret == "" {
			return fmt.Errorf("config: STT_CLIENT_ID and STT_CLIENT_SECRET are required for STT_PROVIDER=generic")
		}
	default:
		return fmt.Errorf("config: unknown STT_PROVIDER %q (expected deepgram|generic)", c.STTVendor)
	}

	switch c.LLMVendor {
	case "openai", "anthropic":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("config: LLM_API_KEY is required for LLM_PROVIDER=%s", c.LLMVendor)
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("config: GROQ_API_KEY is required for LLM_PROVIDER=groq")
		}
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q (expected openai|anthropic|groq)", c.LLMVendor)
	}

	if c.TTSVendor == "streaming" && c.LokutorAPIKey == "" {
		return fmt.Errorf("config: LOKUTOR_API_KEY is required for TTS_VENDOR=streaming")
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s parse error: %w", key, err)
	}
	return f, nil
}
