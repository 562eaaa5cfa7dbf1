package config

import "testing"

func setCoreEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"BIND_ADDR", "SYSTEM_PROMPT", "TTS_VOICE", "AGENT_LANGUAGE",
		"VAD_SILENCE_MS", "INTERRUPT_FAST_MS", "INTERRUPT_SAFETY_MS",
		"INTERRUPT_TTS_RECENT_MS", "TTS_FLUSH_QUIET_MS", "LLM_TEMPERATURE",
		"LLM_MODEL", "STT_PROVIDER", "STT_CLIENT_ID", "STT_CLIENT_SECRET",
		"STT_AUTH_URL", "STT_STREAM_URL", "DEEPGRAM_API_KEY", "LLM_PROVIDER",
		"LLM_API_KEY", "GROQ_API_KEY", "TTS_VENDOR", "LOKUTOR_API_KEY",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDocumentedDefaults(t *testing.T) {
	setCoreEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LOKUTOR_API_KEY", "lok-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dialogue.VADSilenceMs != 800 {
		t.Errorf("VADSilenceMs = %d, want 800", cfg.Dialogue.VADSilenceMs)
	}
	if cfg.Dialogue.InterruptFastMs != 500 {
		t.Errorf("InterruptFastMs = %d, want 500", cfg.Dialogue.InterruptFastMs)
	}
	if cfg.Dialogue.InterruptSafetyMs != 1500 {
		t.Errorf("InterruptSafetyMs = %d, want 1500", cfg.Dialogue.InterruptSafetyMs)
	}
	if cfg.Dialogue.InterruptTTSRecentMs != 2000 {
		t.Errorf("InterruptTTSRecentMs = %d, want 2000", cfg.Dialogue.InterruptTTSRecentMs)
	}
	if cfg.Dialogue.TTSFlushQuietMs != 500 {
		t.Errorf("TTSFlushQuietMs = %d, want 500", cfg.Dialogue.TTSFlushQuietMs)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.STTVendor != "deepgram" || cfg.LLMVendor != "openai" || cfg.TTSVendor != "streaming" {
		t.Errorf("unexpected default vendor selection: %+v", cfg)
	}
}

func TestLoadOverridesTunablesFromEnv(t *testing.T) {
	setCoreEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LOKUTOR_API_KEY", "lok-key")
	t.Setenv("VAD_SILENCE_MS", "600")
	t.Setenv("INTERRUPT_FAST_MS", "400")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dialogue.VADSilenceMs != 600 {
		t.Errorf("VADSilenceMs = %d, want 600", cfg.Dialogue.VADSilenceMs)
	}
	if cfg.Dialogue.InterruptFastMs != 400 {
		t.Errorf("InterruptFastMs = %d, want 400", cfg.Dialogue.InterruptFastMs)
	}
}

func TestLoadRejectsMissingRequiredCredentials(t *testing.T) {
	setCoreEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail without any credentials set")
	}
}

func TestLoadRejectsUnknownVendor(t *testing.T) {
	setCoreEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LOKUTOR_API_KEY", "lok-key")
	t.Setenv("LLM_PROVIDER", "not-a-real-vendor")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to reject an unknown LLM_PROVIDER")
	}
}

func TestBuildProvidersResolveForDefaultVendors(t *testing.T) {
	setCoreEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LOKUTOR_API_KEY", "lok-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := cfg.BuildSTTProvider(); err != nil {
		t.Errorf("BuildSTTProvider: %v", err)
	}
	if _, err := cfg.BuildLLMProvider(); err != nil {
		t.Errorf("BuildLLMProvider: %v", err)
	}
	if _, err := cfg.BuildTTSProvider(); err != nil {
		t.Errorf("BuildTTSProvider: %v", err)
	}
}
