package stt

import "testing"

func TestNewDeepgramProviderDefaults(t *testing.T) {
	p := NewDeepgramProvider("key", "", "")
	if p.model != "nova-2-phonecall" {
		t.Errorf("expected default model, got %q", p.model)
	}
	if p.language != "en-US" {
		t.Errorf("expected default language, got %q", p.language)
	}
	if p.Name() != "deepgram-stt" {
		t.Errorf("expected deepgram-stt, got %q", p.Name())
	}
}

func TestNewDeepgramProviderExplicit(t *testing.T) {
	p := NewDeepgramProvider("key", "nova-3", "es")
	if p.model != "nova-3" || p.language != "es" {
		t.Errorf("expected explicit overrides to stick, got model=%q language=%q", p.model, p.language)
	}
}
