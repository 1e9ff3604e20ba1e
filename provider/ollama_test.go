package provider

import (
	"testing"

	"datachat/ollama"
)

func TestNewOllamaProviderDefaults(t *testing.T) {
	p, err := NewOllamaProvider("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := p.GetModel(); got != ollama.DefaultModel {
		t.Errorf("GetModel() = %q, want %q", got, ollama.DefaultModel)
	}
	if got := p.GetDisplayName(); got != ollama.DefaultModel {
		t.Errorf("GetDisplayName() = %q, want %q", got, ollama.DefaultModel)
	}

	p.SetModel("qwen2.5-coder:7b")
	if got := p.GetModel(); got != "qwen2.5-coder:7b" {
		t.Errorf("after SetModel, GetModel() = %q", got)
	}
}

func TestNewOllamaProviderInvalidURL(t *testing.T) {
	if _, err := NewOllamaProvider("http://[::1", "llama3.1"); err == nil {
		t.Error("expected error for malformed URL")
	}
}
