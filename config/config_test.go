package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "MAX_UPLOAD_MB", "WHOIS_ENABLED", "SOURCE_TIMEOUT", "LLM_PROVIDER",
		"GEMINI_API_KEY", "OPENROUTER_API_KEY", "MISTRAL_API_KEY", "S3_ENDPOINT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes(), 10<<20)
	}
	if !cfg.WhoisEnabled {
		t.Error("WhoisEnabled = false, want true")
	}
	if cfg.SourceTimeout != 5*time.Second {
		t.Errorf("SourceTimeout = %v, want 5s", cfg.SourceTimeout)
	}
	if cfg.LLMProvider != "" {
		t.Errorf("LLMProvider = %q, want empty", cfg.LLMProvider)
	}
	if cfg.ArchiveEnabled() {
		t.Error("ArchiveEnabled = true, want false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("WHOIS_ENABLED", "false")
	t.Setenv("SOURCE_TIMEOUT", "7")
	t.Setenv("AI_TIMEOUT", "1500ms")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("MAX_UPLOAD_MB", "-1")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.WhoisEnabled {
		t.Error("WhoisEnabled = true, want false")
	}
	if cfg.SourceTimeout != 7*time.Second {
		t.Errorf("SourceTimeout = %v, want 7s", cfg.SourceTimeout)
	}
	if cfg.AITimeout != 1500*time.Millisecond {
		t.Errorf("AITimeout = %v, want 1.5s", cfg.AITimeout)
	}
	if cfg.LLMProvider != "openrouter" {
		t.Errorf("LLMProvider = %q, want openrouter", cfg.LLMProvider)
	}
	if cfg.MaxUploadMB != 10 {
		t.Errorf("MaxUploadMB = %d, want 10", cfg.MaxUploadMB)
	}
}
