package config_test

import (
	"testing"

	"github.com/tiger/caption-call/internal/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	t.Parallel()

	loader := config.Loader{Lookup: lookupFrom(nil)}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.SourceLanguage != config.DefaultSourceLanguage {
		t.Fatalf("expected source language %q, got %q", config.DefaultSourceLanguage, cfg.SourceLanguage)
	}
	if cfg.TargetLanguage != config.DefaultTargetLanguage {
		t.Fatalf("expected target language %q, got %q", config.DefaultTargetLanguage, cfg.TargetLanguage)
	}
	if cfg.RelayAddr != config.DefaultRelayAddr {
		t.Fatalf("expected relay addr %q, got %q", config.DefaultRelayAddr, cfg.RelayAddr)
	}
	if cfg.LogLevel != config.DefaultLogLevel {
		t.Fatalf("expected log level %q, got %q", config.DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.SessionID != "" {
		t.Fatalf("expected empty session id, got %q", cfg.SessionID)
	}
	if cfg.VoiceoverOn {
		t.Fatalf("expected voiceover disabled by default")
	}
}

func TestLoaderOverrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"CCALL_CONFIG":           `{"session_id":"ccall-json","source_language":"pl","target_language":"de","relay_addr":"relay:9999","log_level":"debug","caption_capacity":50,"voiceover":true}`,
		"CCALL_SESSION_ID":       "ccall-env",
		"CCALL_TARGET_LANGUAGE":  "fr",
		"CCALL_LOG_LEVEL":        "warn",
		"CCALL_CAPTION_CAPACITY": "75",
	}
	loader := config.Loader{Lookup: lookupFrom(env)}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.SessionID != "ccall-env" {
		t.Fatalf("env override lost: session id = %q", cfg.SessionID)
	}
	if cfg.SourceLanguage != "pl" {
		t.Fatalf("json value lost: source language = %q", cfg.SourceLanguage)
	}
	if cfg.TargetLanguage != "fr" {
		t.Fatalf("env must win over json: target language = %q", cfg.TargetLanguage)
	}
	if cfg.RelayAddr != "relay:9999" {
		t.Fatalf("relay addr = %q", cfg.RelayAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.CaptionCapacity != 75 {
		t.Fatalf("caption capacity = %d", cfg.CaptionCapacity)
	}
	if !cfg.VoiceoverOn {
		t.Fatalf("voiceover should be on")
	}
}

func TestLoaderRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "malformed json", env: map[string]string{"CCALL_CONFIG": `{"session_id":`}},
		{name: "bad capacity", env: map[string]string{"CCALL_CAPTION_CAPACITY": "many"}},
		{name: "negative capacity", env: map[string]string{"CCALL_CAPTION_CAPACITY": "-1"}},
		{name: "bad voiceover flag", env: map[string]string{"CCALL_VOICEOVER": "maybe"}},
		{name: "bad log level", env: map[string]string{"CCALL_LOG_LEVEL": "loud"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			loader := config.Loader{Lookup: lookupFrom(tc.env)}
			if _, err := loader.Load(); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
