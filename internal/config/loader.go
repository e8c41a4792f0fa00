package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the call configuration from environment variables and
// validates it. The JSON blob in CCALL_CONFIG is applied first; individual
// CCALL_* variables override it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		SourceLanguage: DefaultSourceLanguage,
		TargetLanguage: DefaultTargetLanguage,
		RelayAddr:      DefaultRelayAddr,
	}

	if raw, ok := l.Lookup("CCALL_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "CCALL_SESSION_ID", &cfg.SessionID)
	overrideString(l.Lookup, "CCALL_SOURCE_LANGUAGE", &cfg.SourceLanguage)
	overrideString(l.Lookup, "CCALL_TARGET_LANGUAGE", &cfg.TargetLanguage)
	overrideString(l.Lookup, "CCALL_RELAY_ADDR", &cfg.RelayAddr)
	overrideString(l.Lookup, "CCALL_LOG_LEVEL", &cfg.LogLevel)
	if err := overrideInt(l.Lookup, "CCALL_CAPTION_CAPACITY", &cfg.CaptionCapacity); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "CCALL_VOICEOVER", &cfg.VoiceoverOn); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		SessionID       string `json:"session_id"`
		SourceLanguage  string `json:"source_language"`
		TargetLanguage  string `json:"target_language"`
		RelayAddr       string `json:"relay_addr"`
		LogLevel        string `json:"log_level"`
		CaptionCapacity int    `json:"caption_capacity"`
		VoiceoverOn     bool   `json:"voiceover"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode CCALL_CONFIG: %w", err)
	}
	if payload.SessionID != "" {
		cfg.SessionID = payload.SessionID
	}
	if payload.SourceLanguage != "" {
		cfg.SourceLanguage = payload.SourceLanguage
	}
	if payload.TargetLanguage != "" {
		cfg.TargetLanguage = payload.TargetLanguage
	}
	if payload.RelayAddr != "" {
		cfg.RelayAddr = payload.RelayAddr
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.CaptionCapacity != 0 {
		cfg.CaptionCapacity = payload.CaptionCapacity
	}
	if payload.VoiceoverOn {
		cfg.VoiceoverOn = true
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}
