package config

import (
	"fmt"
	"strings"
)

const (
	DefaultSourceLanguage = "en-US"
	DefaultTargetLanguage = "en-US"
	DefaultRelayAddr      = "127.0.0.1:8787"
	DefaultLogLevel       = "info"
)

// Config captures bootstrap configuration extracted from environment
// variables or an injected JSON payload (`CCALL_CONFIG`).
type Config struct {
	SessionID       string
	SourceLanguage  string
	TargetLanguage  string
	RelayAddr       string
	LogLevel        string
	CaptionCapacity int
	VoiceoverOn     bool
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceLanguage) == "" {
		c.SourceLanguage = DefaultSourceLanguage
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
	if strings.TrimSpace(c.RelayAddr) == "" {
		c.RelayAddr = DefaultRelayAddr
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log_level %q", c.LogLevel)
	}
	if c.CaptionCapacity < 0 {
		return fmt.Errorf("config: caption_capacity must be >= 0, got %d", c.CaptionCapacity)
	}
	return nil
}
