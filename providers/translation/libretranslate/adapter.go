package libretranslate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tiger/caption-call/internal/translation"
	"github.com/tiger/caption-call/providers/common/httpclient"
)

const ProviderID = "translate-libretranslate"

type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint: defaultString(os.Getenv("CCALL_TRANSLATE_LIBRE_ENDPOINT"), "https://libretranslate.com/translate"),
		APIKey:   os.Getenv("CCALL_TRANSLATE_LIBRE_API_KEY"),
		Timeout:  10 * time.Second,
	}
}

// Adapter is the primary translation engine: JSON POST in, translatedText out.
type Adapter struct {
	cfg    Config
	client *httpclient.Client
}

var _ translation.Engine = (*Adapter)(nil)

func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: httpclient.New(httpclient.Config{Timeout: cfg.Timeout}),
	}, nil
}

func NewAdapterFromEnv() (*Adapter, error) {
	return NewAdapter(ConfigFromEnv())
}

func (a *Adapter) Name() string {
	return ProviderID
}

// Translate executes one attempt. Any non-success outcome (including rate
// limiting) is an error so the chain can move to the next tier.
func (a *Adapter) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body := map[string]string{
		"q":      text,
		"source": normalize(sourceLang),
		"target": normalize(targetLang),
		"format": "text",
	}
	if a.cfg.APIKey != "" {
		body["api_key"] = a.cfg.APIKey
	}

	resp, err := a.client.PostJSON(ctx, a.cfg.Endpoint, body)
	if err != nil {
		return "", err
	}
	if !resp.Success() {
		return "", fmt.Errorf("translate attempt failed: class=%s status=%d reason=%s", resp.Class, resp.StatusCode, resp.Reason)
	}

	var payload struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(payload.TranslatedText) == "" {
		return "", fmt.Errorf("empty translated text in response")
	}
	return payload.TranslatedText, nil
}

// normalize strips region subtags: the service expects bare language codes.
func normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(tag, "-_"); idx > 0 {
		tag = tag[:idx]
	}
	return tag
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
