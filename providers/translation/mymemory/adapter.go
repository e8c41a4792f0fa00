package mymemory

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

const ProviderID = "translate-mymemory"

type Config struct {
	Endpoint string
	Email    string
	Timeout  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint: defaultString(os.Getenv("CCALL_TRANSLATE_MYMEMORY_ENDPOINT"), "https://api.mymemory.translated.net/get"),
		Email:    os.Getenv("CCALL_TRANSLATE_MYMEMORY_EMAIL"),
		Timeout:  10 * time.Second,
	}
}

// Adapter is the secondary translation engine. The service wraps its own
// status code inside an HTTP 200 body, so both layers are checked.
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

func (a *Adapter) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	query := map[string]string{
		"q":        text,
		"langpair": normalize(sourceLang) + "|" + normalize(targetLang),
	}
	if a.cfg.Email != "" {
		query["de"] = a.cfg.Email
	}

	endpoint, err := httpclient.WithQuery(a.cfg.Endpoint, query)
	if err != nil {
		return "", fmt.Errorf("build request url: %w", err)
	}
	resp, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	if !resp.Success() {
		return "", fmt.Errorf("translate attempt failed: class=%s status=%d reason=%s", resp.Class, resp.StatusCode, resp.Reason)
	}

	var payload struct {
		ResponseStatus  json.RawMessage `json:"responseStatus"`
		ResponseDetails string          `json:"responseDetails"`
		ResponseData    struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	// The service reports quota and language errors with responseStatus != 200
	// under an HTTP 200 envelope. The field arrives as a number or a quoted
	// string depending on the failure path.
	if status := strings.Trim(string(payload.ResponseStatus), `"`); status != "200" {
		return "", fmt.Errorf("service rejected request: status=%s details=%s", status, payload.ResponseDetails)
	}
	if strings.TrimSpace(payload.ResponseData.TranslatedText) == "" {
		return "", fmt.Errorf("empty translated text in response")
	}
	return payload.ResponseData.TranslatedText, nil
}

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
