package libretranslate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAdapterRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(Config{Endpoint: "   "}); err == nil {
		t.Fatalf("expected endpoint validation error")
	}
}

func TestTranslateSuccess(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":"hola mundo"}`))
	}))
	defer server.Close()

	adapter, err := NewAdapter(Config{Endpoint: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	out, err := adapter.Translate(context.Background(), "hello world", "en-US", "es-MX")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "hola mundo" {
		t.Fatalf("translated = %q, want %q", out, "hola mundo")
	}
	if gotBody["q"] != "hello world" {
		t.Fatalf("q = %q", gotBody["q"])
	}
	if gotBody["source"] != "en" || gotBody["target"] != "es" {
		t.Fatalf("language tags not normalized: source=%q target=%q", gotBody["source"], gotBody["target"])
	}
	if gotBody["format"] != "text" {
		t.Fatalf("format = %q, want text", gotBody["format"])
	}
}

func TestTranslateRateLimitedIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter, err := NewAdapter(Config{Endpoint: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if _, err := adapter.Translate(context.Background(), "hello", "en", "fr"); err == nil {
		t.Fatalf("expected error on 429 response")
	}
}

func TestTranslateEmptyBodyIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translatedText":""}`))
	}))
	defer server.Close()

	adapter, err := NewAdapter(Config{Endpoint: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if _, err := adapter.Translate(context.Background(), "hello", "en", "fr"); err == nil {
		t.Fatalf("expected error on empty translated text")
	}
}
