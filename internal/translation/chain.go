// Package translation degrades gracefully across two independent engines:
// primary, then secondary, then passthrough. A caption is never lost to a
// translation failure.
package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiger/caption-call/internal/telemetry"
)

// Tier records which engine satisfied a translation request.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	// TierFallback marks degraded passthrough: the original text, untranslated.
	TierFallback Tier = "fallback"
)

// Result is one translation outcome. Service distinguishes genuine
// translation from degraded passthrough.
type Result struct {
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
	Service        Tier
}

// Translated reports whether a genuine translation was produced.
func (r Result) Translated() bool {
	return r.Service == TierPrimary || r.Service == TierSecondary
}

// Engine is one external translation service.
type Engine interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Config wires the chain's engines.
type Config struct {
	Primary   Engine
	Secondary Engine
	Telemetry telemetry.Emitter
}

// Chain runs the primary/secondary/fallback sequence.
type Chain struct {
	primary   Engine
	secondary Engine
	emitter   telemetry.Emitter
}

// NewChain constructs a translation chain. Engines may be nil; a nil tier is
// skipped as if it had failed.
func NewChain(cfg Config) *Chain {
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultEmitter()
	}
	return &Chain{primary: cfg.Primary, secondary: cfg.Secondary, emitter: cfg.Telemetry}
}

// NeedsTranslation reports whether the normalized language tags differ.
// Region subtags are stripped and comparison is case-insensitive, so en-US
// and en-GB are the same language.
func NeedsTranslation(sourceLang, targetLang string) bool {
	return normalizeTag(sourceLang) != normalizeTag(targetLang)
}

// Translate resolves text through the engine sequence. It never returns an
// error: every failure mode degrades to passthrough tagged TierFallback.
func (c *Chain) Translate(ctx context.Context, text, sourceLang, targetLang string) Result {
	result := Result{
		TranslatedText: text,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Service:        TierFallback,
	}
	if text == "" || !NeedsTranslation(sourceLang, targetLang) {
		return result
	}

	for _, attempt := range []struct {
		engine Engine
		tier   Tier
	}{
		{c.primary, TierPrimary},
		{c.secondary, TierSecondary},
	} {
		if attempt.engine == nil {
			continue
		}
		translated, err := attempt.engine.Translate(ctx, text, sourceLang, targetLang)
		if err != nil {
			c.emitter.EmitLog("translate.attempt", telemetry.SeverityWarn,
				fmt.Sprintf("engine %s failed: %v", attempt.engine.Name(), err),
				map[string]string{"tier": string(attempt.tier)},
				telemetry.Correlation{Component: "translation"})
			continue
		}
		if strings.TrimSpace(translated) == "" {
			c.emitter.EmitLog("translate.attempt", telemetry.SeverityWarn,
				fmt.Sprintf("engine %s returned empty translation", attempt.engine.Name()),
				map[string]string{"tier": string(attempt.tier)},
				telemetry.Correlation{Component: "translation"})
			continue
		}
		result.TranslatedText = translated
		result.Service = attempt.tier
		return result
	}

	c.emitter.EmitLog("translate.fallback", telemetry.SeverityInfo,
		"all engines failed, passing original text through", nil,
		telemetry.Correlation{Component: "translation"})
	return result
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(tag, "-_"); idx > 0 {
		tag = tag[:idx]
	}
	return tag
}
