// Package captions turns recognized and received speech into ordered,
// optionally-translated caption records. It owns the caption log and the
// mute gate; it never touches media or transport.
package captions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiger/caption-call/api/caption"
	"github.com/tiger/caption-call/internal/recognition"
	"github.com/tiger/caption-call/internal/telemetry"
	"github.com/tiger/caption-call/internal/translation"
)

// DefaultLanguage is both the source and target language until changed.
const DefaultLanguage = "en-US"

// Recognizer is the continuous speech-to-text surface the pipeline drives.
type Recognizer interface {
	Start() error
	Stop() error
	SetLanguage(code string) error
	OnResult(fn func(recognition.Result))
	OnError(fn func(error))
}

// Translator resolves one text through the tiered engine sequence.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) translation.Result
}

// Config wires a caption pipeline.
type Config struct {
	Recognizer     Recognizer
	Translator     Translator
	SourceLanguage string
	TargetLanguage string
	Capacity       int
	SessionID      string
	Telemetry      telemetry.Emitter
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.SourceLanguage) == "" {
		c.SourceLanguage = DefaultLanguage
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		c.TargetLanguage = DefaultLanguage
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Telemetry == nil {
		c.Telemetry = telemetry.DefaultEmitter()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Pipeline converts recognition results and remote caption payloads into
// Caption records. Translation calls run on the caller's goroutine; the
// mute and destroy gates are re-checked once a translation returns, so a
// late result is discarded at the point of use rather than cancelled
// mid-flight.
type Pipeline struct {
	mu             sync.Mutex
	recognizer     Recognizer
	translator     Translator
	sourceLanguage string
	targetLanguage string
	muted          bool
	destroyed      bool
	log            *captionLog
	onCaption      func(caption.Caption)

	now       func() time.Time
	sessionID string
	emitter   telemetry.Emitter
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	cfg = cfg.withDefaults()

	p := &Pipeline{
		recognizer:     cfg.Recognizer,
		translator:     cfg.Translator,
		sourceLanguage: cfg.SourceLanguage,
		targetLanguage: cfg.TargetLanguage,
		log:            newCaptionLog(cfg.Capacity),
		now:            cfg.Now,
		sessionID:      cfg.SessionID,
		emitter:        cfg.Telemetry,
	}
	p.recognizer.OnResult(p.handleRecognitionResult)
	p.recognizer.OnError(p.handleRecognitionError)
	return p, nil
}

// OnCaption registers the caption output handler.
func (p *Pipeline) OnCaption(fn func(caption.Caption)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCaption = fn
}

func (p *Pipeline) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *Pipeline) TargetLanguage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetLanguage
}

func (p *Pipeline) SourceLanguage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceLanguage
}

// StartLocalCaptions begins captioning local speech. A non-empty language
// overrides the target language first. While muted, the override still
// applies but recognition stays down; unmuting starts it.
func (p *Pipeline) StartLocalCaptions(targetLanguage string) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline destroyed")
	}
	if strings.TrimSpace(targetLanguage) != "" {
		p.targetLanguage = targetLanguage
	}
	muted := p.muted
	p.mu.Unlock()

	if muted {
		p.logEvent(telemetry.SeverityInfo, "captions_start_deferred", "muted, recognition stays down")
		return nil
	}
	return p.recognizer.Start()
}

// StopLocalCaptions halts local speech recognition unconditionally.
func (p *Pipeline) StopLocalCaptions() error {
	return p.recognizer.Stop()
}

// SetMuted flips the mute gate. Transitions are edge-triggered: muting stops
// recognition, unmuting starts it, setting the current value does nothing.
func (p *Pipeline) SetMuted(muted bool) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline destroyed")
	}
	if p.muted == muted {
		p.mu.Unlock()
		return nil
	}
	p.muted = muted
	p.mu.Unlock()

	if muted {
		return p.recognizer.Stop()
	}
	return p.recognizer.Start()
}

// SetTargetLanguage affects only captions produced after it returns.
func (p *Pipeline) SetTargetLanguage(language string) error {
	if strings.TrimSpace(language) == "" {
		return fmt.Errorf("language is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targetLanguage = language
	return nil
}

// SetSourceLanguage records what the local speaker speaks and retargets the
// recognizer accordingly.
func (p *Pipeline) SetSourceLanguage(language string) error {
	if strings.TrimSpace(language) == "" {
		return fmt.Errorf("language is required")
	}
	p.mu.Lock()
	p.sourceLanguage = language
	p.mu.Unlock()
	return p.recognizer.SetLanguage(language)
}

// Captions returns the log sorted ascending by timestamp, ties broken by
// insertion order.
func (p *Pipeline) Captions() []caption.Caption {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.log.snapshot()
}

// ProcessRemoteCaption re-captions a payload received from the peer: the
// original text is re-translated into the local target language with the
// same fallback rule local captions get, under a fresh id and timestamp.
// The speaker stays remote throughout.
func (p *Pipeline) ProcessRemoteCaption(remote caption.Caption) error {
	if strings.TrimSpace(remote.OriginalText) == "" {
		return fmt.Errorf("original_text is required")
	}
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline destroyed")
	}
	source, target := p.sourceLanguage, p.targetLanguage
	arrivedMS := p.now().UnixMilli()
	p.mu.Unlock()

	result := p.translator.Translate(context.Background(), remote.OriginalText, source, target)
	p.commit(caption.Caption{
		ID:           uuid.NewString(),
		Text:         result.TranslatedText,
		OriginalText: remote.OriginalText,
		Speaker:      caption.SpeakerRemote,
		TimestampMS:  arrivedMS,
		Language:     target,
		IsTranslated: result.Translated() && result.TranslatedText != remote.OriginalText,
	}, false)
	return nil
}

// Destroy stops recognition and clears handlers and the log. Safe to call
// more than once.
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.onCaption = nil
	p.log.clear()
	p.mu.Unlock()

	_ = p.recognizer.Stop()
}

func (p *Pipeline) handleRecognitionResult(result recognition.Result) {
	p.mu.Lock()
	if p.muted || p.destroyed {
		p.mu.Unlock()
		return
	}
	source, target := p.sourceLanguage, p.targetLanguage
	arrivedMS := p.now().UnixMilli()
	p.mu.Unlock()

	translated := p.translator.Translate(context.Background(), result.Text, source, target)
	p.commit(caption.Caption{
		ID:           uuid.NewString(),
		Text:         translated.TranslatedText,
		OriginalText: result.Text,
		Speaker:      caption.SpeakerLocal,
		TimestampMS:  arrivedMS,
		Language:     target,
		IsTranslated: translated.Translated() && translated.TranslatedText != result.Text,
	}, true)
}

func (p *Pipeline) handleRecognitionError(err error) {
	p.logEvent(telemetry.SeverityWarn, "recognition_error", err.Error())
}

// commit appends a caption and notifies the handler. The mute and destroy
// gates are re-checked here because a translation may have returned after
// the pipeline moved on; dropWhenMuted applies only to local speech.
func (p *Pipeline) commit(c caption.Caption, dropWhenMuted bool) {
	p.mu.Lock()
	if p.destroyed || (dropWhenMuted && p.muted) {
		p.mu.Unlock()
		p.logEvent(telemetry.SeverityDebug, "caption_discarded", "late result after mute or destroy")
		return
	}
	p.log.append(c)
	handler := p.onCaption
	p.mu.Unlock()

	if handler != nil {
		handler(c)
	}
}

func (p *Pipeline) logEvent(severity, name, message string) {
	p.emitter.EmitLog(name, severity, message, nil, telemetry.Correlation{
		SessionID: p.sessionID,
		Component: "captions",
	})
}
