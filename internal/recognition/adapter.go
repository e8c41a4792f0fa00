package recognition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiger/caption-call/internal/telemetry"
)

// Config configures a recognition Adapter.
type Config struct {
	Engine    Engine
	Language  string
	SessionID string
	Telemetry telemetry.Emitter
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Language) == "" {
		c.Language = DefaultLanguage
	}
	if c.Telemetry == nil {
		c.Telemetry = telemetry.DefaultEmitter()
	}
	return c
}

// Adapter drives a continuous Engine and owns the desired-run-state flag.
// The engine can end a session on its own (silence cutoffs, service resets);
// the adapter restarts it while recognition is still wanted, and only an
// explicit Stop clears that want before the engine goes down, so an end
// arriving after Stop never triggers a restart.
type Adapter struct {
	mu       sync.Mutex
	engine   Engine
	language string
	desired  bool
	active   bool

	onResult func(Result)
	onError  func(error)
	onStart  func()
	onEnd    func()

	sessionID string
	emitter   telemetry.Emitter
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	cfg = cfg.withDefaults()
	return &Adapter{
		engine:    cfg.Engine,
		language:  cfg.Language,
		sessionID: cfg.SessionID,
		emitter:   cfg.Telemetry,
	}, nil
}

// OnResult registers the transcript segment handler.
func (a *Adapter) OnResult(fn func(Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onResult = fn
}

// OnError registers the engine error handler.
func (a *Adapter) OnError(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

// OnStart registers the handler fired when recognition begins.
func (a *Adapter) OnStart(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStart = fn
}

// OnEnd registers the handler fired when recognition stops for good.
func (a *Adapter) OnEnd(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEnd = fn
}

func (a *Adapter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Adapter) Language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

// SetLanguage records the recognition language for the next engine start.
// A running session keeps its current language until it restarts.
func (a *Adapter) SetLanguage(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("language is required")
	}
	a.mu.Lock()
	a.language = code
	active := a.active
	a.mu.Unlock()

	if active {
		a.log(telemetry.SeverityInfo, "recognition_language_deferred",
			"language change applies on next engine start", map[string]string{"language": code})
	}
	return nil
}

// Start begins continuous recognition. Calling while already active is a
// logged no-op.
func (a *Adapter) Start() error {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		a.log(telemetry.SeverityInfo, "recognition_start_ignored", "recognition already active", nil)
		return nil
	}
	a.desired = true
	a.active = true
	lang := a.language
	onStart := a.onStart
	a.mu.Unlock()

	if err := a.startEngine(lang); err != nil {
		a.mu.Lock()
		a.active = false
		a.desired = false
		a.mu.Unlock()
		return &EngineError{Err: err}
	}

	a.log(telemetry.SeverityInfo, "recognition_started", "continuous recognition started",
		map[string]string{"language": lang})
	if onStart != nil {
		onStart()
	}
	return nil
}

// Stop halts recognition. The desire flag is cleared before the engine is
// told to stop, so the end event it produces does not restart the session.
// Calling while inactive is a logged no-op.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		a.log(telemetry.SeverityInfo, "recognition_stop_ignored", "recognition not active", nil)
		return nil
	}
	a.desired = false
	a.mu.Unlock()

	if err := a.engine.Stop(); err != nil {
		// The engine's state is unknown here; marking the session inactive
		// lets a later Start retry instead of being swallowed as redundant.
		a.mu.Lock()
		a.active = false
		a.mu.Unlock()
		a.log(telemetry.SeverityWarn, "recognition_stop_failed", err.Error(), nil)
		return &EngineError{Err: err}
	}
	return nil
}

func (a *Adapter) startEngine(language string) error {
	return a.engine.Start(language, EngineEvents{
		OnResult: a.handleEngineResult,
		OnError:  a.handleEngineError,
		OnEnd:    a.handleEngineEnd,
	})
}

func (a *Adapter) handleEngineResult(result Result) {
	if err := result.Validate(); err != nil {
		a.log(telemetry.SeverityWarn, "recognition_result_dropped", err.Error(), nil)
		return
	}
	a.mu.Lock()
	handler := a.onResult
	a.mu.Unlock()
	if handler != nil {
		handler(result)
	}
}

func (a *Adapter) handleEngineError(err error) {
	a.log(telemetry.SeverityWarn, "recognition_engine_error", err.Error(), nil)
	a.mu.Lock()
	handler := a.onError
	a.mu.Unlock()
	if handler != nil {
		handler(&EngineError{Err: err})
	}
}

func (a *Adapter) handleEngineEnd() {
	a.mu.Lock()
	restart := a.desired
	lang := a.language
	if !restart {
		a.active = false
	}
	onEnd := a.onEnd
	a.mu.Unlock()

	if !restart {
		a.log(telemetry.SeverityInfo, "recognition_ended", "continuous recognition ended", nil)
		if onEnd != nil {
			onEnd()
		}
		return
	}

	a.log(telemetry.SeverityInfo, "recognition_restarting", "engine ended while recognition still wanted",
		map[string]string{"language": lang})
	if err := a.startEngine(lang); err != nil {
		a.mu.Lock()
		a.active = false
		a.desired = false
		onError := a.onError
		onEnd = a.onEnd
		a.mu.Unlock()

		a.log(telemetry.SeverityError, "recognition_restart_failed", err.Error(), nil)
		if onError != nil {
			onError(&EngineError{Err: err})
		}
		if onEnd != nil {
			onEnd()
		}
	}
}

func (a *Adapter) log(severity, name, message string, attributes map[string]string) {
	a.emitter.EmitLog(name, severity, message, attributes, telemetry.Correlation{
		SessionID: a.sessionID,
		Component: "recognition",
	})
}
