package recognition

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tiger/caption-call/internal/telemetry"
)

type recordingEmitter struct {
	mu   sync.Mutex
	logs []string
}

func (r *recordingEmitter) EmitMetric(string, float64, string, map[string]string, telemetry.Correlation) {
}

func (r *recordingEmitter) EmitLog(name, severity, message string, attributes map[string]string, correlation telemetry.Correlation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, name)
}

func (r *recordingEmitter) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, logged := range r.logs {
		if logged == name {
			return true
		}
	}
	return false
}

func TestNewAdapterRequiresEngine(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatalf("expected error without engine")
	}
}

func TestStartForwardsScriptAndRedundantStartIsNoOp(t *testing.T) {
	t.Parallel()

	engine := NewScriptedEngine(
		Result{Text: "hello", IsFinal: false, Confidence: 0.4},
		Result{Text: "hello world", IsFinal: true, Confidence: 0.9},
	)
	emitter := &recordingEmitter{}
	adapter, err := NewAdapter(Config{Engine: engine, Telemetry: emitter})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	var got []Result
	adapter.OnResult(func(r Result) { got = append(got, r) })

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !adapter.IsActive() {
		t.Fatalf("adapter should be active after Start")
	}
	if len(got) != 2 || got[1].Text != "hello world" || !got[1].IsFinal {
		t.Fatalf("results = %+v", got)
	}

	if err := adapter.Start(); err != nil {
		t.Fatalf("redundant Start: %v", err)
	}
	if engine.Starts() != 1 {
		t.Fatalf("engine starts = %d, want 1", engine.Starts())
	}
	if !emitter.has("recognition_start_ignored") {
		t.Fatalf("redundant start should be logged")
	}
}

func TestStopIsLoggedNoOpWhenInactive(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	adapter, err := NewAdapter(Config{Engine: NewScriptedEngine(), Telemetry: emitter})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if err := adapter.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !emitter.has("recognition_stop_ignored") {
		t.Fatalf("redundant stop should be logged")
	}
}

func TestEngineEndRestartsWhileWanted(t *testing.T) {
	t.Parallel()

	engine := NewScriptedEngine()
	adapter, err := NewAdapter(Config{Engine: engine})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	ended := 0
	adapter.OnEnd(func() { ended++ })

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	engine.End()
	if engine.Starts() != 2 {
		t.Fatalf("engine starts after transient end = %d, want 2", engine.Starts())
	}
	if !adapter.IsActive() {
		t.Fatalf("adapter should stay active across a transient end")
	}
	if ended != 0 {
		t.Fatalf("end handler fired %d times during restart, want 0", ended)
	}
}

func TestExplicitStopDoesNotRestart(t *testing.T) {
	t.Parallel()

	engine := NewScriptedEngine()
	adapter, err := NewAdapter(Config{Engine: engine})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	ended := 0
	adapter.OnEnd(func() { ended++ })

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := adapter.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if engine.Starts() != 1 {
		t.Fatalf("engine starts after explicit stop = %d, want 1", engine.Starts())
	}
	if adapter.IsActive() {
		t.Fatalf("adapter should be inactive after Stop")
	}
	if ended != 1 {
		t.Fatalf("end handler fired %d times, want 1", ended)
	}
}

func TestSetLanguageAppliesOnRestart(t *testing.T) {
	t.Parallel()

	engine := NewScriptedEngine()
	adapter, err := NewAdapter(Config{Engine: engine, Language: "en-US"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := adapter.SetLanguage("es-MX"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	engine.mu.Lock()
	runningLang := engine.language
	engine.mu.Unlock()
	if runningLang != "en-US" {
		t.Fatalf("running session language = %q, want unchanged en-US", runningLang)
	}

	engine.End()
	engine.mu.Lock()
	restartedLang := engine.language
	engine.mu.Unlock()
	if restartedLang != "es-MX" {
		t.Fatalf("restarted session language = %q, want es-MX", restartedLang)
	}
}

type failingSecondStartEngine struct {
	mu     sync.Mutex
	starts int
	events EngineEvents
}

func (e *failingSecondStartEngine) Start(language string, events EngineEvents) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	if e.starts > 1 {
		return fmt.Errorf("engine unavailable")
	}
	e.events = events
	return nil
}

func (e *failingSecondStartEngine) Stop() error {
	return nil
}

func TestFailedRestartSurfacesErrorAndEnds(t *testing.T) {
	t.Parallel()

	engine := &failingSecondStartEngine{}
	adapter, err := NewAdapter(Config{Engine: engine})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	var gotErr error
	ended := 0
	adapter.OnError(func(err error) { gotErr = err })
	adapter.OnEnd(func() { ended++ })

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	engine.mu.Lock()
	onEnd := engine.events.OnEnd
	engine.mu.Unlock()
	onEnd()

	if adapter.IsActive() {
		t.Fatalf("adapter should be inactive after failed restart")
	}
	var engineErr *EngineError
	if !errors.As(gotErr, &engineErr) {
		t.Fatalf("error = %v, want *EngineError", gotErr)
	}
	if ended != 1 {
		t.Fatalf("end handler fired %d times, want 1", ended)
	}
}

type failingStopEngine struct {
	mu     sync.Mutex
	starts int
}

func (e *failingStopEngine) Start(language string, events EngineEvents) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	return nil
}

func (e *failingStopEngine) Stop() error {
	return fmt.Errorf("stream teardown refused")
}

func TestFailedStopLeavesAdapterRestartable(t *testing.T) {
	t.Parallel()

	engine := &failingStopEngine{}
	emitter := &recordingEmitter{}
	adapter, err := NewAdapter(Config{Engine: engine, Telemetry: emitter})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var engineErr *EngineError
	if err := adapter.Stop(); !errors.As(err, &engineErr) {
		t.Fatalf("Stop error = %v, want *EngineError", err)
	}
	if adapter.IsActive() {
		t.Fatalf("adapter should be inactive after a failed stop")
	}
	if !emitter.has("recognition_stop_failed") {
		t.Fatalf("failed stop not logged, got %v", emitter.logs)
	}

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start after failed stop: %v", err)
	}
	engine.mu.Lock()
	starts := engine.starts
	engine.mu.Unlock()
	if starts != 2 {
		t.Fatalf("engine starts = %d, want 2", starts)
	}
}

func TestInvalidResultsAreDropped(t *testing.T) {
	t.Parallel()

	engine := NewScriptedEngine()
	emitter := &recordingEmitter{}
	adapter, err := NewAdapter(Config{Engine: engine, Telemetry: emitter})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	var got []Result
	adapter.OnResult(func(r Result) { got = append(got, r) })

	if err := adapter.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := engine.Emit(Result{Text: "  ", Confidence: 0.5}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := engine.Emit(Result{Text: "ok", Confidence: 1.5}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := engine.Emit(Result{Text: "ok", IsFinal: true, Confidence: 0.8}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if len(got) != 1 || got[0].Text != "ok" {
		t.Fatalf("results = %+v, want only the valid segment", got)
	}
	if !emitter.has("recognition_result_dropped") {
		t.Fatalf("invalid segments should be logged")
	}
}
