package recognition

import (
	"fmt"
	"sync"
)

// ScriptedEngine is an in-process Engine that replays a fixed transcript.
// It backs the loopback demo and adapter tests; no audio is involved.
type ScriptedEngine struct {
	mu       sync.Mutex
	script   []Result
	running  bool
	language string
	starts   int
	events   EngineEvents
}

func NewScriptedEngine(script ...Result) *ScriptedEngine {
	return &ScriptedEngine{script: append([]Result(nil), script...)}
}

// Start replays the script synchronously and then stays running until Stop
// or an injected End.
func (e *ScriptedEngine) Start(language string, events EngineEvents) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.running = true
	e.language = language
	e.starts++
	e.events = events
	script := e.script
	e.mu.Unlock()

	if events.OnResult != nil {
		for _, segment := range script {
			e.mu.Lock()
			running := e.running
			e.mu.Unlock()
			if !running {
				break
			}
			events.OnResult(segment)
		}
	}
	return nil
}

func (e *ScriptedEngine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	events := e.events
	e.mu.Unlock()

	if events.OnEnd != nil {
		events.OnEnd()
	}
	return nil
}

// Emit forwards an ad-hoc segment as if the engine recognized it live.
func (e *ScriptedEngine) Emit(result Result) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine not running")
	}
	events := e.events
	e.mu.Unlock()

	if events.OnResult != nil {
		events.OnResult(result)
	}
	return nil
}

// Fail reports an engine error without ending the session.
func (e *ScriptedEngine) Fail(err error) {
	e.mu.Lock()
	events := e.events
	e.mu.Unlock()
	if events.OnError != nil {
		events.OnError(err)
	}
}

// End simulates an engine-initiated session end, the kind that the adapter
// restarts when recognition is still wanted.
func (e *ScriptedEngine) End() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	events := e.events
	e.mu.Unlock()

	if events.OnEnd != nil {
		events.OnEnd()
	}
}

// Starts reports how many times the engine has been started.
func (e *ScriptedEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Running reports whether a session is in progress.
func (e *ScriptedEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
