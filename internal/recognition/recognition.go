// Package recognition wraps a continuous speech-to-text engine behind an
// adapter that owns the restart policy and the run-state bookkeeping.
package recognition

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the recognition language used when none is configured.
const DefaultLanguage = "en-US"

// Result is one recognized transcript segment.
type Result struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

func (r Result) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0, 1]")
	}
	return nil
}

// EngineError wraps a failure reported by the underlying engine. Engine
// errors are non-fatal: recognition may be restarted by the caller.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("recognition engine error: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// EngineEvents are the callbacks an engine invokes while running. OnEnd fires
// whenever the engine stops emitting, whether it was stopped explicitly or
// gave up on its own.
type EngineEvents struct {
	OnResult func(Result)
	OnError  func(error)
	OnEnd    func()
}

// Engine is the boundary to an external continuous speech-to-text service.
// Start begins a continuous session in the given language; the engine emits
// a result for every interim and every final segment until it ends.
type Engine interface {
	Start(language string, events EngineEvents) error
	Stop() error
}
