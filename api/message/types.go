package message

import (
	"encoding/json"
	"fmt"

	"github.com/tiger/caption-call/api/caption"
)

// SchemaVersion is the current data-channel envelope schema version.
const SchemaVersion = "v1.0"

// Kind discriminates data-channel payloads.
type Kind string

const (
	// KindCaption relays one caption record to the remote participant.
	KindCaption Kind = "caption"
	// KindControl carries a session-level signal (e.g. graceful leave).
	KindControl Kind = "control"
)

// Control signal values carried by KindControl envelopes.
const (
	SignalBye = "bye"
)

// Envelope is the structured record exchanged over the auxiliary data channel.
type Envelope struct {
	SchemaVersion string           `json:"schema_version"`
	Kind          Kind             `json:"kind"`
	Caption       *caption.Caption `json:"caption,omitempty"`
	Signal        string           `json:"signal,omitempty"`
}

// Validate checks envelope shape per kind.
func (e Envelope) Validate() error {
	if e.SchemaVersion == "" {
		return fmt.Errorf("schema_version is required")
	}
	switch e.Kind {
	case KindCaption:
		if e.Caption == nil {
			return fmt.Errorf("caption envelope requires caption body")
		}
		if e.Signal != "" {
			return fmt.Errorf("caption envelope must not carry signal")
		}
		return e.Caption.Validate()
	case KindControl:
		if e.Signal == "" {
			return fmt.Errorf("control envelope requires signal")
		}
		if e.Caption != nil {
			return fmt.Errorf("control envelope must not carry caption body")
		}
		return nil
	default:
		return fmt.Errorf("unsupported envelope kind %q", e.Kind)
	}
}

// NewCaption wraps a caption record in a schema-versioned envelope.
func NewCaption(c caption.Caption) Envelope {
	return Envelope{SchemaVersion: SchemaVersion, Kind: KindCaption, Caption: &c}
}

// NewControl wraps a control signal in a schema-versioned envelope.
func NewControl(signal string) Envelope {
	return Envelope{SchemaVersion: SchemaVersion, Kind: KindControl, Signal: signal}
}

// Encode validates and marshals an envelope for the wire.
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode unmarshals and validates one wire payload.
func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
