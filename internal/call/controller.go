// Package call is the composition root binding the session orchestrator to
// the caption pipeline: inbound data-channel payloads feed the pipeline's
// remote entry point, local caption output rides the data channel out.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tiger/caption-call/api/caption"
	"github.com/tiger/caption-call/api/message"
	"github.com/tiger/caption-call/internal/captions"
	"github.com/tiger/caption-call/internal/session"
	"github.com/tiger/caption-call/internal/telemetry"
)

// Role tags which side of the host/join race this controller ended up on.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Establishment is the outcome of Establish: the session identity in play
// and the role this end resolved to.
type Establishment struct {
	SessionID string
	Role      Role
}

// Voiceover optionally reads remote captions aloud.
type Voiceover interface {
	Speak(ctx context.Context, text, language string) ([]byte, error)
}

// Config wires a call controller.
type Config struct {
	Orchestrator *session.Orchestrator
	Pipeline     *captions.Pipeline
	Voiceover    Voiceover
	Telemetry    telemetry.Emitter
}

// Controller owns no session or caption state of its own; it routes between
// the two components and exposes the outward caption stream.
type Controller struct {
	mu        sync.Mutex
	onCaption func(caption.Caption)

	orchestrator *session.Orchestrator
	pipeline     *captions.Pipeline
	voiceover    Voiceover
	emitter      telemetry.Emitter
}

func New(cfg Config) (*Controller, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultEmitter()
	}

	c := &Controller{
		orchestrator: cfg.Orchestrator,
		pipeline:     cfg.Pipeline,
		voiceover:    cfg.Voiceover,
		emitter:      cfg.Telemetry,
	}
	c.orchestrator.Events().OnData(c.handleData)
	c.pipeline.OnCaption(c.handleCaption)
	return c, nil
}

// OnCaption registers the outward caption stream consumed by presentation.
func (c *Controller) OnCaption(fn func(caption.Caption)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCaption = fn
}

func (c *Controller) Orchestrator() *session.Orchestrator {
	return c.orchestrator
}

func (c *Controller) Pipeline() *captions.Pipeline {
	return c.pipeline
}

// Establish resolves the host/join race as one decision point. Creating
// under id succeeds and this end hosts; creating fails because the identity
// is already in use and this end joins the existing session as guest. Any
// other failure propagates.
func (c *Controller) Establish(ctx context.Context, id string) (Establishment, error) {
	created, err := c.orchestrator.CreateSession(ctx, id)
	if err == nil {
		return Establishment{SessionID: created, Role: RoleHost}, nil
	}

	var endpointErr *session.EndpointError
	if id != "" && errors.As(err, &endpointErr) && endpointErr.IdentityTaken() {
		c.log(telemetry.SeverityInfo, "establish_fallback_join", "identity in use, joining as guest")
		if joinErr := c.orchestrator.JoinSession(ctx, id); joinErr != nil {
			return Establishment{}, joinErr
		}
		return Establishment{SessionID: id, Role: RoleGuest}, nil
	}
	return Establishment{}, err
}

// HangUp signals the peer, stops captioning, and tears the session down.
// Safe to call more than once.
func (c *Controller) HangUp() {
	if bye, err := message.Encode(message.NewControl(message.SignalBye)); err == nil {
		c.orchestrator.SendData(bye)
	}
	_ = c.pipeline.StopLocalCaptions()
	c.orchestrator.Disconnect()
}

func (c *Controller) handleData(payload []byte) {
	envelope, err := message.Decode(payload)
	if err != nil {
		c.log(telemetry.SeverityWarn, "data_envelope_rejected", err.Error())
		return
	}

	switch envelope.Kind {
	case message.KindCaption:
		if err := c.pipeline.ProcessRemoteCaption(*envelope.Caption); err != nil {
			c.log(telemetry.SeverityWarn, "remote_caption_rejected", err.Error())
		}
	case message.KindControl:
		if envelope.Signal == message.SignalBye {
			c.log(telemetry.SeverityInfo, "peer_signaled_bye", "remote is leaving the call")
		}
	}
}

func (c *Controller) handleCaption(cap caption.Caption) {
	if cap.Speaker == caption.SpeakerLocal {
		if payload, err := message.Encode(message.NewCaption(cap)); err == nil {
			c.orchestrator.SendData(payload)
		} else {
			c.log(telemetry.SeverityWarn, "caption_relay_rejected", err.Error())
		}
	}

	if cap.Speaker == caption.SpeakerRemote && c.voiceover != nil {
		go c.speak(cap)
	}

	c.mu.Lock()
	handler := c.onCaption
	c.mu.Unlock()
	if handler != nil {
		handler(cap)
	}
}

func (c *Controller) speak(cap caption.Caption) {
	if _, err := c.voiceover.Speak(context.Background(), cap.Text, cap.Language); err != nil {
		c.log(telemetry.SeverityWarn, "voiceover_failed", err.Error())
	}
}

func (c *Controller) log(severity, name, msg string) {
	c.emitter.EmitLog(name, severity, msg, nil, telemetry.Correlation{
		SessionID: c.orchestrator.Identity(),
		Component: "call",
	})
}
