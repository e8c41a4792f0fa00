package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tiger/caption-call/api/caption"
	"github.com/tiger/caption-call/api/peer"
	"github.com/tiger/caption-call/internal/call"
	"github.com/tiger/caption-call/internal/captions"
	"github.com/tiger/caption-call/internal/config"
	"github.com/tiger/caption-call/internal/recognition"
	"github.com/tiger/caption-call/internal/session"
	"github.com/tiger/caption-call/internal/telemetry"
	"github.com/tiger/caption-call/internal/tooling/validation"
	"github.com/tiger/caption-call/internal/translation"
	pollyvoice "github.com/tiger/caption-call/providers/voiceover/polly"
	"github.com/tiger/caption-call/transports/memory"
	"github.com/tiger/caption-call/transports/wsrelay"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, config.Loader{}); err != nil {
		fmt.Fprintf(os.Stderr, "ccall: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, logs io.Writer, loader config.Loader) error {
	if len(args) == 0 {
		args = []string{"loopback"}
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "validate-contracts":
		fixtureRoot := filepath.Join("test", "contract", "fixtures")
		if len(args) >= 2 {
			fixtureRoot = args[1]
		}
		summary, err := validation.ValidateMessageFixtures(fixtureRoot)
		if err != nil {
			return fmt.Errorf("contract validation did not execute: %w", err)
		}
		_, _ = fmt.Fprintln(stdout, validation.RenderSummary(summary))
		if summary.Failed > 0 {
			return fmt.Errorf("%d fixture(s) failed validation", summary.Failed)
		}
		return nil
	case "relay", "loopback":
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		pipeline := telemetry.NewPipeline(telemetry.NewWriterSink(logs), telemetry.Config{})
		defer pipeline.Close()
		telemetry.SetDefaultEmitter(telemetry.WithMinSeverity(pipeline, cfg.LogLevel))
		defer telemetry.SetDefaultEmitter(nil)

		if args[0] == "relay" {
			return runRelay(stdout, cfg)
		}
		overRelay := len(args) >= 2 && args[1] == "relay"
		return runLoopback(stdout, cfg, overRelay)
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "ccall usage:")
	_, _ = fmt.Fprintln(w, "  ccall loopback                          run a two-party in-process demo call")
	_, _ = fmt.Fprintln(w, "  ccall loopback relay                    run the demo call through a local ws relay")
	_, _ = fmt.Fprintln(w, "  ccall relay                             serve the websocket relay on CCALL_RELAY_ADDR")
	_, _ = fmt.Fprintln(w, "  ccall validate-contracts [fixture_root] check envelope fixtures against the schema")
	_, _ = fmt.Fprintln(w, "  ccall help")
	_, _ = fmt.Fprintln(w, "Configuration is read from CCALL_CONFIG (JSON) and CCALL_* variables.")
}

// runRelay serves the relay hub for out-of-process callers until the
// process is stopped.
func runRelay(stdout io.Writer, cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.RelayAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RelayAddr, err)
	}
	_, _ = fmt.Fprintf(stdout, "relay listening on ws://%s/ws\n", ln.Addr())
	return http.Serve(ln, wsrelay.NewServer(wsrelay.ServerConfig{}))
}

// buildVoiceover constructs the polly read-aloud provider when enabled.
func buildVoiceover(cfg config.Config) (call.Voiceover, error) {
	if !cfg.VoiceoverOn {
		return nil, nil
	}
	adapter, err := pollyvoice.NewAdapterFromEnv()
	if err != nil {
		return nil, fmt.Errorf("build voiceover: %w", err)
	}
	return adapter, nil
}

// party is one end of the loopback call: a full controller stack with a
// scripted recognition engine standing in for the microphone.
type party struct {
	name       string
	controller *call.Controller
	engine     *recognition.ScriptedEngine
}

func newParty(name string, transport peer.Transport, cfg config.Config, script []recognition.Result, voiceover call.Voiceover) (*party, error) {
	orchestrator, err := session.New(session.Config{
		Transport: transport,
		Devices:   memory.NewDeviceSource(),
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator for %s: %w", name, err)
	}

	engine := recognition.NewScriptedEngine(script...)
	adapter, err := recognition.NewAdapter(recognition.Config{
		Engine:   engine,
		Language: cfg.SourceLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("build recognizer for %s: %w", name, err)
	}

	pipeline, err := captions.NewPipeline(captions.Config{
		Recognizer:     adapter,
		Translator:     translation.NewChain(translation.Config{}),
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		Capacity:       cfg.CaptionCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline for %s: %w", name, err)
	}

	controller, err := call.New(call.Config{
		Orchestrator: orchestrator,
		Pipeline:     pipeline,
		Voiceover:    voiceover,
	})
	if err != nil {
		return nil, fmt.Errorf("build controller for %s: %w", name, err)
	}
	return &party{name: name, controller: controller, engine: engine}, nil
}

// runLoopback wires two complete call stacks, resolves the host/join race,
// replays a short scripted conversation, and prints each side's caption log.
// The in-process transport delivers inline; the relay mode serves a local
// wsrelay hub and waits for asynchronous delivery.
func runLoopback(stdout io.Writer, cfg config.Config, overRelay bool) error {
	voiceover, err := buildVoiceover(cfg)
	if err != nil {
		return err
	}

	hostScript := []recognition.Result{
		{Text: "hello from this side", IsFinal: true, Confidence: 0.96},
		{Text: "can you hear me", IsFinal: true, Confidence: 0.93},
	}
	guestScript := []recognition.Result{
		{Text: "loud and clear", IsFinal: true, Confidence: 0.97},
	}

	var hostTransport, guestTransport peer.Transport
	if overRelay {
		ln, err := net.Listen("tcp", cfg.RelayAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.RelayAddr, err)
		}
		relay := &http.Server{Handler: wsrelay.NewServer(wsrelay.ServerConfig{})}
		go func() { _ = relay.Serve(ln) }()
		defer relay.Close()
		url := "ws://" + ln.Addr().String() + "/ws"
		_, _ = fmt.Fprintf(stdout, "relay listening on %s\n", url)

		if hostTransport, err = wsrelay.NewTransport(wsrelay.TransportConfig{URL: url}); err != nil {
			return err
		}
		if guestTransport, err = wsrelay.NewTransport(wsrelay.TransportConfig{URL: url}); err != nil {
			return err
		}
	} else {
		shared := memory.NewTransport()
		hostTransport, guestTransport = shared, shared
	}

	host, err := newParty("host", hostTransport, cfg, hostScript, voiceover)
	if err != nil {
		return err
	}
	guest, err := newParty("guest", guestTransport, cfg, guestScript, voiceover)
	if err != nil {
		return err
	}

	ctx := context.Background()
	hostOutcome, err := host.controller.Establish(ctx, cfg.SessionID)
	if err != nil {
		return fmt.Errorf("host establish: %w", err)
	}
	guestOutcome, err := guest.controller.Establish(ctx, hostOutcome.SessionID)
	if err != nil {
		return fmt.Errorf("guest establish: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "session %s: host=%s guest=%s\n", hostOutcome.SessionID, hostOutcome.Role, guestOutcome.Role)

	if overRelay {
		if err := waitFor(func() bool {
			return host.controller.Orchestrator().ParticipantCount() == 2
		}); err != nil {
			return fmt.Errorf("host pairing: %w", err)
		}
	}

	if err := host.controller.Pipeline().StartLocalCaptions(""); err != nil {
		return fmt.Errorf("host captions: %w", err)
	}
	if err := guest.controller.Pipeline().StartLocalCaptions(""); err != nil {
		return fmt.Errorf("guest captions: %w", err)
	}

	want := len(hostScript) + len(guestScript)
	if overRelay {
		if err := waitFor(func() bool {
			return len(host.controller.Pipeline().Captions()) >= want &&
				len(guest.controller.Pipeline().Captions()) >= want
		}); err != nil {
			return fmt.Errorf("caption delivery: %w", err)
		}
	}

	for _, p := range []*party{host, guest} {
		_, _ = fmt.Fprintf(stdout, "-- %s captions --\n", p.name)
		for _, c := range p.controller.Pipeline().Captions() {
			_, _ = fmt.Fprintf(stdout, "  [%s] %s\n", speakerLabel(c.Speaker), c.Text)
		}
	}

	host.controller.HangUp()
	guest.controller.HangUp()
	_, _ = fmt.Fprintln(stdout, "call ended")
	return nil
}

func waitFor(cond func() bool) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("condition not reached within 5s")
}

func speakerLabel(s caption.Speaker) string {
	if s == caption.SpeakerLocal {
		return "you"
	}
	return "peer"
}
