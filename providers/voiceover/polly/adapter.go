package polly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

const ProviderID = "voiceover-amazon-polly"

// ErrUnreadable marks caption text the service refused to synthesize. Such
// captions are skipped, not retried.
var ErrUnreadable = errors.New("caption text not synthesizable")

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region  string
	Engine  string
	Timeout time.Duration
}

// Adapter reads captions aloud. One synthesis call per caption, voice picked
// by the caption's language.
type Adapter struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func ConfigFromEnv() Config {
	return Config{
		Region:  defaultString(os.Getenv("CCALL_VOICEOVER_POLLY_REGION"), defaultString(os.Getenv("AWS_REGION"), "us-east-1")),
		Engine:  defaultString(os.Getenv("CCALL_VOICEOVER_POLLY_ENGINE"), "neural"),
		Timeout: 15 * time.Second,
	}
}

func NewAdapter(cfg Config) (*Adapter, error) {
	return NewAdapterWithClient(cfg, nil)
}

func NewAdapterWithClient(cfg Config, client synthClient) (*Adapter, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{client: client, cfg: cfg}, nil
}

func NewAdapterFromEnv() (*Adapter, error) {
	return NewAdapter(ConfigFromEnv())
}

func (a *Adapter) Name() string {
	return ProviderID
}

// Speak synthesizes text in the given language and returns MP3 audio bytes.
func (a *Adapter) Speak(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	client, err := a.resolveClient()
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(a.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      voiceForLanguage(language),
	})
	if err != nil {
		return nil, normalizeSynthesisError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, fmt.Errorf("empty audio stream in response")
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio stream: %w", err)
	}
	return audio, nil
}

// voiceForLanguage maps a caption language tag to a synthesis voice.
// Unknown languages fall back to the English voice rather than failing the
// caption.
func voiceForLanguage(tag string) pollytypes.VoiceId {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(tag, "-_"); idx > 0 {
		tag = tag[:idx]
	}
	switch tag {
	case "es":
		return pollytypes.VoiceIdLupe
	case "fr":
		return pollytypes.VoiceIdLea
	case "de":
		return pollytypes.VoiceIdVicki
	case "it":
		return pollytypes.VoiceIdBianca
	case "pt":
		return pollytypes.VoiceIdCamila
	case "ja":
		return pollytypes.VoiceIdTakumi
	case "ko":
		return pollytypes.VoiceIdSeoyeon
	case "zh":
		return pollytypes.VoiceIdZhiyu
	default:
		return pollytypes.VoiceIdJoanna
	}
}

func normalizeSynthesisError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException":
			return fmt.Errorf("%w: %s", ErrUnreadable, apiErr.ErrorCode())
		default:
			return fmt.Errorf("synthesis failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("synthesis transport error: %w", err)
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (a *Adapter) resolveClient() (synthClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	a.client = polly.NewFromConfig(awsCfg)
	return a.client, nil
}

// NewTestAudioStream creates an in-memory stream for adapter tests.
func NewTestAudioStream(payload []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(payload))
}
