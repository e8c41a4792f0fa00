package polly

import (
	"context"
	"errors"
	"testing"

	pollysdk "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

type fakePollyClient struct {
	out      *pollysdk.SynthesizeSpeechOutput
	err      error
	gotText  string
	gotVoice pollytypes.VoiceId
}

func (f *fakePollyClient) SynthesizeSpeech(ctx context.Context, params *pollysdk.SynthesizeSpeechInput, optFns ...func(*pollysdk.Options)) (*pollysdk.SynthesizeSpeechOutput, error) {
	if params.Text != nil {
		f.gotText = *params.Text
	}
	f.gotVoice = params.VoiceId
	return f.out, f.err
}

type fakeAPIError struct {
	code string
	msg  string
}

func (e fakeAPIError) Error() string        { return e.code + ": " + e.msg }
func (e fakeAPIError) ErrorCode() string    { return e.code }
func (e fakeAPIError) ErrorMessage() string { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultServer
}

var _ smithy.APIError = fakeAPIError{}

func TestSpeakSuccess(t *testing.T) {
	t.Parallel()

	client := &fakePollyClient{
		out: &pollysdk.SynthesizeSpeechOutput{AudioStream: NewTestAudioStream([]byte("mp3-bytes"))},
	}
	adapter, err := NewAdapterWithClient(Config{}, client)
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}

	audio, err := adapter.Speak(context.Background(), "hola mundo", "es-MX")
	if err != nil {
		t.Fatalf("unexpected speak error: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio = %q", audio)
	}
	if client.gotText != "hola mundo" {
		t.Fatalf("synthesized text = %q", client.gotText)
	}
	if client.gotVoice != pollytypes.VoiceIdLupe {
		t.Fatalf("voice = %s, want Lupe for es", client.gotVoice)
	}
}

func TestSpeakRequiresText(t *testing.T) {
	t.Parallel()

	adapter, err := NewAdapterWithClient(Config{}, &fakePollyClient{})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	if _, err := adapter.Speak(context.Background(), "   ", "en"); err == nil {
		t.Fatalf("expected error on blank text")
	}
}

func TestSpeakUnreadableText(t *testing.T) {
	t.Parallel()

	adapter, err := NewAdapterWithClient(Config{}, &fakePollyClient{
		err: fakeAPIError{code: "TextLengthExceededException", msg: "too long"},
	})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}

	_, err = adapter.Speak(context.Background(), "very long caption", "en")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestSpeakTransportError(t *testing.T) {
	t.Parallel()

	adapter, err := NewAdapterWithClient(Config{}, &fakePollyClient{err: errors.New("tcp reset")})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}

	_, err = adapter.Speak(context.Background(), "hello", "en")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if errors.Is(err, ErrUnreadable) {
		t.Fatalf("transport error must not map to ErrUnreadable")
	}
}

func TestVoiceForLanguageFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	if got := voiceForLanguage("xx-YY"); got != pollytypes.VoiceIdJoanna {
		t.Fatalf("unknown language voice = %s, want Joanna", got)
	}
	if got := voiceForLanguage("fr-CA"); got != pollytypes.VoiceIdLea {
		t.Fatalf("fr voice = %s, want Lea", got)
	}
}
