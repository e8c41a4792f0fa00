package caption

import (
	"fmt"
	"strings"
)

// Speaker identifies which side of the call produced an utterance.
type Speaker string

const (
	SpeakerLocal  Speaker = "local"
	SpeakerRemote Speaker = "remote"
)

// Validate checks speaker membership.
func (s Speaker) Validate() error {
	switch s {
	case SpeakerLocal, SpeakerRemote:
		return nil
	default:
		return fmt.Errorf("unsupported speaker %q", s)
	}
}

// Caption is one finalized or interim caption record. Records are immutable
// once appended to a caption log.
type Caption struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	OriginalText string  `json:"originalText"`
	Speaker      Speaker `json:"speaker"`
	TimestampMS  int64   `json:"timestamp"`
	Language     string  `json:"language"`
	IsTranslated bool    `json:"isTranslated"`
}

// Validate checks caption completeness and the translation invariant:
// Text equals OriginalText exactly when IsTranslated is false. The invariant
// holds in both directions; a translation that returns the source text
// unchanged is recorded as untranslated, never as a translated caption with
// identical text.
func (c Caption) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("caption id is required")
	}
	if err := c.Speaker.Validate(); err != nil {
		return err
	}
	if c.TimestampMS < 0 {
		return fmt.Errorf("caption timestamp_ms must be >= 0")
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("caption language is required")
	}
	if c.OriginalText == "" {
		return fmt.Errorf("caption original_text is required")
	}
	if !c.IsTranslated && c.Text != c.OriginalText {
		return fmt.Errorf("untranslated caption text must equal original_text")
	}
	if c.IsTranslated && c.Text == c.OriginalText {
		return fmt.Errorf("translated caption text must differ from original_text")
	}
	return nil
}
