package caption

import "testing"

func TestCaptionValidate(t *testing.T) {
	t.Parallel()

	valid := Caption{
		ID:           "cap-1",
		Text:         "hola",
		OriginalText: "hello",
		Speaker:      SpeakerLocal,
		TimestampMS:  1700000000000,
		Language:     "es",
		IsTranslated: true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid caption rejected: %v", err)
	}

	passthrough := valid
	passthrough.IsTranslated = false
	passthrough.Text = passthrough.OriginalText
	if err := passthrough.Validate(); err != nil {
		t.Fatalf("passthrough caption rejected: %v", err)
	}
}

func TestCaptionValidateRejectsInvariantBreaks(t *testing.T) {
	t.Parallel()

	cases := map[string]Caption{
		"missing id": {
			Text: "hi", OriginalText: "hi", Speaker: SpeakerLocal, Language: "en",
		},
		"bad speaker": {
			ID: "cap-2", Text: "hi", OriginalText: "hi", Speaker: "narrator", Language: "en",
		},
		"negative timestamp": {
			ID: "cap-3", Text: "hi", OriginalText: "hi", Speaker: SpeakerRemote, TimestampMS: -1, Language: "en",
		},
		"missing language": {
			ID: "cap-4", Text: "hi", OriginalText: "hi", Speaker: SpeakerRemote,
		},
		"untranslated text drift": {
			ID: "cap-5", Text: "changed", OriginalText: "hi", Speaker: SpeakerLocal, Language: "en",
		},
		"translated without change": {
			ID: "cap-6", Text: "hi", OriginalText: "hi", Speaker: SpeakerLocal, Language: "en", IsTranslated: true,
		},
	}
	for name, cap := range cases {
		if err := cap.Validate(); err == nil {
			t.Fatalf("expected %s to fail validation", name)
		}
	}
}
