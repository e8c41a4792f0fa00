package validation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateMessageFixtures(t *testing.T) {
	t.Parallel()

	fixtureRoot := filepath.Join("..", "..", "..", "test", "contract", "fixtures")
	schemaPath := filepath.Join("..", "..", "..", "docs", "DataChannelMessages.schema.json")
	summary, err := ValidateMessageFixturesWithSchema(schemaPath, fixtureRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total == 0 {
		t.Fatalf("expected non-zero fixture count")
	}
	if summary.Failed != 0 {
		t.Fatalf("expected zero failures, got %d\n%s", summary.Failed, RenderSummary(summary))
	}
}

func TestMisplacedFixtureIsReported(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	invalidDir := filepath.Join(root, "envelope", "invalid")
	validDir := filepath.Join(root, "envelope", "valid")
	for _, dir := range []string{invalidDir, validDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	// A well-formed control envelope planted in the invalid set must be
	// flagged: both validators accept it.
	wellFormed := []byte(`{"schema_version":"v1.0","kind":"control","signal":"bye"}`)
	if err := os.WriteFile(filepath.Join(invalidDir, "misplaced.json"), wellFormed, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	schemaPath := filepath.Join("..", "..", "..", "docs", "DataChannelMessages.schema.json")
	summary, err := ValidateMessageFixturesWithSchema(schemaPath, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("failed = %d, want 1\n%s", summary.Failed, RenderSummary(summary))
	}
}

func TestValidateEnvelopeRejectsVersionDrift(t *testing.T) {
	t.Parallel()

	if err := ValidateEnvelope([]byte(`{"schema_version":"v0.9","kind":"control","signal":"bye"}`)); err == nil {
		t.Fatalf("expected version drift rejection")
	}
}

func TestValidateEnvelopeRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if err := ValidateEnvelope([]byte(`{"schema_version":"v1.0","kind":"control","signal":"bye","extra":1}`)); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}
