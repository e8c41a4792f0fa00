package contract_test

import (
	"path/filepath"
	"testing"

	"github.com/tiger/caption-call/internal/tooling/validation"
)

func TestEnvelopeFixturesMatchSchema(t *testing.T) {
	t.Parallel()

	schemaPath := filepath.Join("..", "..", "docs", "DataChannelMessages.schema.json")
	summary, err := validation.ValidateMessageFixturesWithSchema(schemaPath, "fixtures")
	if err != nil {
		t.Fatalf("schema validation execution failed: %v", err)
	}
	if summary.Total == 0 {
		t.Fatalf("expected non-zero fixture count")
	}
	if summary.Failed != 0 {
		t.Fatalf("expected zero schema mismatches, got %d\n%s", summary.Failed, validation.RenderSummary(summary))
	}
}
