// Package validation cross-checks data-channel message fixtures against both
// the typed validators and the published JSON schema, so the two never drift.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tiger/caption-call/api/message"
)

// MessageValidationSummary reports fixture validation totals.
type MessageValidationSummary struct {
	Total    int
	Failed   int
	Failures []string
}

// ValidateMessageFixtures validates valid/invalid envelope fixture sets
// against the default schema location.
func ValidateMessageFixtures(root string) (MessageValidationSummary, error) {
	return ValidateMessageFixturesWithSchema(filepath.Join("docs", "DataChannelMessages.schema.json"), root)
}

// ValidateMessageFixturesWithSchema validates fixture sets using the typed
// envelope validator and the JSON schema. A valid fixture must pass both;
// an invalid fixture must be rejected by both.
func ValidateMessageFixturesWithSchema(schemaPath, root string) (MessageValidationSummary, error) {
	summary := MessageValidationSummary{}
	compiled, err := compileSchema(schemaPath)
	if err != nil {
		return summary, err
	}

	for _, validity := range []struct {
		dir        string
		shouldPass bool
	}{
		{dir: "valid", shouldPass: true},
		{dir: "invalid", shouldPass: false},
	} {
		dir := filepath.Join(root, "envelope", validity.dir)
		items, err := os.ReadDir(dir)
		if err != nil {
			return summary, fmt.Errorf("read fixtures %s: %w", dir, err)
		}
		names := make([]string, 0, len(items))
		for _, item := range items {
			if !item.IsDir() {
				names = append(names, item.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			summary.Total++
			filePath := filepath.Join(dir, name)
			raw, readErr := os.ReadFile(filePath)
			if readErr != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s: read error: %v", filePath, readErr))
				continue
			}

			typedErr := ValidateEnvelope(raw)
			schemaErr := validateAgainstSchema(compiled, raw)

			if validity.shouldPass {
				if typedErr != nil || schemaErr != nil {
					summary.Failed++
					summary.Failures = append(summary.Failures, fmt.Sprintf("%s: expected valid, typed_err=%v schema_err=%v", filePath, typedErr, schemaErr))
				}
				continue
			}

			if typedErr == nil || schemaErr == nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("%s: expected invalid by both validators, typed_err=%v schema_err=%v", filePath, typedErr, schemaErr))
			}
		}
	}

	return summary, nil
}

// ValidateEnvelope is the strict typed validator for one wire payload:
// unknown fields, trailing JSON, and version drift are all rejected.
func ValidateEnvelope(raw []byte) error {
	var e message.Envelope
	if err := strictUnmarshal(raw, &e); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.SchemaVersion != message.SchemaVersion {
		return fmt.Errorf("unsupported schema_version %q", e.SchemaVersion)
	}
	return nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	absSchemaPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}
	if _, err := os.Stat(absSchemaPath); err != nil {
		return nil, fmt.Errorf("schema file unavailable at %s: %w", absSchemaPath, err)
	}

	compiler := jsonschema.NewCompiler()
	f, err := os.Open(absSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()
	if err := compiler.AddResource(absSchemaPath, f); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(absSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

func RenderSummary(summary MessageValidationSummary) string {
	lines := []string{fmt.Sprintf("message fixtures: total=%d failed=%d", summary.Total, summary.Failed)}
	if len(summary.Failures) > 0 {
		lines = append(lines, "failures:")
		for _, f := range summary.Failures {
			lines = append(lines, "- "+f)
		}
	}
	return strings.Join(lines, "\n")
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}
