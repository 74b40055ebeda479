package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect evidence payloads
// rejected by the schema.
var ErrValidation = errors.New("validation failed")

// Validator checks evidence payloads against the proof evidence JSON
// schema before they reach the lifecycle engine. Payload validation is
// an API-layer concern; the engine itself trusts its inputs.
type Validator struct {
	evidence *jsonschema.Schema
}

// NewValidator compiles the evidence schema from schemaDir (e.g.
// "schemas" or "../schemas" when running from the repo root).
func NewValidator(ctx context.Context, schemaDir string) (*Validator, error) {
	_ = ctx
	path := filepath.Join(schemaDir, "proof_evidence.v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	schema, err := jsonschema.CompileString("https://chorely.dev/schemas/proof_evidence.v1", string(data))
	if err != nil {
		return nil, fmt.Errorf("compile evidence schema: %w", err)
	}
	return &Validator{evidence: schema}, nil
}

// ValidateEvidence performs hard reject: returns an error wrapping
// ErrValidation if the payload does not match the evidence schema.
func (v *Validator) ValidateEvidence(ctx context.Context, evidence json.RawMessage) error {
	_ = ctx
	var doc interface{}
	if err := json.Unmarshal(evidence, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.evidence.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
