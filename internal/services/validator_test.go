package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(context.Background(), schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateEvidence_Valid(t *testing.T) {
	v := newTestValidator(t)

	payload := `{
		"task_id": "` + uuid.NewString() + `",
		"description": "Raked the leaves and bagged them.",
		"photo_urls": ["https://img.example/before.jpg", "https://img.example/after.jpg"],
		"has_before_after": true
	}`
	if err := v.ValidateEvidence(context.Background(), json.RawMessage(payload)); err != nil {
		t.Fatalf("expected valid evidence, got: %v", err)
	}

	// task_id alone is enough; all evidence fields are optional.
	minimal := `{"task_id":"` + uuid.NewString() + `"}`
	if err := v.ValidateEvidence(context.Background(), json.RawMessage(minimal)); err != nil {
		t.Fatalf("expected minimal evidence to be valid, got: %v", err)
	}
}

func TestValidateEvidence_Invalid(t *testing.T) {
	v := newTestValidator(t)

	manyPhotos := make([]string, 11)
	for i := range manyPhotos {
		manyPhotos[i] = `"https://img.example/p.jpg"`
	}

	cases := []struct {
		name  string
		input string
	}{
		{
			name:  "missing task_id",
			input: `{"description":"done"}`,
		},
		{
			name:  "task_id not a uuid",
			input: `{"task_id":"not-a-uuid"}`,
		},
		{
			name:  "unknown field (additionalProperties: false)",
			input: `{"task_id":"` + uuid.NewString() + `","self_assessment":"flawless"}`,
		},
		{
			name:  "too many photos (maxItems 10)",
			input: `{"task_id":"` + uuid.NewString() + `","photo_urls":[` + strings.Join(manyPhotos, ",") + `]}`,
		},
		{
			name:  "description too long (maxLength 2000)",
			input: `{"task_id":"` + uuid.NewString() + `","description":"` + strings.Repeat("a", 2001) + `"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateEvidence(context.Background(), json.RawMessage(tc.input))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidateEvidence_MalformedJSON(t *testing.T) {
	v := newTestValidator(t)
	if err := v.ValidateEvidence(context.Background(), json.RawMessage(`{"task_id"`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
