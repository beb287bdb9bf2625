package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// flowDocument mirrors the serialized document shape. Steps are kept as
// open objects here — their payloads are step-type specific and validated
// by the domain phase and the step registry, not by JSON Schema.
type flowDocument struct {
	Title     string            `json:"title"               jsonschema:"required"`
	BaseURL   string            `json:"baseUrl"             jsonschema:"required"`
	Vars      map[string]string `json:"vars,omitempty"`
	Artifacts ArtifactsConfig   `json:"artifacts,omitempty"`
	Hooks     hooksDocument     `json:"hooks,omitempty"`
	Steps     []map[string]any  `json:"steps"               jsonschema:"required,minItems=1"`
	Healing   string            `json:"healing,omitempty"   jsonschema:"enum=off,enum=safe"`
}

type hooksDocument struct {
	BeforeEachStep []map[string]any `json:"beforeEachStep,omitempty"`
	AfterEachStep  []map[string]any `json:"afterEachStep,omitempty"`
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document for
// flow YAML files using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&flowDocument{})
	s.ID = "https://github.com/uiflow/uiflow/schemas/flow-v0.json"
	s.Title = "uiflow scenario v0"
	s.Description = "Schema for uiflow flow YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
