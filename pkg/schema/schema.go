// Package schema defines the Go struct types for the flow YAML schema
// and provides comment-preserving parsing and dumping.
package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Scenario is the top-level document describing a replayable browser workflow.
type Scenario struct {
	Title     string            `yaml:"title"               json:"title"               jsonschema:"required"`
	BaseURL   string            `yaml:"baseUrl"             json:"baseUrl"             jsonschema:"required"`
	Vars      map[string]string `yaml:"vars,omitempty"      json:"vars,omitempty"`
	Artifacts ArtifactsConfig   `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Hooks     Hooks             `yaml:"hooks,omitempty"     json:"hooks,omitempty"`
	Steps     []Step            `yaml:"steps"               json:"steps"               jsonschema:"required,minItems=1"`
	Healing   string            `yaml:"healing,omitempty"   json:"healing,omitempty"   jsonschema:"enum=off,enum=safe"`

	// doc retains the decoded document node so Dump can write the
	// original comments and field order back out.
	doc *yaml.Node
}

// Hooks holds the two ordered step lists run around every step.
// Hook steps share the scenario scope but may not contain hooks themselves.
type Hooks struct {
	BeforeEachStep []Step `yaml:"beforeEachStep,omitempty" json:"beforeEachStep,omitempty"`
	AfterEachStep  []Step `yaml:"afterEachStep,omitempty"  json:"afterEachStep,omitempty"`
}

// ArtifactsConfig groups the three independent artifact sub-policies.
type ArtifactsConfig struct {
	Screenshots ScreenshotConfig `yaml:"screenshots,omitempty" json:"screenshots,omitempty"`
	Trace       TraceConfig      `yaml:"trace,omitempty"       json:"trace,omitempty"`
	Video       VideoConfig      `yaml:"video,omitempty"       json:"video,omitempty"`
}

// ScreenshotConfig controls when and how step screenshots are taken.
type ScreenshotConfig struct {
	Mode    string `yaml:"mode,omitempty"    json:"mode,omitempty"    jsonschema:"enum=before_each_step,enum=before_and_after,enum=none"`
	Format  string `yaml:"format,omitempty"  json:"format,omitempty"  jsonschema:"enum=jpeg,enum=png"`
	Quality int    `yaml:"quality,omitempty" json:"quality,omitempty" jsonschema:"minimum=1,maximum=100"`
}

// TraceConfig controls driver trace retention.
type TraceConfig struct {
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=on_failure,enum=always,enum=none"`
}

// VideoConfig controls video recording retention.
type VideoConfig struct {
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=on_failure,enum=always,enum=none"`
}

// Section is a labeled container of consecutive steps. It exists for
// readability only — the runner flattens it and records the section name
// on each contained StepResult.
type Section struct {
	Title string `yaml:"title" json:"title" jsonschema:"required"`
	Steps []Step `yaml:"steps" json:"steps" jsonschema:"required"`
}

// Step is a single operation inside a scenario. The YAML form is a
// single-key mapping whose key is the step type and whose value is the
// payload. Scalar payloads (goto: <url>, log: <message>) are preserved
// in Raw; mapping payloads are decoded into Body.
type Step struct {
	Type    string
	Raw     any
	Body    map[string]any
	Section *Section
	Line    int
}

// scalarKey maps step types whose payload may be a bare scalar onto the
// canonical body field the scalar stands for.
var scalarKey = map[string]string{
	"goto":             "url",
	"log":              "message",
	"expectUrl":        "url",
	"useStorageState":  "path",
	"saveStorageState": "path",
	"waitForToast":     "text",
}

// UnmarshalYAML decodes a step from its single-key mapping form and
// records the source line for diagnostics.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping, got %s", value.Line, nodeKindName(value.Kind))
	}
	if len(value.Content) != 2 {
		return fmt.Errorf("line %d: step must be a single-key mapping with the step type as key", value.Line)
	}

	keyNode, payload := value.Content[0], value.Content[1]
	s.Type = keyNode.Value
	s.Line = value.Line

	if s.Type == "section" {
		var sec Section
		if err := payload.Decode(&sec); err != nil {
			return fmt.Errorf("line %d: section: %w", payload.Line, err)
		}
		s.Section = &sec
		return nil
	}

	switch payload.Kind {
	case yaml.MappingNode:
		body := make(map[string]any)
		if err := payload.Decode(&body); err != nil {
			return fmt.Errorf("line %d: step %q payload: %w", payload.Line, s.Type, err)
		}
		s.Body = body
		s.Raw = body
	case yaml.ScalarNode:
		var v any
		if err := payload.Decode(&v); err != nil {
			return fmt.Errorf("line %d: step %q payload: %w", payload.Line, s.Type, err)
		}
		s.Raw = v
		if key, ok := scalarKey[s.Type]; ok {
			if str, isStr := v.(string); isStr {
				s.Body = map[string]any{key: str}
			}
		}
		if s.Body == nil {
			// Marker payloads like back: true carry no parameters.
			s.Body = map[string]any{}
		}
	default:
		return fmt.Errorf("line %d: step %q payload must be a mapping or scalar", payload.Line, s.Type)
	}
	return nil
}

// MarshalYAML re-emits the single-key mapping form.
func (s Step) MarshalYAML() (any, error) {
	if s.Section != nil {
		return map[string]*Section{"section": s.Section}, nil
	}
	payload := s.Raw
	if payload == nil {
		payload = s.Body
	}
	return map[string]any{s.Type: payload}, nil
}

// MarshalJSON emits the same single-key mapping form as YAML so the
// JSON Schema validation phase sees the document shape, not the Go model.
func (s Step) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Name returns the step's declared name, or "" when unnamed.
func (s *Step) Name() string {
	if s.Body == nil {
		return ""
	}
	name, _ := s.Body["name"].(string)
	return name
}

// Secret reports whether the step is flagged secret.
func (s *Step) Secret() bool {
	if s.Body == nil {
		return false
	}
	secret, _ := s.Body["secret"].(bool)
	return secret
}

// String returns a string body field, or "" when absent.
func (s *Step) String(key string) string {
	if s.Body == nil {
		return ""
	}
	v, _ := s.Body[key].(string)
	return v
}

// By decodes the step's selector. Element steps carry the selector either
// under an explicit "by" key or inline as the payload itself.
func (s *Step) By() (*By, error) {
	if s.Body == nil {
		return nil, fmt.Errorf("step %q has no selector", s.Type)
	}
	if raw, ok := s.Body["by"].(map[string]any); ok {
		return DecodeBy(raw)
	}
	return DecodeBy(s.Body)
}

// ApplyDefaults fills unset policy fields with their documented defaults.
func (s *Scenario) ApplyDefaults() {
	if s.Artifacts.Screenshots.Mode == "" {
		s.Artifacts.Screenshots.Mode = "before_each_step"
	}
	if s.Artifacts.Screenshots.Format == "" {
		s.Artifacts.Screenshots.Format = "jpeg"
	}
	if s.Artifacts.Screenshots.Quality == 0 {
		s.Artifacts.Screenshots.Quality = 70
	}
	if s.Artifacts.Trace.Mode == "" {
		s.Artifacts.Trace.Mode = "on_failure"
	}
	if s.Artifacts.Video.Mode == "" {
		s.Artifacts.Video.Mode = "on_failure"
	}
	if s.Healing == "" {
		s.Healing = "off"
	}
}

// FlatSteps returns the steps with sections flattened. Each returned entry
// carries the title of its containing section, or "" for top-level steps.
func (s *Scenario) FlatSteps() []FlatStep {
	var flat []FlatStep
	for _, step := range s.Steps {
		if step.Section != nil {
			for i := range step.Section.Steps {
				flat = append(flat, FlatStep{Step: &step.Section.Steps[i], Section: step.Section.Title})
			}
			continue
		}
		st := step
		flat = append(flat, FlatStep{Step: &st})
	}
	return flat
}

// FlatStep pairs a step with the title of the section containing it.
type FlatStep struct {
	Step    *Step
	Section string
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
