package schema

import (
	"fmt"
	"strings"
)

// ByKind enumerates the selector variants. The set is closed — switches
// over it are expected to be exhaustive.
type ByKind int

const (
	ByUnknown ByKind = iota
	ByTestID
	ByRole
	ByLabel
	ByPlaceholder
	ByCSS
	ByText
	ByAny
)

// By is a declarative selector expression. Exactly one variant is
// populated per value; Kind reports which.
type By struct {
	TestID      string `yaml:"testId,omitempty"      json:"testId,omitempty"`
	Role        string `yaml:"role,omitempty"        json:"role,omitempty"`
	Name        string `yaml:"name,omitempty"        json:"name,omitempty"`
	Exact       *bool  `yaml:"exact,omitempty"       json:"exact,omitempty"`
	Label       string `yaml:"label,omitempty"       json:"label,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	CSS         string `yaml:"css,omitempty"         json:"css,omitempty"`
	Text        string `yaml:"text,omitempty"        json:"text,omitempty"`
	Any         []By   `yaml:"any,omitempty"         json:"any,omitempty"`
	Strict      *bool  `yaml:"strict,omitempty"      json:"strict,omitempty"`
}

// Kind reports the populated variant. A css selector may carry Text as a
// visible-text filter; a bare Text value is the discouraged text variant.
func (b *By) Kind() ByKind {
	switch {
	case len(b.Any) > 0:
		return ByAny
	case b.TestID != "":
		return ByTestID
	case b.Role != "":
		return ByRole
	case b.Label != "":
		return ByLabel
	case b.Placeholder != "":
		return ByPlaceholder
	case b.CSS != "":
		return ByCSS
	case b.Text != "":
		return ByText
	}
	return ByUnknown
}

// IsStrict reports the effective strictness. Strict is default-on;
// only an explicit strict: false disables it.
func (b *By) IsStrict() bool {
	return b.Strict == nil || *b.Strict
}

// Validate checks the single-variant invariant and the any rules:
// at least two candidates, no nesting.
func (b *By) Validate() error {
	return b.validate(false)
}

func (b *By) validate(insideAny bool) error {
	kind := b.Kind()
	if kind == ByUnknown {
		return fmt.Errorf("selector has no recognized variant (testId/role/label/placeholder/css/text/any)")
	}
	if kind == ByAny {
		if insideAny {
			return fmt.Errorf("any selectors may not nest")
		}
		if len(b.Any) < 2 {
			return fmt.Errorf("any requires at least 2 candidates, got %d", len(b.Any))
		}
		if b.Strict != nil {
			return fmt.Errorf("strict is permitted on single selectors only, not on any")
		}
		for i := range b.Any {
			if err := b.Any[i].validate(true); err != nil {
				return fmt.Errorf("any[%d]: %w", i, err)
			}
		}
		return nil
	}
	// Candidates inside an any list are always resolved strictly.
	if insideAny && b.Strict != nil {
		return fmt.Errorf("strict is not permitted on any candidates")
	}
	// Reject conflicting primary fields beyond the allowed auxiliary ones.
	if n := b.populatedPrimaries(); n > 1 {
		return fmt.Errorf("selector populates %d variants; exactly one is allowed", n)
	}
	return nil
}

func (b *By) populatedPrimaries() int {
	n := 0
	if b.TestID != "" {
		n++
	}
	if b.Role != "" {
		n++
	}
	if b.Label != "" {
		n++
	}
	if b.Placeholder != "" {
		n++
	}
	if b.CSS != "" {
		n++
	}
	// Text is a primary only when not serving as a css filter.
	if b.Text != "" && b.CSS == "" {
		n++
	}
	return n
}

// Describe renders the selector for error messages and reports.
func (b *By) Describe() string {
	switch b.Kind() {
	case ByTestID:
		return fmt.Sprintf("testId=%q", b.TestID)
	case ByRole:
		if b.Name != "" {
			return fmt.Sprintf("role=%q, name=%q", b.Role, b.Name)
		}
		return fmt.Sprintf("role=%q", b.Role)
	case ByLabel:
		return fmt.Sprintf("label=%q", b.Label)
	case ByPlaceholder:
		return fmt.Sprintf("placeholder=%q", b.Placeholder)
	case ByCSS:
		if b.Text != "" {
			return fmt.Sprintf("css=%q, text=%q", b.CSS, b.Text)
		}
		return fmt.Sprintf("css=%q", b.CSS)
	case ByText:
		return fmt.Sprintf("text=%q", b.Text)
	case ByAny:
		parts := make([]string, len(b.Any))
		for i := range b.Any {
			parts[i] = b.Any[i].Describe()
		}
		return "any=[" + strings.Join(parts, ", ") + "]"
	}
	return "unknown"
}

// DecodeBy converts a decoded YAML mapping into a By value.
func DecodeBy(raw map[string]any) (*By, error) {
	b := &By{}
	for key, val := range raw {
		switch key {
		case "testId":
			b.TestID, _ = val.(string)
		case "role":
			b.Role, _ = val.(string)
		case "name":
			b.Name, _ = val.(string)
		case "exact":
			if v, ok := val.(bool); ok {
				b.Exact = &v
			}
		case "label":
			b.Label, _ = val.(string)
		case "placeholder":
			b.Placeholder, _ = val.(string)
		case "css":
			b.CSS, _ = val.(string)
		case "text":
			b.Text, _ = val.(string)
		case "strict":
			if v, ok := val.(bool); ok {
				b.Strict = &v
			}
		case "any":
			list, ok := val.([]any)
			if !ok {
				return nil, fmt.Errorf("any must be a list of selectors")
			}
			for i, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("any[%d] must be a selector mapping", i)
				}
				cand, err := DecodeBy(m)
				if err != nil {
					return nil, fmt.Errorf("any[%d]: %w", i, err)
				}
				b.Any = append(b.Any, *cand)
			}
		}
	}
	if b.Kind() == ByUnknown {
		return nil, fmt.Errorf("mapping is not a selector: no testId/role/label/placeholder/css/text/any key")
	}
	return b, nil
}

// LooksLikeSelector reports whether the mapping carries any selector key.
// Used by the linter and the importer to probe step payloads.
func LooksLikeSelector(m map[string]any) bool {
	for _, key := range []string{"testId", "role", "label", "placeholder", "css", "text", "any"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
