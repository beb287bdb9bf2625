package schema

import "testing"

func TestDecodeByVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		kind ByKind
	}{
		{"testId", map[string]any{"testId": "save"}, ByTestID},
		{"role", map[string]any{"role": "button", "name": "Save"}, ByRole},
		{"label", map[string]any{"label": "Email"}, ByLabel},
		{"placeholder", map[string]any{"placeholder": "Search"}, ByPlaceholder},
		{"css", map[string]any{"css": "#email"}, ByCSS},
		{"css+text", map[string]any{"css": "button", "text": "Save"}, ByCSS},
		{"text", map[string]any{"text": "Save"}, ByText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			by, err := DecodeBy(tc.raw)
			if err != nil {
				t.Fatalf("DecodeBy: %v", err)
			}
			if by.Kind() != tc.kind {
				t.Errorf("Kind = %v, want %v", by.Kind(), tc.kind)
			}
			if err := by.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestDecodeByAny(t *testing.T) {
	by, err := DecodeBy(map[string]any{
		"any": []any{
			map[string]any{"testId": "save"},
			map[string]any{"role": "button", "name": "Save"},
		},
	})
	if err != nil {
		t.Fatalf("DecodeBy: %v", err)
	}
	if by.Kind() != ByAny {
		t.Fatalf("Kind = %v", by.Kind())
	}
	if len(by.Any) != 2 {
		t.Fatalf("candidates = %d", len(by.Any))
	}
	if err := by.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateAnyRules(t *testing.T) {
	// Fewer than two candidates.
	short := &By{Any: []By{{TestID: "a"}}}
	if err := short.Validate(); err == nil {
		t.Error("single-candidate any should fail validation")
	}

	// Nested any.
	nested := &By{Any: []By{{TestID: "a"}, {Any: []By{{Label: "x"}, {Label: "y"}}}}}
	if err := nested.Validate(); err == nil {
		t.Error("nested any should fail validation")
	}

	// strict on the any wrapper.
	strict := true
	wrapped := &By{Any: []By{{TestID: "a"}, {Label: "b"}}, Strict: &strict}
	if err := wrapped.Validate(); err == nil {
		t.Error("strict on any should fail validation")
	}

	// strict on a candidate: candidates are always resolved strictly.
	off := false
	candidate := &By{Any: []By{{TestID: "a", Strict: &off}, {Label: "b"}}}
	if err := candidate.Validate(); err == nil {
		t.Error("strict on an any candidate should fail validation")
	}
}

func TestStrictDefault(t *testing.T) {
	by := &By{TestID: "save"}
	if !by.IsStrict() {
		t.Error("strict should default to true")
	}
	off := false
	by.Strict = &off
	if by.IsStrict() {
		t.Error("explicit strict: false should disable strictness")
	}
}

func TestDecodeByRejectsNonSelector(t *testing.T) {
	if _, err := DecodeBy(map[string]any{"value": "hello"}); err == nil {
		t.Error("mapping without selector keys should not decode")
	}
}

func TestDescribe(t *testing.T) {
	by := &By{Any: []By{{TestID: "save"}, {CSS: "button.save"}}}
	want := `any=[testId="save", css="button.save"]`
	if got := by.Describe(); got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}
}
