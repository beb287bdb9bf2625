package schema

import (
	"bytes"
	"strings"
	"testing"
)

const sampleFlow = `# login regression flow
title: Login flow
baseUrl: https://example.com
vars:
  user: alice@example.com
artifacts:
  screenshots:
    mode: before_each_step
    format: png
  trace:
    mode: on_failure
steps:
  # the login form
  - goto: https://example.com/login
  - fill:
      by: {label: Email}
      value: ${vars.user}
      name: fill-email
  - fill:
      by: {label: Password}
      value: ${env.PASSWORD}
      secret: true
      name: fill-password
  - click:
      by: {role: button, name: Sign in}
      name: click-sign-in
  - section:
      title: after login
      steps:
        - expectUrl: https://example.com/dashboard
`

func TestLoadScenario(t *testing.T) {
	s, err := Load(strings.NewReader(sampleFlow))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Title != "Login flow" {
		t.Errorf("Title = %q", s.Title)
	}
	if s.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q", s.BaseURL)
	}
	if len(s.Steps) != 5 {
		t.Fatalf("got %d steps, want 5", len(s.Steps))
	}
	if s.Steps[0].Type != "goto" {
		t.Errorf("step 0 type = %q", s.Steps[0].Type)
	}
	if got := s.Steps[0].String("url"); got != "https://example.com/login" {
		t.Errorf("goto url = %q", got)
	}
	if !s.Steps[2].Secret() {
		t.Error("fill-password should be secret")
	}
	if s.Steps[4].Section == nil {
		t.Fatal("step 4 should be a section")
	}
	if s.Steps[4].Section.Title != "after login" {
		t.Errorf("section title = %q", s.Steps[4].Section.Title)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	s, err := Load(strings.NewReader("title: t\nbaseUrl: https://x.test\nsteps:\n  - reload: true\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Artifacts.Screenshots.Mode != "before_each_step" {
		t.Errorf("screenshots mode default = %q", s.Artifacts.Screenshots.Mode)
	}
	if s.Artifacts.Screenshots.Quality != 70 {
		t.Errorf("quality default = %d", s.Artifacts.Screenshots.Quality)
	}
	if s.Artifacts.Trace.Mode != "on_failure" {
		t.Errorf("trace mode default = %q", s.Artifacts.Trace.Mode)
	}
	if s.Healing != "off" {
		t.Errorf("healing default = %q", s.Healing)
	}
}

// Dump must preserve comments and be value-preserving: parse(dump(S)) ≡ S.
func TestDumpRoundtrip(t *testing.T) {
	s, err := Load(strings.NewReader(sampleFlow))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var buf bytes.Buffer
	if err := Dump(s, &buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	dumped := buf.String()

	if !strings.Contains(dumped, "# login regression flow") {
		t.Error("document comment lost in dump")
	}
	if !strings.Contains(dumped, "# the login form") {
		t.Error("inline comment lost in dump")
	}

	reparsed, err := Load(strings.NewReader(dumped))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.Title != s.Title || reparsed.BaseURL != s.BaseURL {
		t.Error("roundtrip changed scalar fields")
	}
	if len(reparsed.FlatSteps()) != len(s.FlatSteps()) {
		t.Errorf("roundtrip changed step count: %d != %d", len(reparsed.FlatSteps()), len(s.FlatSteps()))
	}
	for i, fs := range reparsed.FlatSteps() {
		orig := s.FlatSteps()[i]
		if fs.Step.Type != orig.Step.Type {
			t.Errorf("step %d type changed: %q != %q", i, fs.Step.Type, orig.Step.Type)
		}
		if fs.Section != orig.Section {
			t.Errorf("step %d section changed: %q != %q", i, fs.Section, orig.Section)
		}
	}
}

func TestDumpBuiltScenario(t *testing.T) {
	s := &Scenario{
		Title:   "built",
		BaseURL: "https://x.test",
		Steps: []Step{
			{Type: "goto", Body: map[string]any{"url": "https://x.test/a"}, Raw: map[string]any{"url": "https://x.test/a"}},
		},
	}
	var buf bytes.Buffer
	if err := Dump(s, &buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	reparsed, err := Load(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("reparse built: %v", err)
	}
	if reparsed.Steps[0].String("url") != "https://x.test/a" {
		t.Error("built scenario did not roundtrip")
	}
}

func TestStepRejectsMultiKeyMapping(t *testing.T) {
	_, err := Load(strings.NewReader("title: t\nbaseUrl: https://x.test\nsteps:\n  - goto: /a\n    click: /b\n"))
	if err == nil {
		t.Fatal("expected error for multi-key step mapping")
	}
}

func TestStepLineNumbers(t *testing.T) {
	s, err := Load(strings.NewReader(sampleFlow))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Steps[0].Line == 0 {
		t.Error("step line number not recorded")
	}
	if s.Steps[1].Line <= s.Steps[0].Line {
		t.Errorf("line numbers not increasing: %d then %d", s.Steps[0].Line, s.Steps[1].Line)
	}
}
