package schema

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[2].click")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// selectorSteps are the step types whose payload carries a selector.
var selectorSteps = map[string]bool{
	"click": true, "dblclick": true, "fill": true, "press": true,
	"check": true, "uncheck": true, "selectOption": true,
	"waitFor": true, "waitForVisible": true, "waitForHidden": true,
	"expectVisible": true, "expectHidden": true, "expectText": true,
	"storeText": true, "storeAttr": true, "dumpDom": true,
	"scrollIntoView": true, "setDatePicker": true, "uploadFile": true,
}

// debugSteps may relax strictness; interaction and assertion steps may
// not.
var debugSteps = map[string]bool{
	"dumpDom": true, "screenshot": true,
}

// varRefRe matches well-formed variable references.
var varRefRe = regexp.MustCompile(`\$\{(env|vars)\.[a-zA-Z_][a-zA-Z0-9_]*\}`)

// anyRefRe matches any ${...} form, well-formed or not.
var anyRefRe = regexp.MustCompile(`\$\{[^}]*\}`)

// ValidateFile runs the full 3-phase validation pipeline on a flow file.
// Phase 1: structural (YAML decode into the model)
// Phase 2: semantic (JSON Schema validation of the document shape)
// Phase 3: domain (selector and policy rules)
func ValidateFile(path string) (*Scenario, []*ValidationError) {
	s, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return s, Validate(s)
}

// Validate runs the semantic and domain phases on a parsed scenario.
func Validate(s *Scenario) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(s)...)
	errs = append(errs, validateDomain(s)...)
	return errs
}

// validateSemantic validates the scenario against the generated JSON Schema.
func validateSemantic(s *Scenario) []*ValidationError {
	data, err := json.Marshal(s)
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("marshal for schema validation: %v", err), Severity: "error"}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("generate schema: %v", err), Severity: "error"}}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal schema: %v", err), Severity: "error"}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("flow-v0.json", schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("add schema resource: %v", err), Severity: "error"}}
	}
	sch, err := c.Compile("flow-v0.json")
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("compile schema: %v", err), Severity: "error"}}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal document: %v", err), Severity: "error"}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{Phase: "semantic", Message: err.Error(), Severity: "error"})
		}
		return errs
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var out []*sjsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, flattenValidationErrors(c)...)
	}
	return out
}

// validateDomain applies the rules structural typing cannot express.
func validateDomain(s *Scenario) []*ValidationError {
	var errs []*ValidationError

	add := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}

	if strings.TrimSpace(s.Title) == "" {
		add("title", "title must be non-empty")
	}
	if u, err := url.Parse(s.BaseURL); err != nil || !u.IsAbs() {
		add("baseUrl", fmt.Sprintf("baseUrl must be an absolute URL, got %q", s.BaseURL))
	}
	if len(s.Steps) == 0 {
		add("steps", "steps must be non-empty")
	}
	switch s.Healing {
	case "", "off", "safe":
	default:
		add("healing", fmt.Sprintf("healing must be off or safe, got %q", s.Healing))
	}
	if q := s.Artifacts.Screenshots.Quality; q != 0 && (q < 1 || q > 100) {
		add("artifacts.screenshots.quality", fmt.Sprintf("quality must be in [1,100], got %d", q))
	}

	for _, fs := range s.FlatSteps() {
		errs = append(errs, validateStep(fs.Step)...)
	}
	for i := range s.Hooks.BeforeEachStep {
		st := &s.Hooks.BeforeEachStep[i]
		if st.Section != nil {
			add("hooks.beforeEachStep", "hooks may not contain sections")
			continue
		}
		errs = append(errs, validateStep(st)...)
	}
	for i := range s.Hooks.AfterEachStep {
		st := &s.Hooks.AfterEachStep[i]
		if st.Section != nil {
			add("hooks.afterEachStep", "hooks may not contain sections")
			continue
		}
		errs = append(errs, validateStep(st)...)
	}
	return errs
}

func validateStep(st *Step) []*ValidationError {
	var errs []*ValidationError
	path := fmt.Sprintf("steps.%s", st.Type)
	add := func(msg string) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf("line %d: %s", st.Line, msg),
			Severity: "error",
		})
	}

	if selectorSteps[st.Type] {
		by, err := st.By()
		if err != nil {
			add(fmt.Sprintf("selector: %v", err))
		} else if err := by.Validate(); err != nil {
			add(fmt.Sprintf("selector: %v", err))
		} else if by.Strict != nil && !*by.Strict && !debugSteps[st.Type] {
			add("strict: false is permitted on debug steps only")
		}
	}

	// Variable references in string fields must use the two recognized
	// namespaces only.
	for key, val := range st.Body {
		str, ok := val.(string)
		if !ok {
			continue
		}
		stripped := varRefRe.ReplaceAllString(str, "")
		if m := anyRefRe.FindString(stripped); m != "" {
			add(fmt.Sprintf("field %q: unrecognized variable reference %s (use ${env.X} or ${vars.X})", key, m))
		}
	}
	return errs
}
