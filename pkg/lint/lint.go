// Package lint provides static analysis over parsed scenarios. The linter
// never fails a scenario; it reports issues with severity, step identity
// and source line.
package lint

import (
	"fmt"
	"regexp"

	"github.com/uiflow/uiflow/pkg/schema"
)

// Severity levels for lint issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is a single lint finding.
type Issue struct {
	StepName  string `json:"step_name"`
	StepIndex int    `json:"step_index"`
	Line      int    `json:"line"`
	Severity  string `json:"severity"`
	Rule      string `json:"rule"`
	Message   string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s [%s] %s (step %q, line %d)", i.Severity, i.Rule, i.Message, i.StepName, i.Line)
}

// passwordRe detects password-ish field hints, case-insensitively,
// including the Japanese localizations the tool's users run into.
var passwordRe = regexp.MustCompile(`(?i)(password|パスワード|secret|token|credential|passphrase|api_key|apikey|pin|暗証)`)

// interactionSteps are the steps where a missing any fallback is worth an
// info-level nudge.
var interactionSteps = map[string]bool{
	"click": true, "dblclick": true, "fill": true, "press": true,
	"check": true, "uncheck": true, "selectOption": true,
}

// Lint applies every rule to every step, sections included.
func Lint(s *schema.Scenario) []Issue {
	var issues []Issue
	for idx, fs := range s.FlatSteps() {
		st := fs.Step
		for _, check := range []func(*schema.Step, int) *Issue{
			checkTextOnlySelector,
			checkMissingAnyFallback,
			checkMissingSecret,
		} {
			if issue := check(st, idx); issue != nil {
				issues = append(issues, *issue)
			}
		}
	}
	return issues
}

func stepName(st *schema.Step) string {
	if name := st.Name(); name != "" {
		return name
	}
	return st.Type
}

func stepBy(st *schema.Step) *schema.By {
	if st.Body == nil {
		return nil
	}
	by, err := st.By()
	if err != nil {
		return nil
	}
	return by
}

// checkTextOnlySelector warns on bare text selectors. Text used as a
// css filter or role name is fine.
func checkTextOnlySelector(st *schema.Step, idx int) *Issue {
	by := stepBy(st)
	if by == nil || by.Kind() != schema.ByText {
		return nil
	}
	return &Issue{
		StepName:  stepName(st),
		StepIndex: idx,
		Line:      st.Line,
		Severity:  SeverityWarning,
		Rule:      "text-only-selector",
		Message:   "bare text selector is unstable; prefer testId, role+name, or css+text",
	}
}

// checkMissingAnyFallback nudges interaction steps using a single
// non-testId selector toward an any fallback list.
func checkMissingAnyFallback(st *schema.Step, idx int) *Issue {
	if !interactionSteps[st.Type] {
		return nil
	}
	by := stepBy(st)
	if by == nil {
		return nil
	}
	if by.Kind() == schema.ByAny || by.Kind() == schema.ByTestID {
		return nil
	}
	return &Issue{
		StepName:  stepName(st),
		StepIndex: idx,
		Line:      st.Line,
		Severity:  SeverityInfo,
		Rule:      "missing-any-fallback",
		Message:   "single selector without any fallback; consider any: [...] for stability",
	}
}

// checkMissingSecret warns on fill steps whose selector smells like a
// password field but lack secret: true.
func checkMissingSecret(st *schema.Step, idx int) *Issue {
	if st.Type != "fill" || st.Secret() {
		return nil
	}

	var hints []string
	if name := st.Name(); name != "" {
		hints = append(hints, name)
	}
	if by := stepBy(st); by != nil {
		hints = append(hints, by.Name, by.Label, by.Placeholder, by.Text, by.TestID, by.CSS)
	}

	for _, hint := range hints {
		if hint != "" && passwordRe.MatchString(hint) {
			return &Issue{
				StepName:  stepName(st),
				StepIndex: idx,
				Line:      st.Line,
				Severity:  SeverityWarning,
				Rule:      "missing-secret",
				Message:   "fill targets a password-like field but lacks secret: true; the value will appear unmasked in artifacts",
			}
		}
	}
	return nil
}
