// Package runner drives scenario execution: lifecycle, per-step dispatch
// with hooks, artifact capture, error containment and result aggregation.
package runner

import (
	"time"
)

// StepResult is the outcome of executing a single step.
type StepResult struct {
	StepName       string        `json:"step_name"`
	StepType       string        `json:"step_type"`
	StepIndex      int           `json:"step_index"`
	Status         string        `json:"status"` // passed, failed, skipped
	Duration       time.Duration `json:"-"`
	DurationMS     float64       `json:"duration_ms"`
	Error          string        `json:"error,omitempty"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
	Section        string        `json:"section,omitempty"`
	Notes          []string      `json:"notes,omitempty"`
}

// ScenarioResult aggregates a whole run.
type ScenarioResult struct {
	Title        string        `json:"title"`
	Status       string        `json:"status"` // passed, failed
	Steps        []StepResult  `json:"steps"`
	Duration     time.Duration `json:"-"`
	DurationMS   float64       `json:"duration_ms"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	ArtifactsDir string        `json:"artifacts_dir"`
}

// Summary counts step results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Summarize tallies the step statuses.
func (r *ScenarioResult) Summarize() Summary {
	var s Summary
	for _, step := range r.Steps {
		s.Total++
		switch step.Status {
		case "passed":
			s.Passed++
		case "failed":
			s.Failed++
		case "skipped":
			s.Skipped++
		}
	}
	return s
}

// Passed reports whether every step passed (skipped steps do not fail a
// run).
func (r *ScenarioResult) Passed() bool {
	return r.Status == "passed"
}
