// Package report renders a ScenarioResult into JSON, HTML and JUnit XML
// files inside the run directory.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uiflow/uiflow/pkg/runner"
)

// document is the serialized report shape shared by the JSON and HTML
// renderers.
type document struct {
	Title      string              `json:"title"`
	Status     string              `json:"status"`
	DurationMS float64             `json:"duration_ms"`
	StartedAt  string              `json:"started_at"`
	FinishedAt string              `json:"finished_at"`
	Steps      []runner.StepResult `json:"steps"`
	Summary    runner.Summary      `json:"summary"`
}

func buildDocument(res *runner.ScenarioResult) document {
	steps := make([]runner.StepResult, len(res.Steps))
	copy(steps, res.Steps)
	for i := range steps {
		steps[i].ScreenshotPath = relativize(steps[i].ScreenshotPath, res.ArtifactsDir)
	}
	return document{
		Title:      res.Title,
		Status:     res.Status,
		DurationMS: res.DurationMS,
		StartedAt:  res.StartedAt.Format(time.RFC3339),
		FinishedAt: res.FinishedAt.Format(time.RFC3339),
		Steps:      steps,
		Summary:    res.Summarize(),
	}
}

func relativize(path, base string) string {
	if path == "" || base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// WriteJSON writes report.json into outDir.
func WriteJSON(res *runner.ScenarioResult, outDir string) (string, error) {
	doc := buildDocument(res)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(outDir, "report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report.json: %w", err)
	}
	return path, nil
}

// ReadJSON loads a previously written report.json back into a result so
// the reporter can be re-run over an existing run directory.
func ReadJSON(runDir string) (*runner.ScenarioResult, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "report.json"))
	if err != nil {
		return nil, fmt.Errorf("read report.json: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse report.json: %w", err)
	}
	res := &runner.ScenarioResult{
		Title:        doc.Title,
		Status:       doc.Status,
		Steps:        doc.Steps,
		DurationMS:   doc.DurationMS,
		ArtifactsDir: runDir,
	}
	if t, err := time.Parse(time.RFC3339, doc.StartedAt); err == nil {
		res.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, doc.FinishedAt); err == nil {
		res.FinishedAt = t
	}
	return res, nil
}

// WriteAll renders every report format into the run directory.
func WriteAll(res *runner.ScenarioResult, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if _, err := WriteJSON(res, outDir); err != nil {
		return err
	}
	if _, err := WriteHTML(res, outDir); err != nil {
		return err
	}
	if _, err := WriteJUnit(res, outDir); err != nil {
		return err
	}
	return nil
}
