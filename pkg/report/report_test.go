package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/uiflow/uiflow/pkg/runner"
)

func sampleResult(dir string) *runner.ScenarioResult {
	return &runner.ScenarioResult{
		Title:        "checkout",
		Status:       "failed",
		DurationMS:   1234,
		StartedAt:    time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC),
		FinishedAt:   time.Date(2024, 4, 1, 9, 30, 2, 0, time.UTC),
		ArtifactsDir: dir,
		Steps: []runner.StepResult{
			{StepName: "open-shop", StepType: "goto", StepIndex: 0, Status: "passed", DurationMS: 300, Section: "setup"},
			{StepName: "add-to-cart", StepType: "click", StepIndex: 1, Status: "passed", DurationMS: 200, Section: "cart"},
			{
				StepName: "click-pay", StepType: "click", StepIndex: 2, Status: "failed",
				DurationMS:     700,
				Error:          `resolve role="button", name="Pay": no matching element`,
				ScreenshotPath: filepath.Join(dir, "screenshots", "0003_error-click-pay.jpg"),
				Section:        "cart",
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(sampleResult(dir), dir)
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc["status"] != "failed" {
		t.Errorf("status = %v", doc["status"])
	}
	steps := doc["steps"].([]any)
	if len(steps) != 3 {
		t.Fatalf("steps = %d", len(steps))
	}
	failing := steps[2].(map[string]any)
	if failing["error"] == "" || failing["screenshot_path"] == "" {
		t.Errorf("failing step incomplete: %v", failing)
	}
	// Screenshot paths are relative to the run dir.
	if strings.HasPrefix(failing["screenshot_path"].(string), "/") {
		t.Errorf("screenshot path not relativized: %v", failing["screenshot_path"])
	}
	summary := doc["summary"].(map[string]any)
	if summary["failed"].(float64) != 1 {
		t.Errorf("summary = %v", summary)
	}
}

// The HTML report shows sections, durations, and an expanded failure
// panel naming the failing selector.
func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteHTML(sampleResult(dir), dir)
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	html := string(data)
	for _, want := range []string{
		"checkout",
		"cart",                     // section heading
		"click-pay",                // failing step
		"failure-panel",            // expanded failure panel
		"name=&#34;Pay&#34;",       // the failing selector, escaped
		"no matching element",      // error message
		"0003_error-click-pay.jpg", // screenshot reference
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report.html missing %q", want)
		}
	}
}

func TestWriteJUnit(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJUnit(sampleResult(dir), dir)
	if err != nil {
		t.Fatalf("WriteJUnit: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	xml := string(data)
	if !strings.Contains(xml, `tests="3"`) || !strings.Contains(xml, `failures="1"`) {
		t.Errorf("suite attributes wrong:\n%s", xml)
	}
	if strings.Count(xml, "<testcase") != 3 {
		t.Errorf("testcase count wrong:\n%s", xml)
	}
	if !strings.Contains(xml, "no matching element") {
		t.Error("failure text missing")
	}
}

func TestReadJSONRoundtrip(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult(dir)
	if err := WriteAll(res, dir); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	loaded, err := ReadJSON(dir)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if loaded.Title != res.Title || loaded.Status != res.Status {
		t.Errorf("roundtrip changed result: %+v", loaded)
	}
	if len(loaded.Steps) != len(res.Steps) {
		t.Errorf("steps = %d", len(loaded.Steps))
	}
	// Re-rendering from the loaded result must succeed.
	if err := WriteAll(loaded, dir); err != nil {
		t.Fatalf("re-render: %v", err)
	}
}
