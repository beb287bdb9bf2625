package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/uiflow/uiflow/pkg/runner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func result(title, status string) *runner.ScenarioResult {
	return &runner.ScenarioResult{
		Title:        title,
		Status:       status,
		DurationMS:   500,
		StartedAt:    time.Now(),
		ArtifactsDir: "artifacts/run-20240401-093000",
		Steps: []runner.StepResult{
			{StepName: "a", Status: "passed"},
			{StepName: "b", Status: status},
		},
	}
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	if err := store.Record(result("login", "passed")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(result("checkout", "failed")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.List("", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	// Newest first.
	if runs[0].Title != "checkout" {
		t.Errorf("order wrong: %v", runs)
	}
	if runs[0].Summary.Failed != 1 {
		t.Errorf("summary = %+v", runs[0].Summary)
	}
}

func TestListFiltersByTitle(t *testing.T) {
	store := openTestStore(t)
	store.Record(result("login", "passed"))
	store.Record(result("checkout", "passed"))
	store.Record(result("login", "failed"))

	runs, err := store.List("login", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("filtered runs = %d", len(runs))
	}
	for _, r := range runs {
		if r.Title != "login" {
			t.Errorf("filter leaked %q", r.Title)
		}
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		store.Record(result("flow", "passed"))
	}
	runs, err := store.List("", 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("limit ignored: %d", len(runs))
	}
}
