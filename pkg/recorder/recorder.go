// Package recorder shells out to the external recorder executable
// (playwright codegen) and hands the resulting script to the importer.
package recorder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/uiflow/uiflow/pkg/importer"
)

// Options configure a recording session.
type Options struct {
	URL      string
	Channel  string // chrome, chromium, msedge
	Viewport string // "1280,720"
	OutDir   string // recordings/

	// NoImport skips the automatic YAML conversion after recording.
	NoImport    bool
	WithExpects bool
	FlowPath    string // destination when auto-importing; derived when empty
}

// Result reports where the recording and (optionally) the flow landed.
type Result struct {
	ScriptPath string
	FlowPath   string
	Imported   bool
	ImportErr  error // non-nil when auto-import failed; the script is kept
}

// Record launches the recorder and optionally auto-imports its output.
// An import failure does not discard the recording: the raw script stays
// on disk and the error is reported for a manual import.
func Record(opts Options) (*Result, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("record requires a URL")
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = "recordings"
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create recordings directory: %w", err)
	}

	scriptPath := filepath.Join(outDir, "raw_"+importer.Slug(opts.URL)+".py")

	args := []string{"codegen", "--target", "python"}
	if opts.Viewport != "" {
		args = append(args, "--viewport-size="+opts.Viewport)
	}
	if opts.Channel != "" && opts.Channel != "chromium" {
		args = append(args, "--channel", opts.Channel)
	}
	args = append(args, "--output", scriptPath, opts.URL)

	cmd := exec.Command("playwright", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("recorder exited: %w", err)
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("recording cancelled: no script written")
	}

	result := &Result{ScriptPath: scriptPath}
	if opts.NoImport {
		return result, nil
	}

	flowPath := opts.FlowPath
	if flowPath == "" {
		flowPath = filepath.Join("flows", importer.Slug(opts.URL)+".yaml")
	}
	if _, err := importer.ConvertFile(scriptPath, flowPath, importer.Options{WithExpects: opts.WithExpects}); err != nil {
		result.ImportErr = err
		return result, nil
	}
	result.FlowPath = flowPath
	result.Imported = true
	return result, nil
}
