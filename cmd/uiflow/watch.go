package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/uiflow/uiflow/pkg/lint"
	"github.com/uiflow/uiflow/pkg/schema"
)

var watchCmd = &cobra.Command{
	Use:   "watch <flow.yaml>",
	Short: "Re-validate and lint a flow whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would
	// drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	checkOnce(path)
	fmt.Printf("%s watching %s (ctrl-c to stop)\n", styleDim.Render("…"), path)

	// Editors fire bursts of events per save; debounce them.
	var pending *time.Timer
	target, _ := filepath.Abs(path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if abs != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				checkOnce(path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "%s watch error: %v\n", styleWarn.Render("⚠"), err)
		}
	}
}

func checkOnce(path string) {
	fmt.Printf("\n%s %s\n", styleDim.Render(time.Now().Format("15:04:05")), path)
	s, errs := schema.ValidateFile(path)
	if len(errs) > 0 {
		printValidationErrors(path, errs)
		return
	}
	fmt.Printf("%s valid (%d steps)\n", stylePass.Render("✓"), len(s.FlatSteps()))
	for _, issue := range lint.Lint(s) {
		style := styleInfo
		if issue.Severity == lint.SeverityWarning {
			style = styleWarn
		}
		fmt.Printf("%s %s\n", style.Render(issue.Severity), issue)
	}
}
