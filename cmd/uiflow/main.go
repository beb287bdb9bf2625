package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uiflow/uiflow/pkg/history"
	"github.com/uiflow/uiflow/pkg/importer"
	"github.com/uiflow/uiflow/pkg/lint"
	"github.com/uiflow/uiflow/pkg/recorder"
	"github.com/uiflow/uiflow/pkg/report"
	"github.com/uiflow/uiflow/pkg/runner"
	"github.com/uiflow/uiflow/pkg/schema"
	"github.com/uiflow/uiflow/pkg/steps"
)

// Version is set at build time via ldflags.
var version = "dev"

const historyPath = ".uiflow/history.db"

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables that aren't already set in the environment. Lines are
// KEY=VALUE; comments (#) and blanks are skipped. The .env file is
// gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:     "uiflow",
	Short:   "Record, edit and replay browser test flows",
	Long:    "uiflow — record a browser workflow once, turn it into a readable YAML flow, and replay it deterministically with artifacts on every run.",
	Version: version,
}

// --- init ---

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Materialize the project folder layout",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	for _, sub := range []string{"flows", "recordings", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	configPath := filepath.Join(dir, "uiflow.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		content := "# uiflow project configuration\ndefault_base_url: http://localhost:3000\nartifacts_dir: artifacts\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	abs, _ := filepath.Abs(dir)
	fmt.Printf("%s project initialized: %s\n", stylePass.Render("✓"), abs)
	return nil
}

// --- record ---

var (
	recordChannel     string
	recordViewport    string
	recordNoImport    bool
	recordWithExpects bool
	recordOutput      string
)

var recordCmd = &cobra.Command{
	Use:   "record [url]",
	Short: "Record a browser workflow via the external recorder",
	Long:  "Invokes the external recorder (playwright codegen) and places its output under recordings/raw_<slug>.py. Unless --no-import is given, the recording is converted to a flow; a conversion failure keeps the raw script and prints the manual import command.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	url := ""
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		fmt.Print("URL to record: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read url: %w", err)
		}
		url = strings.TrimSpace(line)
	}

	res, err := recorder.Record(recorder.Options{
		URL:         url,
		Channel:     recordChannel,
		Viewport:    recordViewport,
		NoImport:    recordNoImport,
		WithExpects: recordWithExpects,
		FlowPath:    recordOutput,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s recording saved: %s\n", stylePass.Render("✓"), res.ScriptPath)
	if res.ImportErr != nil {
		fmt.Fprintf(os.Stderr, "%s conversion failed: %v\n", styleWarn.Render("⚠"), res.ImportErr)
		fmt.Fprintf(os.Stderr, "  convert manually with: uiflow import %s -o flows/flow.yaml\n", res.ScriptPath)
		return nil
	}
	if res.Imported {
		fmt.Printf("%s flow written: %s\n", stylePass.Render("✓"), res.FlowPath)
	}
	return nil
}

// --- import ---

var (
	importOutput      string
	importWithExpects bool
)

var importCmd = &cobra.Command{
	Use:   "import <recording.py>",
	Short: "Convert a recorded script into a flow YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	if importOutput == "" {
		return fmt.Errorf("--output is required")
	}
	result, err := importer.ConvertFile(args[0], importOutput, importer.Options{WithExpects: importWithExpects})
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", styleWarn.Render("⚠"), w)
	}
	fmt.Printf("%s flow written: %s (%d steps)\n", stylePass.Render("✓"), importOutput, len(result.Scenario.FlatSteps()))
	return nil
}

// --- run ---

var (
	runHeaded      bool
	runHeadless    bool
	runWorkers     int
	runSlowMo      int
	runStepTimeout int
	runFlowTimeout int
	runVars        []string
	runArtifacts   string
	runChannel     string
)

var runCmd = &cobra.Command{
	Use:   "run <flow.yaml> [more flows...]",
	Short: "Replay one or more flows",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	vars := make(map[string]string)
	for _, kv := range runVars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		vars[k] = v
	}

	scenarios := make([]*schema.Scenario, 0, len(args))
	for _, path := range args {
		s, errs := schema.ValidateFile(path)
		if len(errs) > 0 {
			printValidationErrors(path, errs)
			return fmt.Errorf("validation failed for %s", path)
		}
		scenarios = append(scenarios, s)
	}

	store, err := history.Open(historyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s history unavailable: %v\n", styleWarn.Render("⚠"), err)
		store = nil
	} else {
		defer store.Close()
	}

	cfg := runner.Config{
		Headed:          runHeaded && !runHeadless,
		SlowMo:          time.Duration(runSlowMo) * time.Millisecond,
		Channel:         runChannel,
		Workers:         runWorkers,
		ArtifactsDir:    runArtifacts,
		StepTimeout:     time.Duration(runStepTimeout) * time.Millisecond,
		ScenarioTimeout: time.Duration(runFlowTimeout) * time.Millisecond,
		Vars:            vars,
		Render: func(res *runner.ScenarioResult) error {
			return report.WriteAll(res, res.ArtifactsDir)
		},
	}
	if store != nil {
		cfg.Record = store.Record
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(steps.NewDefaultRegistry())
	results, err := r.RunAll(ctx, scenarios, cfg)
	if err != nil {
		return err
	}

	failed := false
	for _, res := range results {
		if res == nil || !res.Passed() {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("one or more flows failed")
	}
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <flow.yaml>",
	Short: "Validate a flow YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, errs := schema.ValidateFile(args[0])
	if len(errs) > 0 {
		printValidationErrors(args[0], errs)
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	fmt.Printf("%s %s is valid (%d steps)\n", stylePass.Render("✓"), s.Title, len(s.FlatSteps()))
	return nil
}

func printValidationErrors(path string, errs []*schema.ValidationError) {
	fmt.Fprintf(os.Stderr, "%s %s:\n", styleFail.Render("✗"), path)
	for i, e := range errs {
		fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
		}
	}
}

// --- lint ---

var lintJSON bool

var lintCmd = &cobra.Command{
	Use:   "lint <flow.yaml>",
	Short: "Report selector and secret anti-patterns in a flow",
	Args:  cobra.ExactArgs(1),
	RunE:  runLint,
}

func runLint(cmd *cobra.Command, args []string) error {
	s, errs := schema.ValidateFile(args[0])
	if s == nil {
		printValidationErrors(args[0], errs)
		return fmt.Errorf("cannot lint: flow does not parse")
	}

	issues := lint.Lint(s)
	if lintJSON {
		data, err := json.MarshalIndent(issues, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if len(issues) == 0 {
		fmt.Printf("%s no lint issues\n", stylePass.Render("✓"))
		return nil
	}
	for _, issue := range issues {
		style := styleInfo
		if issue.Severity == lint.SeverityWarning {
			style = styleWarn
		}
		fmt.Printf("%s %s\n", style.Render(issue.Severity), issue)
	}
	return nil
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <run-dir>",
	Short: "Re-render reports from an existing run directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	res, err := report.ReadJSON(args[0])
	if err != nil {
		return err
	}
	if err := report.WriteAll(res, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s reports regenerated in %s\n", stylePass.Render("✓"), args[0])
	return nil
}

// --- list-steps ---

var listStepsJSON bool

var listStepsCmd = &cobra.Command{
	Use:   "list-steps",
	Short: "Enumerate the step registry",
	RunE:  runListSteps,
}

func runListSteps(cmd *cobra.Command, args []string) error {
	registry := steps.NewDefaultRegistry()
	infos := registry.List()
	if listStepsJSON {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	for _, info := range infos {
		fmt.Printf("  %-24s %s %s\n", info.Name, styleDim.Render("["+info.Category+"]"), info.Description)
	}
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the flow JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&recordChannel, "channel", "c", "chrome", "browser channel (chrome / chromium / msedge)")
	recordCmd.Flags().StringVar(&recordViewport, "viewport", "1280,720", "viewport size (width,height)")
	recordCmd.Flags().BoolVar(&recordNoImport, "no-import", false, "record only; skip the YAML conversion")
	recordCmd.Flags().BoolVar(&recordWithExpects, "with-expects", false, "insert expectVisible after deterministic interactions")
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "flow output path (default flows/<slug>.yaml)")

	importCmd.Flags().StringVarP(&importOutput, "output", "o", "", "output flow YAML path")
	importCmd.Flags().BoolVar(&importWithExpects, "with-expects", false, "insert expectVisible after deterministic interactions")

	runCmd.Flags().BoolVar(&runHeaded, "headed", true, "show the browser")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without showing the browser")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 1, "number of flows to run concurrently")
	runCmd.Flags().IntVar(&runSlowMo, "slow-mo", 0, "delay between driver operations (ms)")
	runCmd.Flags().IntVar(&runStepTimeout, "step-timeout", 30000, "per-step timeout (ms)")
	runCmd.Flags().IntVar(&runFlowTimeout, "flow-timeout", 0, "per-flow timeout (ms), 0 = unlimited")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "override a scenario variable (key=value)")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "artifacts", "artifacts base directory")
	runCmd.Flags().StringVar(&runChannel, "channel", "", "browser channel (chrome / chromium / msedge)")

	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "emit issues as JSON")
	listStepsCmd.Flags().BoolVar(&listStepsJSON, "json", false, "emit the registry as JSON")

	rootCmd.AddCommand(initCmd, recordCmd, importCmd, runCmd, validateCmd, lintCmd, reportCmd, listStepsCmd, schemaCmd)
}
