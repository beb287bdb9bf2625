package importer

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/uiflow/uiflow/pkg/schema"
)

// Options configure a conversion.
type Options struct {
	Title       string
	WithExpects bool
	Sections    *SectionConfig
}

// Result is a finished conversion: the scenario plus everything that did
// not convert cleanly.
type Result struct {
	Scenario    *schema.Scenario
	Warnings    []Warning
	Passthrough []string // source lines kept as comments in the output
}

// Convert runs the full pipeline: parse → map → heuristics → scenario.
func Convert(source string, opts Options) (*Result, error) {
	actions, parseWarnings := Parse(source)
	if len(actions) == 0 {
		return nil, fmt.Errorf("no recognizable actions in recording")
	}

	stepMaps, mapWarnings := MapActions(actions)

	h := NewHeuristics(opts.WithExpects)
	if opts.Sections != nil {
		h.Sections = *opts.Sections
	}
	stepMaps, heuristicWarnings := h.Apply(stepMaps)

	title := opts.Title
	if title == "" {
		title = "Imported flow"
	}

	scenario := &schema.Scenario{
		Title:   title,
		BaseURL: extractBaseURL(actions),
		Steps:   mapsToSteps(stepMaps),
	}
	scenario.ApplyDefaults()

	var warnings []Warning
	warnings = append(warnings, parseWarnings...)
	warnings = append(warnings, mapWarnings...)
	warnings = append(warnings, heuristicWarnings...)

	var passthrough []string
	for _, w := range warnings {
		if w.Source != "" {
			passthrough = append(passthrough, fmt.Sprintf("line %d: %s", w.Line, w.Source))
		}
	}

	return &Result{Scenario: scenario, Warnings: warnings, Passthrough: passthrough}, nil
}

// ConvertFile converts a recorded script file and writes the flow YAML.
func ConvertFile(srcPath, destPath string, opts Options) (*Result, error) {
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if opts.Title == "" {
		opts.Title = "Imported from " + filepath.Base(srcPath)
	}
	result, err := Convert(string(source), opts)
	if err != nil {
		return nil, err
	}
	if err := WriteFlow(result, destPath); err != nil {
		return nil, err
	}
	return result, nil
}

// WriteFlow dumps the scenario, appending unconverted statements as a
// trailing comment block so nothing recorded is silently lost.
func WriteFlow(result *Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create flow directory: %w", err)
	}
	var buf bytes.Buffer
	if err := schema.Dump(result.Scenario, &buf); err != nil {
		return err
	}
	if len(result.Passthrough) > 0 {
		buf.WriteString("\n# statements the importer could not convert:\n")
		for _, line := range result.Passthrough {
			buf.WriteString("#   " + line + "\n")
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write flow: %w", err)
	}
	return nil
}

// extractBaseURL derives the scheme://host base from the first goto.
func extractBaseURL(actions []RawAction) string {
	for _, action := range actions {
		if action.Kind != "goto" {
			continue
		}
		raw, _ := action.Args["url"].(string)
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			continue
		}
		return u.Scheme + "://" + u.Host
	}
	return "http://localhost:3000"
}

// mapsToSteps converts the heuristic output into model steps.
func mapsToSteps(stepMaps []map[string]any) []schema.Step {
	var steps []schema.Step
	for _, m := range stepMaps {
		stepType, body := stepParts(m)
		if stepType == "section" {
			sec, _ := m["section"].(map[string]any)
			title, _ := sec["title"].(string)
			inner, _ := sec["steps"].([]map[string]any)
			steps = append(steps, schema.Step{
				Type:    "section",
				Section: &schema.Section{Title: title, Steps: mapsToSteps(inner)},
			})
			continue
		}
		if body == nil {
			continue
		}
		steps = append(steps, schema.Step{Type: stepType, Body: body, Raw: body})
	}
	return steps
}

// Slug derives the recordings file slug from a URL, used for
// recordings/raw_<slug>.py.
func Slug(rawURL string) string {
	u, err := url.Parse(rawURL)
	host := rawURL
	if err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	slug := strings.ToLower(nameSanitizeRe.ReplaceAllString(host, "-"))
	slug = strings.Trim(dashRunsRe.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		slug = "recording"
	}
	return slug
}
