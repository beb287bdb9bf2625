package importer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// stepVerbs map step types onto the verb part of the generated name.
var stepVerbs = map[string]string{
	"goto":          "navigate-to",
	"click":         "click",
	"dblclick":      "dblclick",
	"fill":          "fill",
	"press":         "press",
	"check":         "check",
	"uncheck":       "uncheck",
	"selectOption":  "select",
	"scroll":        "scroll",
	"expectVisible": "expect-visible",
	"expectHidden":  "expect-hidden",
	"expectText":    "expect-text",
	"expectUrl":     "expect-url",
}

// secretRe detects password-ish identifiers, localized equivalents
// included.
var secretRe = regexp.MustCompile(`(?i)(password|パスワード|secret|token|トークン|credential|api_key|apikey)`)

// nameSanitizeRe strips everything but ASCII alphanumerics and hyphens.
var nameSanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

var dashRunsRe = regexp.MustCompile(`-{2,}`)

// nameMaxLen bounds generated step names.
const nameMaxLen = 40

// targetMaxLen bounds the visible-text part of a generated name.
const targetMaxLen = 30

// SectionConfig tunes auto-sectioning. The URL-change threshold and the
// submit lexicon are deliberately configurable rather than fixed.
type SectionConfig struct {
	// MinSteps disables sectioning for flows at or below this length.
	MinSteps int
	// SubmitWords close an input sequence when a click matches one.
	SubmitWords []string
}

// DefaultSectionConfig is the advisory default.
func DefaultSectionConfig() SectionConfig {
	return SectionConfig{
		MinSteps:    6,
		SubmitWords: []string{"submit", "sign in", "sign up", "log in", "login", "save", "search", "ok", "確定", "登録", "検索"},
	}
}

// Heuristics post-processes mapped steps: naming, secret detection,
// optional expect insertion, and advisory sectioning.
type Heuristics struct {
	WithExpects bool
	Sections    SectionConfig
}

// NewHeuristics builds the default pipeline.
func NewHeuristics(withExpects bool) *Heuristics {
	return &Heuristics{WithExpects: withExpects, Sections: DefaultSectionConfig()}
}

// Apply runs the pipeline in order: autoName, detectSecret,
// insertExpects (opt-in), autoSection. Step order is never changed;
// sectioning only groups.
func (h *Heuristics) Apply(steps []map[string]any) ([]map[string]any, []Warning) {
	var warnings []Warning

	h.autoName(steps)
	warnings = append(warnings, h.detectSecrets(steps)...)
	if h.WithExpects {
		steps = h.insertExpects(steps)
		h.autoName(steps) // name the inserted expects, dedup included
	}
	steps = h.autoSection(steps)
	return steps, warnings
}

// --- naming ---

// autoName gives every unnamed step a verb-object kebab-case name and
// dedups collisions with -2, -3 suffixes.
func (h *Heuristics) autoName(steps []map[string]any) {
	seen := map[string]int{}
	for _, step := range steps {
		stepType, body := stepParts(step)
		if body == nil {
			continue
		}
		if _, ok := body["name"]; ok {
			if name, _ := body["name"].(string); name != "" {
				seen[name]++
				continue
			}
		}
		name := h.nameFor(stepType, body)
		if name == "" {
			continue
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		body["name"] = name
	}
}

func (h *Heuristics) nameFor(stepType string, body map[string]any) string {
	verb, ok := stepVerbs[stepType]
	if !ok {
		return ""
	}

	switch stepType {
	case "goto", "expectUrl":
		rawURL, _ := body["url"].(string)
		return sanitizeName(verb + "-" + urlNamePart(rawURL))
	case "press":
		key, _ := body["key"].(string)
		if key == "" {
			key = "key"
		}
		return sanitizeName(verb + "-" + key)
	case "scroll":
		return sanitizeName(verb + "-page")
	}

	by, _ := body["by"].(map[string]any)
	target := discriminatingTarget(by)
	return sanitizeName(verb + "-" + target)
}

// urlNamePart picks the naming anchor for navigation: the first label of
// the host, falling back to the path for relative URLs.
func urlNamePart(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "" {
		if i := strings.IndexByte(host, '.'); i > 0 {
			return host[:i]
		}
		return host
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "root"
	}
	return strings.ReplaceAll(path, "/", "-")
}

// discriminatingTarget picks the most discriminating locator part:
// testId over role name over label over placeholder over visible text
// (truncated) over css.
func discriminatingTarget(by map[string]any) string {
	if by == nil {
		return "element"
	}
	if v, _ := by["testId"].(string); v != "" {
		return v
	}
	if _, ok := by["role"]; ok {
		if name, _ := by["name"].(string); name != "" {
			return name
		}
		role, _ := by["role"].(string)
		return role
	}
	if v, _ := by["label"].(string); v != "" {
		return v
	}
	if v, _ := by["placeholder"].(string); v != "" {
		return v
	}
	if v, _ := by["text"].(string); v != "" {
		return truncateTarget(v)
	}
	if v, _ := by["css"].(string); v != "" {
		return truncateTarget(v)
	}
	return "element"
}

func truncateTarget(s string) string {
	if len(s) > targetMaxLen {
		return s[:targetMaxLen]
	}
	return s
}

// sanitizeName reduces a raw name to lowercase ASCII alphanumerics and
// hyphens, bounded in length. A one-word result gains an "-x" object so
// the verb-object shape always holds.
func sanitizeName(raw string) string {
	name := nameSanitizeRe.ReplaceAllString(raw, "-")
	name = dashRunsRe.ReplaceAllString(name, "-")
	name = strings.Trim(strings.ToLower(name), "-")
	if len(name) > nameMaxLen {
		name = strings.Trim(name[:nameMaxLen], "-")
	}
	if name == "" {
		return ""
	}
	if !strings.Contains(name, "-") {
		name += "-x"
	}
	return name
}

// --- secret detection ---

// detectSecrets flags fill steps whose identifying strings smell like
// credentials, and reports each flag as a warning.
func (h *Heuristics) detectSecrets(steps []map[string]any) []Warning {
	var warnings []Warning
	for _, step := range steps {
		stepType, body := stepParts(step)
		if stepType != "fill" || body == nil {
			continue
		}
		if secret, _ := body["secret"].(bool); secret {
			continue
		}

		var hints []string
		if name, _ := body["name"].(string); name != "" {
			hints = append(hints, name)
		}
		if by, ok := body["by"].(map[string]any); ok {
			for _, key := range []string{"label", "placeholder", "name", "testId", "css"} {
				if v, _ := by[key].(string); v != "" {
					hints = append(hints, v)
				}
			}
		}
		for _, hint := range hints {
			if secretRe.MatchString(hint) {
				body["secret"] = true
				name, _ := body["name"].(string)
				warnings = append(warnings, Warning{
					Message: fmt.Sprintf("step %q looks like a credential field; marked secret: true", name),
				})
				break
			}
		}
	}
	return warnings
}

// --- expect insertion ---

// insertExpects appends an expectVisible after interactions whose
// locator is deterministic (testId or role+name). Never after
// navigation, and never when an assertion already follows.
func (h *Heuristics) insertExpects(steps []map[string]any) []map[string]any {
	var out []map[string]any
	for i, step := range steps {
		out = append(out, step)

		stepType, body := stepParts(step)
		if body == nil {
			continue
		}
		switch stepType {
		case "click", "fill", "press", "check", "uncheck", "selectOption":
		default:
			continue
		}

		if next := nextStepType(steps, i); strings.HasPrefix(next, "expect") {
			continue
		}

		by, _ := body["by"].(map[string]any)
		if !deterministicBy(by) {
			continue
		}
		expectBody := map[string]any{"by": copyMap(by)}
		out = append(out, map[string]any{"expectVisible": expectBody})
	}
	return out
}

func deterministicBy(by map[string]any) bool {
	if by == nil {
		return false
	}
	if v, _ := by["testId"].(string); v != "" {
		return true
	}
	role, _ := by["role"].(string)
	name, _ := by["name"].(string)
	return role != "" && name != ""
}

// --- sectioning ---

// autoSection groups consecutive steps into sections at navigation path
// changes and after submit-like clicks. Grouping is advisory: no step is
// reordered or dropped.
func (h *Heuristics) autoSection(steps []map[string]any) []map[string]any {
	if len(steps) <= h.Sections.MinSteps {
		return steps
	}

	type boundary struct {
		index int
		title string
	}
	var boundaries []boundary
	lastPath := ""
	inputRun := 0
	for i, step := range steps {
		stepType, body := stepParts(step)
		if body == nil {
			continue
		}
		switch stepType {
		case "goto":
			rawURL, _ := body["url"].(string)
			path := urlPath(rawURL)
			if path != lastPath {
				boundaries = append(boundaries, boundary{index: i, title: sectionTitle(path)})
				lastPath = path
			}
			inputRun = 0
		case "fill", "check", "uncheck", "selectOption":
			inputRun++
		case "click", "press":
			// An input sequence closed by a submit-like action ends the
			// current section.
			if inputRun > 0 && i+1 < len(steps) && h.isSubmitLike(stepType, body) {
				title := "after-submit"
				if name, _ := body["name"].(string); name != "" {
					title = "after-" + name
				}
				boundaries = append(boundaries, boundary{index: i + 1, title: title})
			}
			inputRun = 0
		default:
			inputRun = 0
		}
	}
	if len(boundaries) <= 1 {
		return steps
	}

	var out []map[string]any
	if boundaries[0].index > 0 {
		out = append(out, steps[:boundaries[0].index]...)
	}
	for bi, b := range boundaries {
		end := len(steps)
		if bi+1 < len(boundaries) {
			end = boundaries[bi+1].index
		}
		if end <= b.index {
			continue
		}
		out = append(out, map[string]any{
			"section": map[string]any{
				"title": b.title,
				"steps": steps[b.index:end],
			},
		})
	}
	return out
}

// isSubmitLike matches a click/press against the submit lexicon.
func (h *Heuristics) isSubmitLike(stepType string, body map[string]any) bool {
	if stepType == "press" {
		key, _ := body["key"].(string)
		return key == "Enter"
	}
	var hints []string
	if by, ok := body["by"].(map[string]any); ok {
		for _, key := range []string{"name", "text", "label", "testId"} {
			if v, _ := by[key].(string); v != "" {
				hints = append(hints, v)
			}
		}
	}
	for _, hint := range hints {
		lower := strings.ToLower(hint)
		for _, word := range h.Sections.SubmitWords {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		return "/"
	}
	return path
}

func sectionTitle(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "home"
	}
	return strings.ReplaceAll(trimmed, "/", " ")
}

// --- shared helpers ---

func stepParts(step map[string]any) (string, map[string]any) {
	for key, value := range step {
		if key == "section" {
			return "section", nil
		}
		body, _ := value.(map[string]any)
		return key, body
	}
	return "", nil
}

func nextStepType(steps []map[string]any, i int) string {
	if i+1 >= len(steps) {
		return ""
	}
	t, _ := stepParts(steps[i+1])
	return t
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
