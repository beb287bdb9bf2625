package importer

import (
	"regexp"
	"strings"
	"testing"
)

const loginScript = `from playwright.sync_api import Playwright, sync_playwright, expect

def run(playwright: Playwright) -> None:
    browser = playwright.chromium.launch(headless=False)
    context = browser.new_context()
    page = context.new_page()
    page.goto("https://example.com/login")
    page.get_by_label("Email").fill("u@e.com")
    page.get_by_label("Password").fill("p@ss")
    page.get_by_role("button", name="Sign in").click()
    context.close()
    browser.close()

with sync_playwright() as playwright:
    run(playwright)
`

// E1: the recorded login script converts to the four expected steps
// with the expected names and the password marked secret.
func TestConvertLoginRoundtrip(t *testing.T) {
	result, err := Convert(loginScript, Options{Title: "Imported flow"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	s := result.Scenario

	if s.BaseURL != "https://example.com" {
		t.Errorf("baseUrl = %q", s.BaseURL)
	}

	flat := s.FlatSteps()
	if len(flat) != 4 {
		t.Fatalf("got %d steps, want 4", len(flat))
	}

	wantTypes := []string{"goto", "fill", "fill", "click"}
	wantNames := []string{"navigate-to-example", "fill-email", "fill-password", "click-sign-in"}
	for i, fs := range flat {
		if fs.Step.Type != wantTypes[i] {
			t.Errorf("step %d type = %q, want %q", i, fs.Step.Type, wantTypes[i])
		}
		if got := fs.Step.Name(); got != wantNames[i] {
			t.Errorf("step %d name = %q, want %q", i, got, wantNames[i])
		}
	}

	if flat[1].Step.Secret() {
		t.Error("fill-email must not be secret")
	}
	if !flat[2].Step.Secret() {
		t.Error("fill-password must be secret")
	}
	secretWarned := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "secret") {
			secretWarned = true
		}
	}
	if !secretWarned {
		t.Error("secret detection must emit a warning")
	}

	by, err := flat[3].Step.By()
	if err != nil {
		t.Fatalf("click selector: %v", err)
	}
	if by.Role != "button" || by.Name != "Sign in" {
		t.Errorf("click selector = %s", by.Describe())
	}
}

// Property: every generated name is verb-object kebab-case and unique.
func TestAutoNameShapeAndUniqueness(t *testing.T) {
	script := strings.Join([]string{
		`page.goto("https://example.com/a")`,
		`page.get_by_role("button", name="Save").click()`,
		`page.get_by_role("button", name="Save").click()`,
		`page.get_by_test_id("cart-42").click()`,
		`page.get_by_placeholder("Search").fill("tea")`,
		`page.locator("#f").press("Enter")`,
	}, "\n")
	result, err := Convert(script, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	shape := regexp.MustCompile(`^[a-z]+(-[a-z0-9]+)+$`)
	seen := map[string]bool{}
	for _, fs := range result.Scenario.FlatSteps() {
		name := fs.Step.Name()
		if !shape.MatchString(name) {
			t.Errorf("name %q does not match verb-object shape", name)
		}
		if seen[name] {
			t.Errorf("duplicate name %q", name)
		}
		seen[name] = true
	}
}

func TestNormalizeLocatorIdempotent(t *testing.T) {
	cases := []string{"css=#email", "#email", "button.save  ", "css=css=x"}
	for _, in := range cases {
		once := NormalizeLocator(in)
		twice := NormalizeLocator(once)
		if once != twice {
			t.Errorf("normalize(%q) not idempotent: %q then %q", in, once, twice)
		}
	}
	if got := NormalizeLocator("css=#email"); got != "#email" {
		t.Errorf("css= prefix not stripped: %q", got)
	}
}

func TestParseExpectForms(t *testing.T) {
	script := strings.Join([]string{
		`expect(page.get_by_test_id("banner")).to_be_visible()`,
		`expect(page.get_by_role("alert")).to_contain_text("Saved")`,
		`expect(page).to_have_url("https://example.com/done")`,
	}, "\n")
	actions, warnings := Parse(script)
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	if actions[0].Kind != "expect_visible" {
		t.Errorf("action 0 kind = %q", actions[0].Kind)
	}
	if actions[1].Kind != "expect_text" || actions[1].Args["text"] != "Saved" {
		t.Errorf("action 1 = %+v", actions[1])
	}
	if actions[2].Kind != "expect_url" || actions[2].Args["url"] != "https://example.com/done" {
		t.Errorf("action 2 = %+v", actions[2])
	}
}

func TestParseIframeChain(t *testing.T) {
	actions, _ := Parse(`page.locator("iframe").content_frame.get_by_role("button", name="OK").click()`)
	if len(actions) != 1 {
		t.Fatalf("got %d actions", len(actions))
	}
	if actions[0].Frame != "iframe" {
		t.Errorf("frame = %q", actions[0].Frame)
	}
	if actions[0].LocatorChain[0] != "get_by_role" {
		t.Errorf("chain = %v", actions[0].LocatorChain)
	}
}

func TestUnknownShapeWarnsAndContinues(t *testing.T) {
	script := strings.Join([]string{
		`page.goto("https://example.com/a")`,
		`page.evaluate("() => window.scrollTo(0, 0)")`,
		`page.get_by_test_id("save").click()`,
	}, "\n")
	actions, warnings := Parse(script)
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2 (conversion must not abort)", len(actions))
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0].Source == "" {
		t.Error("warning must carry the source line for passthrough")
	}
}

func TestWithExpectsInsertsAfterDeterministicOnly(t *testing.T) {
	script := strings.Join([]string{
		`page.goto("https://example.com/a")`,
		`page.get_by_test_id("save").click()`,
		`page.locator("div.x").click()`,
	}, "\n")
	result, err := Convert(script, Options{WithExpects: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var types []string
	for _, fs := range result.Scenario.FlatSteps() {
		types = append(types, fs.Step.Type)
	}
	want := []string{"goto", "click", "expectVisible", "click"}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types = %v, want %v", types, want)
		}
	}
}

func TestAutoSectionOnPathChange(t *testing.T) {
	script := strings.Join([]string{
		`page.goto("https://example.com/login")`,
		`page.get_by_label("Email").fill("u@e.com")`,
		`page.get_by_label("Name").fill("u")`,
		`page.goto("https://example.com/dashboard")`,
		`page.get_by_test_id("widget").click()`,
		`page.get_by_test_id("other").click()`,
		`page.get_by_test_id("third").click()`,
	}, "\n")
	result, err := Convert(script, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	var sections []string
	for _, step := range result.Scenario.Steps {
		if step.Section != nil {
			sections = append(sections, step.Section.Title)
		}
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %v, want 2", sections)
	}
	if sections[0] != "login" || sections[1] != "dashboard" {
		t.Errorf("section titles = %v", sections)
	}

	// Grouping must not reorder: flattened steps keep source order.
	flat := result.Scenario.FlatSteps()
	if len(flat) != 7 {
		t.Fatalf("flattened %d steps, want 7", len(flat))
	}
	if flat[0].Step.Type != "goto" || flat[3].Step.Type != "goto" {
		t.Error("sectioning reordered steps")
	}
}

func TestShortFlowsAreNotSectioned(t *testing.T) {
	result, err := Convert(loginScript, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for _, step := range result.Scenario.Steps {
		if step.Section != nil {
			t.Error("short flows must not be sectioned")
		}
	}
}

func TestScrollAndSelectOption(t *testing.T) {
	script := strings.Join([]string{
		`page.mouse.wheel(0, 300)`,
		`page.locator("select#country").select_option("JP")`,
	}, "\n")
	actions, warnings := Parse(script)
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	if actions[0].Kind != "scroll" || actions[0].Args["deltaY"] != 300.0 {
		t.Errorf("scroll action = %+v", actions[0])
	}
	if actions[1].Kind != "select_option" || actions[1].Args["value"] != "JP" {
		t.Errorf("select action = %+v", actions[1])
	}
}
