// Package importer lifts a recorded Playwright codegen script into an
// intermediate action stream and emits a semantically equivalent,
// readable scenario.
package importer

import (
	"fmt"
	"strconv"
	"strings"
)

// RawAction is one recognized driver call from the recorded script.
type RawAction struct {
	Kind         string         // goto, click, fill, press, check, uncheck, select_option, scroll, expect_visible, expect_hidden, expect_text, expect_url
	LocatorChain []string       // e.g. [get_by_role, button, name=Sign in]
	Args         map[string]any // url, value, key, text, deltaX, deltaY
	Line         int
	Frame        string // iframe selector for content_frame chains
}

// Warning is a non-fatal diagnostic from the conversion.
type Warning struct {
	Line    int
	Message string
	Source  string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// locatorMethods are the calls that derive locators.
var locatorMethods = map[string]bool{
	"get_by_role": true, "get_by_test_id": true, "get_by_label": true,
	"get_by_placeholder": true, "get_by_text": true, "locator": true,
	"nth": true, "filter": true, "first": true, "last": true,
}

// actionMethods are the terminal interaction calls.
var actionMethods = map[string]string{
	"click":         "click",
	"dblclick":      "dblclick",
	"fill":          "fill",
	"press":         "press",
	"check":         "check",
	"uncheck":       "uncheck",
	"select_option": "select_option",
}

// expectMethods map assertion calls to action kinds.
var expectMethods = map[string]string{
	"to_be_visible":   "expect_visible",
	"to_be_hidden":    "expect_hidden",
	"to_have_text":    "expect_text",
	"to_contain_text": "expect_text",
	"to_have_url":     "expect_url",
}

// scaffolding lines the recorder emits around the interesting statements.
var scaffoldPrefixes = []string{
	"import ", "from ", "def ", "with ", "if ", "return", ")", "#",
	"browser =", "browser.", "context =", "context.", "page =", "playwright",
	"run(", "page.close", "expect.set_options",
}

// Parse walks the recorded script statement by statement and synthesizes
// one RawAction per recognized call. Unknown call shapes produce a
// warning and are carried through as passthrough comments; they never
// abort the conversion.
func Parse(source string) ([]RawAction, []Warning) {
	var actions []RawAction
	var warnings []Warning

	for i, rawLine := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(rawLine)
		if line == "" || isScaffold(line) {
			continue
		}

		stmt, err := parseStatement(line)
		if err != nil {
			if strings.HasPrefix(line, "page.") || strings.HasPrefix(line, "expect(") {
				warnings = append(warnings, Warning{Line: lineNo, Message: fmt.Sprintf("unrecognized statement: %v", err), Source: line})
			}
			continue
		}

		action, ok, why := recognize(stmt, lineNo)
		if !ok {
			if why != "" {
				warnings = append(warnings, Warning{Line: lineNo, Message: why, Source: line})
			}
			continue
		}
		actions = append(actions, action)
	}
	return actions, warnings
}

func isScaffold(line string) bool {
	for _, prefix := range scaffoldPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// --- statement model ---

// call is one link in a dotted call chain: name(args, kw=...) or a bare
// attribute access (Args nil, NoCall true).
type call struct {
	Name   string
	Args   []string
	Kwargs [][2]string // ordered key/value pairs
	NoCall bool
}

// statement is a full dotted chain, e.g.
// expect(page.get_by_role("button")).to_be_visible()
// is root "expect" with one argument (a nested statement) plus a chain.
type statement struct {
	Root       string
	RootArg    *statement // nested chain inside root(...) for expect()
	RootStr    string     // plain string argument of the root call
	Chain      []call
	IsRootCall bool
}

// --- recognizer ---

func recognize(stmt *statement, line int) (RawAction, bool, string) {
	// expect(...) assertions
	if stmt.Root == "expect" && stmt.IsRootCall {
		return recognizeExpect(stmt, line)
	}

	if stmt.Root != "page" {
		return RawAction{}, false, ""
	}

	// page.mouse.wheel(dx, dy)
	if len(stmt.Chain) == 2 && stmt.Chain[0].Name == "mouse" && stmt.Chain[1].Name == "wheel" {
		args := stmt.Chain[1].Args
		dx, dy := 0.0, 0.0
		if len(args) > 0 {
			dx, _ = strconv.ParseFloat(args[0], 64)
		}
		if len(args) > 1 {
			dy, _ = strconv.ParseFloat(args[1], 64)
		}
		return RawAction{Kind: "scroll", Args: map[string]any{"deltaX": dx, "deltaY": dy}, Line: line}, true, ""
	}

	// page.goto(url)
	if len(stmt.Chain) == 1 && stmt.Chain[0].Name == "goto" {
		args := map[string]any{}
		if len(stmt.Chain[0].Args) > 0 {
			args["url"] = stmt.Chain[0].Args[0]
		}
		return RawAction{Kind: "goto", Args: args, Line: line}, true, ""
	}

	// page.<locator chain>.<action>()
	if len(stmt.Chain) >= 2 {
		last := stmt.Chain[len(stmt.Chain)-1]
		kind, ok := actionMethods[last.Name]
		if !ok {
			return RawAction{}, false, fmt.Sprintf("unsupported page call %q", last.Name)
		}
		chain, frame, err := locatorChain(stmt.Chain[:len(stmt.Chain)-1])
		if err != nil {
			return RawAction{}, false, err.Error()
		}
		args := actionArgs(last)
		return RawAction{Kind: kind, LocatorChain: chain, Args: args, Line: line, Frame: frame}, true, ""
	}

	return RawAction{}, false, "unsupported page call shape"
}

func recognizeExpect(stmt *statement, line int) (RawAction, bool, string) {
	if len(stmt.Chain) != 1 {
		return RawAction{}, false, "unsupported expect chain"
	}
	assertion := stmt.Chain[0]
	kind, ok := expectMethods[assertion.Name]
	if !ok {
		return RawAction{}, false, fmt.Sprintf("unsupported assertion %q", assertion.Name)
	}

	args := map[string]any{}
	switch kind {
	case "expect_url":
		if len(assertion.Args) > 0 {
			args["url"] = assertion.Args[0]
		}
	case "expect_text":
		if len(assertion.Args) > 0 {
			args["text"] = assertion.Args[0]
		}
	}

	// expect(page).to_have_url(...)
	if stmt.RootArg != nil && stmt.RootArg.Root == "page" && len(stmt.RootArg.Chain) == 0 {
		if kind != "expect_url" {
			return RawAction{}, false, fmt.Sprintf("assertion %q needs a locator, got page", assertion.Name)
		}
		return RawAction{Kind: kind, Args: args, Line: line}, true, ""
	}

	// expect(page.<locator chain>).to_xxx()
	if stmt.RootArg == nil || stmt.RootArg.Root != "page" {
		return RawAction{}, false, "expect argument is not a page locator"
	}
	chain, frame, err := locatorChain(stmt.RootArg.Chain)
	if err != nil {
		return RawAction{}, false, err.Error()
	}
	return RawAction{Kind: kind, LocatorChain: chain, Args: args, Line: line, Frame: frame}, true, ""
}

// locatorChain flattens the call chain into the RawAction form,
// extracting a content_frame iframe hop when present.
func locatorChain(calls []call) ([]string, string, error) {
	var chain []string
	frame := ""

	i := 0
	// page.locator("iframe").content_frame.<...> scopes into a frame.
	if len(calls) >= 2 && calls[0].Name == "locator" && calls[1].Name == "content_frame" && calls[1].NoCall {
		if len(calls[0].Args) > 0 {
			frame = calls[0].Args[0]
		}
		i = 2
	}

	for ; i < len(calls); i++ {
		c := calls[i]
		if !locatorMethods[c.Name] {
			return nil, "", fmt.Errorf("unsupported locator method %q", c.Name)
		}
		chain = append(chain, c.Name)
		for _, arg := range c.Args {
			chain = append(chain, arg)
		}
		for _, kw := range c.Kwargs {
			chain = append(chain, kw[0]+"="+kw[1])
		}
	}
	if len(chain) == 0 {
		return nil, "", fmt.Errorf("empty locator chain")
	}
	return chain, frame, nil
}

func actionArgs(c call) map[string]any {
	args := map[string]any{}
	switch c.Name {
	case "fill", "select_option":
		if len(c.Args) > 0 {
			args["value"] = c.Args[0]
		}
	case "press":
		if len(c.Args) > 0 {
			args["key"] = c.Args[0]
		}
	}
	return args
}
