package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// --- param schemas ---

// ByParams is the common shape of element-targeting payloads.
type ByParams struct {
	By     *schema.By `json:"by"`
	Name   string     `json:"name,omitempty"`
	Frame  string     `json:"frame,omitempty"`
	Strict *bool      `json:"strict,omitempty"`
}

type GotoParams struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type MarkerParams struct {
	Name string `json:"name,omitempty"`
}

type FillParams struct {
	ByParams
	Value  string `json:"value"`
	Secret bool   `json:"secret,omitempty"`
}

type PressParams struct {
	ByParams
	Key string `json:"key"`
}

type SelectOptionParams struct {
	ByParams
	Value string `json:"value"`
}

type ScrollParams struct {
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
	Name   string  `json:"name,omitempty"`
}

type WaitForParams struct {
	ByParams
	State   string `json:"state,omitempty"` // visible, hidden, attached, detached
	Timeout int    `json:"timeout,omitempty"`
}

type WaitTimeoutParams struct {
	Timeout int    `json:"timeout,omitempty"`
	Name    string `json:"name,omitempty"`
}

type ExpectTextParams struct {
	ByParams
	Text string `json:"text"`
}

type ExpectURLParams struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type StoreTextParams struct {
	ByParams
	VarName string `json:"varName"`
}

type StoreAttrParams struct {
	ByParams
	Attr    string `json:"attr"`
	VarName string `json:"varName"`
}

type LogParams struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

type StoragePathParams struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// --- navigation ---

type gotoHandler struct{}

func (gotoHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	url := stringParam(params, "url")
	if url == "" {
		return fmt.Errorf("goto requires a url")
	}
	sc.logf("goto: %s", url)
	if err := page.Goto(url); err != nil {
		return err
	}
	// Navigation is not done until the DOM is ready; the next step must
	// not dispatch before this signal.
	return page.WaitForLoadState("domcontentloaded")
}

func (gotoHandler) Schema() any { return &GotoParams{} }

type backHandler struct{}

func (backHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	sc.logf("back")
	return page.Back()
}

func (backHandler) Schema() any { return &MarkerParams{} }

type reloadHandler struct{}

func (reloadHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	sc.logf("reload")
	return page.Reload()
}

func (reloadHandler) Schema() any { return &MarkerParams{} }

// --- interaction ---

type clickHandler struct{}

func (clickHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Click()
}

func (clickHandler) Schema() any { return &ByParams{} }

type dblclickHandler struct{}

func (dblclickHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Dblclick()
}

func (dblclickHandler) Schema() any { return &ByParams{} }

type fillHandler struct{}

func (fillHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Fill(stringParam(params, "value"))
}

func (fillHandler) Schema() any { return &FillParams{} }

type pressHandler struct{}

func (pressHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	key := stringParam(params, "key")
	if key == "" {
		return fmt.Errorf("press requires a key")
	}
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Press(key)
}

func (pressHandler) Schema() any { return &PressParams{} }

type checkHandler struct{}

func (checkHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Check()
}

func (checkHandler) Schema() any { return &ByParams{} }

type uncheckHandler struct{}

func (uncheckHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.Uncheck()
}

func (uncheckHandler) Schema() any { return &ByParams{} }

type selectOptionHandler struct{}

func (selectOptionHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.SelectOption(stringParam(params, "value"))
}

func (selectOptionHandler) Schema() any { return &SelectOptionParams{} }

type scrollHandler struct{}

func (scrollHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	return page.Wheel(floatParam(params, "deltaX"), floatParam(params, "deltaY"))
}

func (scrollHandler) Schema() any { return &ScrollParams{} }

type scrollIntoViewHandler struct{}

func (scrollIntoViewHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	return loc.ScrollIntoView()
}

func (scrollIntoViewHandler) Schema() any { return &ByParams{} }

// --- waits ---

type waitForHandler struct{}

func (waitForHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	by, err := byParam(params)
	if err != nil {
		return err
	}
	loc, err := buildUnresolved(page, params, by)
	if err != nil {
		return err
	}
	state := stringParam(params, "state")
	if state == "" {
		state = "visible"
	}
	return loc.WaitFor(state, timeoutParam(params, sc))
}

func (waitForHandler) Schema() any { return &WaitForParams{} }

type waitForVisibleHandler struct{}

func (waitForVisibleHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	return waitForState(page, params, sc, "visible")
}

func (waitForVisibleHandler) Schema() any { return &WaitForParams{} }

type waitForHiddenHandler struct{}

func (waitForHiddenHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	return waitForState(page, params, sc, "hidden")
}

func (waitForHiddenHandler) Schema() any { return &WaitForParams{} }

type waitForNetworkIdleHandler struct{}

func (waitForNetworkIdleHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	return page.WaitForLoadState("networkidle")
}

func (waitForNetworkIdleHandler) Schema() any { return &WaitTimeoutParams{} }

// buildUnresolved maps the selector onto a locator without the strict
// resolution pass — waits apply their own state predicate.
func buildUnresolved(page driver.Page, params map[string]any, by *schema.By) (driver.Locator, error) {
	if by.Kind() == schema.ByAny {
		return nil, fmt.Errorf("wait steps take a single selector, not any")
	}
	return resolverBuild(target(page, params), by)
}

func waitForState(page driver.Page, params map[string]any, sc *Context, state string) error {
	by, err := byParam(params)
	if err != nil {
		return err
	}
	loc, err := buildUnresolved(page, params, by)
	if err != nil {
		return err
	}
	return loc.WaitFor(state, timeoutParam(params, sc))
}

// --- assertions ---

type expectVisibleHandler struct{}

func (expectVisibleHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return &AssertionError{Msg: "element not visible", Err: err}
	}
	visible, err := loc.IsVisible()
	if err != nil {
		return err
	}
	if !visible {
		return &AssertionError{Msg: "element resolved but is not visible"}
	}
	return nil
}

func (expectVisibleHandler) Schema() any { return &ByParams{} }

type expectHiddenHandler struct{}

func (expectHiddenHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	by, err := byParam(params)
	if err != nil {
		return err
	}
	loc, err := buildUnresolved(page, params, by)
	if err != nil {
		return err
	}
	if err := loc.WaitFor("hidden", timeoutParam(params, sc)); err != nil {
		return &AssertionError{Msg: "element did not become hidden", Err: err}
	}
	return nil
}

func (expectHiddenHandler) Schema() any { return &ByParams{} }

type expectTextHandler struct{}

func (expectTextHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	want := stringParam(params, "text")
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return &AssertionError{Msg: "element not found for text assertion", Err: err}
	}
	got, err := loc.TextContent()
	if err != nil {
		return err
	}
	if !strings.Contains(got, want) {
		return &AssertionError{Msg: fmt.Sprintf("text %q not found in %q", want, truncate(got, 120))}
	}
	return nil
}

func (expectTextHandler) Schema() any { return &ExpectTextParams{} }

type expectURLHandler struct{}

func (expectURLHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	pattern := stringParam(params, "url")
	current := page.URL()
	re, err := regexp.Compile(pattern)
	if err != nil {
		// Not a regex — fall back to substring matching.
		if strings.Contains(current, pattern) {
			return nil
		}
		return &AssertionError{Msg: fmt.Sprintf("url %q does not contain %q", current, pattern)}
	}
	if !re.MatchString(current) {
		return &AssertionError{Msg: fmt.Sprintf("url %q does not match %q", current, pattern)}
	}
	return nil
}

func (expectURLHandler) Schema() any { return &ExpectURLParams{} }

// --- capture ---

type storeTextHandler struct{}

func (storeTextHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	varName := stringParam(params, "varName")
	if varName == "" {
		return fmt.Errorf("storeText requires varName")
	}
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	text, err := loc.TextContent()
	if err != nil {
		return err
	}
	sc.logf("storeText: vars.%s = %q", varName, truncate(text, 80))
	sc.Vars.SetVar(varName, text)
	return nil
}

func (storeTextHandler) Schema() any { return &StoreTextParams{} }

type storeAttrHandler struct{}

func (storeAttrHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	varName := stringParam(params, "varName")
	attr := stringParam(params, "attr")
	if varName == "" || attr == "" {
		return fmt.Errorf("storeAttr requires attr and varName")
	}
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	value, err := loc.GetAttribute(attr)
	if err != nil {
		return err
	}
	sc.logf("storeAttr: vars.%s = %s[%s]", varName, attr, truncate(value, 80))
	sc.Vars.SetVar(varName, value)
	return nil
}

func (storeAttrHandler) Schema() any { return &StoreAttrParams{} }

// --- debug ---

type screenshotHandler struct{}

func (screenshotHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	name := stringParam(params, "name")
	if name == "" {
		name = "screenshot"
	}
	if sc.TakeScreenshot == nil {
		return fmt.Errorf("no artifact manager attached for screenshot step")
	}
	path, err := sc.TakeScreenshot(name)
	if err != nil {
		return err
	}
	sc.logf("screenshot: %s", path)
	return nil
}

func (screenshotHandler) Schema() any { return &MarkerParams{} }

type logHandler struct{}

func (logHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	sc.logf("log: %s", stringParam(params, "message"))
	return nil
}

func (logHandler) Schema() any { return &LogParams{} }

type dumpDomHandler struct{}

func (dumpDomHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	html, err := loc.InnerHTML()
	if err != nil {
		return err
	}
	sc.logf("dumpDom:\n%s", html)
	return nil
}

func (dumpDomHandler) Schema() any { return &ByParams{} }

// --- session ---

type useStorageStateHandler struct{}

func (useStorageStateHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	path := stringParam(params, "path")
	if path == "" {
		return fmt.Errorf("useStorageState requires a path")
	}
	sc.logf("useStorageState: %s", path)
	return page.Context().RestoreStorageState(path)
}

func (useStorageStateHandler) Schema() any { return &StoragePathParams{} }

type saveStorageStateHandler struct{}

func (saveStorageStateHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	path := stringParam(params, "path")
	if path == "" {
		return fmt.Errorf("saveStorageState requires a path")
	}
	sc.logf("saveStorageState: %s", path)
	return page.Context().SaveStorageState(path)
}

func (saveStorageStateHandler) Schema() any { return &StoragePathParams{} }

// --- registration ---

func registerBuiltins(r *Registry) {
	r.Register("goto", gotoHandler{}, Info{Description: "navigate to a URL and wait for DOM content loaded", Category: "navigation"})
	r.Register("back", backHandler{}, Info{Description: "browser history back", Category: "navigation"})
	r.Register("reload", reloadHandler{}, Info{Description: "reload the current page", Category: "navigation"})

	r.Register("click", clickHandler{}, Info{Description: "click an element", Category: "action"})
	r.Register("dblclick", dblclickHandler{}, Info{Description: "double-click an element", Category: "action"})
	r.Register("fill", fillHandler{}, Info{Description: "fill an input with a value", Category: "action"})
	r.Register("press", pressHandler{}, Info{Description: "press a key on an element", Category: "action"})
	r.Register("check", checkHandler{}, Info{Description: "check a checkbox", Category: "action"})
	r.Register("uncheck", uncheckHandler{}, Info{Description: "uncheck a checkbox", Category: "action"})
	r.Register("selectOption", selectOptionHandler{}, Info{Description: "select an option from a native select", Category: "action"})
	r.Register("scroll", scrollHandler{}, Info{Description: "scroll by mouse wheel deltas", Category: "action"})
	r.Register("scrollIntoView", scrollIntoViewHandler{}, Info{Description: "scroll an element into the viewport", Category: "action"})

	r.Register("waitFor", waitForHandler{}, Info{Description: "wait until an element reaches a state", Category: "wait"})
	r.Register("waitForVisible", waitForVisibleHandler{}, Info{Description: "wait until an element is visible", Category: "wait"})
	r.Register("waitForHidden", waitForHiddenHandler{}, Info{Description: "wait until an element is hidden", Category: "wait"})
	r.Register("waitForNetworkIdle", waitForNetworkIdleHandler{}, Info{Description: "wait for network idle", Category: "wait"})

	r.Register("expectVisible", expectVisibleHandler{}, Info{Description: "assert an element is visible", Category: "validation"})
	r.Register("expectHidden", expectHiddenHandler{}, Info{Description: "assert an element is hidden", Category: "validation"})
	r.Register("expectText", expectTextHandler{}, Info{Description: "assert an element contains text", Category: "validation"})
	r.Register("expectUrl", expectURLHandler{}, Info{Description: "assert the page URL matches a pattern", Category: "validation"})

	r.Register("storeText", storeTextHandler{}, Info{Description: "store an element's text in a variable", Category: "retrieval"})
	r.Register("storeAttr", storeAttrHandler{}, Info{Description: "store an element's attribute in a variable", Category: "retrieval"})

	r.Register("screenshot", screenshotHandler{}, Info{Description: "take a screenshot", Category: "debug"})
	r.Register("log", logHandler{}, Info{Description: "write a message to the run log", Category: "debug"})
	r.Register("dumpDom", dumpDomHandler{}, Info{Description: "dump an element's DOM to the run log", Category: "debug"})

	r.Register("useStorageState", useStorageStateHandler{}, Info{Description: "restore a saved storage state", Category: "session"})
	r.Register("saveStorageState", saveStorageStateHandler{}, Info{Description: "save the current storage state", Category: "session"})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// jsonBody renders a response body that may be a mapping or a string.
func jsonBody(v any) string {
	switch b := v.(type) {
	case string:
		return b
	case nil:
		return ""
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Sprintf("%v", b)
		}
		return string(data)
	}
}
