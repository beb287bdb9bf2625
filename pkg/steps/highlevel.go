package steps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// --- param schemas ---

type SelectOverlayOptionParams struct {
	Open       *schema.By `json:"open"`
	List       *schema.By `json:"list"`
	OptionText string     `json:"optionText"`
	Name       string     `json:"name,omitempty"`
}

type SetDatePickerParams struct {
	ByParams
	Date   string `json:"date"`
	Format string `json:"format,omitempty"`
}

type UploadFileParams struct {
	ByParams
	FilePath string `json:"filePath"`
}

type WaitForToastParams struct {
	Text    string `json:"text"`
	Timeout int    `json:"timeout,omitempty"`
	Name    string `json:"name,omitempty"`
}

type APIMockParams struct {
	URL      string          `json:"url"`
	Method   string          `json:"method,omitempty"`
	Response APIMockResponse `json:"response"`
	Name     string          `json:"name,omitempty"`
}

type APIMockResponse struct {
	Status int `json:"status,omitempty"`
	Body   any `json:"body"`
}

type RouteStubParams struct {
	URL     string `json:"url"`
	Handler string `json:"handler"`
	Name    string `json:"name,omitempty"`
}

// --- selectOverlayOption ---

// selectOverlayOptionHandler encapsulates the open → wait → pick dance
// for dynamically rendered overlays: click the trigger, wait for the list
// container to become visible, then strict-match the option by its
// visible text inside the container.
type selectOverlayOptionHandler struct{}

func (selectOverlayOptionHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	openBy, err := namedByParam(params, "open")
	if err != nil {
		return err
	}
	listBy, err := namedByParam(params, "list")
	if err != nil {
		return err
	}
	optionText := stringParam(params, "optionText")
	if optionText == "" {
		return fmt.Errorf("selectOverlayOption requires optionText")
	}

	sc.logf("selectOverlayOption: open=%s list=%s option=%q", openBy.Describe(), listBy.Describe(), optionText)

	trigger, res, err := sc.Resolver.Resolve(ctx, page, openBy, sc.StepTimeout)
	if res != nil {
		sc.AddNotes(res.Notes)
	}
	if err != nil {
		return err
	}
	if err := trigger.Click(); err != nil {
		return err
	}

	list, err := resolverBuild(page, listBy)
	if err != nil {
		return err
	}
	if err := list.WaitFor("visible", timeoutParam(params, sc)); err != nil {
		return fmt.Errorf("overlay list did not appear: %w", err)
	}

	option := list.GetByText(optionText, true)
	count, err := option.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("option %q not found in overlay list", optionText)
	}
	if count > 1 {
		return fmt.Errorf("option %q matches %d entries in overlay list", optionText, count)
	}
	return option.Click()
}

func (selectOverlayOptionHandler) Schema() any { return &SelectOverlayOptionParams{} }

// --- setDatePicker ---

type setDatePickerHandler struct{}

func (setDatePickerHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	date := stringParam(params, "date")
	if date == "" {
		return fmt.Errorf("setDatePicker requires a date")
	}
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	sc.logf("setDatePicker: %s", date)
	if err := loc.Click(); err != nil {
		return err
	}
	// Clear before typing so a pre-filled picker does not concatenate.
	if err := loc.Fill(""); err != nil {
		return err
	}
	if err := loc.Fill(date); err != nil {
		return err
	}
	return loc.Press("Enter")
}

func (setDatePickerHandler) Schema() any { return &SetDatePickerParams{} }

// --- uploadFile ---

type uploadFileHandler struct{}

func (uploadFileHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	filePath := stringParam(params, "filePath")
	if filePath == "" {
		return fmt.Errorf("uploadFile requires filePath")
	}
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("upload file not found: %s", filePath)
	}
	loc, err := resolve(ctx, page, params, sc)
	if err != nil {
		return err
	}
	sc.logf("uploadFile: %s", filePath)

	// input[type=file] takes the files directly; anything else is a UI
	// trigger that opens a chooser.
	tag, err := loc.Evaluate("el => el.tagName.toLowerCase()")
	if err != nil {
		return err
	}
	typ, err := loc.Evaluate("el => el.type || ''")
	if err != nil {
		return err
	}
	if tag == "input" && typ == "file" {
		return loc.SetInputFiles(filePath)
	}
	return page.UploadViaChooser(loc, filePath)
}

func (uploadFileHandler) Schema() any { return &UploadFileParams{} }

// --- waitForToast ---

type waitForToastHandler struct{}

func (waitForToastHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	text := stringParam(params, "text")
	if text == "" {
		return fmt.Errorf("waitForToast requires text")
	}
	timeout := timeoutParam(params, sc)
	toast := page.ByText(text)
	sc.logf("waitForToast: %q", text)
	if err := toast.WaitFor("visible", timeout); err != nil {
		return fmt.Errorf("toast %q did not appear: %w", text, err)
	}
	if err := toast.WaitFor("hidden", timeout); err != nil {
		return fmt.Errorf("toast %q did not disappear: %w", text, err)
	}
	return nil
}

func (waitForToastHandler) Schema() any { return &WaitForToastParams{} }

// --- assertNoConsoleError ---

type assertNoConsoleErrorHandler struct{}

func (assertNoConsoleErrorHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	errs := page.ConsoleErrors()
	if len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		sc.logf("console error: %s", e)
	}
	return &AssertionError{Msg: fmt.Sprintf("%d console error(s) detected", len(errs))}
}

func (assertNoConsoleErrorHandler) Schema() any { return &MarkerParams{} }

// --- apiMock ---

type apiMockHandler struct{}

func (apiMockHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	url := stringParam(params, "url")
	if url == "" {
		return fmt.Errorf("apiMock requires a url pattern")
	}
	method := stringParam(params, "method")

	status := 200
	var body any
	if resp, ok := params["response"].(map[string]any); ok {
		status = intParam(resp, "status", 200)
		body = resp["body"]
	}
	payload := jsonBody(body)

	sc.logf("apiMock: %s %s -> %d", orStar(method), url, status)
	return page.Route(url, func(route driver.Route) {
		if method != "" && !strings.EqualFold(route.Method(), method) {
			route.Fallback()
			return
		}
		route.Fulfill(status, "application/json", payload)
	})
}

func (apiMockHandler) Schema() any { return &APIMockParams{} }

// --- routeStub ---

type routeStubHandler struct{}

func (routeStubHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	url := stringParam(params, "url")
	handler := stringParam(params, "handler")
	if url == "" || handler == "" {
		return fmt.Errorf("routeStub requires url and handler")
	}
	sc.logf("routeStub: %s -> %s", url, handler)
	return page.Route(url, func(route driver.Route) {
		route.Fulfill(200, "application/json", fmt.Sprintf(`{"stub":%q}`, handler))
	})
}

func (routeStubHandler) Schema() any { return &RouteStubParams{} }

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func registerHighLevel(r *Registry) {
	r.Register("selectOverlayOption", selectOverlayOptionHandler{}, Info{Description: "open an overlay, wait for its list, pick an option by text", Category: "high-level"})
	r.Register("selectWijmoCombo", selectWijmoComboHandler{}, Info{Description: "pick an option from a Wijmo ComboBox", Category: "high-level"})
	r.Register("clickWijmoGridCell", clickWijmoGridCellHandler{}, Info{Description: "click a Wijmo FlexGrid cell, scrolling through virtualized rows", Category: "high-level"})
	r.Register("setDatePicker", setDatePickerHandler{}, Info{Description: "set a date picker value", Category: "high-level"})
	r.Register("uploadFile", uploadFileHandler{}, Info{Description: "upload a file via input or chooser", Category: "high-level"})
	r.Register("waitForToast", waitForToastHandler{}, Info{Description: "wait for a toast to appear and disappear", Category: "high-level"})
	r.Register("assertNoConsoleError", assertNoConsoleErrorHandler{}, Info{Description: "assert no console errors were logged", Category: "high-level"})
	r.Register("apiMock", apiMockHandler{}, Info{Description: "mock an API response by URL pattern", Category: "high-level"})
	r.Register("routeStub", routeStubHandler{}, Info{Description: "stub a route with a named handler payload", Category: "high-level"})
}
