package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightSession drives a real browser through playwright-go.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// Launch starts the driver and a Chromium-family browser.
func Launch(opts LaunchOptions) (*PlaywrightSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, &Error{Op: "start playwright", Err: err}
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Headed),
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	if opts.Channel != "" && opts.Channel != "chromium" {
		launch.Channel = playwright.String(opts.Channel)
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		pw.Stop()
		return nil, &Error{Op: "launch browser", Err: err}
	}
	return &PlaywrightSession{pw: pw, browser: browser}, nil
}

// NewContext creates an isolated context honoring the scenario environment.
func (s *PlaywrightSession) NewContext(opts ContextOptions) (Context, error) {
	co := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		co.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	if opts.Locale != "" {
		co.Locale = playwright.String(opts.Locale)
	}
	if opts.Timezone != "" {
		co.TimezoneId = playwright.String(opts.Timezone)
	}
	if len(opts.ExtraHeaders) > 0 {
		co.ExtraHttpHeaders = opts.ExtraHeaders
	}
	if opts.StorageStatePath != "" {
		co.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	if opts.VideoDir != "" {
		co.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}

	bc, err := s.browser.NewContext(co)
	if err != nil {
		return nil, &Error{Op: "new context", Err: err}
	}
	return &playwrightContext{bc: bc}, nil
}

// Close shuts the browser and the driver process down.
func (s *PlaywrightSession) Close() error {
	if err := s.browser.Close(); err != nil {
		return &Error{Op: "close browser", Err: err}
	}
	return s.pw.Stop()
}

type playwrightContext struct {
	bc playwright.BrowserContext
}

func (c *playwrightContext) NewPage() (Page, error) {
	page, err := c.bc.NewPage()
	if err != nil {
		return nil, &Error{Op: "new page", Err: err}
	}
	p := &playwrightPage{page: page, ctx: c}
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			p.mu.Lock()
			p.consoleErrors = append(p.consoleErrors, msg.Text())
			p.mu.Unlock()
		}
	})
	return p, nil
}

func (c *playwrightContext) StartTracing() error {
	err := c.bc.Tracing().Start(playwright.TracingStartOptions{
		Screenshots: playwright.Bool(true),
		Snapshots:   playwright.Bool(true),
	})
	if err != nil {
		return &Error{Op: "start tracing", Err: err}
	}
	return nil
}

func (c *playwrightContext) StopTracing(path string) error {
	if err := c.bc.Tracing().Stop(path); err != nil {
		return &Error{Op: "stop tracing", Err: err}
	}
	return nil
}

func (c *playwrightContext) SaveStorageState(path string) error {
	if _, err := c.bc.StorageState(path); err != nil {
		return &Error{Op: "save storage state", Err: err}
	}
	return nil
}

func (c *playwrightContext) RestoreStorageState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Op: "read storage state", Err: err}
	}
	var state struct {
		Cookies []playwright.OptionalCookie `json:"cookies"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return &Error{Op: "parse storage state", Err: err}
	}
	if len(state.Cookies) > 0 {
		if err := c.bc.AddCookies(state.Cookies); err != nil {
			return &Error{Op: "restore cookies", Err: err}
		}
	}
	return nil
}

func (c *playwrightContext) Close() error {
	if err := c.bc.Close(); err != nil {
		return &Error{Op: "close context", Err: err}
	}
	return nil
}

type playwrightPage struct {
	page playwright.Page
	ctx  *playwrightContext

	mu            sync.Mutex
	consoleErrors []string
}

func (p *playwrightPage) Goto(url string) error {
	if _, err := p.page.Goto(url); err != nil {
		return &Error{Op: fmt.Sprintf("goto %s", url), Err: err}
	}
	return nil
}

func (p *playwrightPage) WaitForLoadState(state string) error {
	var ls *playwright.LoadState
	switch state {
	case "domcontentloaded":
		ls = playwright.LoadStateDomcontentloaded
	case "networkidle":
		ls = playwright.LoadStateNetworkidle
	default:
		ls = playwright.LoadStateLoad
	}
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: ls}); err != nil {
		return &Error{Op: "wait for load state " + state, Err: err}
	}
	return nil
}

func (p *playwrightPage) Back() error {
	if _, err := p.page.GoBack(); err != nil {
		return &Error{Op: "back", Err: err}
	}
	return nil
}

func (p *playwrightPage) Reload() error {
	if _, err := p.page.Reload(); err != nil {
		return &Error{Op: "reload", Err: err}
	}
	return nil
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Frame(selector string) Target {
	return &playwrightFrame{fl: p.page.FrameLocator(selector)}
}

func (p *playwrightPage) Screenshot(path, format string, quality int) error {
	opts := playwright.PageScreenshotOptions{Path: playwright.String(path)}
	if format == "jpeg" {
		opts.Type = playwright.ScreenshotTypeJpeg
		opts.Quality = playwright.Int(quality)
	} else {
		opts.Type = playwright.ScreenshotTypePng
	}
	if _, err := p.page.Screenshot(opts); err != nil {
		return &Error{Op: "screenshot", Err: err}
	}
	return nil
}

func (p *playwrightPage) Wheel(deltaX, deltaY float64) error {
	if err := p.page.Mouse().Wheel(deltaX, deltaY); err != nil {
		return &Error{Op: "wheel", Err: err}
	}
	return nil
}

func (p *playwrightPage) Route(pattern string, handler func(Route)) error {
	err := p.page.Route(pattern, func(route playwright.Route) {
		handler(&playwrightRoute{route: route})
	})
	if err != nil {
		return &Error{Op: "route " + pattern, Err: err}
	}
	return nil
}

func (p *playwrightPage) UploadViaChooser(trigger Locator, filePath string) error {
	pl, ok := trigger.(*playwrightLocator)
	if !ok {
		return &Error{Op: "upload", Err: fmt.Errorf("trigger is not a playwright locator")}
	}
	chooser, err := p.page.ExpectFileChooser(func() error {
		return pl.loc.Click()
	})
	if err != nil {
		return &Error{Op: "expect file chooser", Err: err}
	}
	if err := chooser.SetFiles(filePath); err != nil {
		return &Error{Op: "set chooser files", Err: err}
	}
	return nil
}

func (p *playwrightPage) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.consoleErrors))
	copy(out, p.consoleErrors)
	return out
}

func (p *playwrightPage) Context() Context { return p.ctx }

func (p *playwrightPage) Close() error {
	if err := p.page.Close(); err != nil {
		return &Error{Op: "close page", Err: err}
	}
	return nil
}

// Target methods on the page.

func (p *playwrightPage) ByTestID(value string) Locator {
	return wrap(p.page.GetByTestId(value))
}

func (p *playwrightPage) ByRole(role, name string, exact *bool) Locator {
	opts := playwright.PageGetByRoleOptions{}
	if name != "" {
		opts.Name = name
	}
	if exact != nil {
		opts.Exact = exact
	}
	return wrap(p.page.GetByRole(playwright.AriaRole(role), opts))
}

func (p *playwrightPage) ByLabel(text string) Locator {
	return wrap(p.page.GetByLabel(text))
}

func (p *playwrightPage) ByPlaceholder(text string) Locator {
	return wrap(p.page.GetByPlaceholder(text))
}

func (p *playwrightPage) ByText(text string) Locator {
	return wrap(p.page.GetByText(text))
}

func (p *playwrightPage) CSS(selector, hasText string) Locator {
	opts := playwright.PageLocatorOptions{}
	if hasText != "" {
		opts.HasText = hasText
	}
	return wrap(p.page.Locator(selector, opts))
}

// playwrightFrame scopes locators inside an iframe.
type playwrightFrame struct {
	fl playwright.FrameLocator
}

func (f *playwrightFrame) ByTestID(value string) Locator {
	return wrap(f.fl.GetByTestId(value))
}

func (f *playwrightFrame) ByRole(role, name string, exact *bool) Locator {
	opts := playwright.FrameLocatorGetByRoleOptions{}
	if name != "" {
		opts.Name = name
	}
	if exact != nil {
		opts.Exact = exact
	}
	return wrap(f.fl.GetByRole(playwright.AriaRole(role), opts))
}

func (f *playwrightFrame) ByLabel(text string) Locator {
	return wrap(f.fl.GetByLabel(text))
}

func (f *playwrightFrame) ByPlaceholder(text string) Locator {
	return wrap(f.fl.GetByPlaceholder(text))
}

func (f *playwrightFrame) ByText(text string) Locator {
	return wrap(f.fl.GetByText(text))
}

func (f *playwrightFrame) CSS(selector, hasText string) Locator {
	opts := playwright.FrameLocatorLocatorOptions{}
	if hasText != "" {
		opts.HasText = hasText
	}
	return wrap(f.fl.Locator(selector, opts))
}

type playwrightLocator struct {
	loc playwright.Locator
}

func wrap(loc playwright.Locator) Locator { return &playwrightLocator{loc: loc} }

func (l *playwrightLocator) Count() (int, error) { return l.loc.Count() }

func (l *playwrightLocator) IsVisible() (bool, error) { return l.loc.IsVisible() }

func (l *playwrightLocator) WaitFor(state string, timeout time.Duration) error {
	opts := playwright.LocatorWaitForOptions{}
	switch state {
	case "visible":
		opts.State = playwright.WaitForSelectorStateVisible
	case "hidden":
		opts.State = playwright.WaitForSelectorStateHidden
	case "attached":
		opts.State = playwright.WaitForSelectorStateAttached
	case "detached":
		opts.State = playwright.WaitForSelectorStateDetached
	default:
		return &Error{Op: "wait for", Err: fmt.Errorf("unknown state %q", state)}
	}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	return l.loc.WaitFor(opts)
}

func (l *playwrightLocator) Click() error    { return l.loc.Click() }
func (l *playwrightLocator) Dblclick() error { return l.loc.Dblclick() }

func (l *playwrightLocator) Fill(value string) error { return l.loc.Fill(value) }
func (l *playwrightLocator) Press(key string) error  { return l.loc.Press(key) }
func (l *playwrightLocator) Check() error            { return l.loc.Check() }
func (l *playwrightLocator) Uncheck() error          { return l.loc.Uncheck() }

func (l *playwrightLocator) SelectOption(value string) error {
	_, err := l.loc.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}})
	return err
}

func (l *playwrightLocator) SetInputFiles(path string) error {
	return l.loc.SetInputFiles(path)
}

func (l *playwrightLocator) ScrollIntoView() error {
	return l.loc.ScrollIntoViewIfNeeded()
}

func (l *playwrightLocator) TextContent() (string, error) { return l.loc.TextContent() }

func (l *playwrightLocator) GetAttribute(name string) (string, error) {
	return l.loc.GetAttribute(name)
}

func (l *playwrightLocator) InnerHTML() (string, error) { return l.loc.InnerHTML() }

func (l *playwrightLocator) Evaluate(expression string) (any, error) {
	return l.loc.Evaluate(expression, nil)
}

func (l *playwrightLocator) GetByText(text string, exact bool) Locator {
	opts := playwright.LocatorGetByTextOptions{}
	if exact {
		opts.Exact = playwright.Bool(true)
	}
	return wrap(l.loc.GetByText(text, opts))
}

func (l *playwrightLocator) CSS(selector string) Locator {
	return wrap(l.loc.Locator(selector))
}

func (l *playwrightLocator) Nth(index int) Locator { return wrap(l.loc.Nth(index)) }
func (l *playwrightLocator) First() Locator        { return wrap(l.loc.First()) }

type playwrightRoute struct {
	route playwright.Route
}

func (r *playwrightRoute) Method() string { return r.route.Request().Method() }

func (r *playwrightRoute) Fulfill(status int, contentType, body string) error {
	return r.route.Fulfill(playwright.RouteFulfillOptions{
		Status:      playwright.Int(status),
		ContentType: playwright.String(contentType),
		Body:        body,
	})
}

func (r *playwrightRoute) Fallback() error { return r.route.Fallback() }
