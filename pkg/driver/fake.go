package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// The fake driver executes flows against an in-memory element tree
// instead of a browser. It backs dry runs and the test suites, the same
// split the real/replay executor pair gives command execution.

// FakeElement is one node in the fake DOM.
type FakeElement struct {
	TestID      string
	Role        string
	Name        string
	Label       string
	Placeholder string
	Text        string
	Selector    string // the css selector this element answers to

	Visible bool
	Attrs   map[string]string
	HTML    string
	Value   string

	Children []*FakeElement
}

// FakeSession hands out fake contexts sharing one element tree.
type FakeSession struct {
	Page     *FakePage
	Contexts []*FakeContext
	Closed   bool

	mu sync.Mutex
}

// NewFakeSession wires a session around a page.
func NewFakeSession(page *FakePage) *FakeSession {
	return &FakeSession{Page: page}
}

func (s *FakeSession) NewContext(opts ContextOptions) (Context, error) {
	// A nil page means each context gets its own empty page, which is
	// what concurrent scenarios need.
	page := s.Page
	if page == nil {
		page = &FakePage{}
	}
	ctx := &FakeContext{Options: opts, page: page}
	page.ctx = ctx
	s.mu.Lock()
	s.Contexts = append(s.Contexts, ctx)
	s.mu.Unlock()
	return ctx, nil
}

func (s *FakeSession) Close() error {
	s.Closed = true
	return nil
}

// FakeContext records lifecycle calls and materializes trace/video files
// so artifact policies are observable.
type FakeContext struct {
	Options        ContextOptions
	TracingStarted bool
	TracePath      string
	StorageSaved   []string
	StorageLoaded  []string
	Closed         bool

	page *FakePage
}

func (c *FakeContext) NewPage() (Page, error) {
	return c.page, nil
}

func (c *FakeContext) StartTracing() error {
	c.TracingStarted = true
	return nil
}

func (c *FakeContext) StopTracing(path string) error {
	c.TracePath = path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake-trace"), 0644)
}

func (c *FakeContext) SaveStorageState(path string) error {
	c.StorageSaved = append(c.StorageSaved, path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(`{"cookies":[]}`), 0644)
}

func (c *FakeContext) RestoreStorageState(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &Error{Op: "read storage state", Err: err}
	}
	c.StorageLoaded = append(c.StorageLoaded, path)
	return nil
}

func (c *FakeContext) Close() error {
	c.Closed = true
	// A context configured for video leaves a recording behind, like the
	// real driver does.
	if c.Options.VideoDir != "" {
		if err := os.MkdirAll(c.Options.VideoDir, 0755); err == nil {
			os.WriteFile(filepath.Join(c.Options.VideoDir, "recording.webm"), []byte("fake-video"), 0644)
		}
	}
	return nil
}

// FakePage is the in-memory page. Hooks let tests script DOM reactions
// to actions.
type FakePage struct {
	Elements []*FakeElement

	URLValue string
	Gotos    []string
	Actions  []string
	Console  []string
	Routes   map[string]func(Route)

	// OnAction observes every element action (click, fill, ...).
	OnAction func(action string, el *FakeElement)
	// OnEvaluate intercepts locator Evaluate calls.
	OnEvaluate func(expression string, el *FakeElement) any

	ScreenshotCount int
	Closed          bool

	ctx *FakeContext
}

func (p *FakePage) record(action string, el *FakeElement) {
	desc := ""
	if el != nil {
		desc = describeFake(el)
	}
	p.Actions = append(p.Actions, strings.TrimSpace(action+" "+desc))
	if p.OnAction != nil {
		p.OnAction(action, el)
	}
}

func describeFake(el *FakeElement) string {
	switch {
	case el.TestID != "":
		return "testId=" + el.TestID
	case el.Role != "":
		return "role=" + el.Role + "/" + el.Name
	case el.Label != "":
		return "label=" + el.Label
	case el.Selector != "":
		return "css=" + el.Selector
	}
	return "text=" + el.Text
}

func (p *FakePage) Goto(url string) error {
	p.Gotos = append(p.Gotos, url)
	p.URLValue = url
	return nil
}

func (p *FakePage) WaitForLoadState(state string) error { return nil }

func (p *FakePage) Back() error {
	p.record("back", nil)
	return nil
}

func (p *FakePage) Reload() error {
	p.record("reload", nil)
	return nil
}

func (p *FakePage) URL() string { return p.URLValue }

func (p *FakePage) Frame(selector string) Target { return p }

func (p *FakePage) Screenshot(path, format string, quality int) error {
	p.ScreenshotCount++
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("fake-screenshot"), 0644)
}

func (p *FakePage) Wheel(deltaX, deltaY float64) error {
	p.record(fmt.Sprintf("wheel %.0f,%.0f", deltaX, deltaY), nil)
	return nil
}

func (p *FakePage) Route(pattern string, handler func(Route)) error {
	if p.Routes == nil {
		p.Routes = make(map[string]func(Route))
	}
	p.Routes[pattern] = handler
	return nil
}

func (p *FakePage) UploadViaChooser(trigger Locator, filePath string) error {
	p.record("upload "+filePath, nil)
	return nil
}

func (p *FakePage) ConsoleErrors() []string { return p.Console }

func (p *FakePage) Context() Context { return p.ctx }

func (p *FakePage) Close() error {
	p.Closed = true
	return nil
}

// all walks the element tree depth-first.
func (p *FakePage) all() []*FakeElement {
	var out []*FakeElement
	var walk func(els []*FakeElement)
	walk = func(els []*FakeElement) {
		for _, el := range els {
			out = append(out, el)
			walk(el.Children)
		}
	}
	walk(p.Elements)
	return out
}

func (p *FakePage) query(match func(*FakeElement) bool, desc string) Locator {
	return &FakeLocator{
		page: p,
		desc: desc,
		find: func() []*FakeElement {
			var out []*FakeElement
			for _, el := range p.all() {
				if match(el) {
					out = append(out, el)
				}
			}
			return out
		},
	}
}

func (p *FakePage) ByTestID(value string) Locator {
	return p.query(func(el *FakeElement) bool { return el.TestID == value }, "testId="+value)
}

func (p *FakePage) ByRole(role, name string, exact *bool) Locator {
	return p.query(func(el *FakeElement) bool {
		if el.Role != role {
			return false
		}
		if name == "" {
			return true
		}
		if exact != nil && *exact {
			return el.Name == name
		}
		return strings.Contains(el.Name, name)
	}, "role="+role+"/"+name)
}

func (p *FakePage) ByLabel(text string) Locator {
	return p.query(func(el *FakeElement) bool { return el.Label == text }, "label="+text)
}

func (p *FakePage) ByPlaceholder(text string) Locator {
	return p.query(func(el *FakeElement) bool { return el.Placeholder == text }, "placeholder="+text)
}

func (p *FakePage) ByText(text string) Locator {
	return p.query(func(el *FakeElement) bool { return strings.Contains(el.Text, text) }, "text="+text)
}

func (p *FakePage) CSS(selector, hasText string) Locator {
	return p.query(func(el *FakeElement) bool {
		if el.Selector != selector {
			return false
		}
		return hasText == "" || strings.Contains(el.Text, hasText)
	}, "css="+selector)
}

// FakeLocator re-queries lazily so DOM mutations between calls are
// visible, like a real locator.
type FakeLocator struct {
	page *FakePage
	desc string
	find func() []*FakeElement
}

func (l *FakeLocator) matched() []*FakeElement { return l.find() }

func (l *FakeLocator) one() (*FakeElement, error) {
	els := l.matched()
	if len(els) == 0 {
		return nil, &Error{Op: "locate " + l.desc, Err: fmt.Errorf("no element")}
	}
	return els[0], nil
}

func (l *FakeLocator) Count() (int, error) { return len(l.matched()), nil }

func (l *FakeLocator) IsVisible() (bool, error) {
	els := l.matched()
	if len(els) == 0 {
		return false, nil
	}
	return els[0].Visible, nil
}

func (l *FakeLocator) WaitFor(state string, timeout time.Duration) error {
	els := l.matched()
	switch state {
	case "visible":
		for _, el := range els {
			if el.Visible {
				return nil
			}
		}
		return &Error{Op: "wait " + l.desc, Err: fmt.Errorf("not visible within %s", timeout)}
	case "hidden":
		for _, el := range els {
			if el.Visible {
				return &Error{Op: "wait " + l.desc, Err: fmt.Errorf("still visible after %s", timeout)}
			}
		}
		return nil
	case "attached":
		if len(els) == 0 {
			return &Error{Op: "wait " + l.desc, Err: fmt.Errorf("not attached within %s", timeout)}
		}
		return nil
	case "detached":
		if len(els) > 0 {
			return &Error{Op: "wait " + l.desc, Err: fmt.Errorf("still attached after %s", timeout)}
		}
		return nil
	}
	return &Error{Op: "wait", Err: fmt.Errorf("unknown state %q", state)}
}

func (l *FakeLocator) act(name string, mutate func(*FakeElement)) error {
	el, err := l.one()
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(el)
	}
	l.page.record(name, el)
	return nil
}

func (l *FakeLocator) Click() error    { return l.act("click", nil) }
func (l *FakeLocator) Dblclick() error { return l.act("dblclick", nil) }

func (l *FakeLocator) Fill(value string) error {
	return l.act("fill "+value, func(el *FakeElement) { el.Value = value })
}

func (l *FakeLocator) Press(key string) error { return l.act("press "+key, nil) }
func (l *FakeLocator) Check() error           { return l.act("check", nil) }
func (l *FakeLocator) Uncheck() error         { return l.act("uncheck", nil) }

func (l *FakeLocator) SelectOption(value string) error {
	return l.act("selectOption "+value, func(el *FakeElement) { el.Value = value })
}

func (l *FakeLocator) SetInputFiles(path string) error {
	return l.act("setInputFiles "+path, nil)
}

func (l *FakeLocator) ScrollIntoView() error { return l.act("scrollIntoView", nil) }

func (l *FakeLocator) TextContent() (string, error) {
	el, err := l.one()
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (l *FakeLocator) GetAttribute(name string) (string, error) {
	el, err := l.one()
	if err != nil {
		return "", err
	}
	return el.Attrs[name], nil
}

func (l *FakeLocator) InnerHTML() (string, error) {
	el, err := l.one()
	if err != nil {
		return "", err
	}
	return el.HTML, nil
}

func (l *FakeLocator) Evaluate(expression string) (any, error) {
	el, err := l.one()
	if err != nil {
		return nil, err
	}
	if l.page.OnEvaluate != nil {
		return l.page.OnEvaluate(expression, el), nil
	}
	return nil, nil
}

// scoped derives a child query under the currently matched elements.
func (l *FakeLocator) scoped(match func(*FakeElement) bool, desc string) Locator {
	return &FakeLocator{
		page: l.page,
		desc: l.desc + " >> " + desc,
		find: func() []*FakeElement {
			var out []*FakeElement
			var walk func(els []*FakeElement)
			walk = func(els []*FakeElement) {
				for _, el := range els {
					if match(el) {
						out = append(out, el)
					}
					walk(el.Children)
				}
			}
			for _, parent := range l.matched() {
				walk(parent.Children)
			}
			return out
		},
	}
}

func (l *FakeLocator) GetByText(text string, exact bool) Locator {
	return l.scoped(func(el *FakeElement) bool {
		if exact {
			return el.Text == text
		}
		return strings.Contains(el.Text, text)
	}, "text="+text)
}

func (l *FakeLocator) CSS(selector string) Locator {
	return l.scoped(func(el *FakeElement) bool { return el.Selector == selector }, "css="+selector)
}

func (l *FakeLocator) Nth(index int) Locator {
	return &FakeLocator{
		page: l.page,
		desc: fmt.Sprintf("%s[%d]", l.desc, index),
		find: func() []*FakeElement {
			els := l.matched()
			if index < 0 || index >= len(els) {
				return nil
			}
			return els[index : index+1]
		},
	}
}

func (l *FakeLocator) First() Locator { return l.Nth(0) }

// FakeRoute lets tests drive route handlers registered via Route.
type FakeRoute struct {
	MethodValue   string
	FulfillStatus int
	FulfillBody   string
	FellBack      bool
}

func (r *FakeRoute) Method() string { return r.MethodValue }

func (r *FakeRoute) Fulfill(status int, contentType, body string) error {
	r.FulfillStatus = status
	r.FulfillBody = body
	return nil
}

func (r *FakeRoute) Fallback() error {
	r.FellBack = true
	return nil
}
