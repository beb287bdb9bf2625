// Package driver defines the narrow browser-automation boundary the rest
// of the tool programs against. The production implementation wraps
// playwright-go; tests substitute in-memory fakes.
package driver

import (
	"fmt"
	"time"
)

// Error wraps a failure from the underlying browser driver.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("driver: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// LaunchOptions configure the browser process.
type LaunchOptions struct {
	Headed  bool
	SlowMo  time.Duration
	Channel string // chrome, chromium, msedge
}

// ContextOptions configure an isolated browser context. Zero values leave
// the driver defaults in place.
type ContextOptions struct {
	ViewportWidth    int
	ViewportHeight   int
	Locale           string
	Timezone         string
	ExtraHeaders     map[string]string
	StorageStatePath string
	VideoDir         string
}

// Session owns the driver process and browser. One per Runner invocation
// group; contexts are handed out per scenario.
type Session interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browser context: own cookies, storage, video.
type Context interface {
	NewPage() (Page, error)
	StartTracing() error
	StopTracing(path string) error
	SaveStorageState(path string) error
	RestoreStorageState(path string) error
	Close() error
}

// Target is anything locators can be derived from: a page or a frame.
// Each method maps one-to-one onto a primitive driver locator call.
type Target interface {
	ByTestID(value string) Locator
	ByRole(role, name string, exact *bool) Locator
	ByLabel(text string) Locator
	ByPlaceholder(text string) Locator
	ByText(text string) Locator
	CSS(selector, hasText string) Locator
}

// Page is a single tab inside a context.
type Page interface {
	Target

	Goto(url string) error
	WaitForLoadState(state string) error // domcontentloaded, load, networkidle
	Back() error
	Reload() error
	URL() string

	Frame(selector string) Target

	Screenshot(path, format string, quality int) error
	Wheel(deltaX, deltaY float64) error
	Route(pattern string, handler func(Route)) error
	UploadViaChooser(trigger Locator, filePath string) error

	// ConsoleErrors returns the error-level console messages collected
	// since the page opened.
	ConsoleErrors() []string

	Context() Context
	Close() error
}

// Locator is a lazy handle onto zero or more DOM elements.
type Locator interface {
	Count() (int, error)
	IsVisible() (bool, error)
	WaitFor(state string, timeout time.Duration) error // visible, hidden, attached, detached

	Click() error
	Dblclick() error
	Fill(value string) error
	Press(key string) error
	Check() error
	Uncheck() error
	SelectOption(value string) error
	SetInputFiles(path string) error
	ScrollIntoView() error

	TextContent() (string, error)
	GetAttribute(name string) (string, error)
	InnerHTML() (string, error)
	Evaluate(expression string) (any, error)

	GetByText(text string, exact bool) Locator
	CSS(selector string) Locator
	Nth(index int) Locator
	First() Locator
}

// Route is an intercepted network request.
type Route interface {
	Method() string
	Fulfill(status int, contentType, body string) error
	Fallback() error
}
