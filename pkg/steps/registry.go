// Package steps implements the step handler catalog: a name-indexed
// registry of built-in and plugin handlers sharing one execution
// interface.
package steps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/resolver"
	"github.com/uiflow/uiflow/pkg/schema"
	"github.com/uiflow/uiflow/pkg/vars"
)

// Handler executes one step type. Implementations must not mutate global
// state outside the execution context and must honor ctx cancellation at
// their suspension points.
type Handler interface {
	Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error
	Schema() any
}

// Info is the metadata shown by list-steps.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"` // navigation, action, wait, validation, retrieval, debug, session, high-level
}

// UnknownStepError is returned on a registry miss.
type UnknownStepError struct {
	Name       string
	Registered []string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q (registered: %v)", e.Name, e.Registered)
}

// AssertionError is raised by expect handlers when the page state does
// not match the expectation.
type AssertionError struct {
	Msg string
	Err error
}

func (e *AssertionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assertion failed: %s: %v", e.Msg, e.Err)
	}
	return "assertion failed: " + e.Msg
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Context is handed to every handler execution. It exposes the shared
// machinery a step needs: selector resolution, variable capture, artifact
// capture, and the run log.
type Context struct {
	Resolver    *resolver.Resolver
	Vars        *vars.Expander
	StepTimeout time.Duration

	// TakeScreenshot persists a screenshot for the current step and
	// returns its path. Nil when no artifact manager is attached.
	TakeScreenshot func(label string) (string, error)

	// Logf appends to the run log (logs/runner.log).
	Logf func(format string, args ...any)

	notes []string
}

// AddNote records a diagnostic note on the current step's result.
func (c *Context) AddNote(note string) {
	if note != "" {
		c.notes = append(c.notes, note)
	}
}

// AddNotes records resolver diagnostics.
func (c *Context) AddNotes(notes []string) {
	for _, n := range notes {
		c.AddNote(n)
	}
}

// DrainNotes returns and clears the accumulated notes. Called by the
// runner at the end of each step.
func (c *Context) DrainNotes() []string {
	notes := c.notes
	c.notes = nil
	return notes
}

func (c *Context) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Registry maps step type names to handlers. Registration is open:
// plugin handlers participate indistinguishably from built-ins.
type Registry struct {
	handlers map[string]Handler
	info     map[string]Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		info:     make(map[string]Info),
	}
}

// NewDefaultRegistry creates a registry with every built-in and
// high-level handler registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	registerHighLevel(r)
	return r
}

// Register adds a handler. Re-registering a name replaces the previous
// handler, which is how plugins override built-ins.
func (r *Registry) Register(name string, h Handler, info Info) {
	if info.Name == "" {
		info.Name = name
	}
	r.handlers[name] = h
	r.info[name] = info
}

// Get returns the handler for a step type.
func (r *Registry) Get(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownStepError{Name: name, Registered: r.Names()}
	}
	return h, nil
}

// Has reports whether a step type is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns all registered step names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the metadata of every registered step, sorted by name.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.info))
	for _, info := range r.info {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// --- shared param helpers ---

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// byParam extracts the selector from a step payload: an explicit "by"
// key, or the payload itself when it carries selector keys inline.
func byParam(params map[string]any) (*schema.By, error) {
	if raw, ok := params["by"].(map[string]any); ok {
		return schema.DecodeBy(raw)
	}
	if schema.LooksLikeSelector(params) {
		return schema.DecodeBy(params)
	}
	return nil, fmt.Errorf("step has no selector")
}

// namedByParam extracts a selector stored under an explicit key, as the
// high-level steps do (open, list, root, grid).
func namedByParam(params map[string]any, key string) (*schema.By, error) {
	raw, ok := params[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing %q selector", key)
	}
	return schema.DecodeBy(raw)
}

// target scopes resolution into an iframe when the step carries a frame
// selector.
func target(page driver.Page, params map[string]any) driver.Target {
	if frame := stringParam(params, "frame"); frame != "" {
		return page.Frame(frame)
	}
	return page
}

// resolve resolves the step's selector and folds resolver diagnostics
// into the step context.
func resolve(ctx context.Context, page driver.Page, params map[string]any, sc *Context) (driver.Locator, error) {
	by, err := byParam(params)
	if err != nil {
		return nil, err
	}
	loc, res, err := sc.Resolver.Resolve(ctx, target(page, params), by, sc.StepTimeout)
	if res != nil {
		sc.AddNotes(res.Notes)
	}
	return loc, err
}

// resolverBuild maps a single selector straight onto a locator without
// the strict resolution pass. Wait steps apply their own state predicate.
func resolverBuild(t driver.Target, by *schema.By) (driver.Locator, error) {
	return resolver.Build(t, by)
}

// timeoutParam reads a millisecond timeout field, defaulting to the
// per-step timeout.
func timeoutParam(params map[string]any, sc *Context) time.Duration {
	if ms := intParam(params, "timeout", 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return sc.StepTimeout
}
