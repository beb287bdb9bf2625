package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/resolver"
	"github.com/uiflow/uiflow/pkg/vars"
)

// builtinNames is the full catalog the registry must serve.
var builtinNames = []string{
	"goto", "back", "reload",
	"click", "dblclick", "fill", "press", "check", "uncheck", "selectOption",
	"scroll", "scrollIntoView",
	"waitFor", "waitForVisible", "waitForHidden", "waitForNetworkIdle",
	"expectVisible", "expectHidden", "expectText", "expectUrl",
	"storeText", "storeAttr",
	"screenshot", "log", "dumpDom",
	"useStorageState", "saveStorageState",
	"selectOverlayOption", "selectWijmoCombo", "clickWijmoGridCell",
	"setDatePicker", "uploadFile", "waitForToast", "assertNoConsoleError",
	"apiMock", "routeStub",
}

// Property: registry.Get succeeds for every built-in, and List covers
// them all.
func TestRegistryTotality(t *testing.T) {
	r := NewDefaultRegistry()
	for _, name := range builtinNames {
		h, err := r.Get(name)
		if err != nil {
			t.Errorf("Get(%q): %v", name, err)
			continue
		}
		if h.Schema() == nil {
			t.Errorf("%q has no schema", name)
		}
	}
	listed := map[string]bool{}
	for _, info := range r.List() {
		listed[info.Name] = true
	}
	for _, name := range builtinNames {
		if !listed[name] {
			t.Errorf("List() missing %q", name)
		}
	}
}

func TestRegistryUnknownStep(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Get("teleport")
	var unknown *UnknownStepError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %T, want UnknownStepError", err)
	}
	if unknown.Name != "teleport" {
		t.Errorf("Name = %q", unknown.Name)
	}
}

// pluginHandler is a test plugin; registration must make it
// indistinguishable from built-ins.
type pluginHandler struct {
	calls int
}

func (p *pluginHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	p.calls++
	return nil
}

func (p *pluginHandler) Schema() any { return &MarkerParams{} }

func TestPluginRegistration(t *testing.T) {
	r := NewDefaultRegistry()
	plugin := &pluginHandler{}
	r.Register("acceptCookies", plugin, Info{Description: "dismiss the cookie banner", Category: "plugin"})

	h, err := r.Get("acceptCookies")
	if err != nil {
		t.Fatalf("Get plugin: %v", err)
	}
	if err := h.Execute(context.Background(), &driver.FakePage{}, nil, newTestContext(&driver.FakePage{})); err != nil {
		t.Fatalf("Execute plugin: %v", err)
	}
	if plugin.calls != 1 {
		t.Errorf("plugin calls = %d", plugin.calls)
	}

	found := false
	for _, info := range r.List() {
		if info.Name == "acceptCookies" {
			found = true
		}
	}
	if !found {
		t.Error("plugin missing from List()")
	}
}

func newTestContext(page *driver.FakePage) *Context {
	r := resolver.New("off")
	r.CandidateTimeout = time.Millisecond
	return &Context{
		Resolver:    r,
		Vars:        vars.NewExpander(nil, nil),
		StepTimeout: 5 * time.Millisecond,
	}
}
