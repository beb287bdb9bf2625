package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/uiflow/uiflow/pkg/driver"
)

func execute(t *testing.T, page *driver.FakePage, stepType string, params map[string]any) error {
	t.Helper()
	r := NewDefaultRegistry()
	h, err := r.Get(stepType)
	if err != nil {
		t.Fatalf("Get(%q): %v", stepType, err)
	}
	return h.Execute(context.Background(), page, params, newTestContext(page))
}

func TestClickResolvesAndClicks(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "save", Visible: true},
	}}
	err := execute(t, page, "click", map[string]any{"by": map[string]any{"testId": "save"}})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if len(page.Actions) != 1 || page.Actions[0] != "click testId=save" {
		t.Errorf("actions = %v", page.Actions)
	}
}

func TestFillSetsValue(t *testing.T) {
	el := &driver.FakeElement{Label: "Email", Visible: true}
	page := &driver.FakePage{Elements: []*driver.FakeElement{el}}
	err := execute(t, page, "fill", map[string]any{
		"by":    map[string]any{"label": "Email"},
		"value": "u@e.com",
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if el.Value != "u@e.com" {
		t.Errorf("value = %q", el.Value)
	}
}

func TestGotoNavigatesAndWaits(t *testing.T) {
	page := &driver.FakePage{}
	err := execute(t, page, "goto", map[string]any{"url": "https://x.test/a"})
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	if len(page.Gotos) != 1 || page.Gotos[0] != "https://x.test/a" {
		t.Errorf("gotos = %v", page.Gotos)
	}
}

func TestExpectTextContains(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "banner", Text: "Changes saved successfully", Visible: true},
	}}
	if err := execute(t, page, "expectText", map[string]any{
		"by":   map[string]any{"testId": "banner"},
		"text": "saved",
	}); err != nil {
		t.Fatalf("expectText: %v", err)
	}

	err := execute(t, page, "expectText", map[string]any{
		"by":   map[string]any{"testId": "banner"},
		"text": "deleted",
	})
	var assertion *AssertionError
	if !errors.As(err, &assertion) {
		t.Fatalf("err = %T, want AssertionError", err)
	}
}

func TestExpectURL(t *testing.T) {
	page := &driver.FakePage{URLValue: "https://x.test/dashboard?tab=1"}
	if err := execute(t, page, "expectUrl", map[string]any{"url": "dashboard"}); err != nil {
		t.Fatalf("expectUrl: %v", err)
	}
	err := execute(t, page, "expectUrl", map[string]any{"url": "login$"})
	var assertion *AssertionError
	if !errors.As(err, &assertion) {
		t.Fatalf("err = %T, want AssertionError", err)
	}
}

func TestStoreTextCapturesVariable(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "order-id", Text: "A-123", Visible: true},
	}}
	sc := newTestContext(page)
	r := NewDefaultRegistry()
	h, _ := r.Get("storeText")
	if err := h.Execute(context.Background(), page, map[string]any{
		"by":      map[string]any{"testId": "order-id"},
		"varName": "order",
	}, sc); err != nil {
		t.Fatalf("storeText: %v", err)
	}
	if got, ok := sc.Vars.Var("order"); !ok || got != "A-123" {
		t.Errorf("vars.order = %q, %v", got, ok)
	}
}

func TestStoreAttrCapturesVariable(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "row", Attrs: map[string]string{"data-key": "42"}, Visible: true},
	}}
	sc := newTestContext(page)
	r := NewDefaultRegistry()
	h, _ := r.Get("storeAttr")
	if err := h.Execute(context.Background(), page, map[string]any{
		"by":      map[string]any{"testId": "row"},
		"attr":    "data-key",
		"varName": "rowKey",
	}, sc); err != nil {
		t.Fatalf("storeAttr: %v", err)
	}
	if got, _ := sc.Vars.Var("rowKey"); got != "42" {
		t.Errorf("vars.rowKey = %q", got)
	}
}

func TestAssertNoConsoleError(t *testing.T) {
	clean := &driver.FakePage{}
	if err := execute(t, clean, "assertNoConsoleError", map[string]any{}); err != nil {
		t.Fatalf("clean page: %v", err)
	}

	dirty := &driver.FakePage{Console: []string{"TypeError: x is undefined"}}
	err := execute(t, dirty, "assertNoConsoleError", map[string]any{})
	var assertion *AssertionError
	if !errors.As(err, &assertion) {
		t.Fatalf("err = %T, want AssertionError", err)
	}
}

func TestAPIMockFulfillsMatchingMethod(t *testing.T) {
	page := &driver.FakePage{}
	err := execute(t, page, "apiMock", map[string]any{
		"url":    "**/api/items",
		"method": "GET",
		"response": map[string]any{
			"status": 200,
			"body":   map[string]any{"items": []any{}},
		},
	})
	if err != nil {
		t.Fatalf("apiMock: %v", err)
	}
	handler := page.Routes["**/api/items"]
	if handler == nil {
		t.Fatal("route not registered")
	}

	hit := &driver.FakeRoute{MethodValue: "GET"}
	handler(hit)
	if hit.FulfillStatus != 200 || hit.FulfillBody != `{"items":[]}` {
		t.Errorf("fulfilled %d %q", hit.FulfillStatus, hit.FulfillBody)
	}

	miss := &driver.FakeRoute{MethodValue: "POST"}
	handler(miss)
	if !miss.FellBack {
		t.Error("non-matching method must fall back")
	}
}

func TestWaitForToast(t *testing.T) {
	toast := &driver.FakeElement{Text: "Saved", Visible: true}
	page := &driver.FakePage{Elements: []*driver.FakeElement{toast}}

	// A toast that stays visible fails the disappear wait.
	if err := executeToast(t, page); err == nil {
		t.Error("toast that stays visible should fail the disappear wait")
	}

	// A toast that never appears fails the appear wait.
	toast.Visible = false
	if err := executeToast(t, page); err == nil {
		t.Error("toast that never appears should fail the appear wait")
	}
}

func executeToast(t *testing.T, page *driver.FakePage) error {
	t.Helper()
	r := NewDefaultRegistry()
	h, _ := r.Get("waitForToast")
	return h.Execute(context.Background(), page, map[string]any{"text": "Saved", "timeout": 1}, newTestContext(page))
}
