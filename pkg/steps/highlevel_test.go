package steps

import (
	"context"
	"strings"
	"testing"

	"github.com/uiflow/uiflow/pkg/driver"
)

func TestSelectOverlayOption(t *testing.T) {
	option := &driver.FakeElement{Text: "Osaka", Visible: true}
	list := &driver.FakeElement{Selector: ".options", Visible: false, Children: []*driver.FakeElement{
		{Text: "Tokyo", Visible: true},
		option,
	}}
	trigger := &driver.FakeElement{TestID: "city-select", Visible: true}
	page := &driver.FakePage{Elements: []*driver.FakeElement{trigger, list}}

	// The overlay opens when the trigger is clicked.
	page.OnAction = func(action string, el *driver.FakeElement) {
		if el == trigger && action == "click" {
			list.Visible = true
		}
	}

	err := execute(t, page, "selectOverlayOption", map[string]any{
		"open":       map[string]any{"testId": "city-select"},
		"list":       map[string]any{"css": ".options"},
		"optionText": "Osaka",
	})
	if err != nil {
		t.Fatalf("selectOverlayOption: %v", err)
	}

	last := page.Actions[len(page.Actions)-1]
	if last != "click text=Osaka" {
		t.Errorf("last action = %q", last)
	}
}

func TestSelectOverlayOptionAmbiguousOption(t *testing.T) {
	list := &driver.FakeElement{Selector: ".options", Visible: true, Children: []*driver.FakeElement{
		{Text: "Osaka", Visible: true},
		{Text: "Osaka", Visible: true},
	}}
	trigger := &driver.FakeElement{TestID: "city-select", Visible: true}
	page := &driver.FakePage{Elements: []*driver.FakeElement{trigger, list}}

	err := execute(t, page, "selectOverlayOption", map[string]any{
		"open":       map[string]any{"testId": "city-select"},
		"list":       map[string]any{"css": ".options"},
		"optionText": "Osaka",
	})
	if err == nil || !strings.Contains(err.Error(), "matches 2") {
		t.Errorf("duplicate options must fail strictly, got %v", err)
	}
}

func TestSelectWijmoCombo(t *testing.T) {
	dropdown := &driver.FakeElement{Selector: ".wj-listbox.wj-content", Visible: false, Children: []*driver.FakeElement{
		{Text: "Blue", Visible: true},
	}}
	input := &driver.FakeElement{Selector: "input.wj-form-control, input[wj-part='input']", Visible: true}
	root := &driver.FakeElement{TestID: "color-combo", Visible: true, Children: []*driver.FakeElement{input}}
	page := &driver.FakePage{Elements: []*driver.FakeElement{root, dropdown}}

	page.OnAction = func(action string, el *driver.FakeElement) {
		if el == input && action == "click" {
			dropdown.Visible = true
		}
	}

	err := execute(t, page, "selectWijmoCombo", map[string]any{
		"root":       map[string]any{"testId": "color-combo"},
		"optionText": "Blue",
	})
	if err != nil {
		t.Fatalf("selectWijmoCombo: %v", err)
	}
	last := page.Actions[len(page.Actions)-1]
	if last != "click text=Blue" {
		t.Errorf("last action = %q", last)
	}
}

// makeGridRow builds one rendered wijmo row with the given cell texts.
func makeGridRow(cells ...string) *driver.FakeElement {
	row := &driver.FakeElement{Selector: ".wj-row", Visible: true}
	for _, text := range cells {
		row.Children = append(row.Children, &driver.FakeElement{Selector: ".wj-cell", Text: text, Visible: true})
	}
	return row
}

func TestClickWijmoGridCellScrollsUntilRowRenders(t *testing.T) {
	header := &driver.FakeElement{Selector: ".wj-header .wj-row:first-child .wj-cell", Text: "ID", Visible: true}
	header2 := &driver.FakeElement{Selector: ".wj-header .wj-row:first-child .wj-cell", Text: "Amount", Visible: true}
	panel := &driver.FakeElement{Selector: ".wj-cells", Visible: true, Children: []*driver.FakeElement{
		makeGridRow("row-1", "10"),
		makeGridRow("row-2", "20"),
	}}
	grid := &driver.FakeElement{TestID: "orders-grid", Visible: true, Children: []*driver.FakeElement{header, header2, panel}}
	page := &driver.FakePage{Elements: []*driver.FakeElement{grid}}

	// The target row only materializes after two virtual scrolls.
	scrolls := 0
	page.OnEvaluate = func(expression string, el *driver.FakeElement) any {
		if strings.Contains(expression, "scrollTop") {
			scrolls++
			if scrolls == 2 {
				panel.Children = []*driver.FakeElement{
					makeGridRow("row-7499", "30"),
					makeGridRow("row-7500", "40"),
				}
			}
		}
		return nil
	}

	sc := newTestContext(page)
	var logged []string
	sc.Logf = func(format string, args ...any) {
		logged = append(logged, format)
	}

	r := NewDefaultRegistry()
	h, _ := r.Get("clickWijmoGridCell")
	err := h.Execute(context.Background(), page, map[string]any{
		"grid":   map[string]any{"testId": "orders-grid"},
		"rowKey": map[string]any{"column": "ID", "equals": "row-7500"},
		"column": "Amount",
	}, sc)
	if err != nil {
		t.Fatalf("clickWijmoGridCell: %v", err)
	}

	if scrolls != 2 {
		t.Errorf("scrolls = %d, want 2", scrolls)
	}
	scrollLogged := false
	for _, line := range logged {
		if strings.Contains(line, "scrolling") {
			scrollLogged = true
		}
	}
	if !scrollLogged {
		t.Error("intermediate scrolls must be recorded in the run log")
	}

	last := page.Actions[len(page.Actions)-1]
	if !strings.HasPrefix(last, "click") {
		t.Errorf("last action = %q", last)
	}
}

func TestClickWijmoGridCellUnknownColumn(t *testing.T) {
	header := &driver.FakeElement{Selector: ".wj-header .wj-row:first-child .wj-cell", Text: "ID", Visible: true}
	panel := &driver.FakeElement{Selector: ".wj-cells", Visible: true}
	grid := &driver.FakeElement{TestID: "g", Visible: true, Children: []*driver.FakeElement{header, panel}}
	page := &driver.FakePage{Elements: []*driver.FakeElement{grid}}

	err := execute(t, page, "clickWijmoGridCell", map[string]any{
		"grid":   map[string]any{"testId": "g"},
		"rowKey": map[string]any{"column": "Missing", "equals": "x"},
		"column": "ID",
	})
	if err == nil || !strings.Contains(err.Error(), "not found in grid header") {
		t.Errorf("unknown key column must fail, got %v", err)
	}
}

func TestSetDatePicker(t *testing.T) {
	field := &driver.FakeElement{Label: "Start date", Visible: true}
	page := &driver.FakePage{Elements: []*driver.FakeElement{field}}

	err := execute(t, page, "setDatePicker", map[string]any{
		"by":   map[string]any{"label": "Start date"},
		"date": "2024-04-01",
	})
	if err != nil {
		t.Fatalf("setDatePicker: %v", err)
	}
	if field.Value != "2024-04-01" {
		t.Errorf("value = %q", field.Value)
	}
	last := page.Actions[len(page.Actions)-1]
	if last != "press Enter label=Start date" {
		t.Errorf("last action = %q", last)
	}
}
