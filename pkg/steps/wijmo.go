package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// Wijmo DOM conventions the handlers rely on.
const (
	wijmoComboInput   = "input.wj-form-control, input[wj-part='input']"
	wijmoDropdownList = ".wj-listbox.wj-content"
	wijmoHeaderCells  = ".wj-header .wj-row:first-child .wj-cell"
	wijmoCellsPanel   = ".wj-cells"
	wijmoRow          = ".wj-row"
	wijmoCell         = ".wj-cell"
)

// maxGridScrollAttempts bounds the virtualized-row search loop.
const maxGridScrollAttempts = 50

// --- param schemas ---

type SelectWijmoComboParams struct {
	Root       *schema.By `json:"root"`
	OptionText string     `json:"optionText"`
	Name       string     `json:"name,omitempty"`
}

type WijmoGridRowKey struct {
	Column string `json:"column"`
	Equals string `json:"equals"`
}

type ClickWijmoGridCellParams struct {
	Grid   *schema.By      `json:"grid"`
	RowKey WijmoGridRowKey `json:"rowKey"`
	Column string          `json:"column"`
	Name   string          `json:"name,omitempty"`
}

// --- selectWijmoCombo ---

// selectWijmoComboHandler is the overlay dance scoped to a Wijmo
// ComboBox: the component's input opens the dropdown, and the dropdown
// list follows the wj-listbox convention.
type selectWijmoComboHandler struct{}

func (selectWijmoComboHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	rootBy, err := namedByParam(params, "root")
	if err != nil {
		return err
	}
	optionText := stringParam(params, "optionText")
	if optionText == "" {
		return fmt.Errorf("selectWijmoCombo requires optionText")
	}

	sc.logf("selectWijmoCombo: root=%s option=%q", rootBy.Describe(), optionText)

	root, res, err := sc.Resolver.Resolve(ctx, page, rootBy, sc.StepTimeout)
	if res != nil {
		sc.AddNotes(res.Notes)
	}
	if err != nil {
		return err
	}

	input := root.CSS(wijmoComboInput).First()
	if err := input.Click(); err != nil {
		return err
	}

	dropdown := page.CSS(wijmoDropdownList, "")
	if err := dropdown.WaitFor("visible", timeoutParam(params, sc)); err != nil {
		return fmt.Errorf("combo dropdown did not appear: %w", err)
	}

	option := dropdown.GetByText(optionText, true)
	count, err := option.Count()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("option %q matched %d dropdown entries", optionText, count)
	}
	return option.Click()
}

func (selectWijmoComboHandler) Schema() any { return &SelectWijmoComboParams{} }

// --- clickWijmoGridCell ---

// clickWijmoGridCellHandler locates a row by a key-column value and
// clicks the cell in the requested column. Virtualized grids render only
// the visible rows, so the handler scrolls the cells panel by one
// viewport at a time until the row materializes or the attempt bound is
// hit.
type clickWijmoGridCellHandler struct{}

func (clickWijmoGridCellHandler) Execute(ctx context.Context, page driver.Page, params map[string]any, sc *Context) error {
	gridBy, err := namedByParam(params, "grid")
	if err != nil {
		return err
	}
	column := stringParam(params, "column")
	if column == "" {
		return fmt.Errorf("clickWijmoGridCell requires column")
	}
	rowKey, ok := params["rowKey"].(map[string]any)
	if !ok {
		return fmt.Errorf("clickWijmoGridCell requires rowKey{column, equals}")
	}
	keyColumn := stringParam(rowKey, "column")
	keyValue := stringParam(rowKey, "equals")
	if keyColumn == "" || keyValue == "" {
		return fmt.Errorf("rowKey requires both column and equals")
	}

	sc.logf("clickWijmoGridCell: grid=%s rowKey{%s=%s} column=%s", gridBy.Describe(), keyColumn, keyValue, column)

	grid, res, err := sc.Resolver.Resolve(ctx, page, gridBy, sc.StepTimeout)
	if res != nil {
		sc.AddNotes(res.Notes)
	}
	if err != nil {
		return err
	}

	keyIdx, err := findColumnIndex(grid, keyColumn)
	if err != nil {
		return err
	}
	targetIdx, err := findColumnIndex(grid, column)
	if err != nil {
		return err
	}

	cell, err := findCellWithScroll(ctx, grid, keyIdx, keyValue, targetIdx, sc)
	if err != nil {
		return err
	}
	return cell.Click()
}

func (clickWijmoGridCellHandler) Schema() any { return &ClickWijmoGridCellParams{} }

// findColumnIndex scans the header row for the named column.
func findColumnIndex(grid driver.Locator, column string) (int, error) {
	headers := grid.CSS(wijmoHeaderCells)
	count, err := headers.Count()
	if err != nil {
		return 0, err
	}
	for i := 0; i < count; i++ {
		text, err := headers.Nth(i).TextContent()
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in grid header", column)
}

// findCellWithScroll walks the rendered rows looking for the key match,
// scrolling the panel a viewport at a time when the row is not yet
// rendered.
func findCellWithScroll(ctx context.Context, grid driver.Locator, keyIdx int, keyValue string, targetIdx int, sc *Context) (driver.Locator, error) {
	panel := grid.CSS(wijmoCellsPanel)

	for attempt := 0; attempt < maxGridScrollAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rows := panel.CSS(wijmoRow)
		rowCount, err := rows.Count()
		if err != nil {
			return nil, err
		}

		for r := 0; r < rowCount; r++ {
			cells := rows.Nth(r).CSS(wijmoCell)
			cellCount, err := cells.Count()
			if err != nil {
				return nil, err
			}
			if keyIdx >= cellCount || targetIdx >= cellCount {
				continue
			}
			text, err := cells.Nth(keyIdx).TextContent()
			if err != nil {
				continue
			}
			if strings.TrimSpace(text) == keyValue {
				return cells.Nth(targetIdx), nil
			}
		}

		sc.logf("clickWijmoGridCell: row %q not rendered, scrolling (attempt %d/%d)", keyValue, attempt+1, maxGridScrollAttempts)
		if _, err := panel.Evaluate("el => el.scrollTop += el.clientHeight"); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("row with %q not found after %d scroll attempts", keyValue, maxGridScrollAttempts)
}
