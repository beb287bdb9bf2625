package resolver

import (
	"context"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// tryHealing retries a failed single selector with the fixed widening
// schedule: drop non-identifying filters, then search by the accessible
// name derived from the original, then by testId/label inferred from the
// target's semantics. Every attempt and its outcome lands in the
// resolution notes. Returns nil when no widened variant satisfies
// visible-and-strict.
func (r *Resolver) tryHealing(ctx context.Context, target driver.Target, original *schema.By, res *Resolution) driver.Locator {
	candidates := buildHealingCandidates(original)
	if len(candidates) == 0 {
		res.note("healing: no widened variants derivable from %s", original.Describe())
		return nil
	}

	for i := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		cand := &candidates[i]
		loc, err := Build(target, cand)
		if err != nil {
			res.note("healing: tried %s: unresolvable", cand.Describe())
			continue
		}
		count, err := loc.Count()
		if err != nil || count == 0 {
			res.note("healing: tried %s: no match", cand.Describe())
			continue
		}
		if count > 1 {
			res.note("healing: tried %s: multiple matches (%d)", cand.Describe(), count)
			continue
		}
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			res.note("healing: tried %s: not visible", cand.Describe())
			continue
		}
		res.note("healed %s -> %s", original.Describe(), cand.Describe())
		return loc
	}
	res.note("healing: all widened variants failed for %s", original.Describe())
	return nil
}

// buildHealingCandidates produces the ordered widening schedule for the
// original selector. The original's own variant is never repeated.
func buildHealingCandidates(original *schema.By) []schema.By {
	var out []schema.By

	switch original.Kind() {
	case schema.ByCSS:
		if original.Text != "" {
			// Drop the text filter, then search by its visible text.
			out = append(out,
				schema.By{CSS: original.CSS},
				schema.By{Text: original.Text},
				schema.By{Label: original.Text},
			)
		}
	case schema.ByRole:
		if original.Name != "" {
			// Drop the name filter, then treat the name as an identifier.
			out = append(out,
				schema.By{Role: original.Role},
				schema.By{TestID: original.Name},
				schema.By{Label: original.Name},
			)
		}
	case schema.ByTestID:
		out = append(out,
			schema.By{Role: "button", Name: original.TestID},
			schema.By{Label: original.TestID},
		)
	case schema.ByLabel:
		out = append(out,
			schema.By{TestID: original.Label},
			schema.By{Role: "textbox", Name: original.Label},
		)
	case schema.ByPlaceholder:
		out = append(out,
			schema.By{Label: original.Placeholder},
			schema.By{TestID: original.Placeholder},
		)
	case schema.ByText:
		out = append(out, schema.By{Label: original.Text})
	}
	return out
}
