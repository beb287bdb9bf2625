// Package resolver maps declarative By expressions onto live driver
// locators under the strictness discipline: a resolution succeeds only
// when exactly one visible element matches.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

// Sentinel errors forming the resolver's failure taxonomy.
var (
	ErrNoMatch   = errors.New("no matching element")
	ErrAmbiguous = errors.New("ambiguous selector: multiple elements match")
	ErrTimeout   = errors.New("element did not become visible in time")
)

// CandidateFailure records why one any-fallback candidate was rejected.
type CandidateFailure struct {
	Index    int    `json:"index"`
	Selector string `json:"selector"`
	Reason   string `json:"reason"`
}

// AllCandidatesFailedError carries the full ordered failure list when an
// any fallback exhausts its candidates.
type AllCandidatesFailedError struct {
	Failures []CandidateFailure
}

func (e *AllCandidatesFailedError) Error() string {
	lines := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		lines[i] = fmt.Sprintf("  [%d] %s: %s", f.Index, f.Selector, f.Reason)
	}
	return fmt.Sprintf("any fallback: all %d candidates failed:\n%s", len(e.Failures), strings.Join(lines, "\n"))
}

// Resolution carries diagnostics gathered while resolving: which fallback
// candidate won, and any healing attempts with their outcomes.
type Resolution struct {
	Notes []string
}

func (r *Resolution) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// DefaultCandidateTimeout bounds the per-candidate visibility wait inside
// an any fallback.
const DefaultCandidateTimeout = 2 * time.Second

// Resolver resolves By expressions against a driver target.
type Resolver struct {
	Healing          string // off, safe
	CandidateTimeout time.Duration
}

// New creates a resolver for the given healing mode.
func New(healing string) *Resolver {
	if healing == "" {
		healing = "off"
	}
	return &Resolver{Healing: healing, CandidateTimeout: DefaultCandidateTimeout}
}

// Build maps a single (non-any) selector onto its primitive driver
// locator call. The mapping is fixed and total over the closed By sum.
func Build(target driver.Target, by *schema.By) (driver.Locator, error) {
	switch by.Kind() {
	case schema.ByTestID:
		return target.ByTestID(by.TestID), nil
	case schema.ByRole:
		return target.ByRole(by.Role, by.Name, by.Exact), nil
	case schema.ByLabel:
		return target.ByLabel(by.Label), nil
	case schema.ByPlaceholder:
		return target.ByPlaceholder(by.Placeholder), nil
	case schema.ByCSS:
		return target.CSS(by.CSS, by.Text), nil
	case schema.ByText:
		return target.ByText(by.Text), nil
	case schema.ByAny:
		return nil, fmt.Errorf("any selector has no single locator mapping")
	}
	return nil, fmt.Errorf("unknown selector variant: %s", by.Describe())
}

// Resolve resolves a By expression to a locator matching exactly one
// visible element, within timeout. The returned Resolution carries
// fallback and healing diagnostics.
func (r *Resolver) Resolve(ctx context.Context, target driver.Target, by *schema.By, timeout time.Duration) (driver.Locator, *Resolution, error) {
	res := &Resolution{}
	if by.Kind() == schema.ByAny {
		loc, err := r.resolveAny(ctx, target, by.Any, res)
		return loc, res, err
	}

	loc, err := r.resolveSingle(ctx, target, by, timeout)
	if err == nil {
		return loc, res, nil
	}

	// Healing applies to single selectors under safe mode, and only to
	// NoMatch — strictness violations are never healed.
	if r.Healing == "safe" && errors.Is(err, ErrNoMatch) {
		if healed := r.tryHealing(ctx, target, by, res); healed != nil {
			return healed, res, nil
		}
	}
	return nil, res, fmt.Errorf("resolve %s: %w", by.Describe(), err)
}

// resolveSingle enforces the strictness contract on one selector.
func (r *Resolver) resolveSingle(ctx context.Context, target driver.Target, by *schema.By, timeout time.Duration) (driver.Locator, error) {
	loc, err := Build(target, by)
	if err != nil {
		return nil, err
	}

	count, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// Give the element its bounded chance to appear.
		if waitErr := loc.WaitFor("visible", timeout); waitErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNoMatch
		}
		if count, err = loc.Count(); err != nil {
			return nil, err
		}
	}
	if count > 1 && by.IsStrict() {
		return nil, fmt.Errorf("%w (%d matches)", ErrAmbiguous, count)
	}
	if count > 1 {
		loc = loc.First()
	}

	visible, err := loc.IsVisible()
	if err != nil {
		return nil, err
	}
	if !visible {
		if waitErr := loc.WaitFor("visible", timeout); waitErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		}
	}
	return loc, nil
}

// resolveAny tries candidates in declaration order and returns the first
// that satisfies visible-and-strict; later candidates are never probed.
func (r *Resolver) resolveAny(ctx context.Context, target driver.Target, candidates []schema.By, res *Resolution) (driver.Locator, error) {
	failures := make([]CandidateFailure, 0, len(candidates))

	for idx := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cand := &candidates[idx]
		desc := cand.Describe()

		loc, err := Build(target, cand)
		if err != nil {
			failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: "unresolvable selector"})
			continue
		}

		count, err := loc.Count()
		if err != nil {
			failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: err.Error()})
			continue
		}
		if count == 0 {
			if waitErr := loc.WaitFor("visible", r.CandidateTimeout); waitErr != nil {
				failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: "no match"})
				continue
			}
			if count, err = loc.Count(); err != nil || count == 0 {
				failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: "no match"})
				continue
			}
		}
		// Every candidate must match exactly one element; ambiguity is a
		// rejection regardless of any strict field on the candidate.
		if count > 1 {
			failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: fmt.Sprintf("multiple matches (%d)", count)})
			continue
		}

		visible, err := loc.IsVisible()
		if err != nil {
			failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: err.Error()})
			continue
		}
		if !visible {
			if waitErr := loc.WaitFor("visible", r.CandidateTimeout); waitErr != nil {
				failures = append(failures, CandidateFailure{Index: idx, Selector: desc, Reason: "not visible"})
				continue
			}
		}

		if idx > 0 {
			res.note("fell back to %s", shortDesc(cand))
		}
		return loc, nil
	}

	return nil, &AllCandidatesFailedError{Failures: failures}
}

// shortDesc renders a candidate compactly for fallback notes,
// e.g. css.button.save or testId.save.
func shortDesc(by *schema.By) string {
	switch by.Kind() {
	case schema.ByTestID:
		return "testId." + by.TestID
	case schema.ByRole:
		if by.Name != "" {
			return "role." + by.Role + "." + by.Name
		}
		return "role." + by.Role
	case schema.ByLabel:
		return "label." + by.Label
	case schema.ByPlaceholder:
		return "placeholder." + by.Placeholder
	case schema.ByCSS:
		return "css." + by.CSS
	case schema.ByText:
		return "text." + by.Text
	}
	return by.Describe()
}
