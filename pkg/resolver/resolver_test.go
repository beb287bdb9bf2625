package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/schema"
)

func newTestResolver(healing string) *Resolver {
	r := New(healing)
	r.CandidateTimeout = 10 * time.Millisecond
	return r
}

// countingTarget records which locator primitives were probed, so
// ordering properties are observable.
type countingTarget struct {
	driver.Target
	probes []string
}

func (c *countingTarget) ByTestID(v string) driver.Locator {
	c.probes = append(c.probes, "testId:"+v)
	return c.Target.ByTestID(v)
}

func (c *countingTarget) ByRole(role, name string, exact *bool) driver.Locator {
	c.probes = append(c.probes, "role:"+role)
	return c.Target.ByRole(role, name, exact)
}

func (c *countingTarget) CSS(selector, hasText string) driver.Locator {
	c.probes = append(c.probes, "css:"+selector)
	return c.Target.CSS(selector, hasText)
}

func TestResolveSingleSelector(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "save", Visible: true},
	}}
	loc, _, err := newTestResolver("off").Resolve(context.Background(), page, &schema.By{TestID: "save"}, time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := loc.Click(); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if len(page.Actions) != 1 || page.Actions[0] != "click testId=save" {
		t.Errorf("actions = %v", page.Actions)
	}
}

func TestStrictDefaultRejectsMultipleMatches(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Role: "button", Name: "Save", Visible: true},
		{Role: "button", Name: "Save", Visible: true},
	}}
	_, _, err := newTestResolver("off").Resolve(context.Background(), page, &schema.By{Role: "button", Name: "Save"}, time.Millisecond)
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous", err)
	}
}

// Strictness violations are never healed: safe mode must return the
// identical ambiguity failure.
func TestHealingNeverAppliesToAmbiguous(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Role: "button", Name: "Save", Visible: true},
		{Role: "button", Name: "Save", Visible: true},
	}}
	_, _, err := newTestResolver("safe").Resolve(context.Background(), page, &schema.By{Role: "button", Name: "Save"}, time.Millisecond)
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous even under healing", err)
	}
}

func TestStrictFalseTakesFirstMatch(t *testing.T) {
	off := false
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Role: "button", Name: "Save", Visible: true, TestID: "first"},
		{Role: "button", Name: "Save", Visible: true, TestID: "second"},
	}}
	loc, _, err := newTestResolver("off").Resolve(context.Background(), page, &schema.By{Role: "button", Name: "Save", Strict: &off}, time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := loc.Click(); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if page.Actions[0] != "click testId=first" {
		t.Errorf("clicked %v, want the first match", page.Actions)
	}
}

func TestResolveNoMatch(t *testing.T) {
	page := &driver.FakePage{}
	_, _, err := newTestResolver("off").Resolve(context.Background(), page, &schema.By{TestID: "missing"}, time.Millisecond)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

// Property: the first satisfying candidate wins and later candidates are
// never probed.
func TestAnyFallbackOrdering(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Role: "button", Name: "Save", Visible: true},
		{Selector: "button.save", Visible: true},
	}}
	target := &countingTarget{Target: page}
	by := &schema.By{Any: []schema.By{
		{TestID: "save"},
		{Role: "button", Name: "Save"},
		{CSS: "button.save"},
	}}

	loc, res, err := newTestResolver("off").Resolve(context.Background(), target, by, time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc == nil {
		t.Fatal("nil locator")
	}
	for _, probe := range target.probes {
		if strings.HasPrefix(probe, "css:") {
			t.Errorf("later candidate probed after success: %v", target.probes)
		}
	}
	found := false
	for _, note := range res.Notes {
		if note == "fell back to role.button.Save" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing fallback note, got %v", res.Notes)
	}
}

// The E2 shape: only the third candidate exists; the resolver reports
// which one it fell back to.
func TestAnyFallbackToThirdCandidate(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Selector: "button.save", Visible: true},
	}}
	by := &schema.By{Any: []schema.By{
		{TestID: "save"},
		{Role: "button", Name: "Save"},
		{CSS: "button.save"},
	}}
	loc, res, err := newTestResolver("off").Resolve(context.Background(), page, by, time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc == nil {
		t.Fatal("nil locator")
	}
	want := "fell back to css.button.save"
	found := false
	for _, note := range res.Notes {
		if note == want {
			found = true
		}
	}
	if !found {
		t.Errorf("notes = %v, want %q", res.Notes, want)
	}
}

// Property: exhaustion reports exactly n (candidate, reason) pairs in
// declaration order.
func TestAnyExhaustionCarriesAllReasons(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Role: "button", Name: "Save", Visible: true},
		{Role: "button", Name: "Save", Visible: true},
		{Selector: "button.save", Visible: false},
	}}
	by := &schema.By{Any: []schema.By{
		{TestID: "save"},               // no match
		{Role: "button", Name: "Save"}, // multiple matches
		{CSS: "button.save"},           // not visible
	}}
	_, _, err := newTestResolver("off").Resolve(context.Background(), page, by, time.Millisecond)
	var all *AllCandidatesFailedError
	if !errors.As(err, &all) {
		t.Fatalf("err = %T, want AllCandidatesFailedError", err)
	}
	if len(all.Failures) != 3 {
		t.Fatalf("failures = %d, want 3", len(all.Failures))
	}
	wantReasons := []string{"no match", "multiple matches", "not visible"}
	for i, f := range all.Failures {
		if f.Index != i {
			t.Errorf("failure %d has index %d", i, f.Index)
		}
		if !strings.Contains(f.Reason, wantReasons[i]) {
			t.Errorf("failure %d reason = %q, want %q", i, f.Reason, wantReasons[i])
		}
	}
}

// Ambiguity rejects a candidate even when it carries strict: false —
// every any candidate must match exactly one element.
func TestAnyCandidateAmbiguityIgnoresStrictFalse(t *testing.T) {
	off := false
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{Selector: ".x", Visible: true},
		{Selector: ".x", Visible: true},
	}}
	by := &schema.By{Any: []schema.By{
		{CSS: ".x", Strict: &off},
		{TestID: "y"},
	}}
	_, _, err := newTestResolver("off").Resolve(context.Background(), page, by, time.Millisecond)
	var all *AllCandidatesFailedError
	if !errors.As(err, &all) {
		t.Fatalf("err = %v, want AllCandidatesFailedError", err)
	}
	if !strings.Contains(all.Failures[0].Reason, "multiple matches") {
		t.Errorf("candidate 0 reason = %q, want a multiple-matches rejection", all.Failures[0].Reason)
	}
}

func TestHealingWidensNoMatch(t *testing.T) {
	// The label selector misses, but an element with the label text as
	// its test id exists — the safe schedule finds it.
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "Email", Visible: true},
	}}
	loc, res, err := newTestResolver("safe").Resolve(context.Background(), page, &schema.By{Label: "Email"}, time.Millisecond)
	if err != nil {
		t.Fatalf("Resolve under healing: %v", err)
	}
	if loc == nil {
		t.Fatal("nil locator")
	}
	healed := false
	for _, note := range res.Notes {
		if strings.HasPrefix(note, "healed ") {
			healed = true
		}
	}
	if !healed {
		t.Errorf("healing outcome not recorded: %v", res.Notes)
	}
}

func TestHealingOffFailsImmediately(t *testing.T) {
	page := &driver.FakePage{Elements: []*driver.FakeElement{
		{TestID: "Email", Visible: true},
	}}
	_, _, err := newTestResolver("off").Resolve(context.Background(), page, &schema.By{Label: "Email"}, time.Millisecond)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch without healing", err)
	}
}

// The mapping from By variants onto driver primitives is total.
func TestBuildIsTotalOverSingleVariants(t *testing.T) {
	page := &driver.FakePage{}
	cases := []schema.By{
		{TestID: "a"},
		{Role: "button"},
		{Label: "a"},
		{Placeholder: "a"},
		{CSS: "#a"},
		{Text: "a"},
	}
	for _, by := range cases {
		if _, err := Build(page, &by); err != nil {
			t.Errorf("Build(%s): %v", by.Describe(), err)
		}
	}
	if _, err := Build(page, &schema.By{Any: []schema.By{{TestID: "a"}, {Label: "b"}}}); err == nil {
		t.Error("Build should reject any selectors")
	}
}
