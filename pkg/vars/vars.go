// Package vars implements lazy ${env.X} / ${vars.X} substitution over
// step fields. Expansion happens at step execution time, never at parse
// time, so values captured by storeText/storeAttr are visible to later
// steps.
package vars

import (
	"fmt"
	"regexp"
)

// refRe matches the two recognized reference namespaces.
var refRe = regexp.MustCompile(`\$\{(env|vars)\.([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// unresolvedRe detects any leftover ${...} form after expansion.
var unresolvedRe = regexp.MustCompile(`\$\{[^}]+\}`)

// NotFoundError is raised when a reference names an undefined variable
// or uses an unrecognized form.
type NotFoundError struct {
	Namespace string
	Name      string
	Step      string
}

func (e *NotFoundError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %q: undefined variable reference ${%s.%s}", e.Step, e.Namespace, e.Name)
	}
	return fmt.Sprintf("undefined variable reference ${%s.%s}", e.Namespace, e.Name)
}

// RefRe exposes the reference pattern for callers that scan step fields
// for variable usage.
func RefRe() *regexp.Regexp { return refRe }

// Expander resolves variable references against a process environment
// snapshot and the runtime scenario variables. The env map is fixed at
// construction; vars grow via SetVar during a run.
type Expander struct {
	env  map[string]string
	vars map[string]string
}

// NewExpander builds an expander. Both maps are copied.
func NewExpander(env, scenarioVars map[string]string) *Expander {
	e := &Expander{
		env:  make(map[string]string, len(env)),
		vars: make(map[string]string, len(scenarioVars)),
	}
	for k, v := range env {
		e.env[k] = v
	}
	for k, v := range scenarioVars {
		e.vars[k] = v
	}
	return e
}

// SetVar extends the runtime variable environment. Used by capture steps.
func (e *Expander) SetVar(name, value string) {
	e.vars[name] = value
}

// Var returns a runtime variable and whether it is defined.
func (e *Expander) Var(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Vars returns a copy of the runtime variable environment.
func (e *Expander) Vars() map[string]string {
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Expand substitutes every reference in text. Expansion is idempotent:
// expanded output contains no ${...} forms, so a second pass is a no-op.
func (e *Expander) Expand(text string) (string, error) {
	var refErr error
	result := refRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := refRe.FindStringSubmatch(match)
		namespace, name := groups[1], groups[2]
		var val string
		var ok bool
		switch namespace {
		case "env":
			val, ok = e.env[name]
		case "vars":
			val, ok = e.vars[name]
		}
		if !ok {
			if refErr == nil {
				refErr = &NotFoundError{Namespace: namespace, Name: name}
			}
			return match
		}
		return val
	})
	if refErr != nil {
		return "", refErr
	}
	if m := unresolvedRe.FindString(result); m != "" {
		return "", fmt.Errorf("unrecognized variable reference %s (use ${env.X} or ${vars.X})", m)
	}
	return result, nil
}

// ExpandValue recursively expands every string inside a decoded step
// payload. Keys are never expanded. Non-string leaves pass through.
func (e *Expander) ExpandValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return e.Expand(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			expanded, err := e.ExpandValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := e.ExpandValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return value, nil
	}
}

// ExpandStep expands a step body into a new map, leaving the input intact.
func (e *Expander) ExpandStep(body map[string]any) (map[string]any, error) {
	out, err := e.ExpandValue(body)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	return m, nil
}
