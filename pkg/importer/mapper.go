package importer

import (
	"strings"
)

// kindToStep maps raw action kinds onto scenario step types. The table
// is total on recognized forms.
var kindToStep = map[string]string{
	"goto":           "goto",
	"click":          "click",
	"dblclick":       "dblclick",
	"fill":           "fill",
	"press":          "press",
	"check":          "check",
	"uncheck":        "uncheck",
	"select_option":  "selectOption",
	"scroll":         "scroll",
	"expect_visible": "expectVisible",
	"expect_hidden":  "expectHidden",
	"expect_text":    "expectText",
	"expect_url":     "expectUrl",
}

// locatorMethodToKey maps recorder locator methods onto selector keys.
var locatorMethodToKey = map[string]string{
	"get_by_role":        "role",
	"get_by_test_id":     "testId",
	"get_by_label":       "label",
	"get_by_placeholder": "placeholder",
	"get_by_text":        "text",
	"locator":            "css",
}

// NormalizeLocator canonicalizes a recorded locator string: every
// redundant css= engine prefix is stripped and trailing whitespace
// collapsed. Quoting inside the locator is left unchanged. Normalization
// is idempotent.
func NormalizeLocator(value string) string {
	value = strings.TrimRight(value, " \t")
	for strings.HasPrefix(value, "css=") {
		value = value[len("css="):]
	}
	return value
}

// MapActions converts the raw action stream into scenario step bodies.
// Actions whose locator chain cannot be expressed produce a warning.
func MapActions(actions []RawAction) ([]map[string]any, []Warning) {
	var steps []map[string]any
	var warnings []Warning

	for _, action := range actions {
		step, warn := mapAction(action)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		if step != nil {
			steps = append(steps, step)
		}
	}
	return steps, warnings
}

func mapAction(action RawAction) (map[string]any, *Warning) {
	stepType, ok := kindToStep[action.Kind]
	if !ok {
		return nil, &Warning{Line: action.Line, Message: "unknown action kind " + action.Kind}
	}

	body := map[string]any{}

	switch stepType {
	case "goto", "expectUrl":
		if url, ok := action.Args["url"].(string); ok {
			body["url"] = url
		}
		return map[string]any{stepType: body}, nil
	case "scroll":
		body["deltaX"] = action.Args["deltaX"]
		body["deltaY"] = action.Args["deltaY"]
		return map[string]any{stepType: body}, nil
	}

	by, err := buildBySelector(action.LocatorChain)
	if err != nil {
		return nil, &Warning{Line: action.Line, Message: err.Error()}
	}
	body["by"] = by
	if action.Frame != "" {
		body["frame"] = action.Frame
	}

	switch stepType {
	case "fill", "selectOption":
		if v, ok := action.Args["value"].(string); ok {
			body["value"] = v
		}
	case "press":
		if k, ok := action.Args["key"].(string); ok {
			body["key"] = k
		}
	case "expectText":
		if t, ok := action.Args["text"].(string); ok {
			body["text"] = t
		}
	}
	return map[string]any{stepType: body}, nil
}

// buildBySelector converts a locator chain into a by selector mapping:
//
//	[get_by_role, button, name=Submit] -> {role: button, name: Submit}
//	[locator, #email]                  -> {css: "#email"}
func buildBySelector(chain []string) (map[string]any, error) {
	if len(chain) == 0 {
		return nil, errEmptyChain
	}
	method := chain[0]
	key, ok := locatorMethodToKey[method]
	if !ok {
		return nil, &chainError{method: method}
	}
	if len(chain) < 2 {
		return nil, &chainError{method: method, missingValue: true}
	}

	by := map[string]any{}
	switch method {
	case "get_by_role":
		by["role"] = chain[1]
		for _, item := range chain[2:] {
			k, v, found := strings.Cut(item, "=")
			if !found {
				continue
			}
			switch v {
			case "True":
				by[k] = true
			case "False":
				by[k] = false
			default:
				by[k] = v
			}
		}
	case "locator":
		by["css"] = NormalizeLocator(chain[1])
	default:
		by[key] = chain[1]
	}
	return by, nil
}

var errEmptyChain = &chainError{}

type chainError struct {
	method       string
	missingValue bool
}

func (e *chainError) Error() string {
	switch {
	case e.method == "":
		return "empty locator chain"
	case e.missingValue:
		return "locator method " + e.method + " is missing its value"
	default:
		return "unsupported locator method " + e.method
	}
}
