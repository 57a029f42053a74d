package scenario

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

var validOps = map[string]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpLenEq: true, OpLenLte: true, OpLenGte: true,
	OpContains: true, OpMatches: true, OpExists: true, OpNotExists: true,
	OpType: true, OpOneOf: true,
}

var validTypes = map[string]bool{
	"array": true, "object": true, "string": true, "number": true, "bool": true, "null": true,
}

// Validate checks required fields and per-kind parameters.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, st := range s.Steps {
		if err := validateStep(&st); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st *Step) error {
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}

	set := 0
	for _, present := range []bool{st.HTTP != nil, st.UI != nil, st.Assert != nil, st.Wait != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of http, ui, assert, wait is required (found %d)", set)
	}

	if st.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	if st.Retry != nil {
		if st.Retry.MaxAttempts < 1 {
			return fmt.Errorf("retry.max_attempts must be at least 1")
		}
		if st.Retry.BackoffMs < 0 {
			return fmt.Errorf("retry.backoff_ms must be non-negative")
		}
	}

	switch st.Kind() {
	case KindHTTP:
		return validateHTTP("http", st.HTTP)
	case KindUI:
		return validateUI("ui", st.UI)
	case KindAssert:
		return validateAssertion("assert", st.Assert)
	case KindWait:
		return validateWait(st.Wait)
	}
	return nil
}

func validateHTTP(field string, h *HTTPCall) error {
	if h.Method == "" {
		return fmt.Errorf("%s.method is required", field)
	}
	if !validMethods[strings.ToUpper(h.Method)] {
		return fmt.Errorf("%s.method %q is not a supported HTTP method", field, h.Method)
	}
	if h.Path == "" {
		return fmt.Errorf("%s.path is required", field)
	}
	if h.JSON != nil && h.Body != "" {
		return fmt.Errorf("%s: json and body are mutually exclusive", field)
	}
	for _, code := range h.ExpectStatus {
		if code < 100 || code > 599 {
			return fmt.Errorf("%s.expect_status: %d is not an HTTP status code", field, code)
		}
	}
	if h.ExpectType != "" && !validTypes[h.ExpectType] {
		return fmt.Errorf("%s.expect_type: unknown type %q", field, h.ExpectType)
	}
	for name, path := range h.Capture {
		if name == "" || path == "" {
			return fmt.Errorf("%s.capture: variable name and path are required", field)
		}
	}
	return nil
}

func validateUI(field string, u *UIAction) error {
	switch u.Action {
	case UINavigate:
		if u.URL == "" {
			return fmt.Errorf("%s.url is required for navigate", field)
		}
	case UIClick, UIWaitVisible:
		if u.Locator == "" {
			return fmt.Errorf("%s.locator is required for %s", field, u.Action)
		}
	case UIFill:
		if u.Locator == "" {
			return fmt.Errorf("%s.locator is required for fill", field)
		}
	case UIText:
		if u.Locator == "" {
			return fmt.Errorf("%s.locator is required for text", field)
		}
		if u.Capture == "" && u.ExpectText == "" {
			return fmt.Errorf("%s: text needs capture or expect_text", field)
		}
	case "":
		return fmt.Errorf("%s.action is required", field)
	default:
		return fmt.Errorf("%s.action: unknown action %q", field, u.Action)
	}
	return nil
}

func validateAssertion(field string, a *Assertion) error {
	if a.Var == "" {
		return fmt.Errorf("%s.var is required", field)
	}
	if a.Op == "" {
		return fmt.Errorf("%s.op is required", field)
	}
	if !validOps[a.Op] {
		return fmt.Errorf("%s.op: unknown operator %q", field, a.Op)
	}
	switch a.Op {
	case OpExists, OpNotExists:
		return nil
	case OpType:
		t, ok := a.Value.(string)
		if !ok || !validTypes[t] {
			return fmt.Errorf("%s.value: type requires one of array, object, string, number, bool, null", field)
		}
	case OpMatches:
		pattern, ok := a.Value.(string)
		if !ok {
			return fmt.Errorf("%s.value: matches requires a string pattern", field)
		}
		if !strings.Contains(pattern, "${") {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("%s.value: invalid pattern: %w", field, err)
			}
		}
	case OpOneOf:
		if _, ok := a.Value.([]any); !ok {
			return fmt.Errorf("%s.value: one_of requires a list", field)
		}
	default:
		if a.Value == nil {
			return fmt.Errorf("%s.value is required for %s", field, a.Op)
		}
	}
	return nil
}

func validateWait(w *Wait) error {
	if w.IntervalMs < 0 {
		return fmt.Errorf("wait.interval_ms must be non-negative")
	}
	if w.HTTP == nil && w.UI == nil && w.Assert == nil {
		return fmt.Errorf("wait needs at least one of http, ui, assert")
	}
	if w.HTTP != nil && w.UI != nil {
		return fmt.Errorf("wait: http and ui are mutually exclusive")
	}
	if w.HTTP != nil {
		if err := validateHTTP("wait.http", w.HTTP); err != nil {
			return err
		}
	}
	if w.UI != nil {
		if err := validateUI("wait.ui", w.UI); err != nil {
			return err
		}
	}
	if w.Assert != nil {
		if err := validateAssertion("wait.assert", w.Assert); err != nil {
			return err
		}
	}
	return nil
}
