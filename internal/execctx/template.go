package execctx

import (
	"regexp"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var templateRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// HasTemplate reports whether s contains a ${...} reference.
func HasTemplate(s string) bool {
	return templateRef.MatchString(s)
}

// Expand substitutes every ${path} in s. Strings are inserted verbatim,
// other values as compact JSON.
func (c *Context) Expand(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}
	var firstErr error
	out := templateRef.ReplaceAllStringFunc(s, func(m string) string {
		path := strings.TrimSpace(m[2 : len(m)-1])
		v, ok := c.Lookup(path)
		if !ok {
			if firstErr == nil {
				firstErr = &UndefinedError{Path: path}
			}
			return m
		}
		return Display(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Resolve converts a decoded YAML value into a JSON value, expanding
// templates in every string. A string consisting of exactly one reference
// keeps the referenced value's type, so `value: "${page_size}"` compares as
// a number.
func (c *Context) Resolve(v any) (ldvalue.Value, error) {
	switch val := v.(type) {
	case string:
		if m := templateRef.FindStringSubmatchIndex(val); m != nil && m[0] == 0 && m[1] == len(val) {
			path := strings.TrimSpace(val[m[2]:m[3]])
			ref, ok := c.Lookup(path)
			if !ok {
				return ldvalue.Null(), &UndefinedError{Path: path}
			}
			return ref, nil
		}
		s, err := c.Expand(val)
		if err != nil {
			return ldvalue.Null(), err
		}
		return ldvalue.String(s), nil
	case map[string]any:
		b := ldvalue.ObjectBuild()
		for k, elem := range val {
			r, err := c.Resolve(elem)
			if err != nil {
				return ldvalue.Null(), err
			}
			b.Set(k, r)
		}
		return b.Build(), nil
	case []any:
		b := ldvalue.ArrayBuild()
		for _, elem := range val {
			r, err := c.Resolve(elem)
			if err != nil {
				return ldvalue.Null(), err
			}
			b.Add(r)
		}
		return b.Build(), nil
	default:
		return ldvalue.CopyArbitraryValue(v), nil
	}
}

// Display renders a value for string interpolation and reports.
func Display(v ldvalue.Value) string {
	if v.Type() == ldvalue.StringType {
		return v.StringValue()
	}
	return v.JSONString()
}
