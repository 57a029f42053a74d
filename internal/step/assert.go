package step

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

// doAssert evaluates an assertion against the execution context.
func doAssert(a *scenario.Assertion, vars *execctx.Context) error {
	switch a.Op {
	case scenario.OpExists, scenario.OpNotExists:
		_, ok := vars.Lookup(a.Var)
		if ok == (a.Op == scenario.OpExists) {
			return nil
		}
		want, got := "defined", "undefined"
		if a.Op == scenario.OpNotExists {
			want, got = got, want
		}
		return Assertion(&AssertionError{Op: a.Op, Path: a.Var, Expected: want, Actual: got})
	}

	actual, ok := vars.Lookup(a.Var)
	if !ok {
		return &execctx.UndefinedError{Path: a.Var}
	}
	expected, err := vars.Resolve(a.Value)
	if err != nil {
		return err
	}

	if a.Each == "" {
		if err := check(a.Op, a.Var, actual, expected); err != nil {
			return Assertion(err)
		}
		return nil
	}

	if actual.Type() != ldvalue.ArrayType {
		return Assertion(&AssertionError{Op: "each", Path: a.Var, Expected: "an array", Actual: typeName(actual)})
	}
	for i := 0; i < actual.Count(); i++ {
		path := fmt.Sprintf("%s.%d.%s", a.Var, i, a.Each)
		elem, ok := execctx.Extract(actual.GetByIndex(i), a.Each)
		if !ok {
			return Assertion(&AssertionError{Op: a.Op, Path: path, Expected: "a value", Actual: "missing"})
		}
		if err := check(a.Op, path, elem, expected); err != nil {
			return Assertion(err)
		}
	}
	return nil
}

// check applies one operator. It returns nil when the check holds.
func check(op, path string, actual, expected ldvalue.Value) *AssertionError {
	fail := func(want string) *AssertionError {
		return &AssertionError{Op: op, Path: path, Expected: want, Actual: execctx.Display(actual)}
	}

	switch op {
	case scenario.OpEq:
		if !actual.Equal(expected) {
			return fail(execctx.Display(expected))
		}
	case scenario.OpNe:
		if actual.Equal(expected) {
			return fail("not " + execctx.Display(expected))
		}
	case scenario.OpLt, scenario.OpLte, scenario.OpGt, scenario.OpGte:
		c, ok := compare(actual, expected)
		if !ok {
			return &AssertionError{
				Op:       op,
				Path:     path,
				Expected: "a value comparable with " + execctx.Display(expected),
				Actual:   typeName(actual) + " " + execctx.Display(actual),
			}
		}
		if !ordered(op, c) {
			return fail(opSymbol(op) + " " + execctx.Display(expected))
		}
	case scenario.OpLenEq, scenario.OpLenLte, scenario.OpLenGte:
		n, ok := length(actual)
		if !ok {
			return &AssertionError{Op: op, Path: path, Expected: "a value with a length", Actual: typeName(actual)}
		}
		if !expected.IsNumber() {
			return &AssertionError{Op: op, Path: path, Expected: "a numeric length", Actual: execctx.Display(expected)}
		}
		want := expected.IntValue()
		holds := (op == scenario.OpLenEq && n == want) ||
			(op == scenario.OpLenLte && n <= want) ||
			(op == scenario.OpLenGte && n >= want)
		if !holds {
			return &AssertionError{
				Op:       op,
				Path:     path,
				Expected: fmt.Sprintf("length %s %d", lenSymbol(op), want),
				Actual:   fmt.Sprintf("length %d", n),
			}
		}
	case scenario.OpContains:
		if !contains(actual, expected) {
			return fail("to contain " + execctx.Display(expected))
		}
	case scenario.OpMatches:
		rx, err := regexp.Compile(expected.StringValue())
		if err != nil {
			return &AssertionError{Op: op, Path: path, Expected: "a valid pattern", Actual: err.Error()}
		}
		if !rx.MatchString(execctx.Display(actual)) {
			return fail("to match /" + rx.String() + "/")
		}
	case scenario.OpType:
		if got := typeName(actual); got != expected.StringValue() {
			return &AssertionError{Op: op, Path: path, Expected: expected.StringValue(), Actual: got}
		}
	case scenario.OpOneOf:
		if expected.Type() != ldvalue.ArrayType {
			return &AssertionError{Op: op, Path: path, Expected: "a list of candidates", Actual: execctx.Display(expected)}
		}
		for i := 0; i < expected.Count(); i++ {
			if actual.Equal(expected.GetByIndex(i)) {
				return nil
			}
		}
		return fail("one of " + expected.JSONString())
	default:
		return &AssertionError{Op: op, Path: path, Expected: "a known operator", Actual: op}
	}
	return nil
}

// compare orders two numbers or two strings.
func compare(a, b ldvalue.Value) (int, bool) {
	switch {
	case a.IsNumber() && b.IsNumber():
		x, y := a.Float64Value(), b.Float64Value()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case a.IsString() && b.IsString():
		return strings.Compare(a.StringValue(), b.StringValue()), true
	}
	return 0, false
}

func ordered(op string, c int) bool {
	switch op {
	case scenario.OpLt:
		return c < 0
	case scenario.OpLte:
		return c <= 0
	case scenario.OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

func opSymbol(op string) string {
	switch op {
	case scenario.OpLt:
		return "<"
	case scenario.OpLte:
		return "<="
	case scenario.OpGt:
		return ">"
	default:
		return ">="
	}
}

func lenSymbol(op string) string {
	switch op {
	case scenario.OpLenLte:
		return "<="
	case scenario.OpLenGte:
		return ">="
	default:
		return "=="
	}
}

func length(v ldvalue.Value) (int, bool) {
	switch v.Type() {
	case ldvalue.ArrayType, ldvalue.ObjectType:
		return v.Count(), true
	case ldvalue.StringType:
		return len([]rune(v.StringValue())), true
	}
	return 0, false
}

// contains checks substring, array membership or object key presence.
func contains(haystack, needle ldvalue.Value) bool {
	switch haystack.Type() {
	case ldvalue.StringType:
		return strings.Contains(haystack.StringValue(), execctx.Display(needle))
	case ldvalue.ArrayType:
		for i := 0; i < haystack.Count(); i++ {
			if haystack.GetByIndex(i).Equal(needle) {
				return true
			}
		}
	case ldvalue.ObjectType:
		return needle.IsString() && hasKey(haystack, needle.StringValue())
	}
	return false
}

// typeName returns the JSON type name used by the type check and expect_type.
func typeName(v ldvalue.Value) string {
	switch v.Type() {
	case ldvalue.BoolType:
		return "bool"
	case ldvalue.NumberType:
		return "number"
	case ldvalue.StringType:
		return "string"
	case ldvalue.ArrayType:
		return "array"
	case ldvalue.ObjectType:
		return "object"
	default:
		return "null"
	}
}
