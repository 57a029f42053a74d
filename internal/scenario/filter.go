package scenario

import (
	"fmt"
	"regexp"
	"strings"
)

// RegexList is a repeatable command line flag holding regular expressions.
// It satisfies pflag.Value.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r *RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser for every occurrence of the flag.
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

// Type names the flag value type in help output.
func (r *RegexList) Type() string {
	return "regex"
}

func (r *RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r *RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Filter selects scenarios by name and tag.
type Filter struct {
	MustMatch    RegexList
	MustNotMatch RegexList
	Tags         []string
}

// Match reports whether the scenario is selected. A scenario must match one
// of the --run patterns (if any), none of the --skip patterns, and carry
// every requested tag.
func (f *Filter) Match(s *Scenario) bool {
	if f.MustMatch.IsDefined() && !f.MustMatch.AnyMatch(s.Name) {
		return false
	}
	if f.MustNotMatch.AnyMatch(s.Name) {
		return false
	}
	for _, tag := range f.Tags {
		if !s.HasTag(tag) {
			return false
		}
	}
	return true
}

// Apply returns the selected scenarios in their original order.
func (f *Filter) Apply(scenarios []*Scenario) []*Scenario {
	var out []*Scenario
	for _, s := range scenarios {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Describe summarizes active criteria for the report header. Empty when no
// filter is set.
func (f *Filter) Describe() []string {
	var lines []string
	if f.MustMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any not matching %s", f.MustMatch.String()))
	}
	if f.MustNotMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any matching %s", f.MustNotMatch.String()))
	}
	if len(f.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("require tags %s", strings.Join(f.Tags, ", ")))
	}
	return lines
}
