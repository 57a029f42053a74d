package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"

	"github.com/roach88/stepwise/internal/scenario"
)

// TextOptions controls the terminal rendering.
type TextOptions struct {
	// Color enables ANSI colors.
	Color bool

	// Rerun is the command line prefix used for the rerun hint, e.g.
	// ["stepwise", "run", "scenarios/"]. Empty disables the hint.
	Rerun []string
}

type palette struct {
	pass, fail, skip, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		skip: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.skip, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// WriteText renders one line per scenario, the failed steps of failed
// scenarios, a summary and a rerun hint.
func WriteText(w io.Writer, rep *Report, opts TextOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	for _, s := range rep.Scenarios {
		label := p.pass.Sprint("PASS")
		if !s.Passed() {
			label = p.fail.Sprint("FAIL")
		}
		fmt.Fprintf(&b, "%s  %s %s\n", label, s.Scenario, p.dim.Sprintf("(%s)", formatDuration(s.Duration())))
		if s.Passed() {
			continue
		}
		for _, o := range s.Failures() {
			fmt.Fprintf(&b, "      %s step %d %q: %s (attempts %d/%d)\n",
				p.fail.Sprintf("[%s]", o.Failure), o.Index, o.Name, o.ErrorDetail, o.Attempts, o.MaxAttempts)
		}
		if n := s.CountStatus(scenario.StatusSkipped); n > 0 {
			b.WriteString("      " + p.skip.Sprint(plural(n, "step")+" skipped") + "\n")
		}
	}

	summary := fmt.Sprintf("%d/%d scenarios passed", rep.Passed, rep.Total)
	if rep.OK() {
		summary = p.pass.Sprint(summary)
	} else {
		summary = p.fail.Sprint(summary)
	}
	fmt.Fprintf(&b, "\n%s\n", summary)

	if hint := rerunHint(opts.Rerun, rep.FailedNames()); hint != "" {
		fmt.Fprintf(&b, "Rerun failed scenarios: %s\n", hint)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// rerunHint builds a shell-safe command selecting exactly the failed
// scenarios.
func rerunHint(prefix, failed []string) string {
	if len(prefix) == 0 || len(failed) == 0 {
		return ""
	}
	args := make([]string, 0, len(prefix)+2*len(failed))
	for _, a := range prefix {
		args = append(args, shellescape.Quote(a))
	}
	for _, name := range failed {
		args = append(args, "--run", shellescape.Quote("^"+regexp.QuoteMeta(name)+"$"))
	}
	return strings.Join(args, " ")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
