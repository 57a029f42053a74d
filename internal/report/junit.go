package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/stepwise/internal/scenario"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	ID        string      `xml:"id,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes the report as JUnit XML: one testsuite for the run,
// one testcase per scenario.
func WriteJUnit(w io.Writer, rep *Report) error {
	suite := junitSuite{
		Name:      "stepwise",
		ID:        rep.RunID,
		Tests:     rep.Total,
		Failures:  rep.Failed,
		Time:      seconds(rep.Duration()),
		Timestamp: rep.StartedAt.UTC().Format(time.RFC3339),
	}
	for _, s := range rep.Scenarios {
		tc := junitCase{
			Name:      s.Scenario,
			Classname: classname(s.Result),
			Time:      seconds(s.Duration()),
		}
		if failures := s.Failures(); len(failures) > 0 {
			first := failures[0]
			lines := make([]string, len(failures))
			for i, o := range failures {
				lines[i] = fmt.Sprintf("[%s] step %d %q: %s", o.Failure, o.Index, o.Name, o.ErrorDetail)
			}
			tc.Failure = &junitFailure{
				Message: first.ErrorDetail,
				Type:    string(first.Failure),
				Text:    strings.Join(lines, "\n"),
			}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	doc := junitSuites{
		Name:     "stepwise",
		Tests:    rep.Total,
		Failures: rep.Failed,
		Time:     suite.Time,
		Suites:   []junitSuite{suite},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// classname groups test cases by their source file.
func classname(r *scenario.Result) string {
	if r.Source == "" {
		return "stepwise"
	}
	return r.Source
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
