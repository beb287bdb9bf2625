package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uiflow/uiflow/pkg/runner"
)

type junitTestSuites struct {
	XMLName xml.Name       `xml:"testsuites"`
	Suite   junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit writes junit.xml: one testcase per step, failure text from
// the step error.
func WriteJUnit(res *runner.ScenarioResult, outDir string) (string, error) {
	summary := res.Summarize()
	suite := junitTestSuite{
		Name:     res.Title,
		Tests:    summary.Total,
		Failures: summary.Failed,
		Skipped:  summary.Skipped,
		Time:     fmt.Sprintf("%.3f", res.DurationMS/1000),
	}

	for _, step := range res.Steps {
		tc := junitTestCase{
			Name:      step.StepName,
			Classname: res.Title,
			Time:      fmt.Sprintf("%.3f", step.DurationMS/1000),
		}
		if step.Status == "failed" && step.Error != "" {
			tc.Failure = &junitFailure{Message: step.Error, Text: step.Error}
		}
		if step.Status == "skipped" {
			tc.Skipped = &struct{}{}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	data, err := xml.MarshalIndent(junitTestSuites{Suite: suite}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal junit: %w", err)
	}

	path := filepath.Join(outDir, "junit.xml")
	content := []byte(xml.Header + string(data) + "\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write junit.xml: %w", err)
	}
	return path, nil
}
