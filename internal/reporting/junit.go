package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one stage audit.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one auditor, plus one case for the consensus decision.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure is an auditor or consensus that did not pass the document.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError is an auditor that produced no response.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

const consensusCase = "consensus"

// ConvertToJUnit converts an audit result to JUnit XML types.
func ConvertToJUnit(result *models.AuditResult, timestamp time.Time) *JUnitTestSuites {
	durationSec := float64(result.DurationMs) / 1000.0
	classname := "council." + string(result.Stage)

	suite := JUnitTestSuite{
		Name:      fmt.Sprintf("Council audit: %s", result.Stage),
		Time:      durationSec,
		Timestamp: timestamp.UTC().Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "request_id", Value: result.RequestID},
			{Name: "stage", Value: string(result.Stage)},
			{Name: "decision", Value: string(result.Decision())},
			{Name: "calls", Value: fmt.Sprint(result.Calls)},
			{Name: "cached", Value: fmt.Sprint(result.Cached)},
		},
	}
	if c := result.Consensus; c != nil {
		suite.Properties = append(suite.Properties,
			JUnitProperty{Name: "weighted_average", Value: fmt.Sprintf("%.4f", c.WeightedAverage)},
			JUnitProperty{Name: "agreement_level", Value: fmt.Sprintf("%.4f", c.AgreementLevel)},
		)
	}

	for i := range result.Responses {
		tc := convertResponse(classname, &result.Responses[i])
		if tc.Failure != nil {
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	for _, f := range result.Failures {
		errType := "ExecutionError"
		if f.BudgetExceeded {
			errType = "BudgetExceeded"
		}
		suite.Errors++
		suite.TestCases = append(suite.TestCases, JUnitTestCase{
			Name:      string(f.Role),
			Classname: classname,
			Error:     &JUnitError{Message: f.Error, Type: errType},
		})
	}

	decision := JUnitTestCase{Name: consensusCase, Classname: classname, Time: durationSec}
	if !result.Consensus.Passed() {
		decision.Failure = consensusFailure(result)
		suite.Failures++
	}
	suite.TestCases = append(suite.TestCases, decision)
	suite.Tests = len(suite.TestCases)

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertResponse(classname string, r *models.AuditorResponse) JUnitTestCase {
	tc := JUnitTestCase{Name: string(r.AuditorRole), Classname: classname}
	if r.OverallAssessment.OverallPass {
		return tc
	}

	var body strings.Builder
	for _, d := range models.AllDimensions {
		ds := r.ScoresDetailed.Get(d)
		if !ds.Pass {
			fmt.Fprintf(&body, "[FAIL] %s: score=%d — %s\n", d, ds.Score, ds.Justification)
		}
	}
	for _, bi := range r.BlockingIssues {
		fmt.Fprintf(&body, "[%s] %s: %s\n", strings.ToUpper(string(bi.Severity)), bi.Category, bi.Description)
	}
	tc.Failure = &JUnitFailure{
		Message: fmt.Sprintf("%s: average=%.2f", r.AuditorRole, r.OverallAssessment.AverageScore),
		Type:    "AuditorFailure",
		Body:    body.String(),
	}
	return tc
}

func consensusFailure(result *models.AuditResult) *JUnitFailure {
	if result.Consensus == nil {
		return &JUnitFailure{Message: "no auditor responded", Type: "ConsensusFailure"}
	}
	return &JUnitFailure{
		Message: fmt.Sprintf("decision=%s average=%.2f", result.Consensus.FinalDecision, result.Consensus.WeightedAverage),
		Type:    "ConsensusFailure",
		Body:    strings.Join(result.Consensus.FailureReasons, "\n"),
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(result *models.AuditResult, path string) error {
	suites := ConvertToJUnit(result, time.Now())

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
