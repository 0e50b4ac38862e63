// Package junit reads JUnit XML reports produced by test runners.
package junit

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// DefaultPattern is where flavors write their reports unless configured.
const DefaultPattern = "build/test-results/*.xml"

// ErrNoReports is returned when no report matches the pattern.
var ErrNoReports = errors.NewError(errors.CategoryStage, "no junit report found").UserAction().Build()

type testCase struct {
	Name    string    `xml:"name,attr"`
	Class   string    `xml:"classname,attr"`
	Failure *struct{} `xml:"failure"`
	Error   *struct{} `xml:"error"`
	Skipped *struct{} `xml:"skipped"`
}

type testSuite struct {
	Name   string      `xml:"name,attr"`
	Suites []testSuite `xml:"testsuite"`
	Cases  []testCase  `xml:"testcase"`
}

// Summary counts test cases across one or more reports.
type Summary struct {
	Files    []string
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	// Failed lists "class.name" of failing or erroring cases.
	Failed []string
}

// Passed reports whether no case failed or errored.
func (s Summary) Passed() bool { return s.Failures == 0 && s.Errors == 0 }

func (s Summary) String() string {
	return fmt.Sprintf("%d tests, %d failures, %d errors, %d skipped", s.Tests, s.Failures, s.Errors, s.Skipped)
}

// Parse adds the cases in one report to s. Both a <testsuites> root and a bare
// <testsuite> root are accepted.
func (s *Summary) Parse(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return errors.ValidationError("junit report has no root element").Build()
		}
		if err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "malformed junit report").Build()
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "testsuites", "testsuite":
			var root testSuite
			if err := dec.DecodeElement(&root, &start); err != nil {
				return errors.WrapError(err, errors.CategoryValidation, "malformed junit report").Build()
			}
			s.add(root)
			return nil
		default:
			return errors.ValidationError("unexpected junit root element").
				WithContext("element", start.Name.Local).Build()
		}
	}
}

func (s *Summary) add(suite testSuite) {
	for _, c := range suite.Cases {
		s.Tests++
		switch {
		case c.Failure != nil:
			s.Failures++
			s.Failed = append(s.Failed, caseName(c))
		case c.Error != nil:
			s.Errors++
			s.Failed = append(s.Failed, caseName(c))
		case c.Skipped != nil:
			s.Skipped++
		}
	}
	for _, child := range suite.Suites {
		s.add(child)
	}
}

func caseName(c testCase) string {
	if c.Class == "" {
		return c.Name
	}
	return c.Class + "." + c.Name
}

// Collect parses every report matching pattern in store. It fails when nothing
// matches or any report is unreadable.
func Collect(store ci.FileStore, pattern string) (Summary, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := store.Glob(pattern)
	if err != nil {
		return Summary{}, errors.WrapError(err, errors.CategoryValidation, "invalid junit report pattern").
			WithContext("pattern", pattern).Build()
	}
	if len(files) == 0 {
		return Summary{}, ErrNoReports.WithContext("pattern", pattern)
	}
	var s Summary
	for _, f := range files {
		data, err := store.Read(f)
		if err != nil {
			return s, errors.WrapError(err, errors.CategoryFileSystem, "read junit report").
				WithContext("path", f).Build()
		}
		if err := s.Parse(data); err != nil {
			if c, ok := errors.AsClassified(err); ok {
				return s, c.WithContext("path", f)
			}
			return s, err
		}
		s.Files = append(s.Files, f)
	}
	return s, nil
}
