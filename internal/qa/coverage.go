package qa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrThreshold is wrapped by ThresholdError.
var ErrThreshold = errors.New("qa: coverage below threshold")

// Percent accepts a number or the string "Unknown" that coverage tools emit
// when a metric has nothing to measure; the latter counts as 100.
type Percent float64

func (p *Percent) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte(`"Unknown"`)) {
		*p = 100
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("qa: bad coverage percentage %s: %w", data, err)
	}
	*p = Percent(f)
	return nil
}

type Metric struct {
	Total   int     `json:"total" yaml:"total"`
	Covered int     `json:"covered" yaml:"covered"`
	Pct     Percent `json:"pct" yaml:"pct"`
}

type Summary struct {
	Lines      Metric `json:"lines" yaml:"lines"`
	Branches   Metric `json:"branches" yaml:"branches"`
	Functions  Metric `json:"functions" yaml:"functions"`
	Statements Metric `json:"statements" yaml:"statements"`
}

// ParseSummary reads the "total" entry of a json-summary coverage report.
func ParseSummary(r io.Reader) (Summary, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Summary{}, fmt.Errorf("qa: decode coverage summary: %w", err)
	}
	raw, ok := doc["total"]
	if !ok {
		return Summary{}, errors.New("qa: coverage summary has no total entry")
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, fmt.Errorf("qa: decode coverage total: %w", err)
	}
	return s, nil
}

// ParseSummaryFile is ParseSummary on a file.
func ParseSummaryFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	return ParseSummary(f)
}

// Thresholds are minimum percentages; zero disables a check.
type Thresholds struct {
	Lines      float64
	Branches   float64
	Functions  float64
	Statements float64
}

type Violation struct {
	Metric  string  `yaml:"metric"`
	Actual  float64 `yaml:"actual"`
	Minimum float64 `yaml:"minimum"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %.2f%% < %.2f%%", v.Metric, v.Actual, v.Minimum)
}

// Check returns every metric of s below its threshold, in a fixed order.
func (t Thresholds) Check(s Summary) []Violation {
	checks := []struct {
		name string
		pct  Percent
		min  float64
	}{
		{"lines", s.Lines.Pct, t.Lines},
		{"branches", s.Branches.Pct, t.Branches},
		{"functions", s.Functions.Pct, t.Functions},
		{"statements", s.Statements.Pct, t.Statements},
	}

	var out []Violation
	for _, c := range checks {
		if c.min > 0 && float64(c.pct) < c.min {
			out = append(out, Violation{Metric: c.name, Actual: float64(c.pct), Minimum: c.min})
		}
	}
	return out
}

// ThresholdError carries the violations of a failed coverage check.
type ThresholdError struct {
	Violations []Violation
}

func (e *ThresholdError) Error() string {
	msg := ErrThreshold.Error()
	for i, v := range e.Violations {
		if i == 0 {
			msg += ": "
		} else {
			msg += ", "
		}
		msg += v.String()
	}
	return msg
}

func (e *ThresholdError) Unwrap() error {
	return ErrThreshold
}

// Enforce is Check returning a *ThresholdError when anything is violated.
func (t Thresholds) Enforce(s Summary) error {
	if v := t.Check(s); len(v) > 0 {
		return &ThresholdError{Violations: v}
	}
	return nil
}
