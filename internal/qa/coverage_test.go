package qa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryJSON = `{
  "total": {
    "lines": {"total": 200, "covered": 170, "skipped": 0, "pct": 85},
    "statements": {"total": 210, "covered": 176, "skipped": 0, "pct": 83.8},
    "functions": {"total": 40, "covered": 30, "skipped": 0, "pct": 75},
    "branches": {"total": 0, "covered": 0, "skipped": 0, "pct": "Unknown"}
  },
  "src/camera.ts": {
    "lines": {"total": 10, "covered": 1, "skipped": 0, "pct": 10}
  }
}`

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary(strings.NewReader(summaryJSON))
	require.NoError(t, err)

	assert.Equal(t, Metric{Total: 200, Covered: 170, Pct: 85}, s.Lines)
	assert.Equal(t, Percent(83.8), s.Statements.Pct)
	assert.Equal(t, Percent(75), s.Functions.Pct)
	assert.Equal(t, Percent(100), s.Branches.Pct, "Unknown counts as fully covered")
}

func TestParseSummaryErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not_json", doc: "lines: 80"},
		{name: "no_total", doc: `{"src/a.ts": {}}`},
		{name: "bad_pct", doc: `{"total": {"lines": {"pct": "lots"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSummary(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseSummaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage-summary.json")
	require.NoError(t, os.WriteFile(path, []byte(summaryJSON), 0644))

	s, err := ParseSummaryFile(path)
	require.NoError(t, err)
	assert.Equal(t, 170, s.Lines.Covered)

	_, err = ParseSummaryFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestThresholdsCheck(t *testing.T) {
	s, err := ParseSummary(strings.NewReader(summaryJSON))
	require.NoError(t, err)

	tests := []struct {
		name       string
		thresholds Thresholds
		want       []string
	}{
		{name: "disabled", thresholds: Thresholds{}},
		{name: "all_met", thresholds: Thresholds{Lines: 80, Branches: 70, Functions: 75, Statements: 80}},
		{name: "functions_short", thresholds: Thresholds{Lines: 80, Functions: 80}, want: []string{"functions"}},
		{name: "fixed_order", thresholds: Thresholds{Statements: 90, Lines: 90}, want: []string{"lines", "statements"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, v := range tt.thresholds.Check(s) {
				got = append(got, v.Metric)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholdsEnforce(t *testing.T) {
	s := Summary{Lines: Metric{Pct: 60}, Branches: Metric{Pct: 50}}

	err := Thresholds{Lines: 70, Branches: 60}.Enforce(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThreshold)

	var terr *ThresholdError
	require.ErrorAs(t, err, &terr)
	assert.Len(t, terr.Violations, 2)
	assert.Equal(t, "qa: coverage below threshold: lines 60.00% < 70.00%, branches 50.00% < 60.00%", err.Error())

	assert.NoError(t, Thresholds{Lines: 60}.Enforce(s))
}
