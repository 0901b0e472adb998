package qa

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResults() []TaskResult {
	return []TaskResult{
		{Task: Task{Name: "lint", Kind: KindLint}, Status: StatusPass, Duration: 1200 * time.Millisecond},
		{
			Task:     Task{Name: "test", Kind: KindTest},
			Status:   StatusFail,
			ExitCode: 1,
			Output:   "FAIL camera overlay",
			Err:      errors.New("qa: test exited with 1"),
		},
	}
}

// splitFrontMatter returns the YAML block and the markdown body.
func splitFrontMatter(t *testing.T, doc string) (string, string) {
	t.Helper()
	require.True(t, strings.HasPrefix(doc, "---\n"))
	rest := strings.TrimPrefix(doc, "---\n")
	idx := strings.Index(rest, "---\n")
	require.GreaterOrEqual(t, idx, 0)
	return rest[:idx], rest[idx+len("---\n"):]
}

func TestNewReportStatus(t *testing.T) {
	pass := []TaskResult{{Task: Task{Name: "lint"}, Status: StatusPass}}

	assert.Equal(t, StatusPass, NewReport("mobile", pass, nil, nil).Status)
	assert.Equal(t, StatusFail, NewReport("mobile", sampleResults(), nil, nil).Status)
	assert.Equal(t, StatusFail, NewReport("mobile", pass, nil, []Violation{{Metric: "lines"}}).Status)

	a, b := NewReport("mobile", pass, nil, nil), NewReport("mobile", pass, nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestWriteMarkdown(t *testing.T) {
	cov := &Summary{Lines: Metric{Total: 10, Covered: 8, Pct: 80}}
	violations := []Violation{{Metric: "lines", Actual: 80, Minimum: 85}}
	r := NewReport("mobile", sampleResults(), cov, violations)
	r.Date = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))

	front, body := splitFrontMatter(t, buf.String())

	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(front), &fm))
	assert.Equal(t, r.ID, fm.ID)
	assert.Equal(t, "mobile", fm.Package)
	assert.Equal(t, StatusFail, fm.Status)
	assert.Equal(t, map[string]int{"pass": 1, "fail": 1}, fm.Tasks)
	require.NotNil(t, fm.Coverage)
	assert.Equal(t, 8, fm.Coverage.Lines.Covered)
	assert.Equal(t, violations, fm.Violations)

	assert.Contains(t, body, "# Validation report: mobile (2026-03-04)")
	assert.Contains(t, body, "**Status:** FAIL")
	assert.Contains(t, body, "| lint | lint | pass | 0 | 1.2s |")
	assert.Contains(t, body, "| lines | 8 | 10 | 80.00% |")
	assert.Contains(t, body, "- lines 80.00% < 85.00%")
	assert.Contains(t, body, "## Failure: test")
	assert.Contains(t, body, "FAIL camera overlay")
	assert.NotContains(t, body, "## Failure: lint")
}

func TestWriteMarkdownNoTasks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReport("shared", nil, nil, nil).WriteMarkdown(&buf))
	assert.Contains(t, buf.String(), "No tasks configured.")
	assert.NotContains(t, buf.String(), "## Coverage")
}

func TestSaveNamesByDateAndPackage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs", "validation")
	r := NewReport("mobile/app", sampleResults(), nil, nil)
	r.Date = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	first, err := r.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-03-04-mobile-app.md"), first)

	second, err := r.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2026-03-04-mobile-app-2.md"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "package: mobile/app")

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSaveConcurrentWritersGetDistinctFiles(t *testing.T) {
	dir := t.TempDir()

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := NewReport("shared", nil, nil, nil)
			r.Date = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
			p, err := r.Save(dir)
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate report path %s", p)
		seen[p] = true
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "mobile", slug("mobile"))
	assert.Equal(t, "mobile-app", slug("./mobile/app/"))
	assert.Equal(t, "root", slug("."))
	assert.Equal(t, "shared-ui", slug("Shared UI"))
}
