package qa

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Report is one dated validation run for one package.
type Report struct {
	ID         string
	Date       time.Time
	Package    string
	Status     Status
	Tasks      []TaskResult
	Coverage   *Summary
	Violations []Violation
}

// NewReport summarises a run. The report fails when any task failed or a
// coverage threshold was violated.
func NewReport(pkg string, results []TaskResult, coverage *Summary, violations []Violation) *Report {
	status := StatusPass
	if len(violations) > 0 {
		status = StatusFail
	}
	for _, r := range results {
		if r.Status == StatusFail {
			status = StatusFail
		}
	}

	return &Report{
		ID:         uuid.NewString(),
		Date:       time.Now(),
		Package:    pkg,
		Status:     status,
		Tasks:      results,
		Coverage:   coverage,
		Violations: violations,
	}
}

type frontMatter struct {
	ID         string         `yaml:"id"`
	Date       string         `yaml:"date"`
	Package    string         `yaml:"package"`
	Status     Status         `yaml:"status"`
	Tasks      map[string]int `yaml:"tasks"`
	Coverage   *Summary       `yaml:"coverage,omitempty"`
	Violations []Violation    `yaml:"violations,omitempty"`
}

func (r *Report) frontMatter() frontMatter {
	counts := map[string]int{}
	for _, t := range r.Tasks {
		counts[string(t.Status)]++
	}
	return frontMatter{
		ID:         r.ID,
		Date:       r.Date.Format(time.RFC3339),
		Package:    r.Package,
		Status:     r.Status,
		Tasks:      counts,
		Coverage:   r.Coverage,
		Violations: r.Violations,
	}
}

// WriteMarkdown renders the report as markdown with YAML front matter.
func (r *Report) WriteMarkdown(w io.Writer) error {
	var b bytes.Buffer

	b.WriteString("---\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(r.frontMatter()); err != nil {
		return fmt.Errorf("qa: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Validation report: %s (%s)\n\n", r.Package, r.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Status:** %s\n\n", strings.ToUpper(string(r.Status)))

	b.WriteString("## Tasks\n\n")
	if len(r.Tasks) == 0 {
		b.WriteString("No tasks configured.\n\n")
	} else {
		b.WriteString("| Task | Kind | Status | Exit | Duration |\n")
		b.WriteString("|------|------|--------|------|----------|\n")
		for _, t := range r.Tasks {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
				t.Task.Name, t.Task.Kind, t.Status, t.ExitCode, t.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	if r.Coverage != nil {
		b.WriteString("## Coverage\n\n")
		b.WriteString("| Metric | Covered | Total | Percent |\n")
		b.WriteString("|--------|---------|-------|---------|\n")
		for _, m := range []struct {
			name string
			m    Metric
		}{
			{"lines", r.Coverage.Lines},
			{"branches", r.Coverage.Branches},
			{"functions", r.Coverage.Functions},
			{"statements", r.Coverage.Statements},
		} {
			fmt.Fprintf(&b, "| %s | %d | %d | %.2f%% |\n", m.name, m.m.Covered, m.m.Total, float64(m.m.Pct))
		}
		b.WriteString("\n")
	}

	if len(r.Violations) > 0 {
		b.WriteString("## Threshold violations\n\n")
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("\n")
	}

	for _, t := range r.Tasks {
		if t.Status != StatusFail {
			continue
		}
		fmt.Fprintf(&b, "## Failure: %s\n\n", t.Task.Name)
		if t.Err != nil {
			fmt.Fprintf(&b, "%v\n\n", t.Err)
		}
		if t.Output != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", t.Output)
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

// Save writes the report into dir as YYYY-MM-DD-<package>.md, adding a
// numeric suffix when a report for that day already exists. Concurrent
// writers are serialised through a lock file in dir.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	lock := flock.New(filepath.Join(dir, ".qa-report.lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("qa: lock report dir: %w", err)
	}
	defer lock.Unlock()

	base := fmt.Sprintf("%s-%s", r.Date.Format("2006-01-02"), slug(r.Package))
	path := filepath.Join(dir, base+".md")
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.md", base, i))
	}

	var buf bytes.Buffer
	if err := r.WriteMarkdown(&buf); err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// slug turns a package path such as "mobile/app" into "mobile-app".
func slug(pkg string) string {
	pkg = strings.Trim(filepath.ToSlash(pkg), "./")
	if pkg == "" {
		return "root"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(pkg) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
