package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the per-directory configuration file. Files found in parent
// directories are merged, the nearest one winning per key.
const FileName = ".photoeditor.toml"

type Config struct {
	Render RenderConfig `toml:"render"`
	Camera CameraConfig `toml:"camera"`
	QA     QAConfig     `toml:"qa"`

	// Files lists the files merged into this config, farthest first.
	Files []string `toml:"-"`
}

type RenderConfig struct {
	TimeoutMS  *int `toml:"timeout_ms,omitempty"`
	IntervalMS *int `toml:"interval_ms,omitempty"`
}

type CameraConfig struct {
	DeviceDir     *string `toml:"device_dir,omitempty"`
	DevicePattern *string `toml:"device_pattern,omitempty"`
}

type QAConfig struct {
	ReportDir       *string         `toml:"report_dir,omitempty"`
	CoverageSummary *string         `toml:"coverage_summary,omitempty"`
	Thresholds      ThresholdConfig `toml:"thresholds"`
	Tasks           []TaskConfig    `toml:"tasks,omitempty"`
}

type ThresholdConfig struct {
	Lines      *float64 `toml:"lines,omitempty"`
	Branches   *float64 `toml:"branches,omitempty"`
	Functions  *float64 `toml:"functions,omitempty"`
	Statements *float64 `toml:"statements,omitempty"`
}

type TaskConfig struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	Package string   `toml:"package"`
	Command []string `toml:"command"`
}

// Load merges every config file from the filesystem root down to the working
// directory.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFrom(wd)
}

// LoadFrom is Load starting at dir instead of the working directory.
func LoadFrom(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var chain []string
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			chain = append(chain, path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	cfg := &Config{}
	// Farthest first so nearer files override
	for i := len(chain) - 1; i >= 0; i-- {
		if err := cfg.mergeFile(chain[i]); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile reads a single file without searching parent directories.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	var next Config
	if _, err := toml.DecodeFile(path, &next); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	c.merge(&next)
	c.Files = append(c.Files, path)
	return nil
}

func (c *Config) merge(o *Config) {
	mergePtr(&c.Render.TimeoutMS, o.Render.TimeoutMS)
	mergePtr(&c.Render.IntervalMS, o.Render.IntervalMS)
	mergePtr(&c.Camera.DeviceDir, o.Camera.DeviceDir)
	mergePtr(&c.Camera.DevicePattern, o.Camera.DevicePattern)
	mergePtr(&c.QA.ReportDir, o.QA.ReportDir)
	mergePtr(&c.QA.CoverageSummary, o.QA.CoverageSummary)
	mergePtr(&c.QA.Thresholds.Lines, o.QA.Thresholds.Lines)
	mergePtr(&c.QA.Thresholds.Branches, o.QA.Thresholds.Branches)
	mergePtr(&c.QA.Thresholds.Functions, o.QA.Thresholds.Functions)
	mergePtr(&c.QA.Thresholds.Statements, o.QA.Thresholds.Statements)
	// Task lists are replaced, not appended
	if len(o.QA.Tasks) > 0 {
		c.QA.Tasks = o.QA.Tasks
	}
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// GetRenderTimeout returns how long the render helper waits for async
// initialisation.
func (c *Config) GetRenderTimeout() time.Duration {
	if c.Render.TimeoutMS != nil && *c.Render.TimeoutMS > 0 {
		return time.Duration(*c.Render.TimeoutMS) * time.Millisecond
	}
	return 200 * time.Millisecond
}

func (c *Config) GetRenderInterval() time.Duration {
	if c.Render.IntervalMS != nil && *c.Render.IntervalMS > 0 {
		return time.Duration(*c.Render.IntervalMS) * time.Millisecond
	}
	return 10 * time.Millisecond
}

func (c *Config) GetDeviceDir() string {
	if c.Camera.DeviceDir != nil {
		return *c.Camera.DeviceDir
	}
	return "/dev"
}

func (c *Config) GetDevicePattern() string {
	if c.Camera.DevicePattern != nil {
		return *c.Camera.DevicePattern
	}
	return "video*"
}

func (c *Config) GetReportDir() string {
	if c.QA.ReportDir != nil {
		return *c.QA.ReportDir
	}
	return "docs/validation"
}

func (c *Config) GetCoverageSummary() string {
	if c.QA.CoverageSummary != nil {
		return *c.QA.CoverageSummary
	}
	return "coverage/coverage-summary.json"
}

// GetThresholds returns coverage minimums in percent. Unset thresholds are 0.
func (c *Config) GetThresholds() (lines, branches, functions, statements float64) {
	get := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	t := c.QA.Thresholds
	return get(t.Lines), get(t.Branches), get(t.Functions), get(t.Statements)
}

// Encode writes the effective configuration as TOML, defaults filled in.
func (c *Config) Encode(w io.Writer) error {
	lines, branches, functions, statements := c.GetThresholds()
	timeout := int(c.GetRenderTimeout() / time.Millisecond)
	interval := int(c.GetRenderInterval() / time.Millisecond)
	dir, pattern := c.GetDeviceDir(), c.GetDevicePattern()
	reportDir, summary := c.GetReportDir(), c.GetCoverageSummary()

	effective := Config{
		Render: RenderConfig{TimeoutMS: &timeout, IntervalMS: &interval},
		Camera: CameraConfig{DeviceDir: &dir, DevicePattern: &pattern},
		QA: QAConfig{
			ReportDir:       &reportDir,
			CoverageSummary: &summary,
			Thresholds: ThresholdConfig{
				Lines: &lines, Branches: &branches, Functions: &functions, Statements: &statements,
			},
			Tasks: c.QA.Tasks,
		},
	}
	return toml.NewEncoder(w).Encode(effective)
}
