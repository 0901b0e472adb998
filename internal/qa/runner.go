// Package qa runs the per-package validation tasks (lint, static analysis,
// tests with coverage), checks coverage against thresholds and writes dated
// validation reports.
package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

type Kind string

const (
	KindLint   Kind = "lint"
	KindStatic Kind = "static"
	KindTest   Kind = "test"
)

type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// ErrEmptyCommand is reported for a task without a command.
var ErrEmptyCommand = errors.New("qa: task has no command")

type Task struct {
	Name    string
	Kind    Kind
	Package string
	Command []string
}

type TaskResult struct {
	Task     Task
	Status   Status
	ExitCode int
	Duration time.Duration
	// Output holds the last lines of combined stdout and stderr.
	Output string
	Err    error
}

// Runner executes tasks one after another. Each task runs in
// Dir/Task.Package.
type Runner struct {
	Dir        string
	FailFast   bool
	OutputTail int
	Logger     *zap.Logger
	Bus        *events.EventBus
}

const defaultOutputTail = 40

// Run executes tasks in order. With FailFast, tasks after the first failure
// are reported as skipped. Cancelling ctx kills the running task.
func (r *Runner) Run(ctx context.Context, tasks []Task) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	failed := false

	for _, t := range tasks {
		if failed && r.FailFast {
			results = append(results, TaskResult{Task: t, Status: StatusSkipped})
			continue
		}
		res := r.RunTask(ctx, t)
		if res.Status == StatusFail {
			failed = true
		}
		results = append(results, res)
	}
	return results
}

// RunTask executes a single task.
func (r *Runner) RunTask(ctx context.Context, t Task) TaskResult {
	logger := r.logger().With(zap.String("task", t.Name), zap.String("package", t.Package))
	r.publish(events.TaskStarted, t, nil)

	res := TaskResult{Task: t}
	if len(t.Command) == 0 {
		res.Status = StatusFail
		res.ExitCode = -1
		res.Err = ErrEmptyCommand
		r.publish(events.TaskFinished, t, &res)
		return res
	}

	cmd := exec.CommandContext(ctx, t.Command[0], t.Command[1:]...)
	cmd.Dir = filepath.Join(r.Dir, t.Package)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Children of a killed shell may hold the output pipe open
	cmd.WaitDelay = 500 * time.Millisecond

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Output = tail(out.String(), r.outputTail())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = StatusPass
	case errors.As(err, &exitErr):
		res.Status = StatusFail
		res.ExitCode = exitErr.ExitCode()
		res.Err = fmt.Errorf("qa: %s exited with %d", t.Name, res.ExitCode)
	default:
		res.Status = StatusFail
		res.ExitCode = -1
		res.Err = fmt.Errorf("qa: %s: %w", t.Name, err)
	}

	logger.Info("task finished",
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	r.publish(events.TaskFinished, t, &res)
	return res
}

func (r *Runner) publish(typ events.EventType, t Task, res *TaskResult) {
	if r.Bus == nil {
		return
	}
	data := map[string]interface{}{
		"task":    t.Name,
		"kind":    string(t.Kind),
		"package": t.Package,
	}
	if res != nil {
		data["status"] = string(res.Status)
		data["exit_code"] = res.ExitCode
	}
	r.Bus.Publish(events.Event{Type: typ, Source: "qa", Data: data})
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) outputTail() int {
	if r.OutputTail <= 0 {
		return defaultOutputTail
	}
	return r.OutputTail
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
