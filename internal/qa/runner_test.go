package qa

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

func sh(name string, kind Kind, script string) Task {
	return Task{Name: name, Kind: kind, Command: []string{"sh", "-c", script}}
}

func TestRunTaskPassAndFail(t *testing.T) {
	r := &Runner{Dir: t.TempDir(), Logger: zaptest.NewLogger(t)}

	res := r.RunTask(context.Background(), sh("ok", KindLint, "echo fine"))
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "fine", res.Output)
	assert.NoError(t, res.Err)

	res = r.RunTask(context.Background(), sh("broken", KindTest, "echo boom >&2; exit 3"))
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom", res.Output)
	assert.Error(t, res.Err)
}

func TestRunTaskUsesPackageDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mobile"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mobile", "marker"), nil, 0644))

	r := &Runner{Dir: dir}
	task := sh("marker", KindStatic, "test -f marker")
	task.Package = "mobile"

	assert.Equal(t, StatusPass, r.RunTask(context.Background(), task).Status)
}

func TestRunTaskEmptyCommand(t *testing.T) {
	r := &Runner{}
	res := r.RunTask(context.Background(), Task{Name: "empty"})
	assert.Equal(t, StatusFail, res.Status)
	assert.ErrorIs(t, res.Err, ErrEmptyCommand)
}

func TestRunTaskMissingBinary(t *testing.T) {
	r := &Runner{Dir: t.TempDir()}
	res := r.RunTask(context.Background(), Task{Name: "missing", Command: []string{"no-such-binary-photoeditor"}})
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, -1, res.ExitCode)
	assert.Error(t, res.Err)
}

func TestRunFailFastSkipsRest(t *testing.T) {
	tasks := []Task{
		sh("lint", KindLint, "true"),
		sh("static", KindStatic, "false"),
		sh("test", KindTest, "true"),
	}

	r := &Runner{Dir: t.TempDir(), FailFast: true}
	results := r.Run(context.Background(), tasks)
	require.Len(t, results, 3)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusFail, results[1].Status)
	assert.Equal(t, StatusSkipped, results[2].Status)

	r.FailFast = false
	results = r.Run(context.Background(), tasks)
	assert.Equal(t, StatusPass, results[2].Status)
}

func TestRunCancelledContextKillsTask(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := &Runner{Dir: t.TempDir()}
	start := time.Now()
	res := r.RunTask(ctx, sh("slow", KindTest, "sleep 5"))
	assert.Equal(t, StatusFail, res.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunPublishesTaskEvents(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Shutdown()

	var mu sync.Mutex
	var seen []events.EventType
	var wg sync.WaitGroup
	wg.Add(2)
	record := func(e events.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		wg.Done()
	}
	bus.Subscribe(events.TaskStarted, record)
	bus.Subscribe(events.TaskFinished, record)

	r := &Runner{Dir: t.TempDir(), Bus: bus}
	r.RunTask(context.Background(), sh("ok", KindLint, "true"))
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []events.EventType{events.TaskStarted, events.TaskFinished}, seen)
}

func TestTail(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(strings.Repeat("x", i+1))
		b.WriteString("\n")
	}
	assert.Equal(t, "xxxxxxxxx\nxxxxxxxxxx", tail(b.String(), 2))
	assert.Equal(t, "", tail("\n\n", 5))
	assert.Equal(t, "a\nb", tail("a\nb\n", 5))
}
