package capability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceProbe(t *testing.T) {
	dir := t.TempDir()
	probe := DeviceProbe(dir, "video*")

	flags, err := probe(context.Background())
	require.NoError(t, err)
	assert.False(t, flags.Enabled)
	assert.Equal(t, "0", flags.Metadata["count"])

	for _, name := range []string{"video1", "video0", "audio0"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	flags, err = probe(context.Background())
	require.NoError(t, err)
	assert.True(t, flags.Enabled)
	assert.Equal(t, filepath.Join(dir, "video0"), flags.Metadata["device"])
	assert.Equal(t, "2", flags.Metadata["count"])
}

func TestDeviceProbeErrors(t *testing.T) {
	_, err := DeviceProbe(t.TempDir(), "[")(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DeviceProbe(t.TempDir(), "video*")(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	want := Flags{Enabled: true, Metadata: map[string]string{"device": "stub"}}
	ctx := WithProbe(context.Background(), Resolved(want, 0))
	got, err := FromContext(ctx)(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolvedWaitsForDelay(t *testing.T) {
	start := time.Now()
	flags, err := Resolved(Flags{Enabled: true}, 30*time.Millisecond)(context.Background())
	require.NoError(t, err)
	assert.True(t, flags.Enabled)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestStubsHonourCancellation(t *testing.T) {
	probes := map[string]Probe{
		"resolved": Resolved(Flags{Enabled: true}, time.Hour),
		"never":    Never(),
		"failing":  Failing(errors.New("no"), time.Hour),
	}

	for name, p := range probes {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				_, err := p(ctx)
				done <- err
			}()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			case <-time.After(time.Second):
				t.Fatal("probe ignored cancellation")
			}
		})
	}
}

func TestFailing(t *testing.T) {
	boom := errors.New("boom")
	_, err := Failing(boom, 5*time.Millisecond)(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(Resolved(Flags{Enabled: true}, 0))
	_, err := rec.Probe(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	never := NewRecorder(Never())
	go cancel()
	_, err = never.Probe(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, rec.Calls())
	assert.Equal(t, 1, rec.Completed())
	assert.Equal(t, 0, rec.Cancelled())
	assert.Equal(t, 1, never.Calls())
	assert.Equal(t, 1, never.Cancelled())
}

func TestDisabled(t *testing.T) {
	flags := Disabled("probe failed")
	assert.False(t, flags.Enabled)
	assert.Equal(t, "probe failed", flags.Metadata["reason"])
}
