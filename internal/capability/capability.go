// Package capability probes the device for features such as a camera before a
// component renders anything that depends on them.
package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Flags is the resolved result of a probe. Callers that only synchronise on
// resolution must treat it as opaque.
type Flags struct {
	Enabled  bool
	Metadata map[string]string
}

// Disabled is the fallback used when a probe fails.
func Disabled(reason string) Flags {
	return Flags{Enabled: false, Metadata: map[string]string{"reason": reason}}
}

// Probe resolves device capabilities. Implementations must return promptly
// once ctx is done.
type Probe func(ctx context.Context) (Flags, error)

type probeKey struct{}

// WithProbe injects p for every component built under ctx.
func WithProbe(ctx context.Context, p Probe) context.Context {
	return context.WithValue(ctx, probeKey{}, p)
}

// FromContext returns the injected probe, falling back to DeviceProbe with its
// default location.
func FromContext(ctx context.Context) Probe {
	if p, ok := ctx.Value(probeKey{}).(Probe); ok && p != nil {
		return p
	}
	return DeviceProbe(DefaultDeviceDir, DefaultDevicePattern)
}

const (
	DefaultDeviceDir     = "/dev"
	DefaultDevicePattern = "video*"
)

// DeviceProbe reports the camera as enabled when dir holds at least one entry
// matching pattern. The first match and the device count are recorded in the
// metadata.
func DeviceProbe(dir, pattern string) Probe {
	return func(ctx context.Context) (Flags, error) {
		if err := ctx.Err(); err != nil {
			return Flags{}, err
		}

		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return Flags{}, fmt.Errorf("capability: bad device pattern %q: %w", pattern, err)
		}

		devices := matches[:0]
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				devices = append(devices, m)
			}
		}
		sort.Strings(devices)

		if len(devices) == 0 {
			return Flags{Enabled: false, Metadata: map[string]string{
				"reason": "no camera device",
				"count":  "0",
			}}, nil
		}
		return Flags{Enabled: true, Metadata: map[string]string{
			"device": devices[0],
			"count":  strconv.Itoa(len(devices)),
		}}, nil
	}
}
