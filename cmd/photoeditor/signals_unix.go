//go:build !windows

package main

import (
	"os"
	"syscall"
)

// SIGTERM matters when the qa watcher runs under a CI supervisor.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
