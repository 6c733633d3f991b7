//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs is a no-op on Windows.
func setDaemonAttrs(_ *exec.Cmd) {}

// shutdownSignals are the signals that stop serve and watch gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Both map to a kill; see daemon.PIDFile.Signal.
func sigTERM() syscall.Signal { return syscall.SIGTERM }

func sigKILL() syscall.Signal { return syscall.SIGKILL }
