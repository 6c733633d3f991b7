//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Alive reports whether a process with the given PID exists. FindProcess
// opens a handle on Windows and fails when there is no such process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}

// Signal sends the given signal to the process in the PID file.
// On Windows only a kill is delivered; other signals terminate too.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Kill()
}
