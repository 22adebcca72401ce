//go:build !windows

package detector

import (
	"errors"
	"fmt"
	"syscall"
)

// PIDAlive reports whether a process with the given pid exists. This is a
// zero-cost existence probe (signal 0), not a full process inspection; EPERM
// means the process exists but belongs to someone else, which still counts.
// PID reuse is a known residual risk of this probe.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// PIDDetector detects by a provided PID number.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) { return PIDAlive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }
