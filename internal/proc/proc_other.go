//go:build !unix

package proc

import (
	"os"
	"os/exec"
)

type signal int

const (
	sigTerm signal = iota
	sigKill
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup falls back to signalling the single process; SIGTERM is not
// available on every platform so both map to Kill.
func signalGroup(p *os.Process, _ signal) error {
	return p.Kill()
}
