package relay

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/nimblewing/flowgen/internal/logging"
)

// ErrSubprocess reports a failure to launch the optional external TCP
// forwarder wrapper, SPEC_FULL §4.9/§7.
type ErrSubprocess struct {
	Cmd string
	Err error
}

func (e *ErrSubprocess) Error() string {
	return fmt.Sprintf("relay: external TCP forwarder %q failed to start: %v", e.Cmd, e.Err)
}

func (e *ErrSubprocess) Unwrap() error { return e.Err }

// TCPForwarder supervises an external relay process (socat or equivalent)
// that mirrors the TCP side of the relay. flowrelay implements none of its
// protocol; it is the opaque external collaborator spec §1 places out of
// scope, preserved here as a thin, optional wrapper the way the original
// implementation wraps socat.
type TCPForwarder struct {
	cmd *exec.Cmd
}

// StartTCPForwarder execs cmdLine (space-split) and returns a handle that
// can be stopped with Close. It fails fast if the process cannot start.
func StartTCPForwarder(cmdLine string, logger logging.Logger) (*TCPForwarder, error) {
	fields := strings.Fields(cmdLine)
	if len(fields) == 0 {
		return nil, &ErrSubprocess{Cmd: cmdLine, Err: fmt.Errorf("empty command")}
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, &ErrSubprocess{Cmd: cmdLine, Err: err}
	}
	if logger != nil {
		logger.Info("relay: external TCP forwarder started", "cmd", cmdLine, "pid", cmd.Process.Pid)
	}
	return &TCPForwarder{cmd: cmd}, nil
}

// Close terminates the supervised subprocess.
func (f *TCPForwarder) Close() error {
	if f.cmd == nil || f.cmd.Process == nil {
		return nil
	}
	return f.cmd.Process.Kill()
}
