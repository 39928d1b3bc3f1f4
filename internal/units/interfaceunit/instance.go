package interfaceunit

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/jesseduffield/kill"
	"github.com/mgutz/str"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

// Instance is the live, running form of a loaded Interface: a supervised
// child process speaking the protocol in protocol.go over its stdin/stdout,
// with stderr captured for diagnostics. Spawning and termination are
// adapted from OSCommand.ExecutableFromString and OSCommand.Kill in
// original_source's predecessor (pkg/commands/os.go), swapping in
// mgutz/str for argv tokenizing and jesseduffield/kill for process-tree
// termination.
type Instance struct {
	desc    *Description
	manager *unitmanager.Manager

	mu               sync.Mutex
	cmd              *exec.Cmd
	stdin            io.WriteCloser
	exited           chan struct{}
	terminateTimeout time.Duration
}

// NewInstance satisfies unitmanager.LoadableDescription.
func (d *Description) NewInstance(m *unitmanager.Manager) (unitmanager.Instance, error) {
	return &Instance{desc: d, manager: m}, nil
}

func (i *Instance) ID() unit.Name { return i.desc.ID() }

// Select verifies the Interface is compatible with whatever jig is
// currently loaded (§4.8 Compatibility); it does not start the process.
// A Compatibility error here is what surfaces as the interface's
// LoadFailed status for the "incompatible interface" scenario in §8.
func (i *Instance) Select() error {
	return i.desc.IsCompatible(i.manager.JigIsLoaded)
}

func (i *Instance) Deselect() error { return nil }

// Activate spawns the child process, wires its pipes, and starts the
// reader goroutines that turn its stdout/stderr into ControlEnvelopes on
// the manager's control channel.
func (i *Instance) Activate(m *unitmanager.Manager) error {
	argv := str.ToArgv(i.desc.ExecStart())
	if len(argv) == 0 {
		return unit.SpawnError("interface %s: empty ExecStart", i.desc.ID())
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = m.Config().WorkingDirectory(i.desc.UnitDirectory(), i.desc.WorkingDirectoryOverride())
	kill.PrepareForChildren(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return unit.SpawnError("interface %s: %s", i.desc.ID(), err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return unit.SpawnError("interface %s: %s", i.desc.ID(), err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return unit.SpawnError("interface %s: %s", i.desc.ID(), err)
	}

	if err := cmd.Start(); err != nil {
		return unit.SpawnError("interface %s: %s", i.desc.ID(), err)
	}

	exited := make(chan struct{})

	i.mu.Lock()
	i.cmd = cmd
	i.stdin = stdin
	i.exited = exited
	i.terminateTimeout = m.Config().TerminateTimeout()
	i.mu.Unlock()

	control := m.GetControlChannel()
	id := i.desc.ID()

	parseLine := ParseLine
	if i.desc.Format() == FormatJSON {
		parseLine = ParseLineJSON
	}

	go readLines(stdout, func(line string) {
		msg, ok := parseLine(line)
		if !ok {
			return
		}
		control <- unitmanager.ControlEnvelope{Source: id, Message: msg}
	})

	go readLines(stderr, func(line string) {
		control <- unitmanager.ControlEnvelope{Source: id, Message: unitmanager.NewControlLogError(line)}
	})

	go func() {
		_ = cmd.Wait()
		close(exited)
		control <- unitmanager.ControlEnvelope{Source: id, Message: unitmanager.NewControlChildExited()}
	}()

	control <- unitmanager.ControlEnvelope{Source: id, Message: unitmanager.NewControlInitialGreeting()}

	return nil
}

func readLines(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}

// Deactivate sends SIGTERM and waits up to the configured terminate timeout
// for the child to exit on its own; a process still alive after that is
// force-killed along with its whole process group via jesseduffield/kill.
// A non-zero exit (whether the child exited on its own or only after being
// force-killed) maps to a non-zero-return activation error per §4.8/§8.
func (i *Instance) Deactivate() error {
	i.mu.Lock()
	cmd := i.cmd
	stdin := i.stdin
	exited := i.exited
	timeout := i.terminateTimeout
	i.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-exited:
		return i.exitError(cmd)
	case <-time.After(timeout):
	}

	if err := kill.Kill(cmd); err != nil {
		return unit.ActivateError("interface %s: terminating: %s", i.desc.ID(), err)
	}

	<-exited
	if err := i.exitError(cmd); err != nil {
		return err
	}
	return unit.ActivateError("interface %s: killed after deactivation timeout", i.desc.ID())
}

// exitError reports cmd's exit as a non-zero-return activation error, if it
// was one. cmd.Wait has already populated ProcessState by the time exited is
// closed, so this is always safe to read once <-exited has fired.
func (i *Instance) exitError(cmd *exec.Cmd) error {
	if state := cmd.ProcessState; state != nil && state.ExitCode() != 0 {
		return unit.ActivateError("interface %s: non-zero return %d", i.desc.ID(), state.ExitCode())
	}
	return nil
}

// SendStatus renders msg onto the child process's stdin, satisfying
// unitmanager.StatusReceiver.
func (i *Instance) SendStatus(msg unitmanager.StatusMessage) error {
	i.mu.Lock()
	stdin := i.stdin
	i.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("interface %s is not active", i.desc.ID())
	}
	if i.desc.Format() == FormatJSON {
		return WriteStatusMessageJSON(stdin, msg)
	}
	return WriteStatusMessage(stdin, msg)
}
