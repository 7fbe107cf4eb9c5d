package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/squadops/squadops/internal/fault"
	"github.com/squadops/squadops/internal/procutil"
	"github.com/squadops/squadops/internal/registry"
)

// ServerScript is the launch script expected under an instance's
// install path.
const ServerScript = "SquadGameServer.sh"

// Process is one spawned game-server process.
type Process interface {
	PID() int
	// Wait blocks until the process exits and returns its exit code.
	// It must be safe to call once from the exit monitor.
	Wait() int
	// Alive reports whether the process is still running.
	Alive() bool
	// Terminate requests a graceful shutdown without waiting for it.
	Terminate() error
	// Kill force-stops a process that ignored Terminate.
	Kill() error
}

// Launcher spawns a game-server process for an instance, wiring its
// stdout/stderr lines into consoleLine.
type Launcher interface {
	Launch(inst registry.Instance, consoleLine func(string)) (Process, error)
}

// BuildServerArgs renders the positional launch arguments: port-style
// tokens, the logging flag, then operator-supplied extras.
func BuildServerArgs(inst registry.Instance) []string {
	args := []string{
		fmt.Sprintf("Port=%d", inst.GamePort),
		fmt.Sprintf("QueryPort=%d", inst.QueryPort),
		fmt.Sprintf("RCONPORT=%d", inst.RCONPort),
		fmt.Sprintf("beaconport=%d", inst.BeaconPort),
		"-log",
	}
	if extra := strings.TrimSpace(inst.ExtraArgs); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return args
}

// ExecLauncher spawns the real server script with os/exec.
type ExecLauncher struct{}

// Launch validates the launch script and starts it. A missing or
// non-executable script fails before anything is spawned.
func (ExecLauncher) Launch(inst registry.Instance, consoleLine func(string)) (Process, error) {
	script := filepath.Join(inst.InstallPath, ServerScript)

	info, err := os.Stat(script)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, err, "supervisor: server executable %s", script)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil, fault.New(fault.KindUnavailable, "supervisor: %s is not executable", script)
	}

	cmd := exec.Command(script, BuildServerArgs(inst)...)
	cmd.Dir = inst.InstallPath

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "supervisor: stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "supervisor: stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "supervisor: spawn %s", script)
	}

	proc := &execProcess{cmd: cmd}
	proc.consumers.Add(2)
	go proc.consume(stdout, consoleLine)
	go proc.consume(stderr, consoleLine)

	return proc, nil
}

type execProcess struct {
	cmd       *exec.Cmd
	consumers sync.WaitGroup
	waitOnce  sync.Once
	exitCode  int
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) consume(r io.Reader, consoleLine func(string)) {
	defer p.consumers.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if consoleLine != nil {
			consoleLine(scanner.Text())
		}
	}
}

func (p *execProcess) Wait() int {
	p.waitOnce.Do(func() {
		// Drain the pipes before Wait closes them.
		p.consumers.Wait()
		err := p.cmd.Wait()
		if state := p.cmd.ProcessState; state != nil {
			p.exitCode = state.ExitCode()
		} else if err != nil {
			p.exitCode = -1
		}
	})
	return p.exitCode
}

func (p *execProcess) Alive() bool {
	pid := p.PID()
	if pid == 0 {
		return false
	}
	return procutil.IsProcessAlive(pid)
}

func (p *execProcess) Terminate() error {
	pid := p.PID()
	if pid == 0 {
		return nil
	}
	return procutil.TerminateByPID(pid)
}

func (p *execProcess) Kill() error {
	pid := p.PID()
	if pid == 0 {
		return nil
	}
	return procutil.KillByPID(pid)
}
