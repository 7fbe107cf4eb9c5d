// Package supervisor owns the lifecycle of game-server processes: it
// spawns them, persists their running state, feeds their output into
// per-instance console logs and the event bus, and pairs each process
// with a reconnecting control session.
package supervisor

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/squadops/squadops/internal/config"
	"github.com/squadops/squadops/internal/eventbus"
	"github.com/squadops/squadops/internal/fault"
	"github.com/squadops/squadops/internal/gamefiles"
	"github.com/squadops/squadops/internal/rcon"
	"github.com/squadops/squadops/internal/registry"
	"github.com/squadops/squadops/internal/status"
)

// Defaults for the timing knobs exposed through Options.
const (
	DefaultConnectGrace  = 20 * time.Second
	DefaultRestartSettle = 5 * time.Second
	DefaultStopKillDelay = 30 * time.Second
)

// Options configures a Manager. Registry and Paths are required; the
// rest defaults to production implementations.
type Options struct {
	Registry *registry.Store
	Bus      *eventbus.Bus
	Paths    config.HomePaths

	// Launcher spawns server processes. Defaults to ExecLauncher.
	Launcher Launcher

	// Dialer opens control-protocol connections for sessions.
	Dialer rcon.Dialer

	// ConnectGrace is how long after spawn the first session connect
	// waits for the server to boot.
	ConnectGrace time.Duration

	// RestartSettle is the pause between stop and start on restart.
	RestartSettle time.Duration

	// StopKillDelay is how long after a graceful terminate request a
	// still-alive process gets force-killed.
	StopKillDelay time.Duration
}

// Manager supervises all running instances of this daemon.
type Manager struct {
	registry *registry.Store
	bus      *eventbus.Bus
	paths    config.HomePaths
	launcher Launcher
	dialer   rcon.Dialer

	connectGrace  time.Duration
	restartSettle time.Duration
	stopKillDelay time.Duration

	mu      sync.RWMutex
	handles map[int64]*Handle
}

// NewManager builds a Manager with no running handles.
func NewManager(opts Options) *Manager {
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	if opts.ConnectGrace <= 0 {
		opts.ConnectGrace = DefaultConnectGrace
	}
	if opts.RestartSettle <= 0 {
		opts.RestartSettle = DefaultRestartSettle
	}
	if opts.StopKillDelay <= 0 {
		opts.StopKillDelay = DefaultStopKillDelay
	}
	return &Manager{
		registry:      opts.Registry,
		bus:           opts.Bus,
		paths:         opts.Paths,
		launcher:      opts.Launcher,
		dialer:        opts.Dialer,
		connectGrace:  opts.ConnectGrace,
		restartSettle: opts.RestartSettle,
		stopKillDelay: opts.StopKillDelay,
	}
}

func (m *Manager) handle(id int64) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[id]
}

// Running reports whether a handle exists for the instance.
func (m *Manager) Running(id int64) bool {
	return m.handle(id) != nil
}

// Start spawns the instance's server process. It fails with a conflict
// when a handle already exists, so two concurrent starts cannot both
// spawn.
func (m *Manager) Start(ctx context.Context, id int64) error {
	inst, err := m.registry.Instance(ctx, id)
	if err != nil {
		return err
	}

	// Reserve the handle slot before any slow work.
	handle := &Handle{instanceID: id}
	m.mu.Lock()
	if m.handles == nil {
		m.handles = make(map[int64]*Handle)
	}
	if _, exists := m.handles[id]; exists {
		m.mu.Unlock()
		return fault.New(fault.KindConflict, "supervisor: instance %d already running", id)
	}
	m.handles[id] = handle
	m.mu.Unlock()

	if err := m.launch(ctx, inst, handle); err != nil {
		m.mu.Lock()
		delete(m.handles, id)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) launch(ctx context.Context, inst registry.Instance, handle *Handle) error {
	logPath := m.paths.InstanceConsoleLog(inst.ID)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "supervisor: open console log %s", logPath)
	}
	handle.logFile = logFile

	processLine := m.consoleSink(handle, eventbus.SourceSupervisor)
	sessionLine := m.consoleSink(handle, eventbus.SourceSession)

	// Persist the running flag before spawning. A crash between the two
	// leaves a stale flag that startup reconciliation clears.
	if err := m.registry.SetRunning(ctx, inst.ID, true); err != nil {
		handle.closeLog()
		return err
	}

	// A stop that landed while the slot was reserved wins over the spawn.
	if handle.stopRequestedNow() {
		if rbErr := m.registry.SetRunning(ctx, inst.ID, false); rbErr != nil {
			log.Printf("[Supervisor] instance %d: roll back running flag: %v", inst.ID, rbErr)
		}
		handle.closeLog()
		return fault.New(fault.KindConflict, "supervisor: instance %d stop requested during start", inst.ID)
	}

	proc, err := m.launcher.Launch(inst, processLine)
	if err != nil {
		if rbErr := m.registry.SetRunning(ctx, inst.ID, false); rbErr != nil {
			log.Printf("[Supervisor] instance %d: roll back running flag: %v", inst.ID, rbErr)
		}
		handle.closeLog()
		return err
	}

	var session *rcon.Session
	session = rcon.NewSession(rcon.Config{
		InstanceID: inst.ID,
		Dial:       m.dialer,
		Credentials: func() (rcon.Credentials, error) {
			return m.resolveCredentials(inst.ID)
		},
		OwnerAlive:  proc.Alive,
		ConsoleLine: sessionLine,
		SquadName: func(teamID, squadID string) (string, error) {
			return m.squadName(session, teamID, squadID)
		},
		OnStateChange: func(state rcon.State) {
			if state != rcon.StateConnected {
				return
			}
			eventbus.Publish(context.Background(), m.bus, eventbus.Instances.Lifecycle,
				eventbus.SourceSession, eventbus.InstanceLifecycleEvent{
					InstanceID: inst.ID,
					State:      eventbus.InstanceStateConnected,
					PID:        proc.PID(),
				})
		},
	})

	log.Printf("[Supervisor] instance %d (%s): started pid %d", inst.ID, inst.Name, proc.PID())
	eventbus.Publish(ctx, m.bus, eventbus.Instances.Lifecycle, eventbus.SourceSupervisor,
		eventbus.InstanceLifecycleEvent{
			InstanceID: inst.ID,
			State:      eventbus.InstanceStateStarted,
			PID:        proc.PID(),
		})

	// Give the server time to boot before the first connect attempt.
	timer := time.AfterFunc(m.connectGrace, session.Connect)

	stopRequested, detached := handle.publish(proc, session, timer)
	go m.monitorExit(handle, proc, session, timer)

	// A stop or detach that raced the spawn acts now, on the published
	// fields, so no process escapes supervision with a cleared flag.
	switch {
	case stopRequested:
		timer.Stop()
		session.Close()
		m.terminate(inst.ID, proc)
	case detached:
		timer.Stop()
		session.Close()
		handle.closeLog()
	}
	return nil
}

// consoleSink builds the line consumer for process output or formatted
// session events: every line lands in the instance log and on the bus.
func (m *Manager) consoleSink(handle *Handle, source eventbus.Source) func(string) {
	return func(line string) {
		handle.appendConsole(line)
		eventbus.Publish(context.Background(), m.bus, eventbus.Instances.Console, source,
			eventbus.ConsoleLineEvent{InstanceID: handle.instanceID, Line: line})
	}
}

// monitorExit blocks on the process and owns all post-exit cleanup, no
// matter whether the exit came from Stop or from the process dying.
func (m *Manager) monitorExit(handle *Handle, proc Process, session *rcon.Session, timer *time.Timer) {
	code := proc.Wait()

	m.mu.Lock()
	if m.handles[handle.instanceID] == handle {
		delete(m.handles, handle.instanceID)
	}
	m.mu.Unlock()

	timer.Stop()
	session.Close()
	handle.closeLog()

	ctx := context.Background()
	if err := m.registry.SetRunning(ctx, handle.instanceID, false); err != nil && !fault.IsNotFound(err) {
		log.Printf("[Supervisor] instance %d: clear running flag: %v", handle.instanceID, err)
	}

	log.Printf("[Supervisor] instance %d: process exited with code %d", handle.instanceID, code)
	exitCode := code
	eventbus.Publish(ctx, m.bus, eventbus.Instances.Lifecycle, eventbus.SourceSupervisor,
		eventbus.InstanceLifecycleEvent{
			InstanceID: handle.instanceID,
			State:      eventbus.InstanceStateStopped,
			ExitCode:   &exitCode,
			Reason:     "process exited",
		})
}

// Stop requests a graceful shutdown of the instance's process. It does
// not wait for the exit; the exit monitor finishes the cleanup. Stopping
// an instance that is not running only clears a stale persisted flag.
func (m *Manager) Stop(ctx context.Context, id int64) error {
	m.mu.RLock()
	handle := m.handles[id]
	m.mu.RUnlock()

	if handle == nil {
		return m.registry.SetRunning(ctx, id, false)
	}

	// Nil fields mean the launch is still publishing them; the stop
	// request is recorded and launch finishes the stop itself.
	proc, session, timer := handle.requestStop()

	// Close the session first so its reconnect logic never races the
	// process going away.
	if timer != nil {
		timer.Stop()
	}
	if session != nil {
		session.Close()
	}

	if err := m.registry.SetRunning(ctx, id, false); err != nil && !fault.IsNotFound(err) {
		log.Printf("[Supervisor] instance %d: clear running flag: %v", id, err)
	}

	if proc != nil {
		m.terminate(id, proc)
	}
	return nil
}

// terminate asks the process to exit and arms the force-kill fallback
// for one that ignores the signal.
func (m *Manager) terminate(id int64, proc Process) {
	if err := proc.Terminate(); err != nil {
		log.Printf("[Supervisor] instance %d: terminate pid %d: %v", id, proc.PID(), err)
	}
	delay := m.stopKillDelay
	time.AfterFunc(delay, func() {
		if !proc.Alive() {
			return
		}
		log.Printf("[Supervisor] instance %d: pid %d still alive %s after terminate, killing", id, proc.PID(), delay)
		if err := proc.Kill(); err != nil {
			log.Printf("[Supervisor] instance %d: kill pid %d: %v", id, proc.PID(), err)
		}
	})
}

// Restart stops the instance, waits out the settle window, and starts it
// again regardless of how the stop went.
func (m *Manager) Restart(ctx context.Context, id int64) error {
	if err := m.Stop(ctx, id); err != nil {
		if fault.IsNotFound(err) {
			return err
		}
		log.Printf("[Supervisor] instance %d: stop during restart: %v", id, err)
	}
	time.Sleep(m.restartSettle)
	return m.Start(ctx, id)
}

// Execute runs one control-protocol command on the instance's session.
func (m *Manager) Execute(id int64, command string) (string, error) {
	handle := m.handle(id)
	if handle == nil {
		return "", fault.New(fault.KindUnavailable, "supervisor: instance %d is not running", id)
	}
	session := handle.sessionRef()
	if session == nil {
		return "", fault.New(fault.KindUnavailable, "supervisor: instance %d is not running", id)
	}
	return session.Execute(command)
}

// Reconcile clears persisted running flags with no matching handle. The
// daemon calls this once at startup: anything flagged running belonged
// to a previous daemon process and is not supervised anymore.
func (m *Manager) Reconcile(ctx context.Context) error {
	ids, err := m.registry.RunningInstanceIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if m.handle(id) != nil {
			continue
		}
		log.Printf("[Supervisor] instance %d: clearing stale running flag", id)
		if err := m.registry.SetRunning(ctx, id, false); err != nil && !fault.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// Shutdown detaches from every supervised process without stopping it:
// sessions and console logs close, the server processes keep running.
// Their persisted flags are reconciled on the next daemon start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, handle := range m.handles {
		handles = append(handles, handle)
	}
	m.handles = nil
	m.mu.Unlock()

	for _, handle := range handles {
		proc, session, timer := handle.requestDetach()
		if timer != nil {
			timer.Stop()
		}
		if session != nil {
			session.Close()
		}
		handle.closeLog()
		pid := 0
		if proc != nil {
			pid = proc.PID()
		}
		log.Printf("[Supervisor] instance %d: detached, pid %d left running", handle.instanceID, pid)
	}
}

// resolveCredentials picks the address and password for a connect
// attempt. The on-disk credential file is authoritative when present:
// it is what the server process actually read at boot. The registry
// record is the fallback.
func (m *Manager) resolveCredentials(id int64) (rcon.Credentials, error) {
	inst, err := m.registry.Instance(context.Background(), id)
	if err != nil {
		return rcon.Credentials{}, err
	}

	password := inst.RCONPassword
	port := inst.RCONPort

	creds, err := gamefiles.ReadRconConfig(gamefiles.RconConfigPath(inst.InstallPath))
	switch {
	case err == nil:
		if creds.Password != "" {
			password = creds.Password
		}
		if creds.Port != 0 {
			port = creds.Port
		}
	case !fault.IsNotFound(err):
		log.Printf("[Supervisor] instance %d: read credential file: %v", id, err)
	}

	return rcon.Credentials{
		Addr:     net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Password: password,
	}, nil
}

// squadName resolves a squad name for chat enrichment through the same
// session the event arrived on.
func (m *Manager) squadName(session *rcon.Session, teamID, squadID string) (string, error) {
	text, err := session.Execute("ListSquads")
	if err != nil {
		return "", err
	}
	return status.FindSquadName(text, teamID, squadID)
}
