// Package tasks runs long-lived fetch/update jobs against the Steam
// depot and streams their output as ordered progress events. Tasks live
// in memory only; terminal tasks are purged after a retention window.
package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/squadops/squadops/internal/eventbus"
	"github.com/squadops/squadops/internal/fault"
	"github.com/squadops/squadops/internal/registry"
)

// Kind distinguishes first-time deploys from updates of an existing
// install.
type Kind string

const (
	KindDeploy Kind = "deploy"
	KindUpdate Kind = "update"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is one entry of a task's append-only event log.
type Event struct {
	Kind      eventbus.TaskEventKind `json:"kind"`
	Sequence  int                    `json:"sequence"`
	Line      string                 `json:"line"`
	ExitCode  int                    `json:"exit_code,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Task is a point-in-time snapshot of one task, safe to hand out.
type Task struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	InstanceID int64     `json:"instance_id,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Events     []Event   `json:"events"`
}

// Done reports whether the task reached a terminal state.
func (t Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

type task struct {
	id         string
	kind       Kind
	instanceID int64
	status     Status
	createdAt  time.Time
	finishedAt time.Time
	sequence   int
	events     []Event
	activeKey  string
}

func (t *task) snapshotLocked() Task {
	events := make([]Event, len(t.events))
	copy(events, t.events)
	return Task{
		ID:         t.id,
		Kind:       t.kind,
		InstanceID: t.instanceID,
		Status:     t.status,
		CreatedAt:  t.createdAt,
		FinishedAt: t.finishedAt,
		Events:     events,
	}
}

// Retention and janitor cadence for terminal tasks.
const (
	DefaultRetention = 15 * time.Minute
	janitorInterval  = time.Minute
)

// Options configures a task Manager.
type Options struct {
	Registry  *registry.Store
	Bus       *eventbus.Bus
	Runner    Runner
	Retention time.Duration
}

// Manager owns the in-memory task table and runs at most one active
// task per target.
type Manager struct {
	registry  *registry.Store
	bus       *eventbus.Bus
	runner    Runner
	retention time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	tasks  map[string]*task
	active map[string]string // activity key -> active task id

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewManager builds a Manager and starts its retention janitor.
func NewManager(opts Options) *Manager {
	if opts.Runner == nil {
		opts.Runner = &SteamCMD{}
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	m := &Manager{
		registry:    opts.Registry,
		bus:         opts.Bus,
		runner:      opts.Runner,
		retention:   opts.Retention,
		now:         time.Now,
		tasks:       make(map[string]*task),
		active:      make(map[string]string),
		stopJanitor: make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Close stops the retention janitor. Running tasks finish on their own.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopJanitor) })
}

// Deploy fetches the server files into spec.InstallPath and, on
// success, registers the instance described by spec. The returned task
// id is valid immediately; progress streams on the bus.
func (m *Manager) Deploy(ctx context.Context, spec registry.Instance) (Task, error) {
	if err := spec.Validate(); err != nil {
		return Task{}, err
	}

	t, err := m.create(KindDeploy, 0, "deploy:"+spec.Name)
	if err != nil {
		return Task{}, err
	}

	register := spec
	go m.run(t, spec.InstallPath, &register)
	return m.snapshot(t), nil
}

// Update refreshes the server files of an existing instance in place.
func (m *Manager) Update(ctx context.Context, instanceID int64) (Task, error) {
	inst, err := m.registry.Instance(ctx, instanceID)
	if err != nil {
		return Task{}, err
	}

	t, err := m.create(KindUpdate, instanceID, fmt.Sprintf("instance:%d", instanceID))
	if err != nil {
		return Task{}, err
	}

	go m.run(t, inst.InstallPath, nil)
	return m.snapshot(t), nil
}

// Task returns a snapshot of one task.
func (m *Manager) Task(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fault.New(fault.KindNotFound, "tasks: task %s not found", id)
	}
	return t.snapshotLocked(), nil
}

// Tasks returns snapshots of all known tasks.
func (m *Manager) Tasks() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshotLocked())
	}
	return out
}

func (m *Manager) snapshot(t *task) Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return t.snapshotLocked()
}

// create reserves the activity key so a second task for the same target
// conflicts instead of racing the first.
func (m *Manager) create(kind Kind, instanceID int64, key string) (*task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if other, busy := m.active[key]; busy {
		return nil, fault.New(fault.KindConflict, "tasks: task %s is already active for this target", other)
	}

	t := &task{
		id:         uuid.NewString(),
		kind:       kind,
		instanceID: instanceID,
		status:     StatusPending,
		createdAt:  m.now(),
		activeKey:  key,
	}
	m.tasks[t.id] = t
	m.active[key] = t.id
	return t, nil
}

func (m *Manager) run(t *task, installDir string, register *registry.Instance) {
	m.mu.Lock()
	t.status = StatusRunning
	m.mu.Unlock()

	log.Printf("[TaskRunner] task %s: %s into %s", t.id, t.kind, installDir)

	code, err := m.runner.Run(context.Background(), installDir, func(line string) {
		m.appendEvent(t, eventbus.TaskEventProgress, line, 0)
	})

	switch {
	case err != nil:
		log.Printf("[TaskRunner] task %s: %v", t.id, err)
		m.finish(t, StatusFailed, err.Error(), -1)
	case code != 0:
		m.finish(t, StatusFailed, fmt.Sprintf("tool exited with code %d", code), code)
	case register != nil:
		inst, err := m.registry.CreateInstance(context.Background(), *register)
		if err != nil {
			log.Printf("[TaskRunner] task %s: register instance: %v", t.id, err)
			m.finish(t, StatusFailed, fmt.Sprintf("register instance: %v", err), 0)
			return
		}
		m.mu.Lock()
		t.instanceID = inst.ID
		m.mu.Unlock()
		m.finish(t, StatusCompleted, "deploy complete", 0)
	default:
		m.finish(t, StatusCompleted, "update complete", 0)
	}
}

// appendEvent adds one event to the task log and mirrors it on the bus.
func (m *Manager) appendEvent(t *task, kind eventbus.TaskEventKind, line string, exitCode int) {
	m.mu.Lock()
	t.sequence++
	event := Event{
		Kind:      kind,
		Sequence:  t.sequence,
		Line:      line,
		ExitCode:  exitCode,
		Timestamp: m.now(),
	}
	t.events = append(t.events, event)
	instanceID := t.instanceID
	m.mu.Unlock()

	eventbus.Publish(context.Background(), m.bus, eventbus.Tasks.Progress, eventbus.SourceTaskRunner,
		eventbus.TaskProgressEvent{
			TaskID:     t.id,
			InstanceID: instanceID,
			Kind:       kind,
			Sequence:   event.Sequence,
			Line:       line,
			ExitCode:   exitCode,
		})
}

// finish records the terminal state and emits exactly one terminal
// event. The activity key frees up before the event goes out, so a
// follow-up task can be created as soon as observers see the terminal.
func (m *Manager) finish(t *task, status Status, line string, exitCode int) {
	m.mu.Lock()
	t.status = status
	t.finishedAt = m.now()
	delete(m.active, t.activeKey)
	m.mu.Unlock()

	kind := eventbus.TaskEventSuccess
	if status == StatusFailed {
		kind = eventbus.TaskEventFailure
	}
	m.appendEvent(t, kind, line, exitCode)
	log.Printf("[TaskRunner] task %s: %s", t.id, status)
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.purgeExpired(m.now())
		case <-m.stopJanitor:
			return
		}
	}
}

// purgeExpired drops terminal tasks older than the retention window.
func (m *Manager) purgeExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.status != StatusCompleted && t.status != StatusFailed {
			continue
		}
		if now.Sub(t.finishedAt) < m.retention {
			continue
		}
		delete(m.tasks, id)
	}
}
