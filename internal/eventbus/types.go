package eventbus

import (
	"time"
)

// Topic identifies a logical channel on the bus.
type Topic string

const (
	TopicInstancesLifecycle Topic = "instances.lifecycle"
	TopicInstancesConsole   Topic = "instances.console"
	TopicTasksProgress      Topic = "tasks.progress"
)

// Source describes which component produced an event.
type Source string

const (
	SourceSupervisor Source = "supervisor"
	SourceSession    Source = "session"
	SourceTaskRunner Source = "task_runner"
	SourceUnknown    Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
	Payload   any       `json:"payload"`
}

// InstanceState summarises supervised-process lifecycle changes.
type InstanceState string

const (
	InstanceStateStarted   InstanceState = "started"
	InstanceStateConnected InstanceState = "connected"
	InstanceStateStopped   InstanceState = "stopped"
)

// InstanceLifecycleEvent notifies consumers about process state transitions.
type InstanceLifecycleEvent struct {
	InstanceID int64         `json:"instance_id"`
	State      InstanceState `json:"state"`
	PID        int           `json:"pid,omitempty"`
	ExitCode   *int          `json:"exit_code,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// ConsoleLineEvent carries one line of server output or one formatted
// RCON event for a running instance.
type ConsoleLineEvent struct {
	InstanceID int64  `json:"instance_id"`
	Line       string `json:"line"`
}

// TaskEventKind distinguishes progress lines from terminal events.
type TaskEventKind string

const (
	TaskEventProgress TaskEventKind = "progress"
	TaskEventSuccess  TaskEventKind = "success"
	TaskEventFailure  TaskEventKind = "failure"
)

// TaskProgressEvent is one entry of a task's append-only event log.
type TaskProgressEvent struct {
	TaskID     string        `json:"task_id"`
	InstanceID int64         `json:"instance_id,omitempty"`
	Kind       TaskEventKind `json:"kind"`
	Sequence   int           `json:"sequence"`
	Line       string        `json:"line"`
	ExitCode   int           `json:"exit_code,omitempty"`
}

// Instances groups the typed topic descriptors for instance events.
var Instances = struct {
	Lifecycle TopicDef[InstanceLifecycleEvent]
	Console   TopicDef[ConsoleLineEvent]
}{
	Lifecycle: NewTopicDef[InstanceLifecycleEvent](TopicInstancesLifecycle),
	Console:   NewTopicDef[ConsoleLineEvent](TopicInstancesConsole),
}

// Tasks groups the typed topic descriptors for task events.
var Tasks = struct {
	Progress TopicDef[TaskProgressEvent]
}{
	Progress: NewTopicDef[TaskProgressEvent](TopicTasksProgress),
}
