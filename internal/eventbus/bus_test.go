package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	sub := SubscribeTo(bus, Instances.Console)
	defer sub.Close()

	Publish(context.Background(), bus, Instances.Console, SourceSupervisor, ConsoleLineEvent{
		InstanceID: 7,
		Line:       "LogSquad: server started",
	})

	select {
	case env := <-sub.C():
		if env.Payload.InstanceID != 7 {
			t.Fatalf("unexpected instance id: %d", env.Payload.InstanceID)
		}
		if env.Payload.Line != "LogSquad: server started" {
			t.Fatalf("unexpected line: %q", env.Payload.Line)
		}
		if env.Source != SourceSupervisor {
			t.Fatalf("unexpected source: %s", env.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNilBusIsNoop(t *testing.T) {
	var bus *Bus

	// Publish must not panic.
	Publish(context.Background(), bus, Tasks.Progress, SourceTaskRunner, TaskProgressEvent{})

	sub := SubscribeTo(bus, Tasks.Progress)
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel from nil bus")
	}
	sub.Close()
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	bus := New(WithTopicBuffer(TopicTasksProgress, 1))
	defer bus.Shutdown()

	raw := bus.Subscribe(TopicTasksProgress)
	defer raw.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		Publish(ctx, bus, Tasks.Progress, SourceTaskRunner, TaskProgressEvent{Sequence: i})
	}

	env := <-raw.C()
	got := env.Payload.(TaskProgressEvent)
	if got.Sequence != 2 {
		t.Fatalf("expected newest event to survive, got sequence %d", got.Sequence)
	}
	if raw.Dropped() == 0 {
		t.Fatal("expected drops to be recorded")
	}
}

func TestSubscriptionContextClose(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	raw := bus.Subscribe(TopicInstancesLifecycle, WithContext(ctx))

	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-raw.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed after context cancel")
		}
	}
}

func TestTypedSubscriptionSkipsMismatchedPayloads(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	sub := SubscribeTo(bus, Instances.Lifecycle)
	defer sub.Close()

	// Raw publish with a mismatched payload type on the same topic.
	bus.publish(context.Background(), Envelope{
		Topic:   TopicInstancesLifecycle,
		Payload: "not a lifecycle event",
	})
	Publish(context.Background(), bus, Instances.Lifecycle, SourceSupervisor, InstanceLifecycleEvent{
		InstanceID: 3,
		State:      InstanceStateStarted,
	})

	select {
	case env := <-sub.C():
		if env.Payload.InstanceID != 3 || env.Payload.State != InstanceStateStarted {
			t.Fatalf("unexpected payload: %+v", env.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for typed event")
	}
}
