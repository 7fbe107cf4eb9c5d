package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/squadops/squadops/internal/eventbus"
)

func dialStream(t *testing.T, env *apiEnv, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/stream"
	if query != "" {
		wsURL += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// streamEnvelope mirrors eventbus.Envelope with the payload left raw so
// tests can decode it per topic.
type streamEnvelope struct {
	Topic   eventbus.Topic  `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) streamEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env streamEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestStreamForwardsConsoleLines(t *testing.T) {
	env := newAPIEnv(t)
	conn := dialStream(t, env, "")

	// The subscription is registered during the upgrade handler; give it
	// a moment before publishing.
	time.Sleep(20 * time.Millisecond)

	eventbus.Publish(context.Background(), env.bus, eventbus.Instances.Console, eventbus.SourceSupervisor,
		eventbus.ConsoleLineEvent{InstanceID: 7, Line: "LogSquad: server up"})

	got := readEnvelope(t, conn)
	if got.Topic != eventbus.TopicInstancesConsole {
		t.Fatalf("unexpected topic %q", got.Topic)
	}
	var payload eventbus.ConsoleLineEvent
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.InstanceID != 7 || payload.Line != "LogSquad: server up" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestStreamInstanceFilter(t *testing.T) {
	env := newAPIEnv(t)
	conn := dialStream(t, env, "instance=2")

	time.Sleep(20 * time.Millisecond)

	// The first event targets another instance and must be filtered out.
	eventbus.Publish(context.Background(), env.bus, eventbus.Instances.Lifecycle, eventbus.SourceSupervisor,
		eventbus.InstanceLifecycleEvent{InstanceID: 1, State: eventbus.InstanceStateStarted})
	eventbus.Publish(context.Background(), env.bus, eventbus.Instances.Lifecycle, eventbus.SourceSupervisor,
		eventbus.InstanceLifecycleEvent{InstanceID: 2, State: eventbus.InstanceStateStarted})

	got := readEnvelope(t, conn)
	var payload eventbus.InstanceLifecycleEvent
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.InstanceID != 2 {
		t.Fatalf("filter leaked instance %d", payload.InstanceID)
	}
}

func TestStreamTaskFilter(t *testing.T) {
	env := newAPIEnv(t)
	conn := dialStream(t, env, "task=abc")

	time.Sleep(20 * time.Millisecond)

	// Lifecycle events never match a task filter.
	eventbus.Publish(context.Background(), env.bus, eventbus.Instances.Lifecycle, eventbus.SourceSupervisor,
		eventbus.InstanceLifecycleEvent{InstanceID: 1, State: eventbus.InstanceStateStarted})
	eventbus.Publish(context.Background(), env.bus, eventbus.Tasks.Progress, eventbus.SourceTaskRunner,
		eventbus.TaskProgressEvent{TaskID: "other", Kind: eventbus.TaskEventProgress, Sequence: 1, Line: "ignored"})
	eventbus.Publish(context.Background(), env.bus, eventbus.Tasks.Progress, eventbus.SourceTaskRunner,
		eventbus.TaskProgressEvent{TaskID: "abc", Kind: eventbus.TaskEventProgress, Sequence: 1, Line: "wanted"})

	got := readEnvelope(t, conn)
	if got.Topic != eventbus.TopicTasksProgress {
		t.Fatalf("unexpected topic %q", got.Topic)
	}
	var payload eventbus.TaskProgressEvent
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TaskID != "abc" || payload.Line != "wanted" {
		t.Fatalf("filter leaked %+v", payload)
	}
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	env := newAPIEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/stream"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestIsLocalOrigin(t *testing.T) {
	cases := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"http://127.0.0.1", true},
		{"https://[::1]:8440", true},
		{"http://squad.example.com", false},
		{"file://localhost", false},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.origin)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.origin, err)
		}
		if got := isLocalOrigin(u); got != tc.want {
			t.Errorf("isLocalOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
