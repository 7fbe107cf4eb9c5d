// Package rcon maintains one reconnecting control-protocol session per
// running game-server process. The wire protocol itself comes from the
// gorcon client library; this package owns connection state, bounded
// execution, and per-cause reconnect scheduling.
package rcon

import (
	"time"

	gorcon "github.com/gorcon/rcon"
)

// Conn is the minimal control-protocol connection surface a session
// drives. The production implementation wraps a gorcon connection.
type Conn interface {
	// Execute sends one command and returns the server's text response.
	Execute(command string) (string, error)
	Close() error
}

// Notifier is an optional Conn extension for transports that push
// server events (chat, warnings, kicks, bans). The channel must be
// closed when the connection dies.
type Notifier interface {
	Events() <-chan ServerEvent
}

// ServerEvent is one pushed notification from the game server.
type ServerEvent struct {
	Kind       EventKind
	Channel    string // chat channel (ChatAll, ChatTeam, ChatSquad, ChatAdmin)
	PlayerName string
	TeamID     string
	SquadID    string
	Message    string
	Raw        string
}

// EventKind classifies pushed server events.
type EventKind string

const (
	EventChat EventKind = "chat"
	EventWarn EventKind = "warn"
	EventKick EventKind = "kick"
	EventBan  EventKind = "ban"
)

// Dialer opens a control-protocol connection. The timeout bounds the
// whole connection attempt including authentication.
type Dialer func(addr, password string, timeout time.Duration) (Conn, error)

// Dial is the production Dialer backed by gorcon. The execute deadline
// is set on the connection so transport calls can never hang past the
// session's own execute timeout.
func Dial(addr, password string, timeout time.Duration) (Conn, error) {
	return gorcon.Dial(addr, password,
		gorcon.SetDialTimeout(timeout),
		gorcon.SetDeadline(DefaultExecuteTimeout),
	)
}
