package rcon

import (
	"log"
	"sync"
	"time"

	"github.com/squadops/squadops/internal/fault"
)

// State is the session connection state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateBackoffPending State = "backoff_pending"
)

// Default timeout tiers.
const (
	DefaultExecuteTimeout = 5 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// Reconnect delays are fixed per failure cause, not exponential.
const (
	DefaultConnectFailureDelay = 30 * time.Second
	DefaultTransportErrorDelay = 10 * time.Second
	DefaultRemoteCloseDelay    = 15 * time.Second
)

// Credentials is the resolved address and password for a connect attempt.
type Credentials struct {
	Addr     string
	Password string
}

// Config wires a session to its owning process handle.
type Config struct {
	InstanceID int64

	// Dial opens the underlying connection. Defaults to the gorcon
	// dialer.
	Dial Dialer

	// Credentials resolves the effective address/password immediately
	// before each connect attempt. The on-disk credential file is
	// authoritative, so resolution must happen per attempt, not once.
	Credentials func() (Credentials, error)

	// OwnerAlive reports whether the owning process still runs. A dead
	// process must never enter a reconnect loop.
	OwnerAlive func() bool

	// ConsoleLine, when set, receives formatted server-event lines.
	ConsoleLine func(line string)

	// SquadName, when set, resolves a team/squad id pair to a squad
	// name for chat enrichment. A failed lookup degrades to the raw
	// event line.
	SquadName func(teamID, squadID string) (string, error)

	// OnStateChange, when set, observes state transitions.
	OnStateChange func(State)

	ExecuteTimeout time.Duration
	ConnectTimeout time.Duration

	ConnectFailureDelay time.Duration
	TransportErrorDelay time.Duration
	RemoteCloseDelay    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Dial == nil {
		c.Dial = Dial
	}
	if c.ExecuteTimeout <= 0 {
		c.ExecuteTimeout = DefaultExecuteTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ConnectFailureDelay <= 0 {
		c.ConnectFailureDelay = DefaultConnectFailureDelay
	}
	if c.TransportErrorDelay <= 0 {
		c.TransportErrorDelay = DefaultTransportErrorDelay
	}
	if c.RemoteCloseDelay <= 0 {
		c.RemoteCloseDelay = DefaultRemoteCloseDelay
	}
}

// Session is a reconnecting control-protocol session owned by exactly
// one process handle. All commands through one session are serialized.
type Session struct {
	cfg Config

	mu             sync.Mutex
	state          State
	conn           Conn
	reconnectTimer *time.Timer
	closed         bool

	// busy marks conn as reserved by a timed-out command that is still
	// in flight. The connection stays unusable until that call resolves,
	// so two commands are never in flight at once.
	busy bool

	// execMu serializes Execute calls so no two commands are in flight
	// on the same connection.
	execMu sync.Mutex
}

// NewSession builds a session in the Disconnected state.
func NewSession(cfg Config) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:   cfg,
		state: StateDisconnected,
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	if s.cfg.OnStateChange != nil {
		go s.cfg.OnStateChange(state)
	}
}

// Connect starts a connection attempt in the background. It is a no-op
// when already connected, when an attempt is in flight, or after Close.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.closed || s.state == StateConnected || s.state == StateConnecting {
		s.mu.Unlock()
		return
	}
	s.stopReconnectTimerLocked()
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	go s.connectAttempt()
}

func (s *Session) connectAttempt() {
	creds, err := s.cfg.Credentials()
	if err != nil {
		log.Printf("[Session] instance %d: resolve credentials: %v", s.cfg.InstanceID, err)
		s.connectFailed()
		return
	}

	type dialResult struct {
		conn Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := s.cfg.Dial(creds.Addr, creds.Password, s.cfg.ConnectTimeout)
		resultCh <- dialResult{conn: conn, err: err}
	}()

	var result dialResult
	select {
	case result = <-resultCh:
	case <-time.After(s.cfg.ConnectTimeout):
		// Abandon the attempt; a late success is closed by the
		// goroutine below.
		go func() {
			if late := <-resultCh; late.conn != nil {
				late.conn.Close()
			}
		}()
		result = dialResult{err: fault.New(fault.KindTimeout, "rcon: connect to %s timed out", creds.Addr)}
	}

	if result.err != nil {
		log.Printf("[Session] instance %d: connect failed: %v", s.cfg.InstanceID, result.err)
		s.connectFailed()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		result.conn.Close()
		return
	}
	s.conn = result.conn
	s.busy = false
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	log.Printf("[Session] instance %d: connected to %s", s.cfg.InstanceID, creds.Addr)

	if notifier, ok := result.conn.(Notifier); ok {
		go s.consumeEvents(result.conn, notifier.Events())
	}
}

func (s *Session) connectFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.setStateLocked(StateDisconnected)
	s.scheduleReconnectLocked(s.cfg.ConnectFailureDelay, "connect failure")
}

// Execute sends one command and waits for the response, bounded by the
// execute timeout. A timeout alone does not tear down the session; a
// transport failure does and schedules a reconnect.
func (s *Session) Execute(command string) (string, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	busy := s.busy
	s.mu.Unlock()
	if conn == nil {
		return "", fault.New(fault.KindUnavailable, "rcon: no connected session")
	}
	if busy {
		return "", fault.New(fault.KindUnavailable, "rcon: previous command still in flight")
	}

	type execResult struct {
		response string
		err      error
	}
	resultCh := make(chan execResult, 1)
	go func() {
		response, err := conn.Execute(command)
		resultCh <- execResult{response: response, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			s.transportFailure(conn, result.err)
			return "", fault.Wrap(fault.KindUnavailable, result.err, "rcon: execute %q", command)
		}
		return result.response, nil
	case <-time.After(s.cfg.ExecuteTimeout):
		// Reserve the connection until the abandoned call resolves; its
		// late outcome is handled below so a dead connection does not
		// linger as connected.
		s.mu.Lock()
		if s.conn == conn {
			s.busy = true
		}
		s.mu.Unlock()
		go func() {
			result := <-resultCh
			s.mu.Lock()
			if s.conn == conn {
				s.busy = false
			}
			s.mu.Unlock()
			if result.err != nil {
				s.transportFailure(conn, result.err)
			}
		}()
		return "", fault.New(fault.KindTimeout, "rcon: execute %q timed out", command)
	}
}

// transportFailure tears the session down after a failed command and
// schedules a reconnect while the owning process is still alive.
func (s *Session) transportFailure(failed Conn, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != failed {
		return
	}
	log.Printf("[Session] instance %d: transport failure: %v", s.cfg.InstanceID, cause)
	s.conn.Close()
	s.conn = nil
	s.setStateLocked(StateDisconnected)
	s.scheduleReconnectLocked(s.cfg.TransportErrorDelay, "transport error")
}

// remoteClosed handles the event channel closing underneath us.
func (s *Session) remoteClosed(dead Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != dead {
		return
	}
	log.Printf("[Session] instance %d: connection closed by server", s.cfg.InstanceID)
	s.conn.Close()
	s.conn = nil
	s.setStateLocked(StateDisconnected)
	s.scheduleReconnectLocked(s.cfg.RemoteCloseDelay, "remote close")
}

// scheduleReconnectLocked arms the single owned reconnect timer. The
// owner-alive check runs both now and when the timer fires: a process
// that died in between must not trigger a connect.
func (s *Session) scheduleReconnectLocked(delay time.Duration, reason string) {
	if s.cfg.OwnerAlive != nil && !s.cfg.OwnerAlive() {
		log.Printf("[Session] instance %d: owner process gone, not reconnecting (%s)", s.cfg.InstanceID, reason)
		return
	}

	s.stopReconnectTimerLocked()
	s.setStateLocked(StateBackoffPending)
	log.Printf("[Session] instance %d: reconnect in %s after %s", s.cfg.InstanceID, delay, reason)

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()

		if s.cfg.OwnerAlive != nil && !s.cfg.OwnerAlive() {
			return
		}
		s.Connect()
	})
}

func (s *Session) stopReconnectTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// Close shuts the session down for good: the reconnect timer is
// cancelled and no further connect attempts happen. Close does not
// cancel an in-flight Execute; only the execute timeout bounds it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopReconnectTimerLocked()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.setStateLocked(StateDisconnected)
}
