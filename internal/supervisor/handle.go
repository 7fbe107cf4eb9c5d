package supervisor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/squadops/squadops/internal/rcon"
)

// Handle is the live state of one supervised game-server process. It is
// created by Start and removed by the exit monitor; Stop only signals
// the process.
//
// The slot in the manager map is reserved before launch finishes, so
// Stop and Shutdown can observe a handle whose process and session are
// not assigned yet. mu guards those fields together with the stop and
// detach requests that may arrive during that window.
type Handle struct {
	instanceID int64

	mu            sync.Mutex
	proc          Process
	session       *rcon.Session
	connectTimer  *time.Timer
	stopRequested bool
	detached      bool

	logMu   sync.Mutex
	logFile *os.File
}

// publish assigns the live fields once launch has spawned the process,
// and reports whether a stop or detach request arrived in the meantime.
func (h *Handle) publish(proc Process, session *rcon.Session, timer *time.Timer) (stopRequested, detached bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = proc
	h.session = session
	h.connectTimer = timer
	return h.stopRequested, h.detached
}

// requestStop marks the handle as stopping and returns the live fields.
// Nil fields mean launch has not published them yet; launch then acts on
// the stop request itself.
func (h *Handle) requestStop() (Process, *rcon.Session, *time.Timer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopRequested = true
	return h.proc, h.session, h.connectTimer
}

// requestDetach marks the handle as detached and returns the live
// fields. The process is deliberately left running.
func (h *Handle) requestDetach() (Process, *rcon.Session, *time.Timer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
	return h.proc, h.session, h.connectTimer
}

func (h *Handle) stopRequestedNow() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopRequested
}

// sessionRef returns the session, or nil while launch is in flight.
func (h *Handle) sessionRef() *rcon.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// PID returns the supervised process id, or 0 while launch is in flight.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc == nil {
		return 0
	}
	return h.proc.PID()
}

// appendConsole writes one line to the instance's append-only console log.
func (h *Handle) appendConsole(line string) {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	if h.logFile == nil {
		return
	}
	fmt.Fprintln(h.logFile, line)
}

func (h *Handle) closeLog() {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	if h.logFile != nil {
		h.logFile.Close()
		h.logFile = nil
	}
}
