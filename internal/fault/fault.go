package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to map it onto an
// external response (HTTP status, exit code) without string matching.
type Kind int

const (
	// KindInternal covers unexpected I/O and spawn failures.
	KindInternal Kind = iota
	// KindNotFound indicates a requested record or entry does not exist.
	KindNotFound
	// KindConflict indicates a duplicate create, an already-running
	// instance, or an update already in progress.
	KindConflict
	// KindBadInput indicates a malformed path, port, or identity.
	KindBadInput
	// KindUnavailable indicates a missing executable or an instance
	// without a connected RCON session.
	KindUnavailable
	// KindTimeout indicates a bounded wait that expired.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindBadInput:
		return "bad input"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error carries a Kind alongside the wrapped cause or message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fault of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. A nil err returns nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// errors that did not originate here.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// IsNotFound returns true when err is (or wraps) a NotFound fault.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsConflict returns true when err is (or wraps) a Conflict fault.
func IsConflict(err error) bool { return Is(err, KindConflict) }

// IsTimeout returns true when err is (or wraps) a Timeout fault.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }

// IsUnavailable returns true when err is (or wraps) an Unavailable fault.
func IsUnavailable(err error) bool { return Is(err, KindUnavailable) }
