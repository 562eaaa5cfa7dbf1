package dialogue

import (
	"context"
	"errors"
)

// Kind classifies a turn-ending failure per the error handling table: each
// kind carries its own recovery policy, decided by the Session actor rather
// than by the collaborator that raised it.
type Kind int

const (
	// KindTransientConnect covers upstream WS/TCP connect failures. Fatal to
	// the turn; fatal to the session if it happens during start.
	KindTransientConnect Kind = iota
	// KindAuth covers STT 401s and similar. One refresh attempt, then fatal
	// to the session.
	KindAuth
	// KindProtocol covers malformed downstream frames. Logged and dropped;
	// never fatal.
	KindProtocol
	// KindCancelled covers expected cooperative cancellation (interrupt or
	// call_close). Not an error condition.
	KindCancelled
	// KindVendor covers an explicit {error:...} frame from a downstream
	// provider. Treated as end-of-turn with no commit.
	KindVendor
	// KindWriterClosed covers the telephony writer closing mid-send. Treated
	// as session close.
	KindWriterClosed
	// KindInvariant covers a violated invariant (e.g. double-commit).
	// Panics in debug builds; logged and skipped otherwise.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindTransientConnect:
		return "transient_connect"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindCancelled:
		return "cancelled"
	case KindVendor:
		return "vendor"
	case KindWriterClosed:
		return "writer_closed"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// turnError is the single result type every upstream-call failure path
// resolves to, replacing the source's mixed throw/callback/onError styles.
type turnError struct {
	Kind Kind
	Err  error
}

func (e *turnError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *turnError) Unwrap() error { return e.Err }

func newTurnError(kind Kind, err error) *turnError {
	return &turnError{Kind: kind, Err: err}
}

// classifyCancellation distinguishes expected cooperative cancellation from
// a genuine upstream failure, wrapping err as KindCancelled when it (or its
// chain) is context.Canceled.
func classifyCancellation(kind Kind, err error) *turnError {
	if errors.Is(err, context.Canceled) {
		return newTurnError(KindCancelled, err)
	}
	return newTurnError(kind, err)
}

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrEmptyUtterance = errors.New("utterance transcript buffer is empty")
	ErrNilProvider    = errors.New("required provider is nil")
)
