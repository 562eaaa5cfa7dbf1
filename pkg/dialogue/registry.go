package dialogue

import (
	"fmt"
	"sync"
)

// Hook is an end-of-call cleanup callback registered with the Registry
// (persistence, webhook notification) — external collaborators the
// Registry invokes but does not own.
type Hook func(callID string)

// Registry is the process-wide keyed store of active Sessions (spec §4.1).
// closeAll is idempotent: a closingSet guards against re-entry from the
// telephony socket closing, a `stop` event, and an upstream error all racing
// to tear the same call down. Hooks run in reverse registration order,
// mirroring the teardown discipline of a reverse-order closer list.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closing  map[string]bool
	hooks    []Hook
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		closing:  make(map[string]bool),
	}
}

// AddHook registers an end-of-call hook, invoked by CloseAll after the
// Session's own upstream connections are torn down. Hooks run in reverse
// registration order.
func (r *Registry) AddHook(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Create builds and registers a new Session for callID. It is an error to
// create a second Session for a callID already present.
func (r *Registry) Create(callID string, telephonyOut TelephonyOut, stt STTProvider, llm LLMProvider, tts TTSProvider, cfg Config, logger Logger) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[callID]; exists {
		return nil, fmt.Errorf("session registry: call %q already active", callID)
	}

	sess := NewSession(callID, telephonyOut, stt, llm, tts, cfg, logger)
	r.sessions[callID] = sess
	return sess, nil
}

// Get looks up the Session for callID, returning nil if none is active.
func (r *Registry) Get(callID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[callID]
}

// CloseAll tears down the Session for callID: cancels LLM, closes STT and
// closes TTS (all via Session.Close), then invokes registered end-of-call
// hooks in reverse order. It does not close the telephony writer; the
// websocket behind it stays open until its owner closes it. Calling it twice
// for the same callID is a no-op the second time.
func (r *Registry) CloseAll(callID string) {
	r.mu.Lock()
	if r.closing[callID] {
		r.mu.Unlock()
		return
	}
	r.closing[callID] = true
	sess, ok := r.sessions[callID]
	hooks := make([]Hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	if ok {
		sess.Close()
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](callID)
	}

	r.mu.Lock()
	delete(r.sessions, callID)
	// closing[callID] stays set: a later CloseAll for the same callID (a
	// duplicate stop event racing the socket close, say) must still be a
	// no-op, not just non-overlapping with this invocation.
	r.mu.Unlock()
}

// Len reports the number of currently active sessions, for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
