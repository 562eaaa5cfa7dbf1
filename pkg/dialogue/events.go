package dialogue

import "time"

// eventKind enumerates the events the Turn Controller's single-threaded
// cooperative loop dispatches on, per spec's named event set.
type eventKind int

const (
	evMedia eventKind = iota
	evStop
	evSTTResult
	evLLMFirstToken
	evLLMToken
	evLLMComplete
	evLLMError
	evTTSFirstChunk
	evTTSAudioSent
	evTTSComplete
	evTTSError
	evInterruptTrigger
	evCallClose
)

// event is the single envelope every collaborator posts to a Session's
// inbox; only the fields relevant to Kind are populated.
type event struct {
	kind eventKind
	ts   time.Time

	frame []byte // evMedia

	sttResult STTResult // evSTTResult

	text string // evLLMFirstToken, evLLMToken, evLLMComplete (full text)
	seq  uint64 // evLLMFirstToken, evLLMToken, evLLMComplete, evLLMError

	err error // evLLMError, evTTSError
}

// postEvent enqueues ev without blocking the caller forever; the inbox is
// sized generously (media frames arrive at a steady 50/s and every other
// event kind is comparatively rare), but a full inbox on a session already
// shutting down must not wedge the poster, so sends respect s.ctx.
func (s *Session) postEvent(ev event) {
	select {
	case s.inbox <- ev:
	case <-s.ctx.Done():
	}
}
