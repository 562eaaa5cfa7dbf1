package dialogue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/latency"
	"github.com/lokutor-ai/dialogue-orchestrator/pkg/vad"
)

// Phase is a Turn's position in the state diagram from spec §4.7.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCapturing
	PhaseTranscribing
	PhaseGenerating
	PhaseSpeaking
	PhaseCommitting
	PhaseInterrupted
)

// Turn is the lifecycle record for one user-to-AI exchange.
type Turn struct {
	phase                Phase
	pendingAssistantText string
	wasInterrupted       bool
	cancel               context.CancelFunc
	historySavedAt       time.Time
}

// snapshot holds the fields external goroutines (an HTTP status handler, a
// metrics poller) may want to read without routing through the actor's
// inbox. It is updated by the actor after every event and read under mu.
type snapshot struct {
	speaking   bool
	ttsPlaying bool
	phase      Phase
	history    []Message
	breakdown  latency.Breakdown
}

// Session is the single-writer logical actor for one active call: every
// mutation to its fields happens on its own run goroutine, driven by events
// collaborators post to inbox. Cross-session work is free to run in
// parallel; there is nothing shared between Sessions except the Registry.
type Session struct {
	callID   string
	streamID string

	telephonyOut TelephonyOut
	sttProvider  STTProvider
	llmProvider  LLMProvider
	ttsProvider  TTSProvider

	config Config
	logger Logger

	history          []Message
	transcriptBuffer []string
	turn             *Turn
	currentSeq       uint64

	vadGate         *vad.Gate
	sttStream       STTStream
	ttsStream       TTSStream
	ttsStreamer     *ttsStreamer
	lastAudioSentAt time.Time
	ttsPlaying      bool

	latencyRec latency.Recorder

	inbox  chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closed    bool

	mu   sync.RWMutex
	snap snapshot
}

// NewSession constructs a Session bound to one call. It does not start the
// actor goroutine or open any upstream connection; call Start for that, once
// the telephony `start` event has bound a streamId.
func NewSession(callID string, telephonyOut TelephonyOut, stt STTProvider, llm LLMProvider, tts TTSProvider, cfg Config, logger Logger) *Session {
	if logger == nil {
		logger = NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	silence := time.Duration(cfg.VADSilenceMs) * time.Millisecond
	if silence <= 0 {
		silence = vad.DefaultSilenceLimit
	}
	return &Session{
		callID:       callID,
		telephonyOut: telephonyOut,
		sttProvider:  stt,
		llmProvider:  llm,
		ttsProvider:  tts,
		config:       cfg,
		logger:       logger,
		vadGate:      vad.NewGateWithMode(vad.ModeDefault, silence),
		inbox:        make(chan event, 256),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start binds the streamId, opens the STT and TTS upstream connections, and
// launches the actor's run loop and the session-scoped pump goroutines. If
// a system prompt is configured, it drives a one-shot greeting turn.
func (s *Session) Start(streamID string) error {
	s.streamID = streamID

	sttStream, err := s.sttProvider.Open(s.ctx)
	if err != nil {
		return newTurnError(KindTransientConnect, err)
	}
	s.sttStream = sttStream
	go s.pumpSTT(sttStream)

	if err := s.openTTS(); err != nil {
		return newTurnError(KindTransientConnect, err)
	}

	go s.run()
	return nil
}

// PushMedia hands one inbound 160-byte µ-law frame to the Session. Called by
// Media Ingress for every `media` event on the telephony stream.
func (s *Session) PushMedia(frame []byte, ts time.Time) {
	s.postEvent(event{kind: evMedia, frame: frame, ts: ts})
}

// PushStop signals the telephony stream ended (`stop` or socket close).
func (s *Session) PushStop() {
	s.postEvent(event{kind: evStop})
}

// run is the actor's single goroutine: it owns every Session field mutation
// and every state transition, draining inbox until call_close.
func (s *Session) run() {
	defer close(s.done)

	if s.config.SystemPrompt != "" {
		s.dispatchGreeting()
	}

	for {
		select {
		case ev := <-s.inbox:
			s.handle(ev)
			s.updateSnapshot()
			if ev.kind == evCallClose {
				return
			}
		case <-s.ctx.Done():
			s.handleCallClose()
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evMedia:
		if len(ev.frame) > 0 {
			s.handleMedia(ev.frame, ev.ts)
		}
	case evStop:
		s.handleCallClose()
	case evCallClose:
		s.handleCallClose()
	case evSTTResult:
		s.handleSTTResult(ev.sttResult)
	case evLLMFirstToken:
		s.handleLLMToken(ev.text, ev.seq, true)
	case evLLMToken:
		s.handleLLMToken(ev.text, ev.seq, false)
	case evLLMComplete:
		s.handleLLMComplete(ev.text, ev.seq)
	case evLLMError:
		s.handleLLMError(ev.err, ev.seq)
	case evTTSFirstChunk:
		s.handleTTSFirstChunk()
	case evTTSAudioSent:
		s.handleTTSAudioSent(ev.ts)
	case evTTSComplete:
		s.handleTTSComplete()
	case evTTSError:
		s.handleTTSError(ev.err)
	case evInterruptTrigger:
		s.triggerInterrupt(ev.ts)
	}
}

func (s *Session) updateSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.speaking = s.vadGate.IsSpeaking()
	s.snap.ttsPlaying = s.ttsPlaying
	s.snap.history = s.historyCopy()
	s.snap.breakdown = s.latencyRec.Snapshot()
	if s.turn != nil {
		s.snap.phase = s.turn.phase
	} else {
		s.snap.phase = PhaseIdle
	}
}

// IsSpeaking reports the caller's current VAD state, safe to call from any
// goroutine.
func (s *Session) IsSpeaking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.speaking
}

// Phase reports the current turn's phase (PhaseIdle if none), safe to call
// from any goroutine.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.phase
}

// LatencyBreakdown returns the most recent per-turn latency snapshot, safe
// to call from any goroutine.
func (s *Session) LatencyBreakdown() latency.Breakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.breakdown
}

// History returns a defensive copy of the conversation history as of the
// last processed event, safe to call from any goroutine.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.snap.history))
	copy(out, s.snap.history)
	return out
}

// historyCopy must only be called from the actor goroutine.
func (s *Session) historyCopy() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// CallID returns the call identifier this Session was created for.
func (s *Session) CallID() string { return s.callID }

// Close cancels all upstream work and stops the actor. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.postEvent(event{kind: evCallClose})
		s.cancel()
		<-s.done
	})
}

func (s *Session) handleCallClose() {
	if s.closed {
		return
	}
	s.closed = true
	if s.turn != nil && s.turn.cancel != nil {
		s.turn.cancel()
	}
	var eg errgroup.Group
	if s.sttStream != nil {
		stream := s.sttStream
		eg.Go(func() error {
			if err := stream.Close(); err != nil {
				s.logger.Warn("stt close failed", "call_id", s.callID, "err", err)
			}
			return nil
		})
	}
	if s.ttsStream != nil {
		stream := s.ttsStream
		eg.Go(func() error {
			if err := stream.Close(); err != nil {
				s.logger.Warn("tts close failed", "call_id", s.callID, "err", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	s.turn = nil
	s.latencyRec.Clear()
}

func (s *Session) openTTS() error {
	stream, err := s.ttsProvider.Open(s.ctx, s.config.Voice, s.config.Language)
	if err != nil {
		return err
	}
	s.ttsStream = stream
	flushQuiet := time.Duration(s.config.TTSFlushQuietMs) * time.Millisecond
	s.ttsStreamer = newTTSStreamer(stream, s.telephonyOut, s.streamID, flushQuiet, s.postEvent)
	go s.ttsStreamer.run()
	return nil
}
