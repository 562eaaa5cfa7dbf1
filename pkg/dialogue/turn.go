package dialogue

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/vad"
)

// handleMedia fans one inbound frame out to the VAD Gate and, while the
// caller is mid-utterance, to the STT stream, then runs barge-in detection.
// Call recording is explicitly out of scope (spec §1) and has no hook here.
func (s *Session) handleMedia(frame []byte, ts time.Time) {
	if s.closed {
		return
	}

	vadEvt := s.vadGate.Process(frame, ts)
	if vadEvt != nil {
		switch vadEvt.Type {
		case vad.SpeechStarted:
			s.onSpeechStarted()
		case vad.SpeechEnded:
			s.onSpeechEnded(ts)
		}
	}

	if s.vadGate.IsSpeaking() && s.sttStream != nil {
		if err := s.sttStream.SendAudio(frame); err != nil {
			s.logger.Warn("stt send audio failed", "call_id", s.callID, "err", err)
		}
	}

	s.checkBargeIn(ts)
}

// onSpeechStarted begins a new turn unless one is already in flight — a
// second speech_started while a turn is generating/speaking is barge-in
// audio feeding the existing turn's successor, not a fresh turn.
//
// transcriptBuffer is deliberately left untouched here: spec §3 clears it
// only on turn dispatch (dispatchTurn), not on speech_started. A final
// arriving from the previous turn's tail end — after that turn already
// committed/interrupted and set s.turn = nil — must survive into the next
// turn's buffer rather than being wiped by the next speech_started.
func (s *Session) onSpeechStarted() {
	if s.turn == nil || s.turn.phase == PhaseIdle || s.turn.phase == PhaseCommitting || s.turn.phase == PhaseInterrupted {
		s.turn = &Turn{phase: PhaseCapturing}
	}
}

// onSpeechEnded handles the speech_ended edge. A speech_ended with no turn
// in phase capturing is a duplicate without an intervening speech_started
// and is ignored, per spec's edge policy.
func (s *Session) onSpeechEnded(ts time.Time) {
	if s.turn == nil || s.turn.phase != PhaseCapturing {
		return
	}
	s.turn.phase = PhaseTranscribing
	s.dispatchTurn(ts)
}

// dispatchTurn implements the speech_ended handler (spec §4.7, steps 1-8).
func (s *Session) dispatchTurn(vadEnd time.Time) {
	if len(s.transcriptBuffer) == 0 {
		s.turn.phase = PhaseIdle
		s.turn = nil
		return
	}

	userMessage := strings.Join(s.transcriptBuffer, " ")
	s.transcriptBuffer = s.transcriptBuffer[:0]
	s.history = append(s.history, Message{Role: RoleUser, Content: userMessage})
	s.latencyRec.MarkVADEnd(vadEnd)

	s.beginGeneration(userMessage)
}

// dispatchGreeting drives the initial one-shot turn with userMessage="",
// run once at session start when a system prompt is configured. History
// commits only if the greeting plays out uninterrupted.
func (s *Session) dispatchGreeting() {
	s.turn = &Turn{phase: PhaseTranscribing}
	s.latencyRec.MarkVADEnd(nowFunc())
	s.beginGeneration("")
}

// beginGeneration is the shared tail of dispatchTurn and dispatchGreeting:
// ensure TTS is open, reset per-turn state, and invoke the LLM.
func (s *Session) beginGeneration(userMessage string) {
	if s.ttsStream == nil {
		if err := s.openTTS(); err != nil {
			s.logger.Error("tts open failed", "call_id", s.callID, "err", err)
			s.turn.phase = PhaseIdle
			s.turn = nil
			return
		}
	}
	if s.ttsStreamer != nil {
		s.ttsStreamer.StartTurn()
	}

	s.turn.phase = PhaseGenerating
	s.turn.wasInterrupted = false
	s.turn.pendingAssistantText = ""

	s.currentSeq++
	seq := s.currentSeq
	turnCtx, cancel := context.WithCancel(s.ctx)
	s.turn.cancel = cancel

	s.latencyRec.MarkLLMCall(nowFunc())
	stream, err := s.llmProvider.Stream(turnCtx, s.config.SystemPrompt, s.historyForLLM(), userMessage)
	if err != nil {
		s.logger.Error("llm stream open failed", "call_id", s.callID, "err", err)
		cancel()
		s.turn.phase = PhaseIdle
		s.turn = nil
		return
	}
	go s.pumpLLM(stream, seq)
}

// historyForLLM returns the full history as of this turn's dispatch; the
// user message just appended is included, matching the source's
// `history[:−0]` (the entire list, nothing trimmed).
func (s *Session) historyForLLM() []Message {
	return s.historyCopy()
}

// checkBargeIn implements the barge-in detection rule, run on every inbound
// media frame while a turn is generating or speaking.
func (s *Session) checkBargeIn(now time.Time) {
	if s.turn == nil {
		return
	}
	if s.turn.phase != PhaseGenerating && s.turn.phase != PhaseSpeaking {
		return
	}

	recentWindow := time.Duration(s.config.InterruptTTSRecentMs) * time.Millisecond
	ttsActive := s.ttsPlaying || (!s.lastAudioSentAt.IsZero() && now.Sub(s.lastAudioSentAt) < recentWindow)
	if !ttsActive {
		return
	}
	if !s.vadGate.IsSpeaking() {
		return
	}
	startedAt := s.vadGate.SpeechStartedAt()
	if startedAt.IsZero() {
		return
	}

	speakingDuration := now.Sub(startedAt)
	fastPath := speakingDuration > time.Duration(s.config.InterruptFastMs)*time.Millisecond && len(s.transcriptBuffer) > 0
	safetyPath := speakingDuration > time.Duration(s.config.InterruptSafetyMs)*time.Millisecond
	if fastPath || safetyPath {
		s.triggerInterrupt(now)
	}
}

// triggerInterrupt is the interrupt handler (spec §4.7), executed in the
// fixed order the design notes call for: clear, mute TTS, cancel LLM,
// rollback history.
func (s *Session) triggerInterrupt(now time.Time) {
	if s.turn == nil {
		return
	}
	t := s.turn
	t.wasInterrupted = true

	if err := s.telephonyOut.SendClear(); err != nil {
		s.logger.Warn("telephony clear failed", "call_id", s.callID, "err", err)
	}

	if s.ttsStream != nil {
		if err := s.ttsStream.Abort(); err != nil {
			s.logger.Warn("tts abort failed", "call_id", s.callID, "err", err)
		}
		s.ttsStream = nil
		s.ttsStreamer = nil
	}

	if t.cancel != nil {
		t.cancel()
	}

	recentWindow := time.Duration(s.config.InterruptTTSRecentMs) * time.Millisecond
	if !t.historySavedAt.IsZero() && now.Sub(t.historySavedAt) < recentWindow {
		if n := len(s.history); n > 0 && s.history[n-1].Role == RoleAssistant {
			s.history = s.history[:n-1]
		}
	}

	s.lastAudioSentAt = time.Time{}
	t.pendingAssistantText = ""
	t.historySavedAt = time.Time{}
	s.ttsPlaying = false

	t.phase = PhaseInterrupted
	s.latencyRec.Clear()
	s.turn = nil
}

// handleSTTResult appends finals to transcriptBuffer and logs partials. A
// final arriving after the turn it belonged to already dispatched simply
// joins the buffer for the next turn, since the buffer is drained (not
// gated) on dispatch.
func (s *Session) handleSTTResult(r STTResult) {
	if !r.Final {
		s.logger.Debug("stt partial", "call_id", s.callID, "seq", r.Seq, "text", r.Text)
		return
	}
	if r.Text == "" {
		return
	}
	s.transcriptBuffer = append(s.transcriptBuffer, r.Text)
}

// handleLLMToken forwards a streamed token to TTS, unless the turn has
// already been interrupted. The first token additionally transitions the
// turn to speaking and records the LLMFirstToken timing.
func (s *Session) handleLLMToken(text string, seq uint64, first bool) {
	if s.turn == nil || seq != s.currentSeq {
		return
	}
	if first {
		if s.turn.phase == PhaseGenerating {
			s.turn.phase = PhaseSpeaking
		}
		s.latencyRec.MarkLLMFirstToken(nowFunc())
	}
	if s.turn.wasInterrupted {
		return
	}
	if s.ttsStream != nil {
		if err := s.ttsStream.SendToken(text); err != nil {
			s.logger.Warn("tts send token failed", "call_id", s.callID, "err", err)
		}
	}
}

// handleLLMComplete records the full response and flushes TTS so it can
// finish generating, unless the turn was interrupted mid-stream.
func (s *Session) handleLLMComplete(full string, seq uint64) {
	if s.turn == nil || seq != s.currentSeq {
		return
	}
	s.turn.pendingAssistantText = full
	if s.turn.wasInterrupted {
		return
	}
	if s.ttsStream != nil {
		if err := s.ttsStream.Flush(); err != nil {
			s.logger.Warn("tts flush failed", "call_id", s.callID, "err", err)
		} else if s.ttsStreamer != nil {
			s.ttsStreamer.NotifyFlushed()
		}
	}
}

// handleLLMError classifies the failure; cancellation is expected (the
// interrupt handler already unwound turn state) and logged at debug, any
// other failure ends the turn with nothing committed.
func (s *Session) handleLLMError(err error, seq uint64) {
	if s.turn == nil || seq != s.currentSeq {
		return
	}
	te := classifyCancellation(KindTransientConnect, err)
	if te.Kind == KindCancelled {
		s.logger.Debug("llm stream cancelled", "call_id", s.callID)
		return
	}
	s.logger.Error("llm stream failed", "call_id", s.callID, "err", err)
	s.turn.phase = PhaseIdle
	s.turn = nil
	s.latencyRec.Clear()
}

func (s *Session) handleTTSFirstChunk() {
	if s.turn == nil {
		return
	}
	s.ttsPlaying = true
	s.latencyRec.MarkTTSFirstChunk(nowFunc())
}

func (s *Session) handleTTSAudioSent(ts time.Time) {
	s.lastAudioSentAt = ts
}

// handleTTSComplete is onStreamComplete: commit the assistant's response
// unless the turn was interrupted, per the invariant that interrupted turns
// never reach history.
func (s *Session) handleTTSComplete() {
	s.ttsPlaying = false
	if s.turn == nil {
		return
	}
	s.turn.phase = PhaseCommitting
	if !s.turn.wasInterrupted && s.turn.pendingAssistantText != "" {
		s.history = append(s.history, Message{Role: RoleAssistant, Content: s.turn.pendingAssistantText})
		s.turn.historySavedAt = nowFunc()
	}
	s.turn.phase = PhaseIdle
	s.turn = nil
	bd := s.latencyRec.Snapshot()
	s.logger.Info("turn latency", "call_id", s.callID,
		"vad_end_to_llm_call_ms", bd.VADEndToLLMCall,
		"llm_call_to_first_token_ms", bd.LLMCallToFirstToken,
		"first_token_to_tts_first_ms", bd.FirstTokenToTTSFirst,
		"vad_end_to_tts_first_ms", bd.VADEndToTTSFirst)
	s.latencyRec.Clear()
}

// handleTTSError treats a vendor error frame as end-of-turn with no commit,
// per the error handling table.
func (s *Session) handleTTSError(err error) {
	s.ttsPlaying = false
	if s.turn == nil {
		return
	}
	s.logger.Warn("tts vendor error", "call_id", s.callID, "err", err)
	s.turn.phase = PhaseIdle
	s.turn = nil
	s.latencyRec.Clear()
}

// pumpSTT forwards the STT stream's downstream results to the Session for
// the lifetime of the call; the stream itself is session-scoped and is
// never recreated mid-call (mute, don't close, on interrupt).
func (s *Session) pumpSTT(stream STTStream) {
	for r := range stream.Results() {
		s.postEvent(event{kind: evSTTResult, sttResult: r})
	}
}

// pumpLLM drains one turn's LLM stream, tagging every posted event with the
// turn sequence captured at dispatch so a stale post (arriving after an
// interrupt already moved the session on) is dropped by the handler.
func (s *Session) pumpLLM(stream LLMStream, seq uint64) {
	defer stream.Close()
	first := true
	for {
		tok, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.postEvent(event{kind: evLLMComplete, text: stream.Text(), seq: seq})
			} else {
				s.postEvent(event{kind: evLLMError, err: err, seq: seq})
			}
			return
		}
		kind := evLLMToken
		if first {
			kind = evLLMFirstToken
			first = false
		}
		s.postEvent(event{kind: kind, text: tok, seq: seq})
	}
}

