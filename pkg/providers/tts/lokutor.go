// Package tts adapts streaming text-to-speech vendors to dialogue's
// TTSProvider/TTSStream contract: per-token text push, an explicit flush,
// and a µ-law audio/isFinal/error downstream.
package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// LokutorProvider opens a streaming Lokutor TTS connection per call. It
// replaces the teacher's LokutorTTS.StreamSynthesize (one request carrying
// the whole utterance's text, replied to with a binary chunk stream ending
// in a text "EOS") with spec §4.6's token-push protocol: a beginning-of-
// stream message with voice parameters and the credential, one `{text:
// token}` push per LLM token, and an explicit `{text:"", flush:true}` to
// end a turn's generation — the same connect/write/read idiom over
// coder/websocket, generalized from single-shot to per-token.
type LokutorProvider struct {
	apiKey string
	host   string
	scheme string
}

// NewLokutorProvider builds a provider against Lokutor's streaming TTS
// websocket.
func NewLokutorProvider(apiKey string) *LokutorProvider {
	return &LokutorProvider{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

// NewLokutorProviderWithHost builds a provider against an explicit
// host/scheme, for tests that stand up a local websocket server in place of
// the real Lokutor endpoint.
func NewLokutorProviderWithHost(apiKey, host, scheme string) *LokutorProvider {
	return &LokutorProvider{apiKey: apiKey, host: host, scheme: scheme}
}

func (p *LokutorProvider) Name() string { return "lokutor" }

// beginOfStream is spec §4.6's beginning-of-stream message: voice
// parameters plus the API credential.
type beginOfStream struct {
	APIKey  string `json:"api_key"`
	Voice   string `json:"voice,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Output  string `json:"output_format"`
	Eager   bool   `json:"eager_generation"`
	Version string `json:"version"`
}

// tokenPush is `{text: token}`, with flush=true signaling end-of-input.
type tokenPush struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

// downstreamMessage covers all three downstream shapes from spec §4.6:
// `{audio: base64}`, `{isFinal: true}`, `{error: ...}`.
type downstreamMessage struct {
	Audio   string `json:"audio,omitempty"`
	IsFinal bool   `json:"isFinal,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Open implements dialogue.TTSProvider: connects and sends the
// beginning-of-stream message, then hands back a stream the Turn
// Controller pushes tokens into.
func (p *LokutorProvider) Open(ctx context.Context, voice dialogue.Voice, lang dialogue.Language) (dialogue.TTSStream, error) {
	u := url.URL{Scheme: p.scheme, Host: p.host, Path: "/ws/stream"}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts: connect failed: %w", err)
	}

	bos := beginOfStream{
		APIKey:  p.apiKey,
		Voice:   string(voice),
		Lang:    string(lang),
		Output:  "ulaw_8000",
		Eager:   true,
		Version: "versa-1.0",
	}
	if err := wsjson.Write(ctx, conn, bos); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "bos write failed")
		return nil, fmt.Errorf("tts: begin-of-stream failed: %w", err)
	}

	s := &lokutorStream{
		conn:    conn,
		ctx:     ctx,
		audio:   make(chan dialogue.TTSAudioChunk, 32),
		errs:    make(chan error, 4),
		closeCh: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// lokutorStream implements dialogue.TTSStream over one streaming
// connection. A new stream is opened per turn after an Abort (spec §4.6:
// "a subsequent turn opens a new one via ensureOpen").
type lokutorStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
	ctx  context.Context

	audio chan dialogue.TTSAudioChunk
	errs  chan error

	closeOnce sync.Once
	closeCh   chan struct{}
	muted     bool
}

func (s *lokutorStream) SendToken(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted {
		return nil
	}
	return wsjson.Write(s.ctx, s.conn, tokenPush{Text: text})
}

func (s *lokutorStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted {
		return nil
	}
	return wsjson.Write(s.ctx, s.conn, tokenPush{Text: "", Flush: true})
}

func (s *lokutorStream) Audio() <-chan dialogue.TTSAudioChunk { return s.audio }
func (s *lokutorStream) Errors() <-chan error                 { return s.errs }

func (s *lokutorStream) readLoop() {
	defer close(s.audio)
	defer close(s.errs)
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}

		var dm downstreamMessage
		if err := json.Unmarshal(data, &dm); err != nil {
			continue // malformed downstream frame: log, drop, continue (spec §7)
		}

		s.mu.Lock()
		muted := s.muted
		s.mu.Unlock()
		if muted {
			continue // dropped: Abort() already told the Session to stop listening
		}

		if dm.Error != "" {
			select {
			case s.errs <- fmt.Errorf("tts: vendor error: %s", dm.Error):
			case <-s.closeCh:
				return
			}
			continue
		}

		if dm.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(dm.Audio)
			if err != nil {
				continue
			}
			select {
			case s.audio <- dialogue.TTSAudioChunk{Audio: raw, IsFinal: dm.IsFinal}:
			case <-s.closeCh:
				return
			}
			continue
		}

		if dm.IsFinal {
			select {
			case s.audio <- dialogue.TTSAudioChunk{IsFinal: true}:
			case <-s.closeCh:
				return
			}
		}
	}
}

// Abort mutes the stream and closes the underlying connection immediately,
// per spec §4.6's interrupt semantics: no further audio may reach
// telephonyOut even if frames are already in flight. The Session opens a
// fresh stream for the next turn.
func (s *lokutorStream) Abort() error {
	s.mu.Lock()
	s.muted = true
	s.mu.Unlock()
	return s.Close()
}

// Close releases the connection at end of call or after Abort. Idempotent.
func (s *lokutorStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
