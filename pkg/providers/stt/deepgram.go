package stt

import (
	"context"
	"fmt"
	"sync"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen/v1/websocket/interfaces"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// DeepgramProvider wraps deepgram-go-sdk's live-transcription websocket
// client, replacing the teacher's hand-rolled net/http batch transcription
// (a single POST of a whole utterance's PCM) with the vendor's actual
// streaming surface: spec §4.4 requires one persistent duplex stream per
// call, not a per-utterance batch call.
type DeepgramProvider struct {
	apiKey   string
	model    string
	language string
}

// NewDeepgramProvider builds a provider against Deepgram's live
// transcription websocket, tuned for the telephony 8kHz µ-law leg.
func NewDeepgramProvider(apiKey, model, language string) *DeepgramProvider {
	if model == "" {
		model = "nova-2-phonecall"
	}
	if language == "" {
		language = "en-US"
	}
	return &DeepgramProvider{apiKey: apiKey, model: model, language: language}
}

func (p *DeepgramProvider) Name() string { return "deepgram-stt" }

// Open implements dialogue.STTProvider.
func (p *DeepgramProvider) Open(ctx context.Context) (dialogue.STTStream, error) {
	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          p.model,
		Language:       p.language,
		Encoding:       "mulaw",
		SampleRate:     8000,
		Channels:       1,
		InterimResults: true,
		SmartFormat:    true,
		Punctuate:      true,
	}

	cb := &deepgramCallback{results: make(chan dialogue.STTResult, 32)}

	dg, err := client.NewWSUsingCallback(ctx, p.apiKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("stt: deepgram client init failed: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("stt: deepgram connect failed")
	}

	return &deepgramStream{client: dg, cb: cb}, nil
}

// deepgramStream adapts *client.WSChannel to dialogue.STTStream.
type deepgramStream struct {
	client *client.WSChannel
	cb     *deepgramCallback

	closeOnce sync.Once
}

func (s *deepgramStream) SendAudio(frame []byte) error {
	_, err := s.client.Write(frame)
	return err
}

func (s *deepgramStream) Results() <-chan dialogue.STTResult { return s.cb.results }

// Close sends Deepgram's finalize/close handshake and releases the
// connection; the SDK owns the actual close control message spec §4.4
// models generically as the "EOS" sentinel.
func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		s.client.Stop()
		close(s.cb.results)
	})
	return nil
}

// deepgramCallback implements msginterfaces.LiveMessageCallback, translating
// Deepgram's message types into dialogue.STTResult posts. Every method other
// than Message is a no-op: dialogue.STTResult only carries {seq, final,
// alternatives[0]}, and metadata/open/close/speech-started events have no
// corresponding field to populate.
type deepgramCallback struct {
	results chan dialogue.STTResult
	seq     int
}

func (c *deepgramCallback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	c.seq++
	c.results <- dialogue.STTResult{
		Seq:        c.seq,
		Final:      mr.IsFinal,
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
	}
	return nil
}

func (c *deepgramCallback) Open(*msginterfaces.OpenResponse) error                   { return nil }
func (c *deepgramCallback) Metadata(*msginterfaces.MetadataResponse) error           { return nil }
func (c *deepgramCallback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }
func (c *deepgramCallback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error   { return nil }
func (c *deepgramCallback) Close(*msginterfaces.CloseResponse) error                 { return nil }
func (c *deepgramCallback) Error(*msginterfaces.ErrorResponse) error                 { return nil }
func (c *deepgramCallback) UnhandledEvent(data []byte) error                         { return nil }
