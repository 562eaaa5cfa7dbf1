package dialogue

import (
	"context"
	"io"
	"sync"
)

// mockTelephonyOut records everything sent outbound so tests can assert on
// frame order, mark cadence, and clear emission.
type mockTelephonyOut struct {
	mu     sync.Mutex
	frames [][]byte
	marks  []string
	clears int
}

func (m *mockTelephonyOut) SendMedia(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.frames = append(m.frames, cp)
	return nil
}

func (m *mockTelephonyOut) SendMark(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = append(m.marks, name)
	return nil
}

func (m *mockTelephonyOut) SendClear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

func (m *mockTelephonyOut) frameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *mockTelephonyOut) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// mockSTTStream lets a test push STTResult values as if they came from the
// upstream service.
type mockSTTStream struct {
	results chan STTResult
	mu      sync.Mutex
	sent    int
	closed  bool
}

func newMockSTTStream() *mockSTTStream {
	return &mockSTTStream{results: make(chan STTResult, 32)}
}

func (m *mockSTTStream) SendAudio(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return nil
}

func (m *mockSTTStream) Results() <-chan STTResult { return m.results }

func (m *mockSTTStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.results)
	}
	return nil
}

func (m *mockSTTStream) pushFinal(text string) {
	m.results <- STTResult{Final: true, Text: text}
}

type mockSTTProvider struct {
	stream *mockSTTStream
}

func (p *mockSTTProvider) Open(ctx context.Context) (STTStream, error) {
	return p.stream, nil
}

// mockLLMStream replays a canned slice of tokens, honoring context
// cancellation the way a real streaming SDK's Recv loop would.
type mockLLMStream struct {
	ctx    context.Context
	tokens []string
	idx    int
	full   string
}

func (m *mockLLMStream) Recv() (string, error) {
	select {
	case <-m.ctx.Done():
		return "", m.ctx.Err()
	default:
	}
	if m.idx >= len(m.tokens) {
		return "", io.EOF
	}
	t := m.tokens[m.idx]
	m.idx++
	m.full += t
	return t, nil
}

func (m *mockLLMStream) Text() string { return m.full }
func (m *mockLLMStream) Close() error { return nil }

type mockLLMProvider struct {
	tokens []string
}

func (p *mockLLMProvider) Stream(ctx context.Context, systemPrompt string, history []Message, userMessage string) (LLMStream, error) {
	return &mockLLMStream{ctx: ctx, tokens: p.tokens}, nil
}

// mockTTSStream is driven entirely by the test: pushAudio feeds the Audio()
// channel (final=true marks the last chunk), Abort/Close just close it.
type mockTTSStream struct {
	audio  chan TTSAudioChunk
	errs   chan error
	mu     sync.Mutex
	closed bool

	tokensSent []string
	flushed    bool
	aborted    bool
}

func newMockTTSStream() *mockTTSStream {
	return &mockTTSStream{audio: make(chan TTSAudioChunk, 64), errs: make(chan error, 4)}
}

func (m *mockTTSStream) SendToken(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensSent = append(m.tokensSent, text)
	return nil
}

func (m *mockTTSStream) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = true
	return nil
}

func (m *mockTTSStream) Audio() <-chan TTSAudioChunk { return m.audio }
func (m *mockTTSStream) Errors() <-chan error        { return m.errs }

func (m *mockTTSStream) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
	m.closeLocked()
	return nil
}

func (m *mockTTSStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

func (m *mockTTSStream) closeLocked() {
	if !m.closed {
		m.closed = true
		close(m.audio)
	}
}

func (m *mockTTSStream) pushAudio(b []byte, final bool) {
	m.audio <- TTSAudioChunk{Audio: b, IsFinal: final}
}

type mockTTSProvider struct {
	stream *mockTTSStream
	// newStream, when set, builds a fresh stream on each Open call — used by
	// tests that reopen TTS after an interrupt.
	newStream func() *mockTTSStream
	opens     int
	mu        sync.Mutex
}

func (p *mockTTSProvider) Open(ctx context.Context, voice Voice, lang Language) (TTSStream, error) {
	p.mu.Lock()
	p.opens++
	p.mu.Unlock()
	if p.newStream != nil {
		return p.newStream(), nil
	}
	return p.stream, nil
}
