// Package stt adapts third-party and spec-literal streaming speech-to-text
// vendors to dialogue's STTProvider/STTStream contract.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// GenericStreamProvider implements the STT contract spec §6 describes
// directly: form-encoded client_id/client_secret auth yielding a bearer
// token with expiry, then a duplex websocket carrying raw µ-law bytes
// upstream and `{seq, final, alternatives}` JSON downstream, terminated by
// the text sentinel "EOS". Grounded on the teacher's lokutor.go
// connect/write/read idiom (coder/websocket, one mutex-guarded conn per
// call), generalized from TTS's single request/response exchange to STT's
// duplex binary-up/JSON-down shape.
type GenericStreamProvider struct {
	authURL   string
	streamURL string
	clientID  string
	secret    string

	useITN              bool
	useDisfluencyFilter bool
	useProfanityFilter  bool

	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// authResponse mirrors spec §6's `{access_token, expire_at}` token shape.
type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpireAt    int64  `json:"expire_at"` // unix seconds
}

// NewGenericStreamProvider builds a provider against an STT vendor that
// implements spec §6's contract literally (auth endpoint + websocket
// endpoint configured by the caller; most OEM streaming STT gateways expose
// exactly this shape behind a vendor-specific hostname).
func NewGenericStreamProvider(authURL, streamURL, clientID, clientSecret string) *GenericStreamProvider {
	return &GenericStreamProvider{
		authURL:             authURL,
		streamURL:           streamURL,
		clientID:            clientID,
		secret:              clientSecret,
		useITN:              true,
		useDisfluencyFilter: true,
		useProfanityFilter:  false,
		httpClient:          &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *GenericStreamProvider) Name() string { return "generic-stream-stt" }

// ensureToken returns a cached bearer token, renewing it once it has
// expired or on first use (spec §4.4's token management responsibility).
func (p *GenericStreamProvider) ensureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: auth request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("stt: auth rejected (401)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stt: auth status %d", resp.StatusCode)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("stt: decode auth response: %w", err)
	}
	p.token = ar.AccessToken
	p.tokenExpiry = time.Unix(ar.ExpireAt, 0)
	return p.token, nil
}

// Open implements dialogue.STTProvider: acquires a bearer token (fetching
// on first need, renewing on expiry), then opens the streaming websocket
// with the documented query parameters. A 401 from the websocket endpoint
// drops the cached token, fetches a fresh one and dials once more; a 401 on
// that renewed connect
// attempt is not retried again within the same Open call, per spec §7's
// "refresh once, then fatal" auth policy.
func (p *GenericStreamProvider) Open(ctx context.Context) (dialogue.STTStream, error) {
	tok, err := p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(p.streamURL)
	if err != nil {
		return nil, fmt.Errorf("stt: bad stream url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(8000))
	q.Set("encoding", "MULAW")
	q.Set("use_itn", strconv.FormatBool(p.useITN))
	q.Set("use_disfluency_filter", strconv.FormatBool(p.useDisfluencyFilter))
	q.Set("use_profanity_filter", strconv.FormatBool(p.useProfanityFilter))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil && resp != nil && resp.StatusCode == http.StatusUnauthorized {
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
		if tok, err = p.ensureToken(ctx); err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+tok)
		conn, _, err = websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	}
	if err != nil {
		return nil, fmt.Errorf("stt: connect failed: %w", err)
	}

	stream := &genericStream{
		conn:    conn,
		ctx:     ctx,
		results: make(chan dialogue.STTResult, 32),
	}
	go stream.readLoop()
	return stream, nil
}

// genericStream implements dialogue.STTStream over one websocket connection.
type genericStream struct {
	conn    *websocket.Conn
	ctx     context.Context
	results chan dialogue.STTResult

	closeOnce sync.Once
}

// downstreamFrame is spec §6/§4.4's `{seq, final, alternatives:[{text,
// confidence}]}` shape.
type downstreamFrame struct {
	Seq          int  `json:"seq"`
	Final        bool `json:"final"`
	Alternatives []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"alternatives"`
}

func (s *genericStream) SendAudio(frame []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, frame)
}

func (s *genericStream) Results() <-chan dialogue.STTResult { return s.results }

func (s *genericStream) readLoop() {
	defer close(s.results)
	for {
		kind, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}
		if kind != websocket.MessageText {
			continue
		}
		var df downstreamFrame
		if err := json.Unmarshal(data, &df); err != nil {
			continue // malformed downstream frame: log, drop, continue (spec §7)
		}
		if len(df.Alternatives) == 0 || df.Alternatives[0].Text == "" {
			continue
		}
		s.results <- dialogue.STTResult{
			Seq:        df.Seq,
			Final:      df.Final,
			Text:       df.Alternatives[0].Text,
			Confidence: df.Alternatives[0].Confidence,
		}
	}
}

// Close sends the "EOS" termination sentinel, waits a short grace period for
// trailing finals, then closes the connection (spec §4.4's shutdown
// sequence).
func (s *genericStream) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		_ = s.conn.Write(s.ctx, websocket.MessageText, []byte("EOS"))
		time.Sleep(500 * time.Millisecond)
		closeErr = s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return closeErr
}
