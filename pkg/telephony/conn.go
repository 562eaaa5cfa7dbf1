package telephony

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/codec"
)

// wsTelephonyOut implements dialogue.TelephonyOut over one duplex telephony
// websocket. The outbound telephony socket has exactly one logical writer
// per session (spec's shared-resource policy); wsjson.Write under mu is that
// serialization point.
type wsTelephonyOut struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	streamSid string
	ctx       context.Context
}

func newWSTelephonyOut(ctx context.Context, conn *websocket.Conn, streamSid string) *wsTelephonyOut {
	return &wsTelephonyOut{ctx: ctx, conn: conn, streamSid: streamSid}
}

func (w *wsTelephonyOut) SendMedia(frame []byte) error {
	if len(frame) != codec.FrameBytes {
		frame = codec.PadToFrame(frame)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(w.ctx, w.conn, outboundMedia{
		Event:     "media",
		StreamSid: w.streamSid,
		Media:     outboundMediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	})
}

func (w *wsTelephonyOut) SendMark(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(w.ctx, w.conn, outboundMark{
		Event:     "mark",
		StreamSid: w.streamSid,
		Mark:      outboundMarkName{Name: name},
	})
}

func (w *wsTelephonyOut) SendClear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(w.ctx, w.conn, outboundClear{
		Event:     "clear",
		StreamSid: w.streamSid,
	})
}
