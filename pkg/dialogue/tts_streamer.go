package dialogue

import (
	"fmt"
	"time"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/codec"
)

// ttsStreamer implements the TTS Streamer's outbound audio handling (spec
// §4.6): it accumulates downstream audio into exactly 160-byte frames,
// emits them to telephonyOut in arrival order, marks every 10th frame, and
// declares completion either on the vendor's isFinal signal or after a
// quiet period following a flush, whichever comes first.
type ttsStreamer struct {
	stream       TTSStream
	telephonyOut TelephonyOut
	streamID     string
	flushQuiet   time.Duration
	notify       func(event)

	flushed   chan struct{}
	turnStart chan struct{}

	buf               []byte
	frameCount        int
	firstChunkEmitted bool
}

func newTTSStreamer(stream TTSStream, out TelephonyOut, streamID string, flushQuiet time.Duration, notify func(event)) *ttsStreamer {
	return &ttsStreamer{
		stream:       stream,
		telephonyOut: out,
		streamID:     streamID,
		flushQuiet:   flushQuiet,
		notify:       notify,
		flushed:      make(chan struct{}, 1),
		turnStart:    make(chan struct{}, 1),
		buf:          make([]byte, 0, codec.FrameBytes*2),
	}
}

// NotifyFlushed arms the quiet-period completion fallback; called by the
// Session right after it successfully sends Flush() on the wrapped stream.
func (t *ttsStreamer) NotifyFlushed() {
	select {
	case t.flushed <- struct{}{}:
	default:
	}
}

// StartTurn requests a reset of the per-turn framing state, applied on
// run()'s own goroutine rather than written directly: buf/frameCount/
// firstChunkEmitted are otherwise only ever touched from run(), and this
// keeps that single-writer discipline intact instead of racing with
// emitFrame. The TTS stream — and this streamer — is session-scoped and
// survives across turns when nothing interrupts it (turn.go's
// beginGeneration only reopens on a nil ttsStream), so firstChunkEmitted
// must be rearmed at the start of every turn's generation, not just once
// at construction; otherwise only the call's very first turn ever records
// a TTSFirstChunk timing.
func (t *ttsStreamer) StartTurn() {
	select {
	case t.turnStart <- struct{}{}:
	default:
	}
}

func (t *ttsStreamer) run() {
	var quietTimer *time.Timer
	var quietCh <-chan time.Time
	armed := false

	arm := func() {
		if quietTimer != nil {
			quietTimer.Stop()
		}
		quietTimer = time.NewTimer(t.flushQuiet)
		quietCh = quietTimer.C
		armed = true
	}
	disarm := func() {
		if quietTimer != nil {
			quietTimer.Stop()
		}
		quietTimer, quietCh, armed = nil, nil, false
	}

	finish := func() {
		if len(t.buf) > 0 {
			t.emitFrame(codec.PadToFrame(t.buf))
			t.buf = t.buf[:0]
		}
		t.notify(event{kind: evTTSComplete})
		disarm()
	}

	audioCh := t.stream.Audio()
	errCh := t.stream.Errors()

	for {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				return
			}
			if armed {
				arm() // any new audio resets the quiet window
			}
			t.buf = append(t.buf, chunk.Audio...)
			for len(t.buf) >= codec.FrameBytes {
				t.emitFrame(t.buf[:codec.FrameBytes])
				t.buf = t.buf[codec.FrameBytes:]
			}
			if chunk.IsFinal {
				finish()
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			t.notify(event{kind: evTTSError, err: err})

		case <-t.flushed:
			arm()

		case <-t.turnStart:
			t.frameCount = 0
			t.firstChunkEmitted = false

		case <-quietCh:
			if armed {
				finish()
			}
		}
	}
}

func (t *ttsStreamer) emitFrame(frame []byte) {
	out := make([]byte, len(frame))
	copy(out, frame)
	if err := t.telephonyOut.SendMedia(out); err != nil {
		t.notify(event{kind: evTTSError, err: err})
		return
	}

	now := nowFunc()
	t.frameCount++
	if !t.firstChunkEmitted {
		t.firstChunkEmitted = true
		t.notify(event{kind: evTTSFirstChunk, ts: now})
	}
	t.notify(event{kind: evTTSAudioSent, ts: now})

	if t.frameCount%10 == 0 {
		if err := t.telephonyOut.SendMark(fmt.Sprintf("mark-%d", t.frameCount)); err != nil {
			t.notify(event{kind: evTTSError, err: err})
		}
	}
}
