package latency

import (
	"testing"
	"time"
)

func TestSnapshotZeroBeforeAnyMarks(t *testing.T) {
	var r Recorder
	bd := r.Snapshot()
	if bd != (Breakdown{}) {
		t.Fatalf("got %+v, want zero value", bd)
	}
}

func TestSnapshotComputesAllDeltas(t *testing.T) {
	var r Recorder
	base := time.Unix(1000, 0)

	r.MarkVADEnd(base)
	r.MarkLLMCall(base.Add(50 * time.Millisecond))
	r.MarkLLMFirstToken(base.Add(200 * time.Millisecond))
	r.MarkTTSFirstChunk(base.Add(350 * time.Millisecond))

	bd := r.Snapshot()
	if bd.VADEndToLLMCall != 50 {
		t.Fatalf("VADEndToLLMCall = %d, want 50", bd.VADEndToLLMCall)
	}
	if bd.LLMCallToFirstToken != 150 {
		t.Fatalf("LLMCallToFirstToken = %d, want 150", bd.LLMCallToFirstToken)
	}
	if bd.FirstTokenToTTSFirst != 150 {
		t.Fatalf("FirstTokenToTTSFirst = %d, want 150", bd.FirstTokenToTTSFirst)
	}
	if bd.VADEndToTTSFirst != 350 {
		t.Fatalf("VADEndToTTSFirst = %d, want 350", bd.VADEndToTTSFirst)
	}
}

func TestMarkLLMFirstTokenIsIdempotent(t *testing.T) {
	var r Recorder
	base := time.Unix(1000, 0)
	r.MarkVADEnd(base)
	r.MarkLLMFirstToken(base.Add(100 * time.Millisecond))
	r.MarkLLMFirstToken(base.Add(999 * time.Millisecond))

	r.MarkLLMCall(base)
	bd := r.Snapshot()
	if bd.LLMCallToFirstToken != 100 {
		t.Fatalf("second MarkLLMFirstToken overwrote the first: got %d, want 100", bd.LLMCallToFirstToken)
	}
}

func TestClearResetsAllTimestamps(t *testing.T) {
	var r Recorder
	base := time.Unix(1000, 0)
	r.MarkVADEnd(base)
	r.MarkLLMCall(base.Add(10 * time.Millisecond))
	r.MarkLLMFirstToken(base.Add(20 * time.Millisecond))
	r.MarkTTSFirstChunk(base.Add(30 * time.Millisecond))

	r.Clear()

	bd := r.Snapshot()
	if bd != (Breakdown{}) {
		t.Fatalf("got %+v after Clear, want zero value", bd)
	}
}

func TestSnapshotPartialRecordLeavesUncomputedDeltasZero(t *testing.T) {
	var r Recorder
	base := time.Unix(1000, 0)
	r.MarkVADEnd(base)
	r.MarkLLMCall(base.Add(40 * time.Millisecond))

	bd := r.Snapshot()
	if bd.VADEndToLLMCall != 40 {
		t.Fatalf("VADEndToLLMCall = %d, want 40", bd.VADEndToLLMCall)
	}
	if bd.LLMCallToFirstToken != 0 || bd.FirstTokenToTTSFirst != 0 || bd.VADEndToTTSFirst != 0 {
		t.Fatalf("got %+v, want remaining deltas zero", bd)
	}
}
