package codec

import "testing"

func TestMuLawRoundTripAllBytes(t *testing.T) {
	ulaw := make([]byte, 256)
	for i := range ulaw {
		ulaw[i] = byte(i)
	}

	pcm := MuLawToPCM16(ulaw)
	back := PCM16ToMuLaw(pcm)

	for i := range ulaw {
		if back[i] != ulaw[i] {
			t.Fatalf("byte %d: got %#x, want %#x (pcm=%d)", i, back[i], ulaw[i], int16(pcm[i*2])|int16(pcm[i*2+1])<<8)
		}
	}
}

func TestMuLawSilenceIsZero(t *testing.T) {
	pcm := MuLawToPCM16([]byte{muLawSilence})
	sample := int16(pcm[0]) | int16(pcm[1])<<8
	if sample != 0 {
		t.Fatalf("silence byte decoded to %d, want 0", sample)
	}
}

func TestMuLawToPCM16Length(t *testing.T) {
	ulaw := make([]byte, FrameBytes)
	pcm := MuLawToPCM16(ulaw)
	if len(pcm) != FrameBytes*2 {
		t.Fatalf("got %d bytes, want %d", len(pcm), FrameBytes*2)
	}
}

func TestPadToFrame(t *testing.T) {
	buf := make([]byte, 45)
	padded := PadToFrame(buf)
	if len(padded)%FrameBytes != 0 {
		t.Fatalf("padded length %d not a multiple of %d", len(padded), FrameBytes)
	}
	for i := 45; i < len(padded); i++ {
		if padded[i] != muLawSilence {
			t.Fatalf("pad byte %d = %#x, want silence %#x", i, padded[i], muLawSilence)
		}
	}

	exact := make([]byte, FrameBytes*2)
	paddedExact := PadToFrame(exact)
	if len(paddedExact) != len(exact) {
		t.Fatalf("exact multiple got re-padded: %d != %d", len(paddedExact), len(exact))
	}
}

func TestSplitFrames(t *testing.T) {
	buf := make([]byte, FrameBytes*3)
	frames := SplitFrames(buf)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for _, f := range frames {
		if len(f) != FrameBytes {
			t.Fatalf("frame length %d, want %d", len(f), FrameBytes)
		}
	}
}

func TestNewWavBufferHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav := NewWavBuffer(pcm, SampleRate8k)

	if string(wav[0:4]) != "RIFF" {
		t.Fatalf("missing RIFF chunk id")
	}
	if string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing WAVE format")
	}
	if string(wav[12:16]) != "fmt " {
		t.Fatalf("missing fmt chunk")
	}
	if string(wav[36:40]) != "data" {
		t.Fatalf("missing data chunk")
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("total length %d, want %d", len(wav), 44+len(pcm))
	}
}
