// Package codec implements the pure audio transcoding functions the dialogue
// core treats as trusted primitives: µ-law (G.711) to 16-bit linear PCM and
// back, plus WAV container framing for providers that want a self-describing
// buffer instead of raw PCM.
package codec

import (
	"bytes"
	"encoding/binary"
)

const (
	// FrameBytes is the size of one 20ms µ-law frame at 8kHz.
	FrameBytes = 160

	// SampleRate8k is the telephony leg's sample rate.
	SampleRate8k = 8000

	// muLawSilence is the canonical µ-law encoding of a zero-amplitude sample.
	muLawSilence = 0xFF
)

var (
	muLawToLinear [256]int16
	linearToMuLaw [65536]byte
)

func init() {
	for i := 0; i < 256; i++ {
		muLawToLinear[i] = decodeMuLawSample(byte(i))
	}
	for i := 0; i < 65536; i++ {
		linearToMuLaw[i] = encodeMuLawSample(int16(i - 32768))
	}
}

// decodeMuLawSample implements the standard G.711 µ-law expansion formula
// directly (used only to seed the lookup table in init). The one exception is
// 0x7F, µ-law's negative zero, which decodes to -1 rather than 0 so that it
// stays distinct from 0xFF and every byte value round-trips.
func decodeMuLawSample(mu byte) int16 {
	mu = ^mu
	sign := mu & 0x80
	exponent := (mu >> 4) & 0x07
	mantissa := mu & 0x0F

	sample := (int32(mantissa) << 3) + 0x84
	sample <<= exponent
	sample -= 0x84

	if sign != 0 {
		sample = -sample
		if sample == 0 {
			sample = -1
		}
	}
	if sample > 32767 {
		sample = 32767
	}
	if sample < -32768 {
		sample = -32768
	}
	return int16(sample)
}

// encodeMuLawSample implements the standard G.711 µ-law compression formula.
func encodeMuLawSample(sample int16) byte {
	const bias = 0x84
	const clip = 32635

	sign := byte(0)
	s := int32(sample)
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > clip {
		s = clip
	}
	s += bias

	exponent := byte(7)
	for mask := int32(0x4000); (s&mask) == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | (exponent << 4) | mantissa)
}

// MuLawToPCM16 converts a buffer of µ-law bytes into 16-bit little-endian
// linear PCM samples using the 256-entry lookup table.
func MuLawToPCM16(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, b := range ulaw {
		s := muLawToLinear[b]
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// PCM16ToMuLaw converts 16-bit little-endian linear PCM into µ-law bytes.
// Trailing odd bytes (a partial sample) are ignored.
func PCM16ToMuLaw(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = linearToMuLaw[uint16(s)+32768]
	}
	return out
}

// PadToFrame pads buf with µ-law silence (0xFF) up to a multiple of
// FrameBytes, returning the padded copy. A buf that already has a length
// that is a multiple of FrameBytes is returned unchanged (copied).
func PadToFrame(buf []byte) []byte {
	rem := len(buf) % FrameBytes
	if rem == 0 {
		out := make([]byte, len(buf))
		copy(out, buf)
		return out
	}
	pad := FrameBytes - rem
	out := make([]byte, len(buf)+pad)
	copy(out, buf)
	for i := len(buf); i < len(out); i++ {
		out[i] = muLawSilence
	}
	return out
}

// SplitFrames slices buf (already a multiple of FrameBytes, e.g. via
// PadToFrame) into consecutive 160-byte µ-law frames.
func SplitFrames(buf []byte) [][]byte {
	n := len(buf) / FrameBytes
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, buf[i*FrameBytes:(i+1)*FrameBytes])
	}
	return frames
}

// NewWavBuffer wraps raw 16-bit mono PCM in a RIFF/WAVE container at the
// given sample rate, for providers (batch STT) that require a self-describing
// file rather than a raw byte stream.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
