// Package telephony implements the Media Ingress: a duplex JSON websocket
// handler that demultiplexes inbound telephony frames (start/media/stop)
// into a dialogue.Session and relays the Session's outbound media/mark/clear
// frames back over the same socket.
package telephony

import "encoding/json"

// inboundEnvelope is the shape common to every inbound telephony event; the
// event-specific payload is decoded separately once Event is known, mirroring
// Twilio Media Streams' own discriminated-union wire format.
type inboundEnvelope struct {
	Event string `json:"event"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type startPayload struct {
	StreamSid      string            `json:"streamSid"`
	MediaFormat    mediaFormat       `json:"mediaFormat"`
	CustomParams   map[string]string `json:"customParameters,omitempty"`
}

type startEvent struct {
	Event string       `json:"event"`
	Start startPayload `json:"start"`
}

type mediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64 µ-law, 160 bytes decoded
}

type mediaEvent struct {
	Event string       `json:"event"`
	Media mediaPayload `json:"media"`
}

type stopEvent struct {
	Event string `json:"event"`
}

// outboundMedia is `{event:"media", streamSid, media:{payload}}`.
type outboundMedia struct {
	Event     string           `json:"event"`
	StreamSid string           `json:"streamSid"`
	Media     outboundMediaPayload `json:"media"`
}

type outboundMediaPayload struct {
	Payload string `json:"payload"`
}

// outboundMark is `{event:"mark", streamSid, mark:{name}}`.
type outboundMark struct {
	Event     string          `json:"event"`
	StreamSid string          `json:"streamSid"`
	Mark      outboundMarkName `json:"mark"`
}

type outboundMarkName struct {
	Name string `json:"name"`
}

// outboundClear is `{event:"clear", streamSid}`.
type outboundClear struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

func unmarshalEvent(raw []byte) (string, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Event, nil
}
