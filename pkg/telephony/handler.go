package telephony

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

// Handler upgrades a single telephony media stream to a websocket, demuxes
// start/media/stop frames, and drives a dialogue.Session for the lifetime of
// the call. One Handler serves every call the process accepts; per-call
// state lives entirely in the dialogue.Registry.
type Handler struct {
	registry    *dialogue.Registry
	sttProvider dialogue.STTProvider
	llmProvider dialogue.LLMProvider
	ttsProvider dialogue.TTSProvider
	config      dialogue.Config
	logger      dialogue.Logger
}

// NewHandler builds a Handler bound to one process-wide provider set and
// Config; every inbound call gets its own dialogue.Session from these.
func NewHandler(registry *dialogue.Registry, stt dialogue.STTProvider, llm dialogue.LLMProvider, tts dialogue.TTSProvider, cfg dialogue.Config, logger dialogue.Logger) *Handler {
	if logger == nil {
		logger = dialogue.NoOpLogger{}
	}
	return &Handler{
		registry:    registry,
		sttProvider: stt,
		llmProvider: llm,
		ttsProvider: tts,
		config:      cfg,
		logger:      logger,
	}
}

// ServeHTTP upgrades the request to a websocket and runs the duplex frame
// loop until `stop`/socket close, tearing the call's Session down on exit.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	callID := uuid.NewString()

	var (
		sess      *dialogue.Session
		streamSid string
	)

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			break
		}

		kind, err := unmarshalEvent(raw)
		if err != nil {
			h.logger.Warn("telephony: malformed frame", "call_id", callID, "err", err)
			continue
		}

		switch kind {
		case "start":
			var ev startEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				h.logger.Warn("telephony: malformed start", "call_id", callID, "err", err)
				continue
			}
			streamSid = ev.Start.StreamSid
			out := newWSTelephonyOut(ctx, conn, streamSid)
			sess, err = h.registry.Create(callID, out, h.sttProvider, h.llmProvider, h.ttsProvider, h.config, h.logger)
			if err != nil {
				h.logger.Error("telephony: session create failed", "call_id", callID, "err", err)
				return
			}
			if err := sess.Start(streamSid); err != nil {
				h.logger.Error("telephony: session start failed", "call_id", callID, "err", err)
				h.registry.CloseAll(callID)
				return
			}

		case "media":
			if sess == nil {
				continue
			}
			var ev mediaEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				h.logger.Warn("telephony: malformed media", "call_id", callID, "err", err)
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				h.logger.Warn("telephony: bad media payload", "call_id", callID, "err", err)
				continue
			}
			sess.PushMedia(frame, time.Now())

		case "stop":
			if sess != nil {
				sess.PushStop()
			}
			h.registry.CloseAll(callID)
			return

		default:
			h.logger.Warn("telephony: unknown event", "call_id", callID, "event", kind)
		}
	}

	if sess != nil {
		h.registry.CloseAll(callID)
	}
}
