package telephony

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the Media Ingress websocket route alongside a health
// check, the way ent0n29-samantha's httpapi.Server.Router lays out a chi
// router for a handful of non-media routes around one websocket upgrade.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealth)
	r.Get("/stream", h.ServeHTTP)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
