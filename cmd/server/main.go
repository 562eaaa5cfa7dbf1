// Command server runs the dialogue orchestrator's telephony-facing HTTP
// server: one Media Ingress websocket route per call, backed by a process-wide
// Session Registry and the STT/LLM/TTS providers config.Load resolves.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lokutor-ai/dialogue-orchestrator/internal/config"
	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
	"github.com/lokutor-ai/dialogue-orchestrator/pkg/telephony"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	sttProvider, err := cfg.BuildSTTProvider()
	if err != nil {
		logger.Error("stt provider init failed", "err", err)
		os.Exit(1)
	}
	llmProvider, err := cfg.BuildLLMProvider()
	if err != nil {
		logger.Error("llm provider init failed", "err", err)
		os.Exit(1)
	}
	ttsProvider, err := cfg.BuildTTSProvider()
	if err != nil {
		logger.Error("tts provider init failed", "err", err)
		os.Exit(1)
	}

	registry := dialogue.NewRegistry()
	registry.AddHook(func(callID string) {
		logger.Info("call closed", "call_id", callID, "active_calls", registry.Len())
	})

	handler := telephony.NewHandler(registry, sttProvider, llmProvider, ttsProvider, cfg.Dialogue, logger)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: telephony.NewRouter(handler),
	}

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr, "stt", cfg.STTVendor, "llm", cfg.LLMVendor, "tts", cfg.TTSVendor)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed, forcing close", "err", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}
