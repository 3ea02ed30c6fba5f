package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/hireloop/voicepipe/internal/adapters/http"
	"github.com/hireloop/voicepipe/internal/adapters/rtc"
	"github.com/hireloop/voicepipe/internal/app"
	"github.com/hireloop/voicepipe/internal/asr"
	"github.com/hireloop/voicepipe/internal/clients"
	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/metrics"
	"github.com/hireloop/voicepipe/internal/tts"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec, err := asr.NewRecognizer(cfg.Recognition)
	if err != nil {
		log.Fatal().Err(err).Msg("recognizer setup")
	}
	synth, err := tts.NewSynthesizer(cfg.Synthesis)
	if err != nil {
		log.Fatal().Err(err).Msg("synthesizer setup")
	}

	sink := clients.NewSinkClient(cfg.Sink)
	dialogue := clients.NewDialogueClient(cfg.Dialogue)

	webrtcCfg := rtc.DefaultWebRTCConfig(cfg.ICEServers)
	newConn := func(sid core.SessionID) (core.MediaConn, error) {
		return rtc.NewWebRTCConnection(webrtcCfg, sid)
	}

	mgr := app.NewManager(cfg, rec, synth, sink, dialogue, newConn, m)

	h := router.NewHandlers(mgr)
	r := router.SetupRouter(ctx, cfg, h, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voicepipe server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	mgr.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
