package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/adapters/capture"
	router "github.com/keulen/huddle/internal/adapters/http"
	"github.com/keulen/huddle/internal/adapters/rtc"
	"github.com/keulen/huddle/internal/adapters/signal"
	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/app/media"
	"github.com/keulen/huddle/internal/app/orch"
	"github.com/keulen/huddle/internal/config"
	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Str("instance", uuid.NewString()[:8]).Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.MeetingID == "" {
		log.Fatal().Msg("meeting_id is required")
	}

	dev, err := capture.NewDevice()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init capture device")
	}

	api, err := rtc.NewAPI(dev.PopulateEngine)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init rtc api")
	}
	rtcConfig := rtc.Configuration(cfg.STUNServers)

	buffer := app.NewCandidateBuffer()
	sessions := app.NewSessionRegistry(func(peer domain.ParticipantID) (core.MediaConnection, error) {
		return rtc.NewConnection(api, rtcConfig, peer)
	}, buffer)

	mediaCtl := media.NewController(dev, sessions)
	sessions.SetTrackSource(mediaCtl)

	o := orch.New(
		domain.MeetingID(cfg.MeetingID),
		cfg.DisplayName,
		sessions,
		buffer,
		mediaCtl,
		nil,
		cfg.OfferStagger,
	)

	client := signal.NewClient(cfg.RelayURL, domain.MeetingID(cfg.MeetingID), cfg.DisplayName, o)
	client.PingPeriod = cfg.PingPeriod
	client.ReadLimit = cfg.ReadLimit
	o.Signal = client
	o.OnShutdown = func(reason string) {
		log.Info().Str("reason", reason).Msg("meeting ended")
		cancel()
	}

	go o.Run(ctx)

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to relay")
	}

	r := router.SetupRouter(cfg, o)
	addr := fmt.Sprintf(":%d", cfg.ControlPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("meeting", cfg.MeetingID).Msg("Huddle agent started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Agent exited gracefully")
}
