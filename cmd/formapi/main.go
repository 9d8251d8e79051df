// API server for service form configurations.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"onboarding-forms/internal/bootstrap"
	"onboarding-forms/internal/config"
	"onboarding-forms/internal/httpapi"
	"onboarding-forms/internal/logging"
	"onboarding-forms/internal/session"
)

const (
	sessionTTL      = 2 * time.Hour
	cleanupInterval = 10 * time.Minute
)

func main() {
	cfg := config.Load()
	addr := flag.String("addr", cfg.APIAddr, "Listen address")
	flag.Parse()

	log := logging.Default(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer c.Close()

	sessions := session.NewManager()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.CleanupExpired(sessionTTL); n > 0 {
					log.Info().Int("removed", n).Msg("expired editor sessions removed")
				}
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.New(c.Service, sessions, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", *addr).
			Str("store", string(cfg.DataStore.Type)).
			Msg("starting form configuration API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
