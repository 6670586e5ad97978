package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provegapi/internal/crm/rest"
	donationhandler "provegapi/internal/donation/handler"
	donationsvc "provegapi/internal/donation/service"
	newsletterhandler "provegapi/internal/newsletter/handler"
	newslettersvc "provegapi/internal/newsletter/service"
	"provegapi/internal/platform/config"
	"provegapi/internal/platform/httpserver"
	"provegapi/internal/platform/logger"
	"provegapi/internal/platform/metrics"
	"provegapi/internal/platform/middleware"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LoggingEnabled)
	m := metrics.New()

	platform := rest.New(cfg, rest.WithLogger(log))
	newsletter := newslettersvc.New(cfg, platform, platform,
		newslettersvc.WithLogger(log),
		newslettersvc.WithMetrics(m),
	)
	donation := donationsvc.New(cfg, donationsvc.Platform{
		Contacts:      platform,
		Campaigns:     platform,
		Options:       platform,
		CustomFields:  platform,
		Mandates:      platform,
		Contributions: platform,
		Memberships:   platform,
		Activities:    platform,
		Tx:            platform,
	}, newsletter,
		donationsvc.WithLogger(log),
		donationsvc.WithMetrics(m),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.AccessLog(log))
	router.Use(middleware.Actor(cfg.ActorContactID))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v3", func(r chi.Router) {
		r.Use(middleware.RequireAPIToken(cfg.APIToken, log))
		r.Mount("/ProvegDonation", donationhandler.NewHandler(donation, log).Routes())
		r.Mount("/ProvegNewsletterSubscription", newsletterhandler.NewHandler(newsletter, log).Routes())
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting provegapi", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("provegapi stopped")
}
