package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookq/internal/book"
	"bookq/internal/config"
	"bookq/internal/httpx"
	"bookq/internal/platform/database"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("cannot open store: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	handler, stopRateLimit := newHandler(cfg, store)
	defer stopRateLimit()

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s backend=%s", cfg.APIAddr, cfg.Backend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server stopped")
}

// newHandler wires the routes and the middleware chain. The returned func stops the rate limiter.
func newHandler(cfg config.Config, store book.Store) (http.Handler, func()) {
	bookService := book.NewService(store)
	bookHandler := book.NewHTTPHandler(bookService)

	router := http.NewServeMux()
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := bookService.Ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	bookHandler.Register(router)

	rateLimiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies...)
	handler := httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware,
		rateLimiter.Middleware,
		httpx.MethodGuard,
	)
	return handler, rateLimiter.Stop
}
