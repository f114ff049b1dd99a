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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"secretsanta/internal/blacklist"
	"secretsanta/internal/exchange"
	"secretsanta/internal/exchange/handler"
	"secretsanta/internal/exchange/metrics"
	jwttoken "secretsanta/internal/jwt_token"
	"secretsanta/internal/lifecycle"
	"secretsanta/internal/participant"
	"secretsanta/internal/platform/config"
	"secretsanta/internal/platform/httpserver"
	"secretsanta/internal/platform/logger"
)

// main wires storage, the exchange service and the HTTP router, then keeps
// the server running until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	machine, err := lifecycle.New(store, lifecycle.WithLogger(log))
	if err != nil {
		return err
	}
	phase, err := machine.Init(ctx)
	if err != nil {
		return err
	}
	directory, err := participant.NewDirectory(store, machine, participant.WithLogger(log))
	if err != nil {
		return err
	}

	constraints, err := blacklist.LoadFile(cfg.BlacklistPath)
	if err != nil {
		return err
	}
	warnings := constraints.Healthcheck(ctx, directory, log)
	log.Info("blacklist loaded",
		"path", cfg.BlacklistPath,
		"pairs", constraints.Len(),
		"warnings", len(warnings),
	)

	engine, err := newEngine(cfg.Matching, log)
	if err != nil {
		return err
	}
	messenger, closeMessenger, err := openMessenger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeMessenger()

	service, err := exchange.New(cfg.OwnerID, exchange.Deps{
		Phases:      machine,
		Directory:   directory,
		Constraints: constraints,
		Matcher:     engine,
		Messenger:   messenger,
	},
		exchange.WithLogger(log),
		exchange.WithMetrics(metrics.New()),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "secretsanta")
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(service, jwtService, log, cfg.Matching.TimeBudget+30*time.Second).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting secretsanta",
			"addr", cfg.Addr,
			"phase", phase,
			"kv_backend", cfg.KVBackend,
			"messaging", cfg.Messaging,
			"strategy", engine.StrategyName(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
