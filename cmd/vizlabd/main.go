// Command vizlabd serves the research data-collection backend: session
// lifecycle, telemetry ingestion, code execution and snapshotting, chat, and
// recording upload. All configuration comes from VIZLAB_* environment
// variables.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vizlab/internal/httpapi"
	"vizlab/internal/llm"
	"vizlab/internal/metrics"
	"vizlab/internal/sandbox"
	"vizlab/internal/session"
	"vizlab/internal/snapshot"
	"vizlab/internal/storage"
	"vizlab/internal/telemetry"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx)
	if err != nil {
		return err
	}
	log.Info("storage ready", zap.String("driver", string(store.Driver())))

	promRec, err := metrics.NewPrometheusRecorder(nil)
	if err != nil {
		return err
	}
	rec := metrics.MultiRecorder{
		promRec,
		metrics.NewExpvarRecorder("vizlab_ops"),
	}

	var provider llm.Provider
	gemini, err := llm.NewGeminiProvider(ctx, log)
	if err != nil {
		// The assistant is optional; everything else keeps working.
		log.Warn("chat assistant disabled", zap.Error(err))
		provider = unavailableProvider{}
	} else {
		provider = gemini
		log.Info("chat assistant ready", zap.String("model", gemini.Model()))
	}

	srv := httpapi.New(
		store,
		session.NewService(store, log),
		telemetry.NewJournal(store, log),
		snapshot.NewManager(store, log),
		sandbox.New(sandbox.WithLogger(log)),
		provider,
		rec,
		log,
	)

	addr := os.Getenv("VIZLAB_HTTP_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// unavailableProvider stands in when no LLM credentials are configured.
type unavailableProvider struct{}

func (unavailableProvider) Complete(context.Context, []llm.Message) (string, error) {
	return "", errors.New("chat assistant is not configured")
}

func (unavailableProvider) Stream(context.Context, []llm.Message, func(string) error) error {
	return errors.New("chat assistant is not configured")
}
