package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/askdocs/pdfchat/internal/adapters/http"
	"github.com/askdocs/pdfchat/internal/bootstrap"
	"github.com/askdocs/pdfchat/internal/config"
	"github.com/askdocs/pdfchat/internal/observability/logging"
	"github.com/askdocs/pdfchat/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewRetrievalMetrics(serviceName)

	router := httpadapter.NewRouter(
		app.Engine,
		app.Engine,
		app.Engine,
		app.Engine,
		httpadapter.RouterConfig{
			MaxUploadBytes:    int64(cfg.MaxUploadBytes),
			RateLimitRPS:      cfg.APIRateLimitRPS,
			RateLimitBurst:    cfg.APIRateLimitBurst,
			BackpressureLimit: cfg.BackpressureLimit,
			ObserveQuery: func(duration time.Duration, snippets int, err error) {
				m.ObserveQuery(serviceName, duration, snippets, err)
			},
		},
	).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", m.Middleware(serviceName, router))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The indexing consumer runs in-process: session indexes live in this
	// process's memory, so a separate worker binary could not serve them.
	go func() {
		slog.Info("indexer subscribed", "subject", cfg.NATSSubject)
		err := app.Queue.SubscribeFileUploaded(ctx, func(handlerCtx context.Context, sessionID, fileID string) error {
			indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()

			if meta, statusErr := app.Engine.FileStatus(indexCtx, sessionID, fileID); statusErr == nil {
				m.ObserveQueueLag(time.Since(meta.CreatedAt))
			}

			start := time.Now()
			indexErr := app.Engine.IndexByID(indexCtx, sessionID, fileID)
			chunks := 0
			if indexErr == nil {
				if meta, statusErr := app.Engine.FileStatus(indexCtx, sessionID, fileID); statusErr == nil {
					chunks = meta.Chunks
				}
			}
			m.ObserveIndexedFile(serviceName, time.Since(start), chunks, indexErr)
			return indexErr
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("indexer subscribe error", "error", err)
			stop()
		}
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetActiveSessions(app.Engine.SessionCount())
			}
		}
	}()

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
