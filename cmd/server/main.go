package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/processgpt/dmnrules/internal/bootstrap"
	"github.com/processgpt/dmnrules/internal/config"
	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/internal/metrics"
	"github.com/processgpt/dmnrules/multitenantengine"
	"github.com/processgpt/dmnrules/rules"
)

func main() {
	configPath := flag.String("config", os.Getenv("DMN_CONFIG"), "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := bootstrap.OpenBackend(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open model store", "backend", cfg.Store.Backend, "error", err)
	}
	defer be.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	manager := bootstrap.NewManager(be, cfg.Engine, metrics.New(registry))

	scheduler := multitenantengine.NewScheduler(manager, cfg.Engine.RefreshSchedule)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start refresh scheduler", "error", err)
	}

	if be.Files != nil && cfg.Store.Watch {
		go func() {
			err := be.Files.Watch(ctx, 200*time.Millisecond, func(s rules.Scope) {
				if _, err := manager.Reload(ctx, s.Owner, s.Tenant); err != nil {
					logger.Warn("Reload after file change failed", "scope", s.String(), "error", err)
				}
			})
			if err != nil {
				logger.Error("Model directory watcher stopped", "error", err)
			}
		}()
	}

	server := NewServer(manager, be.Repo, be.DB, registry, cfg.Server.RequestTimeout)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	scheduler.Stop()

	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	logger.Info("Server stopped")
}
