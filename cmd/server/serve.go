package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ag3dash/server/internal/api"
	"github.com/ag3dash/server/internal/cache"
	"github.com/ag3dash/server/internal/catalog"
	"github.com/ag3dash/server/internal/metrics"
	"github.com/ag3dash/server/internal/render"
	"github.com/ag3dash/server/internal/service"
	"github.com/ag3dash/server/internal/session"
)

func getServeCmd() *cobra.Command {
	var preload bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), preload)
		},
	}
	cmd.Flags().BoolVar(&preload, "preload", false, "load the reference tables before accepting requests")
	return cmd
}

func runServe(ctx context.Context, preload bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Printf("Starting ag3dash server on port %d", cfg.Server.Port)

	acc, err := newAccessor(ctx, cfg.Data, true)
	if err != nil {
		return err
	}
	defer acc.Close()
	log.Printf("Data accessor: %s", acc.Describe())

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	cat := catalog.New(acc, func(table string, took time.Duration, err error) {
		m.ObserveLoad(table, took, err)
		if err != nil {
			log.Printf("[Catalog] Failed to load %s after %s: %v", table, took.Round(time.Millisecond), err)
			return
		}
		log.Printf("[Catalog] Loaded %s in %s", table, took.Round(time.Millisecond))
	})

	if preload {
		if _, err := cat.SampleSets(ctx); err != nil {
			return err
		}
		if _, err := cat.SampleMetadata(ctx); err != nil {
			return err
		}
	}

	ttl := time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute
	sessions := session.NewStore(cat, ttl)

	cacheManager, err := cache.NewManager(cache.Config{
		MapCacheSizeMB: cfg.Cache.MapSizeMB,
		MapTTL:         time.Duration(cfg.Cache.MapTTLMinutes) * time.Minute,
		QueryCacheSize: cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheManager.Close()

	renderer, err := render.NewMapRenderer(render.Config{
		Width:       cfg.Render.MapWidth,
		Height:      cfg.Render.MapHeight,
		PointRadius: cfg.Render.PointRadius,
		Ramp:        cfg.Render.Ramp,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	if err := m.RegisterCache(cacheManager.Hits, cacheManager.Misses); err != nil {
		return err
	}
	if err := m.RegisterSessions(sessions.Count); err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Title:         cfg.Server.Title,
		CORSOrigins:   cfg.Server.CORSOrigins,
		SessionSecret: cfg.Server.SessionSecret,
		SessionTTL:    ttl,
		Sessions:      sessions,
		Dashboard: service.NewDashboardService(service.DashboardServiceConfig{
			Catalog:  cat,
			Cache:    cacheManager,
			Renderer: renderer,
		}),
		Cache:   cacheManager,
		Metrics: m,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
