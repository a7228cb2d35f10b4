package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/kubilitics/kubilitics-fleet/internal/api/middleware"
	"github.com/kubilitics/kubilitics-fleet/internal/api/rest"
	"github.com/kubilitics/kubilitics-fleet/internal/api/websocket"
	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/config"
	"github.com/kubilitics/kubilitics-fleet/internal/feed"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/logger"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologyexport"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/tracing"
	"github.com/kubilitics/kubilitics-fleet/internal/service"
	"github.com/kubilitics/kubilitics-fleet/internal/topology"
)

const serviceName = "kubilitics-fleet"

func main() {
	if err := run(); err != nil {
		logger.StdLogger().Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(log)
	log.Info("configuration loaded", "port", cfg.Port, "backend_url", cfg.BackendURL, "feed_url", cfg.FeedURL)

	shutdownTracing, err := tracing.Init(serviceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Topology
	layoutCfg := topology.LayoutConfig{
		NodeWidth:  cfg.LayoutNodeWidth,
		NodeHeight: cfg.LayoutNodeHeight,
		NodeSep:    cfg.LayoutNodeSep,
		RankSep:    cfg.LayoutRankSep,
		Offset:     cfg.LayoutOffset,
	}
	layoutEngine := topology.NewLayoutEngine(layoutCfg)
	effective := layoutEngine.Config()
	engine := topology.NewEngine(
		topology.NewTransformer(nil,
			topology.WithDecoration(cfg.TopologyDecorate),
			topology.WithMaxNodes(cfg.TopologyMaxNodes),
		),
		layoutEngine,
	)

	wsHub := websocket.NewHub(ctx)
	topologyService := service.NewTopologyService(
		engine,
		topologycache.New(cfg.TopologyCacheSize, cfg.TopologyCacheTTL()),
		topologyexport.Box{Width: effective.NodeWidth, Height: effective.NodeHeight},
		wsHub,
		log.With("component", "topology"),
	)

	// Binding policies
	backend := binding.NewClient(binding.ClientConfig{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.BackendTimeout(),
		RateLimit: cfg.BackendRateLimitPerSec,
		Burst:     cfg.BackendRateLimitBurst,
	}, log.With("component", "binding-backend"))
	parser := binding.NewLabelParser(cfg.BindingLegacyLabelIDs)
	log.Info("binding label parser ready", "legacy_label_ids", parser.Legacy())
	bindingService := service.NewBindingService(
		parser,
		binding.NewResolver(time.Now),
		backend,
		log.With("component", "binding"),
	)

	// Routes
	router := mux.NewRouter()
	rest.SetupOpsRoutes(router)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	rest.SetupRoutes(apiRouter, rest.NewHandler(
		topologyService,
		bindingService,
		cfg.KubeconfigPath,
		cfg.KubeconfigContextSuffix,
		log.With("component", "api"),
	))
	wsHandler := websocket.NewHandler(ctx, wsHub, originChecker(cfg.AllowedOrigins), log.With("component", "websocket"))
	router.HandleFunc("/ws/topology", wsHandler.ServeWS).Methods("GET")

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.StructuredLog)
	router.Use(limiter.Middleware)
	router.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.ResponseRequestIDHeader},
		ExposedHeaders:   []string{middleware.ResponseRequestIDHeader, middleware.TraceIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Tracing(c.Handler(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run()
		return nil
	})
	if cfg.FeedURL != "" {
		consumer := feed.NewConsumer(feed.Config{
			URL:               cfg.FeedURL,
			ReconnectInterval: cfg.FeedReconnect(),
			MaxMessageBytes:   cfg.FeedMaxMessageBytes,
		}, topologyService.ApplySnapshots, log.With("component", "feed"))
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	} else {
		log.Info("topology feed disabled; snapshots accepted on POST /api/v1/topology/snapshots")
	}
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr, "api", "/api/v1", "websocket", "/ws/topology")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		wsHub.Stop()
		timeout := cfg.ShutdownTimeout()
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}

// originChecker allows websocket upgrades from the configured CORS origins.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return nil
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
