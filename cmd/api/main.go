package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clothdonate/internal/adapter/memstore"
	"clothdonate/internal/adapter/repo"
	"clothdonate/internal/domain"
	"clothdonate/internal/http/handlers"
	httpapi "clothdonate/internal/http/httpapi"
	"clothdonate/internal/infra"
	"clothdonate/internal/infra/geoip"
	"clothdonate/internal/lifecycle"
	"clothdonate/internal/middleware"
	"clothdonate/internal/notify/render"
)

func main() {
	infra.LoadDotEnv()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.OTelServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.SetupTelemetry(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up telemetry")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	catalog, err := render.Default(cfg.DefaultLocale)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load notification catalog")
	}

	engine, err := lifecycle.NewEngine(lifecycle.Options{
		Store:         store,
		Renderer:      catalog,
		Logger:        logger.With().Str("component", "lifecycle").Logger(),
		DefaultLocale: catalog.Match(cfg.DefaultLocale),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build lifecycle engine")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	router := httpapi.NewRouter(handlers.NewApp(engine, logger), httpapi.Options{
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		DefaultLocale:      cfg.DefaultLocale,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CountryLookup:      middleware.CountryLookup(resolver.Lookup()),
		MatchLocale:        catalog.Match,
	})

	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("store", cfg.StoreDriver).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}

// openStore builds the unit of work selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.UnitOfWork, func(), error) {
	if cfg.StoreDriver == infra.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	runner := infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger())
	return repo.NewStore(runner), pool.Close, nil
}
