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

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cryptomonitor/tracker/internal/alerts"
	"github.com/cryptomonitor/tracker/internal/auth"
	"github.com/cryptomonitor/tracker/internal/cache"
	"github.com/cryptomonitor/tracker/internal/config"
	"github.com/cryptomonitor/tracker/internal/history"
	"github.com/cryptomonitor/tracker/internal/httpapi"
	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/news"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/static"
	"github.com/cryptomonitor/tracker/internal/store"
	"github.com/cryptomonitor/tracker/internal/watchlist"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env-file", config.DefaultEnvFile, "path to the .env file")
	collectOnly := flag.Bool("collect-static", false, "collect static assets and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *collectOnly {
		n, err := static.Collect(cfg.StaticDirs, cfg.StaticRoot)
		if err != nil {
			log.Fatal("static collection failed", zap.Error(err))
		}
		log.Info("static assets collected", zap.Int("files", n), zap.String("root", cfg.StaticRoot))
		return
	}

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("tracker stopped", zap.Error(err))
	}

	log.Info("tracker stopped cleanly")
}

func run(cfg *config.Config, log *zap.Logger) error {
	n, err := static.Collect(cfg.StaticDirs, cfg.StaticRoot)
	if err != nil {
		return errors.Wrap(err, "static collection failed")
	}
	log.Info("static assets collected", zap.Int("files", n))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrapf(err, "could not create data dir %s", cfg.DataDir)
	}

	db, err := store.Open(cfg.StorePath(), store.Config{})
	if err != nil {
		return errors.Wrap(err, "could not open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	c := cache.NewDefault()

	marketSvc := market.NewService(
		market.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, log.Named("market")),
		c, cfg.MarketCacheTTL, log.Named("market"),
	)

	newsSvc := news.NewService(
		news.NewClient(cfg.NewsBaseURL, cfg.NewsAPIKey, log.Named("news")),
		news.NewSentimentProvider(cfg.SentimentURL),
		c, cfg.MarketCacheTTL, log.Named("news"),
	)

	portfolioSvc := portfolio.NewService(db, marketSvc, log.Named("portfolio"))
	watchlistSvc := watchlist.NewService(db, marketSvc, log.Named("watchlist"))
	alertsSvc := alerts.NewService(db, marketSvc, log.Named("alerts"))
	historySvc := history.NewService(db, marketSvc, log.Named("history"))

	server := httpapi.NewServer(httpapi.Deps{
		Config:    cfg,
		Market:    marketSvc,
		News:      newsSvc,
		Portfolio: portfolioSvc,
		Watchlist: watchlistSvc,
		Alerts:    alertsSvc,
		History:   historySvc,
		Users:     auth.NewUsers(db),
		Sessions:  auth.NewSessions(cfg.SecretKey, cfg.SessionTTL),
		Log:       log.Named("http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler: server.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return history.NewRecorder(historySvc, cfg.HistoryInterval, log.Named("history")).Run(ctx)
	})

	g.Go(func() error {
		return alerts.NewEvaluator(alertsSvc, cfg.AlertInterval, log.Named("alerts")).Run(ctx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
