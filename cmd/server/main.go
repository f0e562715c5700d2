package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/cache"
	"github.com/Skotchmaster/issue_logger/internal/config"
	"github.com/Skotchmaster/issue_logger/internal/db"
	"github.com/Skotchmaster/issue_logger/internal/events"
	"github.com/Skotchmaster/issue_logger/internal/hash"
	"github.com/Skotchmaster/issue_logger/internal/httpserver"
	"github.com/Skotchmaster/issue_logger/internal/repo"
	"github.com/Skotchmaster/issue_logger/internal/search"
	"github.com/Skotchmaster/issue_logger/internal/service"
	"github.com/Skotchmaster/issue_logger/pkg/logging"
	authmw "github.com/Skotchmaster/issue_logger/pkg/middleware/auth"
	"github.com/Skotchmaster/issue_logger/pkg/tokens"
)

const sweepInterval = time.Hour

func main() {
	envFile := pflag.String("env-file", ".env", "path to a .env file")
	migrate := pflag.Bool("migrate", true, "run schema migrations on start")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *migrate); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := openDB(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Warn("db_close_failed", "error", err)
		}
	}()

	tok, err := tokens.NewService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher_close_failed", "error", err)
		}
	}()

	var index service.IssueIndex
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("search_disabled", "reason", "elasticsearch unreachable", "error", err)
		} else {
			index = search.NewESIndex(es, cfg.ESIndex)
		}
	}

	var feed service.FeedCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if rdb == nil {
			logger.Warn("feed_cache_disabled", "reason", "redis unreachable", "addr", cfg.RedisAddr)
		} else {
			feed = cache.NewFeedCache(rdb, cfg.FeedCacheTTL)
			defer rdb.Close()
		}
	}

	store := repo.New(gdb, cfg.StoreTimeout)
	authSvc, err := service.NewAuthService(store, tok, hash.New(cfg.BcryptCost), pub)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	issueSvc := service.NewIssueService(store, pub, index, feed)

	e := httpserver.New(logger, cfg.AllowedOrigins)
	httpserver.Register(e, &httpserver.Deps{
		DB: gdb,
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc, Cookies: httpserver.Cookies{
			Secure:     cfg.IsProduction(),
			AccessTTL:  tok.AccessTTL(),
			RefreshTTL: tok.RefreshTTL(),
		}},
		IssueHandler: &httpserver.IssueHTTP{Svc: issueSvc},
		Guard:        authmw.NewGuard(tok),
	})

	go sweepRefreshTokens(ctx, authSvc, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_failed", "error", err)
	}
	logger.Info("shutdown_complete")
	return nil
}

func openDB(ctx context.Context, cfg config.Config, migrate bool) (*gorm.DB, error) {
	if cfg.DBDriver == config.DriverPostgres {
		if err := db.WaitForPostgres(ctx, cfg.DatabaseURL, 30*time.Second, time.Second); err != nil {
			return nil, err
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	gdb, err := db.Open(openCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := db.Migrate(gdb); err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
	}
	return gdb, nil
}

// newPublisher picks the broker named by EVENTS_BACKEND. Broker failures at
// start are not fatal; events are then dropped.
func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, error) {
	var next events.Publisher
	switch cfg.EventsBackend {
	case config.EventsKafka:
		p, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		next = p
	case config.EventsRabbitMQ:
		p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, events.DefaultExchange)
		if err != nil {
			logger.Warn("events_disabled", "backend", cfg.EventsBackend, "error", err)
			return events.Nop{}, nil
		}
		next = p
	default:
		return events.Nop{}, nil
	}
	return events.NewAsync(next, logger, 5*time.Second), nil
}

func sweepRefreshTokens(ctx context.Context, svc *service.AuthService, logger *slog.Logger) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.SweepExpired(ctx)
			if err != nil {
				logger.Warn("refresh_sweep_failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("refresh_sweep_done", "deleted", n)
			}
		}
	}
}
