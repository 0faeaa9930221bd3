// Package main is the entry point for the split-ledger command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/jackc/pgx/v5/pgxpool"
	"gitlab.com/yelinaung/split-ledger/internal/cache"
	"gitlab.com/yelinaung/split-ledger/internal/cli"
	"gitlab.com/yelinaung/split-ledger/internal/config"
	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/notify"
	"gitlab.com/yelinaung/split-ledger/internal/store/postgres"
	"gitlab.com/yelinaung/split-ledger/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	b := &backend{}
	app := &cli.App{
		Connect: b.service,
		Migrate: b.migrate,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: fmt.Sprintf("split-ledger %s (commit: %s, built: %s)", version, commit, date),
	}
	flag.StringVar(&app.As, "as", os.Getenv("LEDGER_USER"), "id of the user running the command")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	cli.Register(commander, app)
	flag.Parse()

	status := commander.Execute(ctx)
	b.close()
	os.Exit(int(status))
}

// backend connects to the database on first use so that commands like
// version and help run without any configuration.
type backend struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	svc      *ledger.Service
	shutdown telemetry.Shutdown
}

func (b *backend) open(ctx context.Context) error {
	if b.pool != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}
	logger.InitHashSalt()

	shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = shutdown(ctx)
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	b.cfg, b.pool, b.shutdown = cfg, pool, shutdown
	return nil
}

func (b *backend) service(ctx context.Context) (*ledger.Service, error) {
	if b.svc != nil {
		return b.svc, nil
	}
	if err := b.open(ctx); err != nil {
		return nil, err
	}

	svc, err := ledger.NewService(postgres.New(b.pool),
		ledger.WithCache(cache.New(b.cfg.CacheTTL)),
		ledger.WithNotifier(notify.FromConfig(b.cfg)),
		ledger.WithNotifyTimeout(b.cfg.NotifyTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger service: %w", err)
	}
	b.svc = svc
	return svc, nil
}

func (b *backend) migrate(ctx context.Context) error {
	if err := b.open(ctx); err != nil {
		return err
	}
	if err := database.RunMigrations(ctx, b.pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Database initialized successfully")
	return nil
}

// close waits for pending notifications, then releases the pool and flushes telemetry.
func (b *backend) close() {
	if b.svc != nil {
		b.svc.Wait()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.shutdown(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}
}
