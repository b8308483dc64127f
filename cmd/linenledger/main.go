package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/linen-ledger/cmd/linenledger/cli"
	"github.com/odyssey-erp/linen-ledger/internal/access"
	"github.com/odyssey-erp/linen-ledger/internal/app"
	"github.com/odyssey-erp/linen-ledger/internal/ledger"
	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/observability"
	"github.com/odyssey-erp/linen-ledger/internal/platform/cache"
	"github.com/odyssey-erp/linen-ledger/internal/platform/db"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
	"github.com/odyssey-erp/linen-ledger/jobs"
	"github.com/odyssey-erp/linen-ledger/migrations"
)

const usage = `usage: linenledger [serve | migrate [up|down] | jobs trigger self-heal | jobs stats] [-json]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "linenledger")

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		m, err := db.NewMigrator(migrations.FS, cfg.PGDSN, logger)
		if err != nil {
			logger.Error("init migrator", slog.Any("error", err))
			os.Exit(1)
		}
		direction := ""
		if len(args) > 0 {
			direction = args[0]
		}
		os.Exit(cli.MigrateCommand(m, direction, os.Stdout, os.Stderr))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	action, rest := args[0], args[1:]
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	requestedBy := fs.String("requested-by", "cli", "recorded on the task payload")
	job := ""
	if action == "trigger" && len(rest) > 0 {
		job, rest = rest[0], rest[1:]
	}
	if err := fs.Parse(rest); err != nil {
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.QueueRedisOpt())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()
	return jobsCLI.JobsCommand(ctx, cli.JobsOptions{
		Action:      action,
		Job:         job,
		RequestedBy: *requestedBy,
		JSONOutput:  *jsonOut,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	})
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		// view invalidation is best-effort; serve without it
		logger.Warn("redis unavailable, view cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}
	views := cache.NewViews(redisClient, cfg.ViewCacheTTL)

	metrics := observability.NewMetrics()
	if err := app.WatchInvalidations(ctx, views, metrics, logger); err != nil {
		logger.Warn("view invalidation feed unavailable", slog.Any("error", err))
	}
	audit := shared.NewAuditLogger(dbpool)
	accessRepo := access.NewRepository(dbpool)
	accessMW := access.Middleware{Finder: accessRepo, Logger: logger}

	mastersRepo := masters.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledger.ServiceParams{
		Store:              ledger.NewRepository(dbpool),
		Catalog:            mastersRepo,
		Idempotency:        shared.NewIdempotencyStore(dbpool),
		Invalidator:        views,
		Views:              views,
		Audit:              audit,
		Metrics:            metrics,
		Logger:             logger,
		VendorPendingLimit: cfg.VendorPendingLimit,
	})
	mastersService := masters.NewService(masters.ServiceParams{
		Repo:        mastersRepo,
		SelfHeal:    masters.NewSelfHeal(mastersRepo, logger, cfg.SelfHealConcurrency),
		Invalidator: views,
		Audit:       audit,
		Metrics:     metrics,
		Logger:      logger,
	})

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(cfg.QueueRedisOpt())
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Access:         accessMW,
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		MastersHandler: masters.NewHandler(logger, mastersService, accessMW),
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
