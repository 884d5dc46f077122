package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grants-cloud/internal/audit"
	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
	"grants-cloud/internal/budget/infrastructure/memory"
	"grants-cloud/internal/budget/infrastructure/postgres"
	"grants-cloud/internal/budget/infrastructure/snapshot"
	budgethttp "grants-cloud/internal/budget/interfaces/http"
	"grants-cloud/internal/budget/interfaces/report"
	"grants-cloud/internal/budget/notify"
	"grants-cloud/internal/config"
	"grants-cloud/internal/eventbus"
	"grants-cloud/internal/logging"
	"grants-cloud/internal/observability/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// storage is the repository selected by configuration plus what must be
// shut down with it.
type storage struct {
	repo   budget.Repository
	audit  audit.Logger
	db     *sql.DB
	mirror *snapshot.Mirror
	close  func()
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	metrics.Init(store.db, logger)

	bus := eventbus.NewInMemoryBus(logger)
	if err := application.RegisterAuditSubscribers(bus, store.audit); err != nil {
		return err
	}
	if err := application.RegisterMetricsSubscribers(bus); err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}
	notifier.Start(ctx)
	defer notifier.Close()
	if err := application.RegisterNotifier(bus, notifier); err != nil {
		return err
	}

	services, err := application.NewServices(application.Deps{
		Repo:   store.repo,
		Bus:    bus,
		Logger: logger,
	}, report.NewRenderer(report.WithOrganization(cfg.Report.Organization)))
	if err != nil {
		return err
	}

	handler, err := budgethttp.NewRouter(budgethttp.Config{
		Services: services,
		Auth:     auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)),
		Logger:   logger,
		Metrics:  promhttp.Handler(),
	})
	if err != nil {
		return err
	}

	if store.mirror != nil {
		go store.mirror.Run(ctx)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if store.mirror != nil {
		if err := store.mirror.Flush(shutdownCtx); err != nil {
			logger.Warn("final snapshot failed", zap.Error(err))
		}
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Database.URL != "" {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Database.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.Database.MaxConns)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		repo := postgres.NewRepository(db)
		logger.Info("using postgres repository")
		return &storage{
			repo:  repo,
			audit: audit.NewRepository(db),
			db:    db,
			close: func() { _ = db.Close() },
		}, nil
	}

	repo := memory.NewRepository()
	auditLogger, err := audit.NewZapLogger(logger)
	if err != nil {
		return nil, err
	}
	snapshots, closeStore, err := openSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}
	mirror, err := snapshot.NewMirror(repo, snapshots,
		snapshot.WithInterval(cfg.Snapshot.Interval),
		snapshot.WithLogger(logger),
	)
	if err != nil {
		closeStore()
		return nil, err
	}
	if err := mirror.Restore(ctx); err != nil {
		closeStore()
		return nil, err
	}
	logger.Info("using in-memory repository", zap.Uint64("version", repo.Version()))
	return &storage{
		repo:   repo,
		audit:  auditLogger,
		mirror: mirror,
		close:  closeStore,
	}, nil
}

func openSnapshotStore(cfg *config.Config) (snapshot.Store, func(), error) {
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := snapshot.NewRedisStore(rdb, snapshot.WithKey(cfg.Redis.Key))
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, func() { _ = rdb.Close() }, nil
	}
	store, err := snapshot.NewFileStore(cfg.Snapshot.File)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func buildNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*notify.Notifier, error) {
	var channel notify.Channel
	if cfg.WebhookURL != "" {
		burst := int(math.Ceil(cfg.RateLimit))
		webhook, err := notify.NewWebhookChannel(cfg.WebhookURL,
			notify.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			notify.WithRetry(cfg.Attempts, 500*time.Millisecond),
			notify.WithRateLimit(cfg.RateLimit, burst),
		)
		if err != nil {
			return nil, err
		}
		channel = webhook
	} else {
		channel = notify.NewLogChannel(logger)
	}
	template, err := notify.NewTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("notify template: %w", err)
	}
	return notify.NewNotifier(channel, template,
		notify.WithQueue(cfg.QueueSize),
		notify.WithDedupeWindow(cfg.DedupWindow),
		notify.WithRequestTimeout(cfg.Timeout),
		notify.WithLogger(logger),
	)
}
