package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brewlog/internal/achievement"
	"brewlog/internal/auth"
	"brewlog/internal/db"
	"brewlog/internal/draft"
	httpx "brewlog/internal/http"
	"brewlog/internal/jobs"
	"brewlog/internal/kv"
	"brewlog/internal/notify"
	"brewlog/internal/tasting"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run migrations on start")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	cfg, log, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	catalog, err := achievement.Default()
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if migrate {
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store, err := kv.OpenSQLite(cfg.DraftStorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	drafts := draft.NewRegistry(store, cfg.AutosaveDelay.Duration, draft.Options{
		TTL:    cfg.DraftTTL.Duration,
		Logger: log.Named("draft"),
	})

	var pub notify.Publisher = notify.LogPublisher{Log: log.Named("notify")}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		pub = kp
	}
	defer pub.Close()

	records := &tasting.Service{DB: gdb, Catalog: catalog}
	r := httpx.NewRouter(httpx.Deps{
		Config:  cfg,
		DB:      gdb,
		JWT:     auth.NewJWT(cfg.JWTSecret),
		Drafts:  drafts,
		Records: records,
		Catalog: catalog,
		Log:     log.Named("http"),
	})

	worker := &jobs.Worker{
		ID:        "worker-" + uuid.NewString()[:8],
		Queue:     &jobs.Repo{DB: gdb},
		Unlocks:   jobs.DBUnlocks{DB: gdb},
		Publisher: pub,
		Catalog:   catalog,
		Log:       log.Named("worker"),
		Interval:  cfg.WorkerPollInterval.Duration,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// pending autosaves are written before the store closes
		if cerr := drafts.Close(shutdownCtx); cerr != nil {
			log.Warn("flush drafts on shutdown", zap.Error(cerr))
		}
		return err
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}
