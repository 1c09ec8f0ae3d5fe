package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adilet/vaultdrive/internal/config"
	"github.com/adilet/vaultdrive/internal/content"
	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/adilet/vaultdrive/internal/item"
	"github.com/adilet/vaultdrive/internal/logger"
	"github.com/adilet/vaultdrive/internal/objectstore"
	"github.com/adilet/vaultdrive/internal/quota"
	"github.com/adilet/vaultdrive/internal/server"
	"github.com/adilet/vaultdrive/internal/storage"
	"github.com/adilet/vaultdrive/internal/upload"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer logg.Sync()

	if err := run(logg); err != nil {
		logg.Fatal("api exited", zap.Error(err))
	}
}

func run(logg *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrationDB, err := storage.OpenMigrationDB(cfg.Postgres)
	if err != nil {
		return err
	}
	if err := storage.RunMigrations(ctx, migrationDB); err != nil {
		migrationDB.Close()
		return err
	}
	migrationDB.Close()
	logg.Info("database migrations applied")

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		return err
	}
	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
		return err
	}

	store := objectstore.NewMinIOStore(minioClient, cfg.MinIO.Bucket)
	ledger := quota.NewLedger(quota.NewRepository(pool))
	items := item.NewService(item.NewRepository(pool), store, ledger, cfg.Upload.PresignTTL, logg)
	uploads := upload.NewService(store, items, ledger, content.Validator{}, upload.Options{
		SessionExpiry:   cfg.Upload.SessionExpiry,
		JanitorInterval: cfg.Upload.JanitorInterval,
		SampleBytes:     cfg.Upload.SampleBytes,
	}, logg)
	uploads.StartJanitor(ctx)

	router := server.NewRouter(server.Dependencies{
		Config:   cfg,
		Pool:     pool,
		MinIO:    minioClient,
		Resolver: identity.NewResolver(pool, cfg.Quota.DefaultLimitBytes),
		Items:    items,
		Uploads:  uploads,
		Ledger:   ledger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info("shutdown complete")
	return nil
}
