package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-token-service/internal/config"
	"license-token-service/internal/database"
	"license-token-service/internal/handler"
	"license-token-service/internal/keys"
	"license-token-service/internal/logging"
	"license-token-service/internal/metrics"
	"license-token-service/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// 初始化数据库
	db, err := database.Open(cfg.Database.DataDir, cfg.Database.File)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// 启动时加载密钥，配置错误直接退出而不是等到第一次签发
	provider := keys.NewProvider(
		keys.Source{PEM: cfg.Keys.PrivatePEM, Path: cfg.Keys.PrivatePath},
		keys.Source{PEM: cfg.Keys.PublicPEM, Path: cfg.Keys.PublicPath},
	)
	if _, err := provider.SigningKey(); err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	svc := service.NewLicenseService(
		database.NewRecordStore(db),
		keys.NewSigner(provider),
		log,
		service.WithDefaultDuration(cfg.License.DefaultDurationHours),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheet, err := service.NewSheetSyncService(ctx, cfg.Sheet, log)
	if err != nil {
		return fmt.Errorf("init sheet sync: %w", err)
	}

	metrics.MustRegister()
	app := handler.New(handler.Deps{
		Service: svc,
		Sheet:   sheet,
		Config:  cfg,
		Logger:  log,
		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}).NewApp()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info().Str("addr", addr).Bool("sheet_sync", sheet != nil).Msg("license token service listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
