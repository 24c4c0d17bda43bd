// Package stakerd runs the staking ledger daemon.
package stakerd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stakeledger/config"
	"stakeledger/gateway/middleware"
	"stakeledger/observability/logging"
	telemetry "stakeledger/observability/otel"
)

// Main initialises and runs the staking daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/stakerd/config.yaml", "path to stakerd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("STAKE_ENV"))
	logger := logging.Setup("stakerd", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	logger.Info("configuration loaded",
		slog.String("config", cfgPath),
		slog.String("ledger", cfg.LedgerPath),
		logging.MaskField("hmac_secret", cfg.Auth.HMACSecret),
		logging.MaskField("journal_dsn", cfg.Journal.DSN))
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled; callers are taken from the request header",
			slog.String("header", middleware.CallerHeader))
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "stakerd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	ledgerCfg, err := config.Load(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("load ledger config: %w", err)
	}
	ledger, err := ledgerCfg.Resolve()
	if err != nil {
		return fmt.Errorf("ledger config: %w", err)
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = ledgerCfg.DataDir
		if !filepath.IsAbs(dataDir) {
			dataDir = filepath.Join(filepath.Dir(cfg.LedgerPath), dataDir)
		}
	}

	node, err := NewNode(cfg, ledger, dataDir, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Initialize(stopCtx); err != nil {
		return fmt.Errorf("initialise ledger: %w", err)
	}
	return node.Serve(stopCtx)
}
