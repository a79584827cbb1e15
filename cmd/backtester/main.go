// Package main provides the entry point for the SMC backtesting engine:
// load a config, load its CSV candle series, replay the run, print a
// summary, and optionally serve the result over HTTP.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/internal/report"
	"github.com/atlas-desktop/trading-backend/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the run config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	serve := flag.Bool("serve", false, "Serve the finished run's report over HTTP instead of exiting")
	host := flag.String("host", "localhost", "Report server host")
	port := flag.Int("port", 8090, "Report server port")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	store := data.NewStore(logger)
	bars, err := store.LoadCSV(cfg.Data.File)
	if err != nil {
		logger.Fatal("failed to load candle series", zap.Error(err))
	}

	logger.Info("starting backtest run",
		zap.String("symbol", cfg.Data.Symbol),
		zap.Int("bars", len(bars)),
		zap.String("start", cfg.Backtest.StartDate),
		zap.String("end", cfg.Backtest.EndDate),
	)

	result, err := backtest.Run(logger, cfg, bars)
	if err != nil {
		logger.Fatal("backtest run failed", zap.Error(err))
	}

	collector := telemetry.NewCollector()
	collector.ObserveResult(result)

	report.PrintSummary(result)

	if *serve {
		addr := fmt.Sprintf("%s:%d", *host, *port)
		srv := report.NewServer(logger, result, collector.Registry())
		logger.Info("serving report", zap.String("addr", addr))
		if err := srv.ListenAndServe(addr); err != nil {
			logger.Fatal("report server failed", zap.Error(err))
		}
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	return logger
}
