// Package config loads and validates the nested run configuration from a
// YAML file, falling back to the documented defaults for anything it omits.
//
// Grounded on original_source/config.py's dataclass nesting, reshaped onto
// viper's key/default/unmarshal flow the way the teacher wires flag and
// environment configuration in cmd/server/main.go.
package config

import (
	"errors"
	"fmt"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/spf13/viper"
)

// ErrUnknownTimeframe is returned when data.timeframes names a timeframe
// outside the supported set.
var ErrUnknownTimeframe = errors.New("config: unknown timeframe")

// ErrInconsistentRisk is returned when the risk block cannot be satisfied
// by any sizing decision (e.g. a non-positive risk fraction).
var ErrInconsistentRisk = errors.New("config: inconsistent risk parameters")

// ErrMissingField is returned when a required field is absent.
var ErrMissingField = errors.New("config: missing required field")

var supportedTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true, "1H": true, "4H": true, "1D": true,
}

// defaults mirrors original_source/config.py's dataclass field defaults.
func defaults(v *viper.Viper) {
	v.SetDefault("data.symbol", "NAS100")
	v.SetDefault("data.timeframes", []string{"1m", "5m", "15m", "30m", "1H", "4H", "1D"})

	v.SetDefault("concepts.fractals.swing_length", map[string]int{
		"1m": 3, "5m": 5, "15m": 5, "30m": 5, "1H": 7, "4H": 10, "1D": 10,
	})
	v.SetDefault("concepts.structure.break_mode", "close")
	v.SetDefault("concepts.structure.min_displacement", 0.001)
	v.SetDefault("concepts.fvg.min_gap_pct", 0.0005)
	v.SetDefault("concepts.fvg.join_consecutive", true)
	v.SetDefault("concepts.fvg.mitigation_mode", "close")
	v.SetDefault("concepts.liquidity.range_percent", 0.001)
	v.SetDefault("concepts.liquidity.min_touches", 2)

	v.SetDefault("strategy.confirmations.min_count", 5)
	v.SetDefault("strategy.confirmations.max_count", 8)
	v.SetDefault("strategy.entry.mode", "conservative")
	v.SetDefault("strategy.entry.rto_wait", true)
	v.SetDefault("strategy.breakeven.structural_bu", true)
	v.SetDefault("strategy.breakeven.fta_bu", true)
	v.SetDefault("strategy.breakeven.range_bu", true)
	v.SetDefault("strategy.risk.position_size_sync", 1.0)
	v.SetDefault("strategy.risk.position_size_desync", 0.5)
	v.SetDefault("strategy.risk.max_risk_per_trade", 0.02)
	v.SetDefault("strategy.risk.max_concurrent_positions", 3)
	v.SetDefault("strategy.risk.stop_loss_method", "behind_liquidity")
	v.SetDefault("strategy.targets.primary_tf", []string{"4H", "1H"})
	v.SetDefault("strategy.targets.local_tf", []string{"30m", "15m"})
	v.SetDefault("strategy.fta.close_threshold_pct", 0.3)
	v.SetDefault("strategy.fta.invalidation_mode", "close")

	v.SetDefault("backtest.start_date", "2023-01-01")
	v.SetDefault("backtest.end_date", "2024-12-31")
	v.SetDefault("backtest.initial_capital", 10000.0)
	v.SetDefault("backtest.commission_pct", 0.0006)
	v.SetDefault("backtest.slippage_pct", 0.0002)
}

// Load reads a YAML config file at path, applying documented defaults for
// anything the file omits, and returns the validated Config. An empty path
// loads pure defaults.
func Load(path string) (types.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return types.Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration per spec.md §7's configuration-error
// class: unknown timeframe, inconsistent risk parameters, missing required
// fields. It never rejects an unrecognized stop-loss or confirmation
// method name — those fall back at evaluation time, not at load time.
func Validate(cfg types.Config) error {
	if cfg.Data.Symbol == "" {
		return fmt.Errorf("%w: data.symbol", ErrMissingField)
	}
	if len(cfg.Data.Timeframes) == 0 {
		return fmt.Errorf("%w: data.timeframes", ErrMissingField)
	}
	for _, tf := range cfg.Data.Timeframes {
		if !supportedTimeframes[tf] {
			return fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
		}
	}
	for tf := range cfg.Concepts.Fractals.SwingLength {
		if !supportedTimeframes[tf] {
			return fmt.Errorf("%w: concepts.fractals.swing_length has %q", ErrUnknownTimeframe, tf)
		}
	}
	for _, tf := range cfg.Strategy.Targets.PrimaryTF {
		if !supportedTimeframes[tf] {
			return fmt.Errorf("%w: strategy.targets.primary_tf has %q", ErrUnknownTimeframe, tf)
		}
	}
	for _, tf := range cfg.Strategy.Targets.LocalTF {
		if !supportedTimeframes[tf] {
			return fmt.Errorf("%w: strategy.targets.local_tf has %q", ErrUnknownTimeframe, tf)
		}
	}

	r := cfg.Strategy.Risk
	if r.MaxRiskPerTrade <= 0 || r.MaxRiskPerTrade > 1 {
		return fmt.Errorf("%w: max_risk_per_trade must be in (0, 1], got %v", ErrInconsistentRisk, r.MaxRiskPerTrade)
	}
	if r.PositionSizeSync <= 0 || r.PositionSizeDesync <= 0 {
		return fmt.Errorf("%w: position size multipliers must be positive", ErrInconsistentRisk)
	}
	if r.PositionSizeDesync > r.PositionSizeSync {
		return fmt.Errorf("%w: desync size multiplier exceeds sync multiplier", ErrInconsistentRisk)
	}
	if r.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("%w: max_concurrent_positions must be positive", ErrInconsistentRisk)
	}

	if cfg.Strategy.Confirmations.MinCount <= 0 || cfg.Strategy.Confirmations.MaxCount < cfg.Strategy.Confirmations.MinCount {
		return fmt.Errorf("%w: confirmations min_count/max_count out of order", ErrInconsistentRisk)
	}

	if cfg.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("%w: backtest.initial_capital must be positive", ErrMissingField)
	}

	return nil
}
