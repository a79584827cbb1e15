package types

// FractalsConfig configures swing detection per timeframe.
type FractalsConfig struct {
	SwingLength map[string]int `mapstructure:"swing_length"`
}

// StructureConfig configures structure-break detection.
type StructureConfig struct {
	BreakMode       string  `mapstructure:"break_mode"` // close | wick
	MinDisplacement float64 `mapstructure:"min_displacement"`
}

// FVGConfig configures Fair Value Gap detection and mitigation.
type FVGConfig struct {
	MinGapPct       float64 `mapstructure:"min_gap_pct"`
	JoinConsecutive bool    `mapstructure:"join_consecutive"`
	MitigationMode  string  `mapstructure:"mitigation_mode"` // close | wick | ce | full
}

// LiquidityConfig configures equal-level clustering.
type LiquidityConfig struct {
	RangePercent float64 `mapstructure:"range_percent"`
	MinTouches   int     `mapstructure:"min_touches"`
}

// ConceptsConfig groups all pattern-detector configuration (C2).
type ConceptsConfig struct {
	Fractals  FractalsConfig  `mapstructure:"fractals"`
	Structure StructureConfig `mapstructure:"structure"`
	FVG       FVGConfig       `mapstructure:"fvg"`
	Liquidity LiquidityConfig `mapstructure:"liquidity"`
}

// ConfirmationsConfig configures the confirmation engine (C5).
type ConfirmationsConfig struct {
	MinCount int `mapstructure:"min_count"`
	MaxCount int `mapstructure:"max_count"`
}

// EntryConfig configures entry-decision behavior (§4.7.7).
type EntryConfig struct {
	Mode    string `mapstructure:"mode"` // conservative | aggressive
	RTOWait bool   `mapstructure:"rto_wait"`
}

// BreakevenConfig toggles the break-even triggers (§4.7.8).
type BreakevenConfig struct {
	StructuralBU bool `mapstructure:"structural_bu"`
	FTABU        bool `mapstructure:"fta_bu"`
	RangeBU      bool `mapstructure:"range_bu"`
}

// RiskConfig configures position sizing, concurrency limits, and stop-loss
// placement (§4.7.3, §4.7.4).
type RiskConfig struct {
	PositionSizeSync       float64 `mapstructure:"position_size_sync"`
	PositionSizeDesync     float64 `mapstructure:"position_size_desync"`
	MaxRiskPerTrade        float64 `mapstructure:"max_risk_per_trade"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	StopLossMethod         string  `mapstructure:"stop_loss_method"` // behind_poi | behind_fvg | behind_cvb | behind_liquidity
}

// TargetsConfig configures target-selection timeframe preference (§4.7.6).
type TargetsConfig struct {
	PrimaryTF []string `mapstructure:"primary_tf"`
	LocalTF   []string `mapstructure:"local_tf"`
}

// FTAConfig configures First Trouble Area classification (§4.7.2).
type FTAConfig struct {
	CloseThresholdPct float64 `mapstructure:"close_threshold_pct"`
	InvalidationMode  string  `mapstructure:"invalidation_mode"`
}

// StrategyConfig groups all strategy-layer configuration (C7).
type StrategyConfig struct {
	Confirmations ConfirmationsConfig `mapstructure:"confirmations"`
	Entry         EntryConfig         `mapstructure:"entry"`
	Breakeven     BreakevenConfig     `mapstructure:"breakeven"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Targets       TargetsConfig       `mapstructure:"targets"`
	FTA           FTAConfig           `mapstructure:"fta"`
}

// DataConfig configures the instrument and timeframes to precompute.
type DataConfig struct {
	Symbol     string   `mapstructure:"symbol"`
	File       string   `mapstructure:"file"`
	Timeframes []string `mapstructure:"timeframes"`
}

// BacktestConfig configures run bounds and execution costs.
type BacktestConfig struct {
	StartDate      string  `mapstructure:"start_date"`
	EndDate        string  `mapstructure:"end_date"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	CommissionPct  float64 `mapstructure:"commission_pct"`
	SlippagePct    float64 `mapstructure:"slippage_pct"`
	BarsPerYear    int     `mapstructure:"bars_per_year"`
}

// Config is the full nested run configuration (spec.md §6).
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Concepts ConceptsConfig `mapstructure:"concepts"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Backtest BacktestConfig `mapstructure:"backtest"`
}
