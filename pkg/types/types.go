// Package types provides shared type definitions for the backtesting engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe identifies a candle bucket width.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1H  Timeframe = "1H"
	TF4H  Timeframe = "4H"
	TF1D  Timeframe = "1D"
)

// Direction is +1 for bullish/long context, -1 for bearish/short.
type Direction int

const (
	Bullish Direction = 1
	Bearish Direction = -1
)

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	return -d
}

// Candle is a single OHLCV bar.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// SwingStatus is the lifecycle state of a swing point.
type SwingStatus string

const (
	SwingActive SwingStatus = "ACTIVE"
	SwingSwept  SwingStatus = "SWEPT"
	SwingBroken SwingStatus = "BROKEN"
)

// Swing is a confirmed local extremum. ConfirmedIndex is the bar index at
// which the swing becomes knowable without look-ahead (Index + swing_length).
type Swing struct {
	Index          int             `json:"index"`
	ConfirmedIndex int             `json:"confirmedIndex"`
	Direction      Direction       `json:"direction"`
	Price          decimal.Decimal `json:"price"`
	Status         SwingStatus     `json:"status"`
}

// StructureKind distinguishes a break-of-structure from a continuation break.
type StructureKind string

const (
	BOS  StructureKind = "BOS"
	CBOS StructureKind = "cBOS"
)

// StructureEvent is a recorded break of a prior swing level.
type StructureEvent struct {
	Kind          StructureKind   `json:"kind"`
	Direction     Direction       `json:"direction"`
	SwingIndex    int             `json:"swingIndex"`
	Level         decimal.Decimal `json:"level"`
	BreakIndex    int             `json:"breakIndex"`
	BreakTime     time.Time       `json:"breakTime"`
}

// FVGStatus is the lifecycle state of a Fair Value Gap.
type FVGStatus string

const (
	FVGFresh           FVGStatus = "FRESH"
	FVGTested          FVGStatus = "TESTED"
	FVGPartiallyFilled FVGStatus = "PARTIALLY_FILLED"
	FVGFullyFilled     FVGStatus = "FULLY_FILLED"
	FVGMitigated       FVGStatus = "MITIGATED"
	FVGInverted        FVGStatus = "INVERTED"
)

// FVG is a 3-candle imbalance zone.
type FVG struct {
	Direction     Direction       `json:"direction"`
	Top           decimal.Decimal `json:"top"`
	Bottom        decimal.Decimal `json:"bottom"`
	StartIndex    int             `json:"startIndex"`
	CreationIndex int             `json:"creationIndex"`
	CreationTime  time.Time       `json:"creationTime"`
	Status        FVGStatus       `json:"status"`
}

// Midpoint returns the gap's midpoint price.
func (f FVG) Midpoint() decimal.Decimal {
	return f.Top.Add(f.Bottom).Div(decimal.NewFromInt(2))
}

// FVGLifecycle is the deterministic per-bar trace of an FVG's status.
type FVGLifecycle struct {
	FVG             FVG             `json:"fvg"`
	DeepestPrice    decimal.Decimal `json:"deepestPrice"`
	FinalStatus     FVGStatus       `json:"finalStatus"`
	EndIndex        int             `json:"endIndex"`
	InversionIndex  int             `json:"inversionIndex"` // -1 if never inverted
}

// LiquidityStatus is the lifecycle state of a liquidity level.
type LiquidityStatus string

const (
	LiquidityActive LiquidityStatus = "ACTIVE"
	LiquiditySwept  LiquidityStatus = "SWEPT"
)

// LiquidityLevel is a cluster of equal highs/lows, or a session extreme.
type LiquidityLevel struct {
	Direction Direction       `json:"direction"`
	Level     decimal.Decimal `json:"level"`
	Count     int             `json:"count"`
	Indices   []int           `json:"indices"`
	Status    LiquidityStatus `json:"status"`
	IsSession bool            `json:"isSession"`
}

// OBStatus is the lifecycle state of an order block.
type OBStatus string

const (
	OBActive    OBStatus = "ACTIVE"
	OBMitigated OBStatus = "MITIGATED"
	OBBroken    OBStatus = "BROKEN"
)

// OrderBlock is the last opposing candle before a structure break.
type OrderBlock struct {
	Direction  Direction       `json:"direction"`
	Top        decimal.Decimal `json:"top"`
	Bottom     decimal.Decimal `json:"bottom"`
	Index      int             `json:"index"`
	CreatedAt  time.Time       `json:"createdAt"`
	Status     OBStatus        `json:"status"`
}

// BreakerStatus is the lifecycle state of a breaker block.
type BreakerStatus string

const (
	BreakerActive    BreakerStatus = "ACTIVE"
	BreakerMitigated BreakerStatus = "MITIGATED"
)

// Breaker is a broken order block, direction inverted.
type Breaker struct {
	Direction Direction       `json:"direction"`
	Top       decimal.Decimal `json:"top"`
	Bottom    decimal.Decimal `json:"bottom"`
	Index     int             `json:"index"`
	CreatedAt time.Time       `json:"createdAt"`
	Status    BreakerStatus   `json:"status"`
}

// POIComponentType identifies the source artifact type of a POI component.
type POIComponentType string

const (
	ComponentFVGHTF     POIComponentType = "fvg_htf"
	ComponentFVGLTF     POIComponentType = "fvg_ltf"
	ComponentOB         POIComponentType = "ob"
	ComponentBreaker    POIComponentType = "breaker"
	ComponentIFVG       POIComponentType = "ifvg"
	ComponentLiquidity  POIComponentType = "liquidity"
	ComponentSession    POIComponentType = "session"
)

// POIComponent describes one contributing artifact of a composite POI.
type POIComponent struct {
	Type        POIComponentType `json:"type"`
	SourceIndex int              `json:"sourceIndex"`
	Status      string           `json:"status"`
}

// POIStatus is the lifecycle state of a composite zone (not to be confused
// with the state-machine phase, which tracks strategy-level progress).
type POIStatus string

const (
	POIActive    POIStatus = "ACTIVE"
	POITested    POIStatus = "TESTED"
	POIMitigated POIStatus = "MITIGATED"
)

// POI is a composite zone aggregating overlapping same-direction artifacts.
type POI struct {
	ID           string          `json:"id"`
	Timeframe    Timeframe       `json:"timeframe"`
	Direction    Direction       `json:"direction"`
	Top          decimal.Decimal `json:"top"`
	Bottom       decimal.Decimal `json:"bottom"`
	Components   []POIComponent  `json:"components"`
	Score        float64         `json:"score"`
	CreatedAt    time.Time       `json:"createdAt"`
	Status       POIStatus       `json:"status"`
}

// Midpoint is the POI zone's midpoint price.
func (p POI) Midpoint() decimal.Decimal {
	return p.Top.Add(p.Bottom).Div(decimal.NewFromInt(2))
}

// ConfirmationKind identifies one of the 8 confirmation checkers.
type ConfirmationKind string

const (
	ConfirmPOITap            ConfirmationKind = "POI_TAP"
	ConfirmLiquiditySweep    ConfirmationKind = "LIQUIDITY_SWEEP"
	ConfirmFVGInversion      ConfirmationKind = "FVG_INVERSION"
	ConfirmInversionTest     ConfirmationKind = "INVERSION_TEST"
	ConfirmStructureBreak    ConfirmationKind = "STRUCTURE_BREAK"
	ConfirmFVGWickReaction   ConfirmationKind = "FVG_WICK_REACTION"
	ConfirmCVBTest           ConfirmationKind = "CVB_TEST"
	ConfirmAdditionalCBOS    ConfirmationKind = "ADDITIONAL_CBOS"
)

// Confirmation is a single fired checker event for a POI.
type Confirmation struct {
	Kind      ConfirmationKind `json:"kind"`
	Time      time.Time        `json:"time"`
	BarIndex  int              `json:"barIndex"`
	Details   map[string]any   `json:"details"`
}

// POIPhase is the lifecycle phase of a POI's strategy state record.
type POIPhase string

const (
	PhaseIdle       POIPhase = "IDLE"
	PhaseTapped     POIPhase = "TAPPED"
	PhaseCollecting POIPhase = "COLLECTING"
	PhaseReady      POIPhase = "READY"
	PhasePositioned POIPhase = "POSITIONED"
	PhaseManaging   POIPhase = "MANAGING"
	PhaseClosed     POIPhase = "CLOSED"
)

// POIState is the state-machine manager's owned record for one registered
// POI: its snapshot at registration, its current phase, and accumulated
// confirmations plus any in-flight trade parameters.
type POIState struct {
	POIID             string          `json:"poiId"`
	Timeframe         Timeframe       `json:"timeframe"`
	POI               POI             `json:"poi"`
	Phase             POIPhase        `json:"phase"`
	Confirmations     []Confirmation  `json:"confirmations"`
	EntryPrice        decimal.Decimal `json:"entryPrice"`
	StopLoss          decimal.Decimal `json:"stopLoss"`
	Target            decimal.Decimal `json:"target"`
	BreakevenLevel    decimal.Decimal `json:"breakevenLevel"`
	CreatedAt         time.Time       `json:"createdAt"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

// Bias is a directional reading derived from structure events.
type Bias string

const (
	BiasBullish   Bias = "BULLISH"
	BiasBearish   Bias = "BEARISH"
	BiasUndefined Bias = "UNDEFINED"
)

// SyncMode is the alignment state between HTF and LTF bias.
type SyncMode string

const (
	SyncSync      SyncMode = "SYNC"
	SyncDesync    SyncMode = "DESYNC"
	SyncUndefined SyncMode = "UNDEFINED"
)

// SignalKind identifies the kind of strategy signal emitted.
type SignalKind string

const (
	SignalEnter     SignalKind = "ENTER"
	SignalExit      SignalKind = "EXIT"
	SignalModifySL  SignalKind = "MODIFY_SL"
	SignalMoveToBE  SignalKind = "MOVE_TO_BE"
	SignalAddOn     SignalKind = "ADD_ON"
)

// ExitReason identifies why an exit/move-to-be signal fired.
type ExitReason string

const (
	ReasonStopLossHit      ExitReason = "STOP_LOSS_HIT"
	ReasonTargetHit        ExitReason = "TARGET_HIT"
	ReasonStructuralBE     ExitReason = "STRUCTURAL_BE"
	ReasonFTABE            ExitReason = "FTA_BE"
	ReasonEndOfData        ExitReason = "END_OF_DATA"
)

// Signal is a decision emitted by the strategy layer for the portfolio to act on.
type Signal struct {
	Kind          SignalKind      `json:"kind"`
	POIID         string          `json:"poiId"`
	Direction     Direction       `json:"direction"`
	Time          time.Time       `json:"time"`
	BarIndex      int             `json:"barIndex"`
	Price         decimal.Decimal `json:"price"`
	Stop          decimal.Decimal `json:"stop"`
	Target        decimal.Decimal `json:"target"`
	SizeMult      decimal.Decimal `json:"sizeMult"`
	Reason        string          `json:"reason"`
	Metadata      map[string]any  `json:"metadata"`
}

// TradeOutcome classifies a closed trade.
type TradeOutcome string

const (
	OutcomeWin       TradeOutcome = "WIN"
	OutcomeLoss      TradeOutcome = "LOSS"
	OutcomeBreakeven TradeOutcome = "BREAKEVEN"
)

// TradeRecord is the complete lifecycle record of a single trade.
type TradeRecord struct {
	TradeID             string          `json:"tradeId"`
	POIID               string          `json:"poiId"`
	Direction           Direction       `json:"direction"`

	EntryTime           time.Time       `json:"entryTime"`
	EntryBarIndex       int             `json:"entryBarIndex"`
	EntryPrice          decimal.Decimal `json:"entryPrice"`          // after slippage
	EntrySignalPrice    decimal.Decimal `json:"entrySignalPrice"`    // before slippage
	PositionSize        decimal.Decimal `json:"positionSize"`

	ExitTime            time.Time       `json:"exitTime"`
	ExitPrice           decimal.Decimal `json:"exitPrice"`           // after slippage
	ExitSignalPrice     decimal.Decimal `json:"exitSignalPrice"`     // before slippage
	ExitReason          ExitReason      `json:"exitReason"`

	CommissionEntry     decimal.Decimal `json:"commissionEntry"`
	CommissionExit      decimal.Decimal `json:"commissionExit"`
	GrossPnL            decimal.Decimal `json:"grossPnl"`
	RealizedPnL         decimal.Decimal `json:"realizedPnl"`

	MaxFavorableExcursion decimal.Decimal `json:"mfe"`
	MaxAdverseExcursion   decimal.Decimal `json:"mae"`

	StopLoss            decimal.Decimal `json:"stopLoss"`
	Target               decimal.Decimal `json:"target"`
	SyncMode             SyncMode        `json:"syncMode"`
	Timeframe            Timeframe       `json:"timeframe"`
	ConfirmationCount    int             `json:"confirmationCount"`
	IsAddOn              bool            `json:"isAddOn"`
	ParentTradeID        string          `json:"parentTradeId,omitempty"`

	Outcome              TradeOutcome    `json:"outcome"`
	RMultiple             float64         `json:"rMultiple"`
	DurationBars         int             `json:"durationBars"`

	Open                 bool            `json:"open"`
	BreakevenMoved       bool            `json:"breakevenMoved"`
}

// EventKind identifies a kind of audit-log event.
type EventKind string

const (
	EventPOIRegistered   EventKind = "POI_REGISTERED"
	EventPOITapped       EventKind = "POI_TAPPED"
	EventEntry           EventKind = "ENTRY"
	EventExit            EventKind = "EXIT"
	EventBEMoved         EventKind = "BE_MOVED"
	EventSLModified      EventKind = "SL_MODIFIED"
	EventAddOn           EventKind = "ADDON"
	EventBiasUpdated     EventKind = "BIAS_UPDATED"
	EventSyncUpdated     EventKind = "SYNC_UPDATED"
	EventPositionRejected EventKind = "POSITION_REJECTED"
)

// Event is a single entry in the run's audit event log.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Time     time.Time      `json:"time"`
	BarIndex int            `json:"barIndex"`
	Details  map[string]any `json:"details"`
}

// EquityPoint is a single bar's equity-curve sample. Valid reports false
// before the first mark-to-market call for that bar.
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Equity decimal.Decimal `json:"equity"`
	Valid  bool            `json:"valid"`
}

// BacktestResult is the full output of a run.
type BacktestResult struct {
	Trades      []TradeRecord   `json:"trades"`
	EquityCurve []EquityPoint   `json:"equityCurve"`
	Metrics     Metrics         `json:"metrics"`
	Signals     []Signal        `json:"signals"`
	Events      []Event         `json:"events"`
	Config      Config          `json:"config"`
	TimeIndex   []time.Time     `json:"timeIndex"`
}

// TradeStats summarizes a partition of closed trades.
type TradeStats struct {
	TotalTrades    int     `json:"totalTrades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	Breakevens     int     `json:"breakevens"`
	WinRate        float64 `json:"winRate"`
	AvgR           float64 `json:"avgR"`
	AvgRWin        float64 `json:"avgRWin"`
	AvgRLoss       float64 `json:"avgRLoss"`
	ProfitFactor   float64 `json:"profitFactor"`
	Expectancy     float64 `json:"expectancy"`
	AvgDurationBars float64 `json:"avgDurationBars"`
}

// Metrics is the full computed performance summary of a run (C10).
type Metrics struct {
	TotalReturn          float64               `json:"totalReturn"`
	CAGR                 float64               `json:"cagr"`
	MaxDrawdown          float64               `json:"maxDrawdown"`
	MaxDrawdownDuration  int                   `json:"maxDrawdownDuration"`
	Sharpe               float64               `json:"sharpe"`
	Sortino              float64               `json:"sortino"`
	Calmar               float64               `json:"calmar"`
	DrawdownSeries       []float64             `json:"drawdownSeries"`
	Overall              TradeStats            `json:"overall"`
	BySyncMode           map[SyncMode]TradeStats `json:"bySyncMode"`
	MonthlyReturns       []MonthlyReturn       `json:"monthlyReturns"`
}

// MonthlyReturn is a single month-end return sample.
type MonthlyReturn struct {
	Month  time.Time `json:"month"`
	Return float64   `json:"return"`
}
