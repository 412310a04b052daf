package strategy

import (
	"fmt"
	"strings"
	"time"
)

// Candle is one OHLC bar. Candles are immutable and strictly ordered by Seq;
// the engine never mutates them.
type Candle struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
}

// EventKind identifies a trade event emitted by the engine.
type EventKind string

const (
	EnterLong  EventKind = "ENTER_LONG"
	EnterShort EventKind = "ENTER_SHORT"
	ExitLong   EventKind = "EXIT_LONG"
	ExitShort  EventKind = "EXIT_SHORT"
)

// Order sides, shared with PendingOrder and the confirm surface.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ReasonStopLoss ExitReason = "SL"
	ReasonTrailing ExitReason = "TRAIL"
	ReasonReversal ExitReason = "REVERSAL"
)

// TradeEvent is a discrete fill produced by Next. Exits carry RealizedPnL
// and an ExitReason; entries carry neither.
type TradeEvent struct {
	Kind         EventKind  `json:"kind"`
	Price        float64    `json:"price"`
	Qty          float64    `json:"qty"`
	RealizedPnL  float64    `json:"realized_pnl,omitempty"`
	BalanceAfter float64    `json:"balance_after"`
	Timestamp    time.Time  `json:"timestamp"`
	Seq          int        `json:"seq"`
	Reason       ExitReason `json:"exit_reason,omitempty"`
}

// PendingOrder describes an entry the engine has scheduled for the next open,
// exposed so a live executor can translate it into a real exchange order
// before the engine self-fills.
type PendingOrder struct {
	Side                 string  `json:"side"` // BUY or SELL
	Qty                  float64 `json:"qty"`
	StopDistanceTicks    float64 `json:"stop_distance_ticks"`
	TrailActivationTicks float64 `json:"trail_activation_ticks"`
	TrailOffsetTicks     float64 `json:"trail_offset_ticks"`
}

// AdaptiveMethod selects how the adaptive period is derived.
type AdaptiveMethod int

const (
	MethodCosine AdaptiveMethod = iota
	MethodInPhaseQuadrature
	MethodAverage
	MethodFixedPeriod
)

func (m AdaptiveMethod) String() string {
	switch m {
	case MethodCosine:
		return "cosine"
	case MethodInPhaseQuadrature:
		return "iq"
	case MethodAverage:
		return "average"
	case MethodFixedPeriod:
		return "fixed"
	default:
		return "unknown"
	}
}

// ParseAdaptiveMethod maps a config string onto the closed method enum.
func ParseAdaptiveMethod(s string) (AdaptiveMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine", "cos", "cos_ifm":
		return MethodCosine, nil
	case "iq", "i-q", "iq_ifm":
		return MethodInPhaseQuadrature, nil
	case "average", "avg":
		return MethodAverage, nil
	case "fixed", "off":
		return MethodFixedPeriod, nil
	default:
		return 0, fmt.Errorf("unknown adaptive method %q", s)
	}
}

// ExitFillPolicy selects how a stop/trailing exit is priced.
type ExitFillPolicy int

const (
	// FillStopOrGap (default): the exit detected on bar N fills on bar N+1's
	// open phase at the stop level, or at that bar's open when the open gaps
	// through the stop — whichever is worse for the position.
	FillStopOrGap ExitFillPolicy = iota
	// FillClampClose: the exit fills on the detection bar itself at the stop
	// level bounded by that bar's close (legacy behavior of an earlier
	// revision, kept for comparison runs).
	FillClampClose
)

// ParseExitFillPolicy maps a config string onto the policy enum.
func ParseExitFillPolicy(s string) (ExitFillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop_or_gap":
		return FillStopOrGap, nil
	case "clamp_close":
		return FillClampClose, nil
	default:
		return 0, fmt.Errorf("unknown exit fill policy %q", s)
	}
}

// Config holds all strategy parameters. Distances are expressed in ticks and
// converted through TickSize.
type Config struct {
	Method          AdaptiveMethod
	Threshold       float64 // crossover filter on 100*LeastError/price
	FixedSLTicks    float64 // initial stop distance
	TrailActTicks   float64 // profit needed to activate the trailing stop
	TrailOffsetTicks float64 // trailing distance once active
	RiskFraction    float64 // fraction of balance risked per trade
	TickSize        float64
	InitialCapital  float64
	MaxLots         float64
	DefaultPeriod   int // used by MethodFixedPeriod
	MinPeriod       int // floor for the adaptive period; 0 permits alpha=2
	WarmupBars      int // bars with full recursion but no order scheduling
	FillPolicy      ExitFillPolicy
}

// DefaultConfig mirrors the reference parameter set for ETH-USDT 30m bars.
func DefaultConfig() Config {
	return Config{
		Method:           MethodCosine,
		Threshold:        0,
		FixedSLTicks:     2000,
		TrailActTicks:    55,
		TrailOffsetTicks: 15,
		RiskFraction:     0.01,
		TickSize:         0.01,
		InitialCapital:   1000,
		MaxLots:          100,
		DefaultPeriod:    20,
		MinPeriod:        1,
		WarmupBars:       0,
		FillPolicy:       FillStopOrGap,
	}
}

// sane reports whether position sizing is possible. A degenerate tick or
// stop distance degrades to "no trading" (qty 0) instead of failing the run.
func (c Config) sane() bool {
	return c.TickSize > 0 && c.FixedSLTicks > 0
}
