package strategy

import (
	"math"
	"time"
)

// AZLEMA is the adaptive zero-lag EMA strategy engine. One instance holds one
// position at most, processes candles strictly in sequence order, and is
// deterministic: identical config plus identical candle stream reproduces the
// identical event stream. Not safe for concurrent use; run one goroutine per
// instance.
//
// Signals follow evaluate-on-close, execute-on-next-open semantics with a
// one-bar propagation delay: a crossover on bar N latches a pending flag on
// bar N+1, and the entry it schedules fills at bar N+2's open.
type AZLEMA struct {
	cfg Config

	cos *cosineIFM
	iq  *iqIFM
	zl  zeroLagFilter

	period  int
	bars    int
	lastSeq int

	rawBuyPrev  bool
	rawSellPrev bool
	pendingBuy  bool
	pendingSell bool

	entryLongScheduled  bool
	entryShortScheduled bool
	exitScheduled       bool
	exitStop            float64
	exitReason          ExitReason

	size      float64 // signed lots, >0 long, <0 short
	entry     float64
	extremum  float64
	trailOn   bool
	stopLevel float64

	balance   float64
	netProfit float64

	lastExit *exitRecord
}

// exitRecord remembers the most recent simulated exit so a live collaborator
// can re-price it with the real fill via ConfirmExit.
type exitRecord struct {
	Side  string  `json:"side"` // entry side of the position that was exited
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

func New(cfg Config) *AZLEMA {
	s := &AZLEMA{
		cfg:     cfg,
		period:  cfg.DefaultPeriod,
		balance: cfg.InitialCapital,
	}
	switch cfg.Method {
	case MethodCosine:
		s.cos = newCosineIFM()
	case MethodInPhaseQuadrature:
		s.iq = newIQIFM()
	case MethodAverage:
		s.cos = newCosineIFM()
		s.iq = newIQIFM()
	}
	return s
}

// Next processes one closed candle and returns the trade events it produced.
// Candles must arrive in strictly ascending Seq order.
func (s *AZLEMA) Next(c Candle) []TradeEvent {
	s.bars++
	s.lastSeq = c.Seq
	warm := s.bars <= s.cfg.WarmupBars

	var events []TradeEvent

	// Open phase: orders scheduled on the prior bar fill at this open,
	// exits before entries.
	if s.exitScheduled {
		s.exitScheduled = false
		if s.size != 0 {
			price := s.exitStop
			if s.size > 0 && c.Open < price {
				price = c.Open // gapped through the stop
			}
			if s.size < 0 && c.Open > price {
				price = c.Open
			}
			events = append(events, s.closeAt(price, c.Timestamp, c.Seq, s.exitReason))
		}
	}
	if s.entryLongScheduled || s.entryShortScheduled {
		long := s.entryLongScheduled
		s.entryLongScheduled = false
		s.entryShortScheduled = false
		if long {
			if s.size < 0 {
				events = append(events, s.closeAt(c.Open, c.Timestamp, c.Seq, ReasonReversal))
			}
			if s.size == 0 {
				if ev, ok := s.openAt(SideBuy, c); ok {
					events = append(events, ev)
				}
			}
		} else {
			if s.size > 0 {
				events = append(events, s.closeAt(c.Open, c.Timestamp, c.Seq, ReasonReversal))
			}
			if s.size == 0 {
				if ev, ok := s.openAt(SideSell, c); ok {
					events = append(events, ev)
				}
			}
		}
	}

	// Close phase: indicators.
	src := c.Close
	s.period = s.adaptivePeriod(src)
	ecPrev, emaPrev := s.zl.EC, s.zl.EMA
	seeded := s.zl.Seeded
	ec, ema := s.zl.update(src, s.period)
	if !seeded {
		// no prior bar to cross against
		ecPrev, emaPrev = ec, ema
	}

	// Latch last bar's raw signals, then compute this bar's.
	if s.rawBuyPrev {
		s.pendingBuy = true
	}
	if s.rawSellPrev {
		s.pendingSell = true
	}
	crossover := ecPrev <= emaPrev && ec > ema
	crossunder := ecPrev >= emaPrev && ec < ema
	errPct := 0.0
	if src != 0 {
		errPct = 100 * s.zl.LeastError / src
	}
	s.rawBuyPrev = crossover && errPct > s.cfg.Threshold
	s.rawSellPrev = crossunder && errPct > s.cfg.Threshold

	// Trailing stop / stop loss while a position is open.
	if s.size != 0 {
		if done := s.updateTrailing(c, &events); done {
			// clamp-to-close fills on the detection bar and skips entry
			// scheduling for it, matching the earlier revision it emulates
			return events
		}
	}

	// Pending consumption: schedule entries for the next open. Warmup bars
	// latch pendings above but schedule nothing.
	if !warm {
		if s.pendingBuy && s.size <= 0 {
			s.pendingBuy = false
			s.entryLongScheduled = true
		}
		if s.pendingSell && s.size >= 0 {
			s.pendingSell = false
			s.entryShortScheduled = true
			// last evaluated wins when both consumed while flat
			s.entryLongScheduled = false
		}
	}

	return events
}

// updateTrailing ratchets the favorable extremum, activates the trailing stop
// at the configured profit, and handles a stop touch per the fill policy.
// Returns true when the position closed on this bar (clamp policy only).
func (s *AZLEMA) updateTrailing(c Candle, events *[]TradeEvent) bool {
	tick := s.cfg.TickSize
	if s.size > 0 {
		if c.High > s.extremum {
			s.extremum = c.High
		}
		if !s.trailOn && (s.extremum-s.entry)/tick >= s.cfg.TrailActTicks {
			s.trailOn = true
		}
		if s.trailOn {
			s.stopLevel = s.extremum - s.cfg.TrailOffsetTicks*tick
		} else {
			s.stopLevel = s.entry - s.cfg.FixedSLTicks*tick
		}
		if c.Low <= s.stopLevel {
			return s.stopTouched(math.Min(c.Close, s.stopLevel), c, events)
		}
	} else {
		if c.Low < s.extremum {
			s.extremum = c.Low
		}
		if !s.trailOn && (s.entry-s.extremum)/tick >= s.cfg.TrailActTicks {
			s.trailOn = true
		}
		if s.trailOn {
			s.stopLevel = s.extremum + s.cfg.TrailOffsetTicks*tick
		} else {
			s.stopLevel = s.entry + s.cfg.FixedSLTicks*tick
		}
		if c.High >= s.stopLevel {
			return s.stopTouched(math.Max(c.Close, s.stopLevel), c, events)
		}
	}
	return false
}

func (s *AZLEMA) stopTouched(clampPrice float64, c Candle, events *[]TradeEvent) bool {
	reason := ReasonStopLoss
	if s.trailOn {
		reason = ReasonTrailing
	}
	if s.cfg.FillPolicy == FillClampClose {
		*events = append(*events, s.closeAt(clampPrice, c.Timestamp, c.Seq, reason))
		return true
	}
	s.exitScheduled = true
	s.exitStop = s.stopLevel
	s.exitReason = reason
	return false
}

// openAt fills a scheduled entry at the bar's open. Degenerate sizing yields
// qty 0 and the entry is dropped.
func (s *AZLEMA) openAt(side string, c Candle) (TradeEvent, bool) {
	qty := s.lots()
	if qty <= 0 {
		return TradeEvent{}, false
	}
	kind := EnterLong
	s.size = qty
	if side == SideSell {
		kind = EnterShort
		s.size = -qty
	}
	s.entry = c.Open
	s.extremum = c.Open
	s.trailOn = false
	if side == SideBuy {
		s.stopLevel = s.entry - s.cfg.FixedSLTicks*s.cfg.TickSize
	} else {
		s.stopLevel = s.entry + s.cfg.FixedSLTicks*s.cfg.TickSize
	}
	return TradeEvent{
		Kind:         kind,
		Price:        c.Open,
		Qty:          qty,
		BalanceAfter: s.balance,
		Timestamp:    c.Timestamp,
		Seq:          c.Seq,
	}, true
}

func (s *AZLEMA) closeAt(price float64, ts time.Time, seq int, reason ExitReason) TradeEvent {
	qty := math.Abs(s.size)
	var pnl float64
	kind := ExitLong
	side := SideBuy
	if s.size > 0 {
		pnl = (price - s.entry) * qty
	} else {
		pnl = (s.entry - price) * qty
		kind = ExitShort
		side = SideSell
	}
	s.balance += pnl
	s.netProfit += pnl
	s.lastExit = &exitRecord{Side: side, Price: price, Qty: qty}

	s.size = 0
	s.entry = 0
	s.extremum = 0
	s.trailOn = false
	s.stopLevel = 0

	return TradeEvent{
		Kind:         kind,
		Price:        price,
		Qty:          qty,
		RealizedPnL:  pnl,
		BalanceAfter: s.balance,
		Timestamp:    ts,
		Seq:          seq,
		Reason:       reason,
	}
}

// lots sizes the next entry from the current balance. Degenerate config
// (non-positive tick or stop distance) degrades to no trading.
func (s *AZLEMA) lots() float64 {
	if !s.cfg.sane() {
		return 0
	}
	lots := s.cfg.RiskFraction * s.balance / (s.cfg.FixedSLTicks * s.cfg.TickSize)
	if lots > s.cfg.MaxLots {
		lots = s.cfg.MaxLots
	}
	if lots < 0 {
		return 0
	}
	return lots
}

func (s *AZLEMA) adaptivePeriod(src float64) int {
	var lenC, lenIQ float64
	if s.cos != nil {
		lenC = s.cos.update(src)
	}
	if s.iq != nil {
		lenIQ = s.iq.update(src)
	}
	p := s.cfg.DefaultPeriod
	switch s.cfg.Method {
	case MethodCosine:
		p = int(math.Round(lenC))
	case MethodInPhaseQuadrature:
		p = int(math.Round(lenIQ))
	case MethodAverage:
		p = int(math.Round((lenC + lenIQ) / 2))
	}
	if p < s.cfg.MinPeriod {
		p = s.cfg.MinPeriod
	}
	return p
}

// PendingOrders exposes entries scheduled for the next open so a live
// executor can place real orders before the engine self-fills. Quantity is
// sized from the current balance, the same balance the self-fill will use
// unless an exit fills at that open first.
func (s *AZLEMA) PendingOrders() []PendingOrder {
	var out []PendingOrder
	qty := s.lots()
	if s.entryLongScheduled {
		out = append(out, s.pendingOrder(SideBuy, qty))
	}
	if s.entryShortScheduled {
		out = append(out, s.pendingOrder(SideSell, qty))
	}
	return out
}

func (s *AZLEMA) pendingOrder(side string, qty float64) PendingOrder {
	return PendingOrder{
		Side:                 side,
		Qty:                  qty,
		StopDistanceTicks:    s.cfg.FixedSLTicks,
		TrailActivationTicks: s.cfg.TrailActTicks,
		TrailOffsetTicks:     s.cfg.TrailOffsetTicks,
	}
}

// ConfirmFill force-sets the position from a real exchange fill, overriding
// the simulated entry. side is the entry side (BUY opens long). The pending
// and scheduled state for that side is consumed.
func (s *AZLEMA) ConfirmFill(side string, price, qty float64, ts time.Time) {
	if side == SideBuy {
		s.size = qty
		s.stopLevel = price - s.cfg.FixedSLTicks*s.cfg.TickSize
		s.pendingBuy = false
		s.entryLongScheduled = false
	} else {
		s.size = -qty
		s.stopLevel = price + s.cfg.FixedSLTicks*s.cfg.TickSize
		s.pendingSell = false
		s.entryShortScheduled = false
	}
	s.entry = price
	s.extremum = price
	s.trailOn = false
	_ = ts
}

// ConfirmExit reports the real exit fill for a position. side is the entry
// side of the exited position. If the engine still holds it, the position is
// closed at the reported price; if the engine already self-filled the exit,
// the balance is re-based by the difference between the real and simulated
// prices.
func (s *AZLEMA) ConfirmExit(side string, price, qty float64, ts time.Time, reason ExitReason) {
	stillOpen := (side == SideBuy && s.size > 0) || (side == SideSell && s.size < 0)
	if stillOpen {
		s.exitScheduled = false
		s.closeAt(price, ts, s.lastSeq, reason)
		return
	}
	if s.lastExit == nil || s.lastExit.Side != side {
		return
	}
	var delta float64
	if side == SideBuy {
		delta = (price - s.lastExit.Price) * qty
	} else {
		delta = (s.lastExit.Price - price) * qty
	}
	s.balance += delta
	s.netProfit += delta
	s.lastExit = nil
}

// Reset clears position and order state without touching the indicator
// recursion. Used by startup reconciliation when the exchange is flat but a
// restored snapshot holds a position.
func (s *AZLEMA) Reset() {
	s.size = 0
	s.entry = 0
	s.extremum = 0
	s.trailOn = false
	s.stopLevel = 0
	s.exitScheduled = false
	s.entryLongScheduled = false
	s.entryShortScheduled = false
}

func (s *AZLEMA) Period() int          { return s.period }
func (s *AZLEMA) EC() float64          { return s.zl.EC }
func (s *AZLEMA) EMA() float64         { return s.zl.EMA }
func (s *AZLEMA) LeastError() float64  { return s.zl.LeastError }
func (s *AZLEMA) BestGain() float64    { return s.zl.BestGain }
func (s *AZLEMA) PositionSize() float64 { return s.size }
func (s *AZLEMA) EntryPrice() float64  { return s.entry }
func (s *AZLEMA) Balance() float64     { return s.balance }
func (s *AZLEMA) NetProfit() float64   { return s.netProfit }
func (s *AZLEMA) Bars() int            { return s.bars }
func (s *AZLEMA) Config() Config       { return s.cfg }
