package strategy

import (
	"math"
	"reflect"
	"testing"
	"time"
)

var testBase = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// testCfg blocks organic crossover signals with an unreachable threshold so
// the state machine can be driven by injected raw signals alone.
func testCfg() Config {
	cfg := DefaultConfig()
	cfg.Threshold = 1e6
	return cfg
}

type feeder struct {
	s   *AZLEMA
	seq int
}

func (f *feeder) bar(o, h, l, c float64) []TradeEvent {
	f.seq++
	return f.s.Next(Candle{
		Open: o, High: h, Low: l, Close: c,
		Timestamp: testBase.Add(time.Duration(f.seq) * 30 * time.Minute),
		Seq:       f.seq,
	})
}

func (f *feeder) flat(px float64) []TradeEvent {
	return f.bar(px, px, px, px)
}

// openLong drives the engine into a long position at price 100 with the
// default half-lot sizing.
func openLong(t *testing.T, f *feeder) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if ev := f.flat(100); len(ev) != 0 {
			t.Fatalf("unexpected events during flat warm bars: %+v", ev)
		}
	}
	f.s.rawBuyPrev = true // crossover observed on the bar just processed
	if ev := f.flat(100); len(ev) != 0 {
		t.Fatalf("latch bar produced events: %+v", ev)
	}
	ev := f.flat(100)
	if len(ev) != 1 || ev[0].Kind != EnterLong {
		t.Fatalf("expected a single ENTER_LONG, got %+v", ev)
	}
	if f.s.PositionSize() != 0.5 {
		t.Fatalf("position size = %v, want 0.5", f.s.PositionSize())
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSignalPropagationDelay(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	for i := 0; i < 5; i++ {
		if ev := f.flat(100); len(ev) != 0 {
			t.Fatalf("flat bar %d produced events: %+v", i, ev)
		}
	}
	if po := f.s.PendingOrders(); len(po) != 0 {
		t.Fatalf("pending orders before any signal: %+v", po)
	}

	// raw signal on bar N: latched and consumed on N+1, filled on N+2's open
	f.s.rawBuyPrev = true
	if ev := f.flat(100); len(ev) != 0 {
		t.Fatalf("bar N+1 produced events: %+v", ev)
	}
	po := f.s.PendingOrders()
	if len(po) != 1 || po[0].Side != SideBuy {
		t.Fatalf("pending orders after consumption = %+v, want one BUY", po)
	}
	if po[0].Qty != 0.5 {
		t.Errorf("pending qty = %v, want 0.5", po[0].Qty)
	}
	if po[0].StopDistanceTicks != 2000 || po[0].TrailOffsetTicks != 15 {
		t.Errorf("pending order stop params = %+v", po[0])
	}

	ev := f.flat(100)
	if len(ev) != 1 {
		t.Fatalf("bar N+2 events = %+v, want one", ev)
	}
	if ev[0].Kind != EnterLong || ev[0].Price != 100 || ev[0].Qty != 0.5 {
		t.Fatalf("entry event = %+v", ev[0])
	}
	if f.s.EntryPrice() != 100 {
		t.Errorf("entry price = %v, want 100", f.s.EntryPrice())
	}
}

func TestReversalEmitsExitThenEnter(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	openLong(t, f)

	f.s.rawSellPrev = true
	if ev := f.flat(100); len(ev) != 0 {
		t.Fatalf("latch bar produced events: %+v", ev)
	}
	ev := f.flat(100)
	if len(ev) != 2 {
		t.Fatalf("reversal events = %+v, want exit then enter", ev)
	}
	if ev[0].Kind != ExitLong || ev[0].Reason != ReasonReversal {
		t.Fatalf("first event = %+v, want EXIT_LONG/REVERSAL", ev[0])
	}
	if ev[1].Kind != EnterShort {
		t.Fatalf("second event = %+v, want ENTER_SHORT", ev[1])
	}
	if ev[0].Price != ev[1].Price || !ev[0].Timestamp.Equal(ev[1].Timestamp) {
		t.Errorf("reversal legs differ in price or time: %+v vs %+v", ev[0], ev[1])
	}
	if !approx(ev[0].RealizedPnL, 0) {
		t.Errorf("flat reversal pnl = %v, want 0", ev[0].RealizedPnL)
	}
	if f.s.PositionSize() != -0.5 {
		t.Errorf("position after reversal = %v, want -0.5", f.s.PositionSize())
	}
}

func TestSellWinsWhenFlatAndBothPending(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	f.flat(100)
	f.s.pendingBuy = true
	f.s.pendingSell = true
	if ev := f.flat(100); len(ev) != 0 {
		t.Fatalf("consumption bar produced events: %+v", ev)
	}
	po := f.s.PendingOrders()
	if len(po) != 1 || po[0].Side != SideSell {
		t.Fatalf("scheduled orders = %+v, want a single SELL", po)
	}
	ev := f.flat(100)
	if len(ev) != 1 || ev[0].Kind != EnterShort {
		t.Fatalf("execution events = %+v, want a single ENTER_SHORT", ev)
	}
}

func TestStopLossFillsAtStopLevel(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	openLong(t, f)

	// stop sits 2000 ticks below entry at 80; the touch schedules the exit
	if ev := f.bar(100, 100, 79, 85); len(ev) != 0 {
		t.Fatalf("touch bar produced events: %+v", ev)
	}
	ev := f.bar(85, 85, 85, 85)
	if len(ev) != 1 || ev[0].Kind != ExitLong || ev[0].Reason != ReasonStopLoss {
		t.Fatalf("exit events = %+v", ev)
	}
	if !approx(ev[0].Price, 80) {
		t.Errorf("exit price = %v, want stop level 80", ev[0].Price)
	}
	if !approx(ev[0].RealizedPnL, -10) {
		t.Errorf("realized pnl = %v, want -10", ev[0].RealizedPnL)
	}
	if !approx(f.s.Balance(), 990) {
		t.Errorf("balance = %v, want 990", f.s.Balance())
	}
}

func TestStopLossGapFillsAtOpen(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	openLong(t, f)

	if ev := f.bar(100, 100, 79, 85); len(ev) != 0 {
		t.Fatalf("touch bar produced events: %+v", ev)
	}
	// next open gaps through the stop: fill at the open, the worse price
	ev := f.bar(70, 70, 70, 70)
	if len(ev) != 1 || !approx(ev[0].Price, 70) {
		t.Fatalf("gap exit events = %+v, want fill at 70", ev)
	}
	if !approx(f.s.Balance(), 985) {
		t.Errorf("balance = %v, want 985", f.s.Balance())
	}
}

func TestTrailingStopActivationAndExit(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	openLong(t, f)

	// 60 ticks of favorable excursion activates the 55-tick trail
	if ev := f.bar(100, 100.6, 100.5, 100.5); len(ev) != 0 {
		t.Fatalf("activation bar produced events: %+v", ev)
	}
	if !f.s.trailOn {
		t.Fatal("trailing not active after 60 ticks of profit")
	}
	// extremum must not retreat on a lower bar
	if ev := f.bar(100.5, 100.5, 100.3, 100.4); len(ev) != 0 {
		t.Fatalf("touch bar produced events: %+v", ev)
	}
	if !approx(f.s.extremum, 100.6) {
		t.Errorf("extremum = %v, want 100.6 held", f.s.extremum)
	}
	if !f.s.trailOn {
		t.Error("trailing deactivated while position open")
	}

	ev := f.bar(100.5, 100.5, 100.5, 100.5)
	if len(ev) != 1 || ev[0].Kind != ExitLong || ev[0].Reason != ReasonTrailing {
		t.Fatalf("trail exit events = %+v", ev)
	}
	if !approx(ev[0].Price, 100.45) {
		t.Errorf("trail exit price = %v, want 100.45", ev[0].Price)
	}
	if !approx(f.s.Balance(), 1000.225) {
		t.Errorf("balance = %v, want 1000.225", f.s.Balance())
	}
}

func TestClampClosePolicyFillsSameBar(t *testing.T) {
	cfg := testCfg()
	cfg.FillPolicy = FillClampClose
	f := &feeder{s: New(cfg)}
	openLong(t, f)

	ev := f.bar(100, 100, 79, 85)
	if len(ev) != 1 || ev[0].Kind != ExitLong {
		t.Fatalf("clamp exit events = %+v, want same-bar EXIT_LONG", ev)
	}
	if !approx(ev[0].Price, 80) {
		t.Errorf("clamp exit price = %v, want min(close, stop) = 80", ev[0].Price)
	}
	if ev[0].Seq != f.seq {
		t.Errorf("clamp exit seq = %d, want detection bar %d", ev[0].Seq, f.seq)
	}
}

func TestWarmupSchedulesNothing(t *testing.T) {
	cfg := testCfg()
	cfg.WarmupBars = 10
	f := &feeder{s: New(cfg)}

	for i := 0; i < 3; i++ {
		f.flat(100)
	}
	f.s.rawBuyPrev = true
	for f.seq < 10 {
		if ev := f.flat(100); len(ev) != 0 {
			t.Fatalf("warmup bar %d produced events: %+v", f.seq, ev)
		}
		if po := f.s.PendingOrders(); len(po) != 0 {
			t.Fatalf("warmup bar %d scheduled orders: %+v", f.seq, po)
		}
	}
	if !f.s.pendingBuy {
		t.Fatal("pending flag not latched during warmup")
	}

	// first post-warmup bar consumes the pending, next bar fills
	if ev := f.flat(100); len(ev) != 0 {
		t.Fatalf("first trading bar produced events: %+v", ev)
	}
	if po := f.s.PendingOrders(); len(po) != 1 {
		t.Fatalf("scheduled orders after warmup = %+v", po)
	}
	ev := f.flat(100)
	if len(ev) != 1 || ev[0].Kind != EnterLong {
		t.Fatalf("post-warmup entry events = %+v", ev)
	}
}

func TestWarmupDoesNotAlterIndicators(t *testing.T) {
	cfgA := DefaultConfig()
	cfgA.WarmupBars = 50
	cfgB := DefaultConfig()
	a, b := New(cfgA), New(cfgB)

	for i := 1; i <= 150; i++ {
		px := 100 + 6*math.Sin(2*math.Pi*float64(i)/25)
		c := Candle{Open: px, High: px, Low: px, Close: px,
			Timestamp: testBase.Add(time.Duration(i) * 30 * time.Minute), Seq: i}
		a.Next(c)
		b.Next(c)
	}
	if a.Period() != b.Period() {
		t.Errorf("period diverged: %d vs %d", a.Period(), b.Period())
	}
	if a.EC() != b.EC() || a.EMA() != b.EMA() {
		t.Errorf("filter state diverged: ec %v/%v ema %v/%v", a.EC(), b.EC(), a.EMA(), b.EMA())
	}
	if a.LeastError() != b.LeastError() {
		t.Errorf("least error diverged: %v vs %v", a.LeastError(), b.LeastError())
	}
}

func synthCandles(n int) []Candle {
	out := make([]Candle, 0, n)
	prev := 100.0
	for i := 1; i <= n; i++ {
		phase := float64(i%40) / 40
		px := 100 + 8*(2*math.Abs(phase-0.5)) + 0.3*math.Sin(float64(i)*7)
		hi := math.Max(prev, px) + 0.2
		lo := math.Min(prev, px) - 0.2
		out = append(out, Candle{
			Open: prev, High: hi, Low: lo, Close: px,
			Timestamp: testBase.Add(time.Duration(i) * 30 * time.Minute),
			Seq:       i,
		})
		prev = px
	}
	return out
}

func TestDeterministicReplay(t *testing.T) {
	a, b := New(DefaultConfig()), New(DefaultConfig())
	candles := synthCandles(300)

	var evA, evB []TradeEvent
	for _, c := range candles {
		evA = append(evA, a.Next(c)...)
		evB = append(evB, b.Next(c)...)
	}
	if !reflect.DeepEqual(evA, evB) {
		t.Fatal("identical inputs produced different event streams")
	}
	if a.Balance() != b.Balance() {
		t.Fatalf("final balances diverged: %v vs %v", a.Balance(), b.Balance())
	}
}

func TestSawtoothEndToEnd(t *testing.T) {
	s := New(DefaultConfig())
	candles := synthCandles(300)

	var events []TradeEvent
	for _, c := range candles {
		events = append(events, s.Next(c)...)
	}

	open := false
	var pnlSum float64
	for i, ev := range events {
		switch ev.Kind {
		case EnterLong, EnterShort:
			if open {
				t.Fatalf("event %d: entry while a position is open: %+v", i, ev)
			}
			open = true
		case ExitLong, ExitShort:
			if !open {
				t.Fatalf("event %d: exit while flat: %+v", i, ev)
			}
			open = false
			pnlSum += ev.RealizedPnL
			switch ev.Reason {
			case ReasonStopLoss, ReasonTrailing, ReasonReversal:
			default:
				t.Fatalf("event %d: unexpected exit reason %q", i, ev.Reason)
			}
		}
	}
	if s.Balance() <= 0 {
		t.Errorf("final balance = %v, want > 0", s.Balance())
	}
	if math.Abs(s.Balance()-(1000+pnlSum)) > 1e-6 {
		t.Errorf("balance %v does not equal initial capital plus realized pnl %v",
			s.Balance(), 1000+pnlSum)
	}
}

func TestConfirmFillOverridesPosition(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	f.flat(100)

	ts := testBase.Add(time.Hour)
	f.s.ConfirmFill(SideBuy, 101.5, 2, ts)
	if f.s.PositionSize() != 2 || f.s.EntryPrice() != 101.5 {
		t.Fatalf("position = %v @ %v, want 2 @ 101.5", f.s.PositionSize(), f.s.EntryPrice())
	}

	f.s.ConfirmExit(SideBuy, 106.5, 2, ts.Add(time.Hour), ReasonTrailing)
	if f.s.PositionSize() != 0 {
		t.Fatalf("position after confirm exit = %v, want flat", f.s.PositionSize())
	}
	if !approx(f.s.Balance(), 1010) {
		t.Errorf("balance = %v, want 1010", f.s.Balance())
	}
	if !approx(f.s.NetProfit(), 10) {
		t.Errorf("net profit = %v, want 10", f.s.NetProfit())
	}
}

func TestConfirmExitRebasesSimulatedFill(t *testing.T) {
	f := &feeder{s: New(testCfg())}
	f.flat(100)

	ts := testBase.Add(time.Hour)
	f.s.ConfirmFill(SideBuy, 100, 2, ts)
	f.s.closeAt(101, ts, f.seq, ReasonStopLoss) // engine self-filled the exit
	if !approx(f.s.Balance(), 1002) {
		t.Fatalf("balance after simulated exit = %v, want 1002", f.s.Balance())
	}

	f.s.ConfirmExit(SideBuy, 102, 2, ts, ReasonStopLoss)
	if !approx(f.s.Balance(), 1004) {
		t.Errorf("rebased balance = %v, want 1004", f.s.Balance())
	}
	// a second report has nothing left to rebase against
	f.s.ConfirmExit(SideBuy, 110, 2, ts, ReasonStopLoss)
	if !approx(f.s.Balance(), 1004) {
		t.Errorf("balance after duplicate confirm = %v, want 1004", f.s.Balance())
	}
}

func TestDegenerateSizingDisablesTrading(t *testing.T) {
	cfg := testCfg()
	cfg.TickSize = 0
	f := &feeder{s: New(cfg)}

	f.flat(100)
	f.s.pendingBuy = true
	f.flat(100)
	ev := f.flat(100)
	if len(ev) != 0 {
		t.Fatalf("degenerate config produced events: %+v", ev)
	}
	if f.s.PositionSize() != 0 {
		t.Errorf("position = %v, want 0", f.s.PositionSize())
	}
}

func TestStateSnapshotResumesReplay(t *testing.T) {
	cfg := DefaultConfig()
	a := New(cfg)
	candles := synthCandles(120)

	for _, c := range candles[:60] {
		a.Next(c)
	}
	raw, err := a.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	b := New(cfg)
	if err := b.SetState(raw); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	var evA, evB []TradeEvent
	for _, c := range candles[60:] {
		evA = append(evA, a.Next(c)...)
		evB = append(evB, b.Next(c)...)
	}
	if !reflect.DeepEqual(evA, evB) {
		t.Fatal("restored engine diverged from the original")
	}
	if a.Balance() != b.Balance() || a.EC() != b.EC() {
		t.Fatalf("restored state mismatch: balance %v/%v ec %v/%v",
			a.Balance(), b.Balance(), a.EC(), b.EC())
	}
}
