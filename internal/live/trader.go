package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"azlema-core/internal/collector"
	"azlema-core/internal/events"
	"azlema-core/internal/strategy"
	"azlema-core/pkg/db"
	"azlema-core/pkg/okx"
)

var (
	ErrAlreadyRunning = errors.New("trader already running")
	ErrNotRunning     = errors.New("trader not running")
)

// graceDelay is how long after a bar closes before the closed candle is
// requested, giving the exchange time to finalize it.
const graceDelay = 5 * time.Second

// Trader drives the strategy engine against the exchange: it replays
// history to warm the indicators, reconciles the engine position with the
// real account, then steps the engine once per closed bar and mirrors its
// orders as live market orders.
type Trader struct {
	strat   *strategy.AZLEMA
	client  *okx.Client
	coll    *collector.Collector
	bus     *events.Bus
	queries *db.Queries
	runID   string
	symbol  string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	stratMu     sync.Mutex
	pnlBaseline float64
	seq         int
	lastBarTs   time.Time
}

func NewTrader(strat *strategy.AZLEMA, client *okx.Client, coll *collector.Collector, bus *events.Bus, queries *db.Queries, runID string) *Trader {
	return &Trader{
		strat:   strat,
		client:  client,
		coll:    coll,
		bus:     bus,
		queries: queries,
		runID:   runID,
		symbol:  coll.Symbol(),
	}
}

// Start launches the trading loop in the background.
func (t *Trader) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	go t.run(ctx)
	return nil
}

// Stop cancels the trading loop and waits for it to wind down.
func (t *Trader) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Status reports the current engine snapshot for the dashboard.
func (t *Trader) Status() events.StatusPayload {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()

	t.stratMu.Lock()
	defer t.stratMu.Unlock()
	return events.StatusPayload{
		Running:      running,
		Mode:         "live",
		Symbol:       t.symbol,
		Period:       t.strat.Period(),
		EC:           t.strat.EC(),
		EMA:          t.strat.EMA(),
		PositionSize: t.strat.PositionSize(),
		EntryPrice:   t.strat.EntryPrice(),
		Balance:      t.strat.Balance(),
		NetProfit:    t.strat.NetProfit() - t.pnlBaseline,
		Time:         time.Now().UTC(),
	}
}

func (t *Trader) run(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.running = false
		close(t.done)
		t.mu.Unlock()
		t.publishStatus()
	}()

	t.logf("INFO", "live trader starting | %s %s", t.symbol, t.coll.Timeframe())

	balance, err := t.client.Setup(ctx)
	if err != nil {
		t.logf("ERROR", "exchange setup failed: %v", err)
		return
	}
	t.logf("INFO", "✅ exchange ready | balance %.2f USDT", balance)

	if err := t.warmup(ctx); err != nil {
		t.logf("ERROR", "warmup failed: %v", err)
		return
	}
	if err := t.reconcile(ctx); err != nil {
		t.logf("WARN", "reconciliation failed: %v", err)
	}
	t.publishStatus()

	step := t.coll.BarDuration()
	for {
		next := time.Now().UTC().Truncate(step).Add(step).Add(graceDelay)
		select {
		case <-ctx.Done():
			t.logf("INFO", "live trader stopped")
			return
		case <-time.After(time.Until(next)):
		}
		t.step(ctx)
	}
}

// warmup replays history through the engine so the adaptive indicators are
// primed before the first live bar. A stored snapshot short-circuits the
// replay after a restart.
func (t *Trader) warmup(ctx context.Context) error {
	if t.queries != nil {
		if state, err := t.queries.LoadStrategyState(ctx, t.runID); err == nil {
			t.stratMu.Lock()
			err = t.strat.SetState(state)
			t.stratMu.Unlock()
			if err == nil {
				t.seq = t.strat.Bars()
				t.pnlBaseline = t.strat.NetProfit()
				// bars up to the last fully closed one are assumed seen, so a
				// restart never feeds the recursion the same bar twice
				step := t.coll.BarDuration()
				t.lastBarTs = time.Now().UTC().Truncate(step).Add(-step)
				t.logf("INFO", "resumed from snapshot | %d bars seen", t.strat.Bars())
				return nil
			}
			t.logf("WARN", "snapshot restore failed, replaying history: %v", err)
		}
	}

	history, err := t.coll.Collect(ctx)
	if err != nil {
		return err
	}
	t.stratMu.Lock()
	for _, c := range history {
		t.strat.Next(c)
	}
	t.seq = len(history)
	if len(history) > 0 {
		t.lastBarTs = history[len(history)-1].Timestamp
	}
	t.pnlBaseline = t.strat.NetProfit()
	t.stratMu.Unlock()
	t.logf("INFO", "warmup complete | %d bars | period %d", len(history), t.strat.Period())
	return nil
}

// reconcile aligns the engine position with the exchange account. The
// exchange is the source of truth.
func (t *Trader) reconcile(ctx context.Context) error {
	pos, err := t.client.Position(ctx)
	if err != nil {
		return err
	}
	ctVal, err := t.client.ContractValue(ctx)
	if err != nil {
		return err
	}

	t.stratMu.Lock()
	defer t.stratMu.Unlock()
	engine := t.strat.PositionSize()

	switch {
	case pos == nil && engine != 0:
		t.logf("WARN", "engine holds %.4f but exchange is flat, resetting", engine)
		t.strat.Reset()
	case pos != nil:
		qty := pos.Size * ctVal
		side := strategy.SideBuy
		if pos.Side == "short" {
			side = strategy.SideSell
		}
		engineLong := engine > 0
		if engine == 0 || engineLong != (side == strategy.SideBuy) {
			if engine != 0 {
				t.logf("WARN", "engine side disagrees with exchange, adopting exchange position")
				t.strat.Reset()
			}
			t.strat.ConfirmFill(side, pos.AvgPx, qty, time.Now().UTC())
			t.logf("INFO", "adopted exchange position | %s %.4f @ %.2f", side, qty, pos.AvgPx)
		} else if math.Abs(math.Abs(engine)-qty) > 1e-9 {
			t.strat.ConfirmFill(side, pos.AvgPx, qty, time.Now().UTC())
			t.logf("INFO", "resized engine position to exchange | %s %.4f @ %.2f", side, qty, pos.AvgPx)
		}
	}
	return nil
}

// step processes one closed bar: feed it to the engine, mirror the engine's
// exits and scheduled entries as real orders, persist, publish.
func (t *Trader) step(ctx context.Context) {
	c, err := t.coll.Latest(ctx)
	if err != nil {
		t.logf("WARN", "candle fetch failed, retrying next bar: %v", err)
		return
	}
	if !c.Timestamp.After(t.lastBarTs) {
		return
	}
	t.lastBarTs = c.Timestamp
	t.seq++
	c.Seq = t.seq

	t.stratMu.Lock()
	evs := t.strat.Next(c)
	t.stratMu.Unlock()

	t.bus.Publish(events.TopicCandle, c)

	for _, ev := range evs {
		switch ev.Kind {
		case strategy.ExitLong:
			t.executeExit(ctx, strategy.SideBuy, ev)
		case strategy.ExitShort:
			t.executeExit(ctx, strategy.SideSell, ev)
		case strategy.EnterLong:
			t.executeEntry(ctx, strategy.SideBuy, ev.Qty, ev.Price)
		case strategy.EnterShort:
			t.executeEntry(ctx, strategy.SideSell, ev.Qty, ev.Price)
		}
		t.recordTrade(ctx, ev)
	}

	t.stratMu.Lock()
	pending := t.strat.PendingOrders()
	t.stratMu.Unlock()
	for _, po := range pending {
		t.executeEntry(ctx, po.Side, po.Qty, 0)
	}

	t.snapshot(ctx)
	t.publishStatus()
}

// executeExit closes the real position matching an engine exit event and
// re-bases the engine to the actual fill. side is the entry side of the
// exited position.
func (t *Trader) executeExit(ctx context.Context, side string, ev strategy.TradeEvent) {
	var ordID string
	var err error
	if side == strategy.SideBuy {
		ordID, err = t.client.CloseLong(ctx, ev.Qty)
	} else {
		ordID, err = t.client.CloseShort(ctx, ev.Qty)
	}
	if err != nil {
		t.logf("ERROR", "close order failed (%s %.4f): %v", side, ev.Qty, err)
		return
	}

	fill, err := t.client.FillPrice(ctx, ordID)
	if err != nil || fill <= 0 {
		t.logf("WARN", "fill price lookup failed for %s, keeping simulated %.2f", ordID, ev.Price)
		fill = ev.Price
	}
	t.stratMu.Lock()
	t.strat.ConfirmExit(side, fill, ev.Qty, ev.Timestamp, ev.Reason)
	t.stratMu.Unlock()
	t.logf("INFO", "📊 closed %s %.4f @ %.2f (%s)", side, ev.Qty, fill, ev.Reason)
}

// executeEntry opens a real position for an engine entry. simPrice is the
// engine's assumed fill, zero when the entry is still only scheduled.
func (t *Trader) executeEntry(ctx context.Context, side string, qty, simPrice float64) {
	if qty <= 0 {
		return
	}
	var ordID string
	var err error
	if side == strategy.SideBuy {
		ordID, err = t.client.OpenLong(ctx, qty)
	} else {
		ordID, err = t.client.OpenShort(ctx, qty)
	}
	if err != nil {
		t.logf("ERROR", "open order failed (%s %.4f): %v", side, qty, err)
		return
	}

	fill, err := t.client.FillPrice(ctx, ordID)
	if err != nil || fill <= 0 {
		fill = simPrice
	}
	if fill <= 0 {
		if mark, merr := t.client.MarkPrice(ctx); merr == nil {
			fill = mark
		}
	}
	if fill <= 0 {
		t.logf("ERROR", "no fill price for %s, engine left unconfirmed", ordID)
		return
	}
	t.stratMu.Lock()
	t.strat.ConfirmFill(side, fill, qty, time.Now().UTC())
	t.stratMu.Unlock()
	t.logf("INFO", "📊 opened %s %.4f @ %.2f", side, qty, fill)
}

func (t *Trader) recordTrade(ctx context.Context, ev strategy.TradeEvent) {
	t.bus.Publish(events.TopicTrade, events.TradePayload{Symbol: t.symbol, Event: ev, Live: true})
	if t.queries == nil {
		return
	}
	err := t.queries.InsertTrade(ctx, db.TradeRow{
		ID:           uuid.NewString(),
		RunID:        t.runID,
		Symbol:       t.symbol,
		Kind:         string(ev.Kind),
		Price:        ev.Price,
		Qty:          ev.Qty,
		PnL:          ev.RealizedPnL,
		BalanceAfter: ev.BalanceAfter,
		ExitReason:   string(ev.Reason),
		BarTime:      ev.Timestamp,
	})
	if err != nil {
		t.logf("WARN", "trade persist failed: %v", err)
	}
}

func (t *Trader) snapshot(ctx context.Context) {
	if t.queries == nil {
		return
	}
	t.stratMu.Lock()
	state, err := t.strat.GetState()
	t.stratMu.Unlock()
	if err != nil {
		t.logf("WARN", "snapshot encode failed: %v", err)
		return
	}
	if err := t.queries.SaveStrategyState(ctx, t.runID, state); err != nil {
		t.logf("WARN", "snapshot save failed: %v", err)
	}
}

func (t *Trader) publishStatus() {
	t.bus.Publish(events.TopicStatus, t.Status())
}

func (t *Trader) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[LIVE] %s", msg)
	t.bus.Publish(events.TopicLog, events.LogPayload{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: msg,
	})
}
