package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrNotFound = errors.New("record not found")

// Queries bundles the prepared statements of the trading schema.
type Queries struct {
	db *sql.DB
}

// InsertTrade stores one trade event.
func (q *Queries) InsertTrade(ctx context.Context, tr TradeRow) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO trades (id, run_id, symbol, kind, price, qty, pnl, balance_after, exit_reason, bar_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.RunID, tr.Symbol, tr.Kind, tr.Price, tr.Qty, tr.PnL, tr.BalanceAfter, tr.ExitReason, tr.BarTime)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the newest trades of a run, newest first.
func (q *Queries) RecentTrades(ctx context.Context, runID string, limit int) ([]TradeRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, run_id, symbol, kind, price, qty, pnl, balance_after, COALESCE(exit_reason, ''), bar_time
		FROM trades
		WHERE run_id = ?
		ORDER BY bar_time DESC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var tr TradeRow
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.Symbol, &tr.Kind, &tr.Price, &tr.Qty,
			&tr.PnL, &tr.BalanceAfter, &tr.ExitReason, &tr.BarTime); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// InsertBacktestRun stores a backtest summary. Non-finite stats (profit
// factor of an all-win run) are stored as -1.
func (q *Queries) InsertBacktestRun(ctx context.Context, run BacktestRun) error {
	pf := run.ProfitFactor
	if math.IsInf(pf, 0) || math.IsNaN(pf) {
		pf = -1
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, symbol, timeframe, candles, total_trades, win_rate, total_pnl,
			 final_balance, max_drawdown_pct, sharpe, profit_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Symbol, run.Timeframe, run.Candles, run.TotalTrades, run.WinRate,
		run.TotalPnL, run.FinalBalance, run.MaxDrawdownPct, run.Sharpe, pf)
	if err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// SaveStrategyState upserts the JSON snapshot of a strategy instance.
func (q *Queries) SaveStrategyState(ctx context.Context, instance string, state json.RawMessage) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO strategy_states (instance, state, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(instance) DO UPDATE SET
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP
	`, instance, string(state))
	if err != nil {
		return fmt.Errorf("save strategy state: %w", err)
	}
	return nil
}

// LoadStrategyState returns the stored snapshot for an instance.
func (q *Queries) LoadStrategyState(ctx context.Context, instance string) (json.RawMessage, error) {
	var state string
	err := q.db.QueryRowContext(ctx,
		`SELECT state FROM strategy_states WHERE instance = ?`, instance).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load strategy state: %w", err)
	}
	return json.RawMessage(state), nil
}
