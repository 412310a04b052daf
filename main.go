package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"azlema-core/internal/api"
	"azlema-core/internal/backtest"
	"azlema-core/internal/collector"
	"azlema-core/internal/events"
	"azlema-core/internal/keepalive"
	"azlema-core/internal/live"
	"azlema-core/internal/report"
	"azlema-core/internal/strategy"
	"azlema-core/pkg/config"
	"azlema-core/pkg/db"
	"azlema-core/pkg/okx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}
	log.Printf("✅ config loaded | mode=%s symbol=%s timeframe=%s port=%s",
		cfg.Mode, cfg.Symbol, cfg.Timeframe, cfg.Port)

	stratCfg, err := strategy.LoadConfig(cfg.StrategyConfig)
	if err != nil {
		log.Printf("⚠️  strategy config %s unavailable (%v), using defaults", cfg.StrategyConfig, err)
		stratCfg = strategy.DefaultConfig()
	}
	if stratCfg.WarmupBars == 0 {
		stratCfg.WarmupBars = cfg.WarmupBars
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("❌ migrations: %v", err)
	}
	log.Printf("✅ database ready | %s", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	market := okx.NewMarketDataClient("")
	coll := collector.New(market, cfg.Symbol, cfg.Timeframe, cfg.TotalCandles)

	var trader *live.Trader
	runID := "live"
	if cfg.Mode == "live" {
		client := okx.New(okx.Config{
			APIKey:     cfg.OKXAPIKey,
			SecretKey:  cfg.OKXSecretKey,
			Passphrase: cfg.OKXPassphrase,
			InstID:     cfg.InstID,
			Simulated:  cfg.OKXSimulated,
		})
		strat := strategy.New(stratCfg)
		trader = live.NewTrader(strat, client, coll, bus, database.Queries(), runID)
		if err := trader.Start(); err != nil {
			log.Fatalf("❌ trader start: %v", err)
		}
		log.Printf("✅ live trader started | %s", cfg.InstID)
	} else {
		runID = runBacktest(ctx, cfg, stratCfg, coll, database)
	}

	var controller api.Controller
	if trader != nil {
		controller = trader
	}
	server := api.NewServer(bus, database, controller,
		cfg.JWTSecret, cfg.DashboardPassword, cfg.ReportPath, runID)

	keepalive.New(cfg.SelfURL).Start(ctx)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("❌ server: %v", err)
		}
	}()
	log.Printf("✅ dashboard listening on :%s", cfg.Port)

	<-ctx.Done()
	log.Printf("ℹ️  shutting down")
	if trader != nil {
		if err := trader.Stop(); err != nil && err != live.ErrNotRunning {
			log.Printf("⚠️  trader stop: %v", err)
		}
	}
}

// runBacktest collects history, replays it through the engine, writes the
// HTML report, and persists the run. Returns the run id.
func runBacktest(ctx context.Context, cfg *config.Config, stratCfg strategy.Config, coll *collector.Collector, database *db.Database) string {
	runID := uuid.NewString()

	candles, err := coll.Collect(ctx)
	if err != nil {
		log.Fatalf("❌ collect: %v", err)
	}

	step := coll.BarDuration()
	periodsPerYear := float64(365*24*time.Hour) / float64(step)
	eng := backtest.New(strategy.New(stratCfg), periodsPerYear)

	start := time.Now()
	res, err := eng.Run(candles)
	if err != nil {
		log.Fatalf("❌ backtest: %v", err)
	}
	log.Printf("✅ backtest done | %d candles in %v | trades=%d pnl=%.2f winrate=%.1f%% dd=%.2f%%",
		len(candles), time.Since(start).Round(time.Millisecond),
		res.TotalTrades, res.TotalPnL, res.WinRate*100, res.MaxDrawdownPct)

	if err := report.Write(cfg.ReportPath, coll.Symbol(), cfg.Timeframe, res); err != nil {
		log.Printf("⚠️  report: %v", err)
	} else {
		log.Printf("✅ report written | %s", cfg.ReportPath)
	}

	q := database.Queries()
	err = q.InsertBacktestRun(ctx, db.BacktestRun{
		ID:             runID,
		Symbol:         coll.Symbol(),
		Timeframe:      cfg.Timeframe,
		Candles:        len(candles),
		TotalTrades:    res.TotalTrades,
		WinRate:        res.WinRate,
		TotalPnL:       res.TotalPnL,
		FinalBalance:   res.FinalBalance,
		MaxDrawdownPct: res.MaxDrawdownPct,
		Sharpe:         res.Sharpe,
		ProfitFactor:   res.ProfitFactor,
	})
	if err != nil {
		log.Printf("⚠️  persist run: %v", err)
	}
	for _, ev := range res.Events {
		err := q.InsertTrade(ctx, db.TradeRow{
			ID:           uuid.NewString(),
			RunID:        runID,
			Symbol:       coll.Symbol(),
			Kind:         string(ev.Kind),
			Price:        ev.Price,
			Qty:          ev.Qty,
			PnL:          ev.RealizedPnL,
			BalanceAfter: ev.BalanceAfter,
			ExitReason:   string(ev.Reason),
			BarTime:      ev.Timestamp,
		})
		if err != nil {
			log.Printf("⚠️  persist trade: %v", err)
			break
		}
	}
	return runID
}
