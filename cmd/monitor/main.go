package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"smartmoney-monitor/internal/config"
	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/engine"
	"smartmoney-monitor/internal/helius"
	"smartmoney-monitor/internal/market"
	"smartmoney-monitor/internal/monitor"
	"smartmoney-monitor/internal/notify"
	"smartmoney-monitor/internal/observability"
	"smartmoney-monitor/internal/report"
	"smartmoney-monitor/internal/storage"
	chstore "smartmoney-monitor/internal/storage/clickhouse"
	"smartmoney-monitor/internal/storage/memory"
	"smartmoney-monitor/internal/storage/migrations"
	pgstore "smartmoney-monitor/internal/storage/postgres"
	"smartmoney-monitor/internal/valuation"
	"smartmoney-monitor/internal/webhook"
)

// stores bundles the persistence backends selected at startup.
type stores struct {
	alerts      storage.AlertStore
	evals       storage.EvaluationStore
	signals     storage.SignalStore
	checkpoints storage.CheckpointStore
	activity    storage.ActivityStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	useMemory := flag.Bool("use-memory", false, "Ignore configured DSNs and keep all state in memory")
	flag.Parse()

	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config invalid: %v", err)
	}

	// The wallet list is the only fatal startup dependency: without
	// tracked wallets there is nothing to monitor.
	wallets, err := monitor.LoadWallets(cfg.WalletsFile)
	if err != nil {
		logger.Fatalf("Wallet list load failed (%s): %v", cfg.WalletsFile, err)
	}
	logger.Printf("Loaded %d tracked wallets from %s", len(wallets), cfg.WalletsFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case <-sigCh:
			logger.Println("Second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	metrics := observability.NewMetrics("")

	st, closeStores := openStores(ctx, logger, cfg, *useMemory)
	defer closeStores()

	marketOpts := []market.Option{
		market.WithLogger(log.New(os.Stdout, "[market] ", log.LstdFlags)),
	}
	if cfg.Market.BaseURL != "" {
		marketOpts = append(marketOpts, market.WithBaseURL(cfg.Market.BaseURL))
	}
	marketData := market.New(marketOpts...)

	provider := helius.NewClient(cfg.Helius.RPCURL, cfg.Helius.APIURL, cfg.Helius.APIKey)
	notifier := notify.NewLogNotifier(log.New(os.Stdout, "[alert] ", log.LstdFlags))

	scheduler := valuation.New(valuation.Options{
		Config: valuation.Config{
			DeadTokenCap:  cfg.Valuation.DeadTokenCap,
			ShortListGain: cfg.Valuation.ShortListGain,
			ContractsGain: cfg.Valuation.ContractsGain,
		},
		Market:  marketData,
		Store:   st.evals,
		Metrics: metrics,
		Logger:  log.New(os.Stdout, "[valuation] ", log.LstdFlags),
	})

	eng := engine.New(engine.Options{
		Config:   engineConfig(cfg),
		Wallets:  wallets,
		Market:   marketData,
		Notifier: notifier,
		Alerts:   st.alerts,
		Signals:  st.signals,
		Activity: st.activity,
		Metrics:  metrics,
		Logger:   log.New(os.Stdout, "[engine] ", log.LstdFlags),
		OnAlert: func(d *domain.AlertDecision) {
			scheduler.Schedule(d.Mint, d.Symbol, d.Snapshot.MarketCap, d.Wallets, d.FiredAt)
		},
	})

	runner := monitor.NewRunner(monitor.RunnerOptions{
		Source:          provider,
		Sink:            eng,
		Checkpoints:     st.checkpoints,
		Metrics:         metrics,
		Logger:          log.New(os.Stdout, "[runner] ", log.LstdFlags),
		Wallets:         wallets,
		PollInterval:    time.Duration(cfg.Polling.IntervalSec) * time.Second,
		BatchSize:       cfg.Polling.BatchSize,
		FetchLimit:      cfg.Polling.FetchLimit,
		CheckpointEvery: cfg.Polling.CheckpointEvery,
	})

	startHTTPServer(ctx, logger, cfg, eng)

	reporter := report.NewReporter(report.Options{
		Alerts:         st.alerts,
		Evals:          st.evals,
		Activity:       st.activity,
		Market:         marketData,
		Notifier:       notifier,
		Logger:         log.New(os.Stdout, "[report] ", log.LstdFlags),
		UTCOffsetHours: cfg.Alert.UTCOffsetHours,
		RetentionDays:  cfg.Report.RetentionDays,
	})
	cronRunner := cron.New(cron.WithLocation(reporter.Location()))
	if err := reporter.Register(cronRunner, cfg.Report.Schedule); err != nil {
		logger.Fatalf("Daily report schedule invalid: %v", err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go scheduler.Run(ctx, 30*time.Second)

	startWSPush(ctx, logger, cfg, eng, wallets)

	if slot, err := provider.GetSlot(ctx); err != nil {
		logger.Printf("Slot check failed: %v", err)
	} else {
		logger.Printf("Connected, current slot %d", slot)
	}
	_ = notifier.Status(ctx, fmt.Sprintf(
		"monitor started: %d wallets, threshold %d in %ds, max cap $%.0fK, polling %ds",
		len(wallets), cfg.Alert.Threshold, cfg.Alert.TimeWindowSec,
		cfg.Alert.MaxMarketCap/1000, cfg.Polling.IntervalSec))

	err = runner.Run(ctx)
	close(done)
	if err != nil && err != context.Canceled {
		logger.Fatalf("Runner stopped: %v", err)
	}

	_ = notifier.Status(context.Background(), "monitor stopped")
	logger.Println("Shutdown complete")
}

// engineConfig maps the loaded config onto the engine thresholds.
func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.AlertThreshold = cfg.Alert.Threshold
	ec.TimeWindow = time.Duration(cfg.Alert.TimeWindowSec) * time.Second
	ec.Cooldown = time.Duration(cfg.Alert.CooldownSec) * time.Second
	ec.BullishWindow = time.Duration(cfg.Alert.BullishWinSec) * time.Second
	ec.MaxMarketCap = cfg.Alert.MaxMarketCap
	ec.MinVolume24h = cfg.Alert.MinVolume24h
	ec.MinTxns24h = cfg.Alert.MinTxns24h
	ec.MinBuyValueUSD = cfg.Alert.MinBuyValueUSD
	ec.MinLiquidity = cfg.Alert.MinLiquidity
	ec.BlackoutHours = cfg.Alert.BlackoutHours
	ec.BlackoutExtra = cfg.Alert.BlackoutExtra
	ec.UTCOffsetHours = cfg.Alert.UTCOffsetHours
	return ec
}

// openStores selects the persistence backends. Database failures fall
// back to memory with a warning: persistence is best-effort, alerting
// must keep running.
func openStores(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) (*stores, func()) {
	st := &stores{
		alerts:      memory.NewAlertStore(),
		evals:       memory.NewEvaluationStore(),
		signals:     memory.NewSignalStore(),
		checkpoints: memory.NewCheckpointStore(),
		activity:    memory.NewActivityStore(),
	}
	var closers []func()

	if !useMemory && cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Printf("PostgreSQL unavailable, using memory stores: %v", err)
		} else if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Printf("PostgreSQL migrations failed, using memory stores: %v", err)
			pool.Close()
		} else {
			st.alerts = pgstore.NewAlertStore(pool)
			st.evals = pgstore.NewEvaluationStore(pool)
			st.signals = pgstore.NewSignalStore(pool)
			st.checkpoints = pgstore.NewCheckpointStore(pool)
			closers = append(closers, pool.Close)
			logger.Println("PostgreSQL storage active")
		}
	}

	if !useMemory && cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Printf("ClickHouse unavailable, keeping activity in memory: %v", err)
		} else {
			st.activity = chstore.NewActivityStore(conn)
			closers = append(closers, func() { _ = conn.Close() })
			logger.Println("ClickHouse activity sink active")
		}
	}

	return st, func() {
		for _, c := range closers {
			c()
		}
	}
}

// startHTTPServer serves the webhook receiver, health check and
// Prometheus metrics on one listener.
func startHTTPServer(ctx context.Context, logger *log.Logger, cfg *config.Config, eng *engine.Engine) {
	whs := webhook.NewServer(webhook.Options{
		Sink:    eng,
		Secret:  cfg.Webhook.Secret,
		Enabled: cfg.Webhook.Enabled,
		Logger:  log.New(os.Stdout, "[webhook] ", log.LstdFlags),
	})

	mux := http.NewServeMux()
	webhookHandler := whs.Handler()
	mux.Handle("/webhook", webhookHandler)
	mux.Handle("/health", webhookHandler)
	mux.Handle("/metrics", observability.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go func() {
		logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// startWSPush subscribes to the Helius transaction stream when a WS
// endpoint is configured. Push failures degrade to polling only.
func startWSPush(ctx context.Context, logger *log.Logger, cfg *config.Config, eng *engine.Engine, wallets []string) {
	if cfg.Helius.WSURL == "" {
		return
	}

	ws, err := helius.NewWSClient(ctx, cfg.Helius.WSURL, nil)
	if err != nil {
		logger.Printf("WS connect failed, polling only: %v", err)
		return
	}

	txCh, err := ws.SubscribeTransactions(ctx, wallets)
	if err != nil {
		logger.Printf("WS subscribe failed, polling only: %v", err)
		_ = ws.Close()
		return
	}
	logger.Printf("Subscribed to push stream for %d wallets", len(wallets))

	go func() {
		defer ws.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case tx, ok := <-txCh:
				if !ok {
					logger.Println("Push stream closed, polling only")
					return
				}
				eng.ProcessTransaction(ctx, tx)
			}
		}
	}()
}
