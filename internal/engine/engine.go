// Package engine implements the coordinated-buying alert decision core:
// idempotent swap ingestion, per-mint sliding purchase windows, quality
// filters, cooldown and bullish-streak tracking.
package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartmoney-monitor/internal/classifier"
	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/helius"
	"smartmoney-monitor/internal/notify"
	"smartmoney-monitor/internal/observability"
	"smartmoney-monitor/internal/storage"
)

// MarketData provides fresh token market snapshots. Implementations
// must not cache across calls: the engine relies on re-fetching at
// decision time to catch decayed spikes.
type MarketData interface {
	// TokenSnapshot fetches current market data for a mint.
	TokenSnapshot(ctx context.Context, mint string) (*domain.TokenSnapshot, error)

	// SolPrice returns the current SOL price in USD.
	SolPrice(ctx context.Context) (float64, error)
}

// Config holds the alert decision thresholds.
type Config struct {
	AlertThreshold  int           // unique wallets required in the window
	TimeWindow      time.Duration // purchase window span
	Cooldown        time.Duration // minimum gap between alerts per mint
	BullishWindow   time.Duration // re-alert gap that continues a streak
	MaxMarketCap    float64       // ceiling, USD
	MinVolume24h    float64       // floor, USD
	MinTxns24h      int           // floor, buys + sells
	MinBuyValueUSD  float64       // dust floor per purchase
	MinLiquidity    float64       // floor, USD
	BlackoutHours   []int         // local hours with a raised threshold
	BlackoutExtra   int           // threshold bump during blackout hours
	UTCOffsetHours  int           // fixed offset for the blackout clock
	SignatureCap    int           // processed-signature set capacity
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AlertThreshold: 3,
		TimeWindow:     20 * time.Second,
		Cooldown:       300 * time.Second,
		BullishWindow:  1800 * time.Second,
		MaxMarketCap:   700_000,
		MinVolume24h:   10_000,
		MinTxns24h:     15,
		MinBuyValueUSD: 5,
		MinLiquidity:   5_000,
		BlackoutExtra:  1,
		UTCOffsetHours: 3,
		SignatureCap:   defaultSignatureCapacity,
	}
}

// Options configures Engine. Market and Notifier are required; the
// stores are optional best-effort sinks.
type Options struct {
	Config   Config
	Wallets  []string // tracked wallet set, fixed for the engine's lifetime
	Market   MarketData
	Notifier notify.Notifier
	Alerts   storage.AlertStore
	Signals  storage.SignalStore
	Activity storage.ActivityStore
	Metrics  *observability.Metrics
	Logger   *log.Logger

	// OnAlert is invoked after a successfully delivered alert, with the
	// engine lock held. Used to schedule valuation checks.
	OnAlert func(*domain.AlertDecision)

	// Now is swapped in tests to control the clock.
	Now func() time.Time
}

// ReasonNoTrackedWallet marks a transaction that touches no wallet from
// the tracked set. The webhook receiver uses it to count real deliveries.
const ReasonNoTrackedWallet = "no tracked wallet involved"

// Outcome is the result of ingesting one event. Reason is empty when
// the purchase was accepted into the window.
type Outcome struct {
	Accepted bool
	Reason   string
	Decision *domain.AlertDecision // non-nil when an alert fired
}

// Engine consumes classified swap events and emits alert decisions.
// All state lives behind a single mutex shared by the polling and push
// paths.
type Engine struct {
	cfg      Config
	tracked  map[string]bool
	market   MarketData
	notifier notify.Notifier
	alerts   storage.AlertStore
	signals  storage.SignalStore
	activity storage.ActivityStore
	metrics  *observability.Metrics
	logger   *log.Logger
	onAlert  func(*domain.AlertDecision)
	now      func() time.Time

	mu     sync.Mutex
	sigs   *signatureSet
	window *purchaseWindow
	states map[string]*domain.AlertState
}

// New creates an alert engine.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg.AlertThreshold == 0 {
		cfg = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	tracked := make(map[string]bool, len(opts.Wallets))
	for _, w := range opts.Wallets {
		tracked[w] = true
	}
	return &Engine{
		cfg:      cfg,
		tracked:  tracked,
		market:   opts.Market,
		notifier: opts.Notifier,
		alerts:   opts.Alerts,
		signals:  opts.Signals,
		activity: opts.Activity,
		metrics:  opts.Metrics,
		logger:   logger,
		onAlert:  opts.OnAlert,
		now:      nowFn,
		sigs:     newSignatureSet(cfg.SignatureCap),
		window:   newPurchaseWindow(cfg.TimeWindow),
		states:   make(map[string]*domain.AlertState),
	}
}

// IsTracked reports whether the wallet belongs to the tracked set.
func (e *Engine) IsTracked(wallet string) bool {
	return e.tracked[wallet]
}

// TrackedCount returns the size of the tracked wallet set.
func (e *Engine) TrackedCount() int {
	return len(e.tracked)
}

// ProcessTransaction resolves the tracked wallet behind an enhanced
// transaction, extracts the swap and ingests it. Transactions that do
// not involve a tracked wallet, or are not purchases, are dropped with
// a reason.
func (e *Engine) ProcessTransaction(ctx context.Context, tx *helius.EnhancedTransaction) Outcome {
	if e.metrics != nil {
		e.metrics.TransactionsScanned.Inc()
	}

	wallet := e.resolveWallet(tx)
	if wallet == "" {
		return Outcome{Reason: ReasonNoTrackedWallet}
	}

	swap, reason := classifier.ExtractSwap(tx, wallet)
	if reason != "" {
		return Outcome{Reason: reason}
	}
	if e.metrics != nil {
		e.metrics.SwapsDetected.Inc()
	}
	return e.Ingest(ctx, swap)
}

// resolveWallet finds the tracked wallet a transaction belongs to:
// fee payer first, then token-transfer recipients, then native-transfer
// recipients, then the account list.
func (e *Engine) resolveWallet(tx *helius.EnhancedTransaction) string {
	if e.tracked[tx.FeePayer] {
		return tx.FeePayer
	}
	for _, tt := range tx.TokenTransfers {
		if e.tracked[tt.ToUserAccount] {
			return tt.ToUserAccount
		}
	}
	for _, nt := range tx.NativeTransfers {
		if e.tracked[nt.ToUserAccount] {
			return nt.ToUserAccount
		}
	}
	for _, ad := range tx.AccountData {
		if e.tracked[ad.Account] {
			return ad.Account
		}
	}
	return ""
}

// Ingest runs one verified swap through dedup and the quality filters,
// records the purchase, and evaluates the alert condition for its mint.
// Safe for concurrent use from both ingestion paths.
func (e *Engine) Ingest(ctx context.Context, swap *domain.SwapEvent) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Signatures are marked processed before filtering so a duplicate
	// delivery of a rejected event is still dropped cheaply.
	if !e.sigs.Add(swap.Signature) {
		if e.metrics != nil {
			e.metrics.DuplicatesDropped.Inc()
		}
		return Outcome{Reason: "duplicate signature"}
	}

	snap, reason := e.filter(ctx, swap)
	if reason != "" {
		e.logger.Printf("rejected %s %s: %s", swap.Wallet, swap.Mint, reason)
		if e.metrics != nil {
			e.metrics.FilterRejections.WithLabelValues(reason).Inc()
		}
		return Outcome{Reason: reason}
	}

	now := e.now()
	rec := domain.PurchaseRecord{
		Wallet:    swap.Wallet,
		SolSpent:  swap.SolSpent,
		MarketCap: snap.MarketCap,
		Timestamp: now,
	}
	if !e.window.Add(swap.Mint, rec) {
		return Outcome{Reason: "wallet already in window"}
	}
	e.logger.Printf("purchase %s bought %s (%s) for %.3f SOL via %s, window now %d wallet(s)",
		swap.Wallet, snap.Symbol, swap.Mint, swap.SolSpent, swap.Source,
		e.window.UniqueWallets(swap.Mint, now))
	e.recordActivity(ctx, swap, snap)
	if e.metrics != nil {
		e.metrics.WindowWallets.WithLabelValues(swap.Mint).Set(float64(e.window.UniqueWallets(swap.Mint, now)))
		e.metrics.TrackedWindowMints.Set(float64(e.window.Mints()))
	}

	decision := e.evaluate(ctx, swap.Mint)
	return Outcome{Accepted: true, Decision: decision}
}

// filter applies the quality filters in order and returns the fetched
// snapshot plus the name of the first filter breached; the reason is
// empty exactly when the purchase qualifies.
func (e *Engine) filter(ctx context.Context, swap *domain.SwapEvent) (*domain.TokenSnapshot, string) {
	if classifier.ExcludedMints[swap.Mint] {
		return nil, "excluded mint"
	}

	now := e.now()
	for _, rec := range e.window.Records(swap.Mint, now) {
		if rec.Wallet == swap.Wallet {
			return nil, "wallet already in window"
		}
	}

	snap, err := e.market.TokenSnapshot(ctx, swap.Mint)
	if err != nil {
		return nil, "no market data"
	}

	if classifier.ExcludedSymbols[strings.ToUpper(snap.Symbol)] {
		return nil, "excluded symbol"
	}
	if snap.Liquidity < e.cfg.MinLiquidity {
		return nil, "liquidity floor"
	}

	if price, err := e.market.SolPrice(ctx); err != nil {
		// Price lookup down: skip the dust filter rather than reject.
		e.logger.Printf("sol price unavailable: %v", err)
	} else if value := swap.SolSpent * price; value > 0 && value < e.cfg.MinBuyValueUSD {
		// A zero value means the SOL spend could not be netted from the
		// transfers; the purchase still counts toward the cluster.
		return nil, "dust"
	}

	if snap.MarketCap > e.cfg.MaxMarketCap {
		return nil, "market cap ceiling"
	}
	if snap.Volume24h < e.cfg.MinVolume24h {
		return nil, "volume floor"
	}
	if snap.Txns24h() < e.cfg.MinTxns24h {
		return nil, "transaction floor"
	}

	return snap, ""
}

// evaluate checks the alert condition for a mint after a new purchase.
// Returns the fired decision or nil. Caller holds the lock.
func (e *Engine) evaluate(ctx context.Context, mint string) *domain.AlertDecision {
	now := e.now()
	count := e.window.UniqueWallets(mint, now)

	threshold := e.cfg.AlertThreshold
	if e.inBlackout(now) {
		threshold += e.cfg.BlackoutExtra
	}
	if count < threshold {
		return nil
	}

	state := e.states[mint]
	if state != nil && now.Sub(state.LastAlertAt) <= e.cfg.Cooldown && count <= state.WalletCount {
		e.suppress(mint, "cooldown")
		return nil
	}

	// Second pass against a fresh snapshot: a volume or transaction
	// spike that decayed between ingestion and decision is a fake
	// alert. The window is discarded, the mint is not blacklisted.
	fresh, err := e.market.TokenSnapshot(ctx, mint)
	if err != nil {
		e.suppress(mint, "no market data at decision")
		return nil
	}
	if fresh.Volume24h < e.cfg.MinVolume24h || fresh.Txns24h() < e.cfg.MinTxns24h {
		e.logger.Printf("fake alert for %s (%s): volume %.0f txns %d below floors, window discarded",
			fresh.Symbol, mint, fresh.Volume24h, fresh.Txns24h())
		e.window.Clear(mint)
		e.suppress(mint, "fake alert")
		return nil
	}

	bullish := state != nil && now.Sub(state.LastAlertAt) <= e.cfg.BullishWindow
	streak := 1
	baseline := fresh.MarketCap
	if bullish {
		streak = state.StreakCount + 1
		baseline = state.StreakBaseline
	}

	records := e.window.Records(mint, now)
	purchases := make([]domain.PurchaseRecord, len(records))
	copy(purchases, records)

	decision := &domain.AlertDecision{
		ID:          uuid.NewString(),
		Mint:        mint,
		Symbol:      fresh.Symbol,
		Wallets:     e.window.Wallets(mint, now),
		Purchases:   purchases,
		Snapshot:    *fresh,
		StreakCount: streak,
		Bullish:     bullish,
		BaselineCap: baseline,
		FiredAt:     now,
	}

	if err := e.notifier.Notify(ctx, decision); err != nil {
		// State is only advanced on delivered alerts so the next
		// qualifying purchase retries.
		e.logger.Printf("notify failed for %s: %v", mint, err)
		if e.metrics != nil {
			e.metrics.NotifyFailures.Inc()
		}
		return nil
	}

	e.states[mint] = &domain.AlertState{
		LastAlertAt:    now,
		WalletCount:    count,
		StreakBaseline: baseline,
		StreakCount:    streak,
	}
	e.persistAlert(ctx, decision, count)
	if e.metrics != nil {
		kind := "new"
		if bullish {
			kind = "bullish"
		}
		e.metrics.AlertsFired.WithLabelValues(kind).Inc()
	}
	if e.onAlert != nil {
		e.onAlert(decision)
	}
	return decision
}

func (e *Engine) inBlackout(now time.Time) bool {
	if len(e.cfg.BlackoutHours) == 0 {
		return false
	}
	hour := now.UTC().Add(time.Duration(e.cfg.UTCOffsetHours) * time.Hour).Hour()
	for _, h := range e.cfg.BlackoutHours {
		if h == hour {
			return true
		}
	}
	return false
}

func (e *Engine) suppress(mint, reason string) {
	e.logger.Printf("alert suppressed for %s: %s", mint, reason)
	if e.metrics != nil {
		e.metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
	}
}

// recordActivity persists one purchase event. Best effort.
func (e *Engine) recordActivity(ctx context.Context, swap *domain.SwapEvent, snap *domain.TokenSnapshot) {
	if e.activity == nil {
		return
	}
	buyValue := 0.0
	if price, err := e.market.SolPrice(ctx); err == nil {
		buyValue = swap.SolSpent * price
	}
	a := &domain.WalletActivity{
		Wallet:      swap.Wallet,
		Mint:        swap.Mint,
		Symbol:      snap.Symbol,
		Signature:   swap.Signature,
		SolSpent:    swap.SolSpent,
		BuyValueUSD: buyValue,
		MarketCap:   snap.MarketCap,
		CreatedAt:   e.now(),
	}
	if err := e.activity.Insert(ctx, a); err != nil {
		e.logger.Printf("activity insert failed: %v", err)
	}
}

// persistAlert writes the alert snapshot and trade signal. Best effort.
func (e *Engine) persistAlert(ctx context.Context, d *domain.AlertDecision, count int) {
	if e.alerts != nil {
		snap := &domain.AlertSnapshot{
			Mint:        d.Mint,
			Symbol:      d.Symbol,
			MarketCap:   d.Snapshot.MarketCap,
			WalletCount: count,
			Wallets:     d.Wallets,
			CreatedAt:   d.FiredAt,
		}
		if err := e.alerts.Insert(ctx, snap); err != nil {
			e.logger.Printf("alert insert failed: %v", err)
		}
	}
	if e.signals != nil {
		recent, err := e.signals.HasRecentSignal(ctx, d.Mint, e.cfg.Cooldown)
		if err != nil {
			e.logger.Printf("signal lookup failed: %v", err)
			return
		}
		if recent {
			return
		}
		scenario := "smart_money_cluster"
		if d.Bullish {
			scenario = "bullish_streak"
		}
		sig := &domain.TradeSignal{
			Mint:        d.Mint,
			Symbol:      d.Symbol,
			EntryCap:    d.Snapshot.MarketCap,
			Scenario:    scenario,
			WalletCount: count,
			CreatedAt:   d.FiredAt,
		}
		if err := e.signals.Insert(ctx, sig); err != nil {
			e.logger.Printf("signal insert failed: %v", err)
		}
	}
}
