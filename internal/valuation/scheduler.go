// Package valuation runs the deferred post-alert market-cap checks and
// classifies how an alerted token developed.
package valuation

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/observability"
	"smartmoney-monitor/internal/storage"
)

// MarketData provides fresh token snapshots for checks.
type MarketData interface {
	TokenSnapshot(ctx context.Context, mint string) (*domain.TokenSnapshot, error)
}

// Check offsets from alert time. The 5min and 30min checkpoints carry a
// pass threshold; 1min and 15min are observation-only.
const (
	offset1Min  = 60 * time.Second
	offset5Min  = 300 * time.Second
	offset15Min = 900 * time.Second
	offset30Min = 1800 * time.Second
)

// Config holds the classification thresholds.
type Config struct {
	DeadTokenCap  float64 // caps at or below this classify as trash
	ShortListGain float64 // fractional gain required at the 5min check
	ContractsGain float64 // fractional gain required at the 30min check
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		DeadTokenCap:  20_000,
		ShortListGain: 0.20,
		ContractsGain: 0.50,
	}
}

// Options configures Scheduler. Market is required; Store is an
// optional best-effort sink.
type Options struct {
	Config  Config
	Market  MarketData
	Store   storage.EvaluationStore
	Metrics *observability.Metrics
	Logger  *log.Logger

	// Now is swapped in tests to control the clock.
	Now func() time.Time
}

// Scheduler owns the time-ordered queue of pending checks and the
// per-mint all-time-high caps. Safe for concurrent use: Schedule is
// called from the alert path, Tick from its own loop.
type Scheduler struct {
	cfg     Config
	market  MarketData
	store   storage.EvaluationStore
	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending []*domain.ValuationCheck
	ath     map[string]float64
}

// New creates a valuation scheduler.
func New(opts Options) *Scheduler {
	cfg := opts.Config
	if cfg.DeadTokenCap == 0 {
		cfg = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[valuation] ", log.LstdFlags)
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Scheduler{
		cfg:     cfg,
		market:  opts.Market,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger,
		now:     nowFn,
		ath:     make(map[string]float64),
	}
}

// Schedule enqueues the four deferred checks for a fired alert.
func (s *Scheduler) Schedule(mint, symbol string, alertCap float64, wallets []string, alertAt time.Time) {
	shortList := s.cfg.ShortListGain
	contracts := s.cfg.ContractsGain
	plan := []struct {
		offset    time.Duration
		label     string
		threshold *float64
	}{
		{offset1Min, domain.CheckLabel1Min, nil},
		{offset5Min, domain.CheckLabel5Min, &shortList},
		{offset15Min, domain.CheckLabel15Min, nil},
		{offset30Min, domain.CheckLabel30Min, &contracts},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range plan {
		s.pending = append(s.pending, &domain.ValuationCheck{
			Mint:      mint,
			Symbol:    symbol,
			AlertCap:  alertCap,
			Wallets:   wallets,
			AlertAt:   alertAt,
			CheckAt:   alertAt.Add(p.offset),
			Label:     p.label,
			Threshold: p.threshold,
		})
	}
	sort.Slice(s.pending, func(i, j int) bool {
		return s.pending[i].CheckAt.Before(s.pending[j].CheckAt)
	})
	if s.metrics != nil {
		s.metrics.PendingChecks.Set(float64(len(s.pending)))
	}
}

// PendingCount returns the number of checks not yet executed.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ATH returns the peak cap observed for a mint across its checks.
func (s *Scheduler) ATH(mint string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ath[mint]
}

// Tick executes every check whose fire time has passed and returns the
// results. A check whose market lookup fails is dropped with a log
// line, not re-queued.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []*domain.ValuationResult {
	due := s.popDue(now)
	if len(due) == 0 {
		return nil
	}

	results := make([]*domain.ValuationResult, 0, len(due))
	for _, check := range due {
		snap, err := s.market.TokenSnapshot(ctx, check.Mint)
		if err != nil {
			s.logger.Printf("check %s for %s (%s) dropped: %v", check.Label, check.Symbol, check.Mint, err)
			continue
		}
		res := s.evaluate(check, snap, now)
		results = append(results, res)
		s.persist(ctx, check, res)
		if s.metrics != nil {
			s.metrics.ChecksExecuted.WithLabelValues(check.Label).Inc()
			if res.Classification != "" {
				s.metrics.Classifications.WithLabelValues(res.Classification).Inc()
			}
		}
	}
	return results
}

// Run ticks on the given cadence until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// popDue removes and returns all checks due at or before now, updating
// the pending gauge. The queue is kept time-ordered.
func (s *Scheduler) popDue(now time.Time) []*domain.ValuationCheck {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for i < len(s.pending) && !s.pending[i].CheckAt.After(now) {
		i++
	}
	if i == 0 {
		return nil
	}
	due := make([]*domain.ValuationCheck, i)
	copy(due, s.pending[:i])
	s.pending = append(s.pending[:0], s.pending[i:]...)
	if s.metrics != nil {
		s.metrics.PendingChecks.Set(float64(len(s.pending)))
	}
	return due
}

// evaluate computes the change versus the alert baseline, advances the
// mint's peak cap and classifies thresholded checks.
func (s *Scheduler) evaluate(check *domain.ValuationCheck, snap *domain.TokenSnapshot, now time.Time) *domain.ValuationResult {
	change := 0.0
	if check.AlertCap > 0 {
		change = (snap.MarketCap - check.AlertCap) / check.AlertCap
	}

	s.mu.Lock()
	if snap.MarketCap > s.ath[check.Mint] {
		s.ath[check.Mint] = snap.MarketCap
	}
	s.mu.Unlock()

	res := &domain.ValuationResult{
		Mint:       check.Mint,
		Symbol:     check.Symbol,
		Label:      check.Label,
		AlertCap:   check.AlertCap,
		CurrentCap: snap.MarketCap,
		ChangePct:  change,
		CheckedAt:  now,
	}

	if check.Threshold == nil {
		s.logger.Printf("check %s for %s: cap %.0f (%+.1f%%)", check.Label, check.Symbol, snap.MarketCap, change*100)
		return res
	}

	switch {
	case snap.MarketCap <= s.cfg.DeadTokenCap:
		res.Classification = domain.ClassificationTrash
	case change >= *check.Threshold:
		if check.Label == domain.CheckLabel30Min {
			res.Classification = domain.ClassificationContractsCheck
		} else {
			res.Classification = domain.ClassificationShortList
		}
		res.Passed = true
	default:
		res.Classification = domain.ClassificationNotShortList
	}
	s.logger.Printf("check %s for %s: cap %.0f (%+.1f%%) -> %s",
		check.Label, check.Symbol, snap.MarketCap, change*100, res.Classification)
	return res
}

// persist writes the executed check. Best effort.
func (s *Scheduler) persist(ctx context.Context, check *domain.ValuationCheck, res *domain.ValuationResult) {
	if s.store == nil {
		return
	}
	eval := &domain.TokenEvaluation{
		Mint:           res.Mint,
		Symbol:         res.Symbol,
		Label:          res.Label,
		AlertCap:       res.AlertCap,
		CurrentCap:     res.CurrentCap,
		ChangePct:      res.ChangePct,
		Classification: res.Classification,
		ATHCap:         s.ATH(res.Mint),
		Wallets:        check.Wallets,
		AlertAt:        check.AlertAt,
		CheckedAt:      res.CheckedAt,
	}
	if err := s.store.Insert(ctx, eval); err != nil {
		s.logger.Printf("evaluation insert failed: %v", err)
	}
}
