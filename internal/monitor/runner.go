package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"smartmoney-monitor/internal/engine"
	"smartmoney-monitor/internal/helius"
	"smartmoney-monitor/internal/observability"
	"smartmoney-monitor/internal/storage"
)

// Default polling configuration.
const (
	DefaultPollInterval    = 300 * time.Second
	DefaultBatchSize       = 25
	DefaultFetchLimit      = 5
	DefaultCheckpointEvery = 10
	DefaultRateLimitPause  = 5 * time.Second

	// minCycleSleep keeps the loop from spinning when a cycle overruns
	// the polling interval.
	minCycleSleep = 500 * time.Millisecond
)

// SignatureSource fetches transaction history from the RPC provider.
type SignatureSource interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int, until string) ([]helius.SignatureInfo, error)
	GetEnhancedTransactions(ctx context.Context, signatures []string) ([]*helius.EnhancedTransaction, error)
}

// TransactionSink consumes parsed transactions. Satisfied by
// engine.Engine.
type TransactionSink interface {
	ProcessTransaction(ctx context.Context, tx *helius.EnhancedTransaction) engine.Outcome
}

// Runner polls the watched wallets on a fixed interval, feeding new
// transactions into the engine. Per-wallet checkpoints bound every
// signature query so already-seen history is never refetched.
type Runner struct {
	source      SignatureSource
	sink        TransactionSink
	checkpoints storage.CheckpointStore
	metrics     *observability.Metrics
	logger      *log.Logger

	wallets         []string
	pollInterval    time.Duration
	batchSize       int
	fetchLimit      int
	checkpointEvery int
	rateLimitPause  time.Duration

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastSigs map[string]string
	cycles   int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source      SignatureSource
	Sink        TransactionSink
	Checkpoints storage.CheckpointStore
	Metrics     *observability.Metrics
	Logger      *log.Logger

	Wallets         []string
	PollInterval    time.Duration
	BatchSize       int
	FetchLimit      int
	CheckpointEvery int
	RateLimitPause  time.Duration
}

// NewRunner creates a polling runner over the given wallet list.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit == 0 {
		fetchLimit = DefaultFetchLimit
	}
	checkpointEvery := opts.CheckpointEvery
	if checkpointEvery == 0 {
		checkpointEvery = DefaultCheckpointEvery
	}
	rateLimitPause := opts.RateLimitPause
	if rateLimitPause == 0 {
		rateLimitPause = DefaultRateLimitPause
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:          opts.Source,
		sink:            opts.Sink,
		checkpoints:     opts.Checkpoints,
		metrics:         opts.Metrics,
		logger:          logger,
		wallets:         opts.Wallets,
		pollInterval:    pollInterval,
		batchSize:       batchSize,
		fetchLimit:      fetchLimit,
		checkpointEvery: checkpointEvery,
		rateLimitPause:  rateLimitPause,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		lastSigs: make(map[string]string),
	}
}

// Run starts the polling loop. Checkpoints are loaded once at startup
// and flushed every checkpointEvery cycles plus once on shutdown. It
// blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.checkpoints != nil {
		saved, err := r.checkpoints.Load(ctx)
		if err != nil {
			r.logger.Printf("[runner] checkpoint load failed: %v", err)
		} else if len(saved) > 0 {
			r.mu.Lock()
			r.lastSigs = saved
			r.mu.Unlock()
			r.logger.Printf("[runner] resumed %d wallet checkpoints", len(saved))
		}
	}

	r.logger.Printf("[runner] polling %d wallets every %v (batch %d, fetch limit %d)",
		len(r.wallets), r.pollInterval, r.batchSize, r.fetchLimit)

	for {
		start := time.Now()
		if err := r.Cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.flushCheckpoints(context.WithoutCancel(ctx))
				return err
			}
			r.logger.Printf("[runner] cycle failed: %v", err)
		}

		wait := r.pollInterval - time.Since(start)
		if wait < minCycleSleep {
			wait = minCycleSleep
		}
		if err := r.sleep(ctx, wait); err != nil {
			r.flushCheckpoints(context.WithoutCancel(ctx))
			return err
		}
	}
}

// Cycle scans every wallet once, in batches. A rate-limited provider
// aborts the remainder of the cycle after a short pause so the backlog
// can drain; the next cycle picks up from the checkpoints.
func (r *Runner) Cycle(ctx context.Context) error {
	start := time.Now()
	status := "ok"

	for i := 0; i < len(r.wallets); i += r.batchSize {
		end := i + r.batchSize
		if end > len(r.wallets) {
			end = len(r.wallets)
		}

		err := r.processBatch(ctx, r.wallets[i:end])
		if errors.Is(err, helius.ErrRateLimited) {
			status = "rate_limited"
			r.logger.Printf("[runner] provider rate limited, pausing %v and ending cycle", r.rateLimitPause)
			if serr := r.sleep(ctx, r.rateLimitPause); serr != nil {
				return serr
			}
			break
		}
		if err != nil {
			r.finishCycle(ctx, start, "error")
			return err
		}
	}

	r.finishCycle(ctx, start, status)
	return nil
}

func (r *Runner) finishCycle(ctx context.Context, start time.Time, status string) {
	r.mu.Lock()
	r.cycles++
	cycles := r.cycles
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.PollCyclesTotal.WithLabelValues(status).Inc()
		r.metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}
	if cycles%r.checkpointEvery == 0 {
		r.flushCheckpoints(ctx)
	}
}

// processBatch collects new signatures for one batch of wallets and
// feeds the parsed transactions into the sink. Returns
// helius.ErrRateLimited when the provider starts refusing requests.
func (r *Runner) processBatch(ctx context.Context, wallets []string) error {
	var pending []string

	for _, wallet := range wallets {
		if err := ctx.Err(); err != nil {
			return err
		}

		until := r.checkpoint(wallet)
		sigs, err := r.source.GetSignaturesForAddress(ctx, wallet, r.fetchLimit, until)
		if errors.Is(err, helius.ErrRateLimited) {
			if r.metrics != nil {
				r.metrics.ProviderRateLimits.Inc()
			}
			return err
		}
		if err != nil {
			r.logger.Printf("[runner] signature fetch failed for %s: %v", shortAddr(wallet), err)
			continue
		}
		if len(sigs) == 0 {
			continue
		}

		// Newest first; the head becomes the next checkpoint.
		r.setCheckpoint(wallet, sigs[0].Signature)

		for _, s := range sigs {
			if s.Failed() {
				continue
			}
			pending = append(pending, s.Signature)
		}
	}

	for i := 0; i < len(pending); i += helius.MaxEnhancedBatch {
		end := i + helius.MaxEnhancedBatch
		if end > len(pending) {
			end = len(pending)
		}

		txs, err := r.source.GetEnhancedTransactions(ctx, pending[i:end])
		if errors.Is(err, helius.ErrRateLimited) {
			if r.metrics != nil {
				r.metrics.ProviderRateLimits.Inc()
			}
			return err
		}
		if err != nil {
			r.logger.Printf("[runner] enhanced fetch failed for %d signatures: %v", end-i, err)
			continue
		}

		for _, tx := range txs {
			if tx == nil {
				continue
			}
			r.sink.ProcessTransaction(ctx, tx)
		}
	}

	return nil
}

func (r *Runner) checkpoint(wallet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSigs[wallet]
}

func (r *Runner) setCheckpoint(wallet, signature string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSigs[wallet] = signature
}

// Checkpoints returns a copy of the current per-wallet checkpoints.
func (r *Runner) Checkpoints() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.lastSigs))
	for k, v := range r.lastSigs {
		out[k] = v
	}
	return out
}

func (r *Runner) flushCheckpoints(ctx context.Context) {
	if r.checkpoints == nil {
		return
	}
	if err := r.checkpoints.Save(ctx, r.Checkpoints()); err != nil {
		r.logger.Printf("[runner] checkpoint save failed: %v", err)
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8] + "..."
}
