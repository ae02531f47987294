package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"smartmoney-monitor/internal/domain"
)

// fakeMarket serves snapshots from a queue; the last entry is sticky.
// A nil entry produces an error for that call.
type fakeMarket struct {
	snaps   []*domain.TokenSnapshot
	price   float64
	fetches int
}

func (m *fakeMarket) TokenSnapshot(_ context.Context, _ string) (*domain.TokenSnapshot, error) {
	m.fetches++
	var snap *domain.TokenSnapshot
	if len(m.snaps) > 0 {
		snap = m.snaps[0]
		if len(m.snaps) > 1 {
			m.snaps = m.snaps[1:]
		}
	}
	if snap == nil {
		return nil, errors.New("lookup failed")
	}
	copied := *snap
	return &copied, nil
}

func (m *fakeMarket) SolPrice(_ context.Context) (float64, error) {
	if m.price == 0 {
		return 0, errors.New("price unavailable")
	}
	return m.price, nil
}

type fakeNotifier struct {
	decisions []*domain.AlertDecision
	err       error
}

func (n *fakeNotifier) Notify(_ context.Context, d *domain.AlertDecision) error {
	if n.err != nil {
		return n.err
	}
	n.decisions = append(n.decisions, d)
	return nil
}

func (n *fakeNotifier) Status(_ context.Context, _ string) error { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func healthySnapshot() *domain.TokenSnapshot {
	return &domain.TokenSnapshot{
		Symbol:    "TEST",
		MarketCap: 100_000,
		Liquidity: 50_000,
		Volume24h: 80_000,
		Buys24h:   40,
		Sells24h:  20,
	}
}

func buy(wallet string, n int) *domain.SwapEvent {
	return &domain.SwapEvent{
		Wallet:    wallet,
		Mint:      "MintXYZ",
		SolSpent:  1.0,
		Source:    "Raydium AMM V4",
		Signature: fmt.Sprintf("%s-sig%d", wallet, n),
	}
}

func newTestEngine(t *testing.T, market *fakeMarket, notifier *fakeNotifier, clock *fakeClock, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(Options{
		Config:   cfg,
		Wallets:  []string{"w1", "w2", "w3", "w4", "w5"},
		Market:   market,
		Notifier: notifier,
		Logger:   log.New(io.Discard, "", 0),
		Now:      clock.Now,
	})
}

func TestEngine_ExactlyOneAlertAtThreshold(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2"} {
		out := e.Ingest(ctx, buy(w, i))
		if !out.Accepted {
			t.Fatalf("purchase %s rejected: %s", w, out.Reason)
		}
		if out.Decision != nil {
			t.Fatalf("no alert expected below threshold, got one at %s", w)
		}
		clock.Advance(2 * time.Second)
	}

	out := e.Ingest(ctx, buy("w3", 3))
	if out.Decision == nil {
		t.Fatal("third distinct wallet should trigger the alert")
	}
	if len(notifier.decisions) != 1 {
		t.Fatalf("expected exactly one delivered alert, got %d", len(notifier.decisions))
	}
	d := notifier.decisions[0]
	if len(d.Wallets) != 3 {
		t.Errorf("decision should carry the full wallet set, got %v", d.Wallets)
	}
	if d.StreakCount != 1 || d.Bullish {
		t.Errorf("first alert of a streak expected, got streak=%d bullish=%v", d.StreakCount, d.Bullish)
	}
	if d.BaselineCap != 100_000 {
		t.Errorf("baseline should equal current cap on a fresh alert, got %.0f", d.BaselineCap)
	}
}

func TestEngine_CooldownSuppressesEqualCount(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(notifier.decisions) != 1 {
		t.Fatalf("setup alert missing: %d", len(notifier.decisions))
	}

	// Let the first window age out entirely, then re-accumulate three
	// wallets inside the cooldown. Count equals the recorded count, so
	// the alert is suppressed.
	clock.Advance(60 * time.Second)
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, 10+i))
	}
	if len(notifier.decisions) != 1 {
		t.Fatalf("equal wallet count within cooldown must not re-alert, got %d alerts", len(notifier.decisions))
	}
}

func TestEngine_LargerCountOverridesCooldown(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	clock.Advance(5 * time.Second)

	// A fourth distinct wallet pushes the count past the recorded one.
	out := e.Ingest(ctx, buy("w4", 4))
	if out.Decision == nil {
		t.Fatal("strictly larger wallet count should force a re-alert during cooldown")
	}
	if len(notifier.decisions) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(notifier.decisions))
	}
	second := notifier.decisions[1]
	if !second.Bullish || second.StreakCount != 2 {
		t.Errorf("re-alert within bullish window: got streak=%d bullish=%v", second.StreakCount, second.Bullish)
	}
}

func TestEngine_BullishBaselineCarriedForward(t *testing.T) {
	first := healthySnapshot()
	later := healthySnapshot()
	later.MarketCap = 150_000
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{first, first, first, first, later}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if notifier.decisions[0].BaselineCap != 100_000 {
		t.Fatalf("first baseline: got %.0f", notifier.decisions[0].BaselineCap)
	}

	// Ten minutes later: cooldown elapsed, bullish window (30 min) not.
	clock.Advance(10 * time.Minute)
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, 10+i))
	}
	if len(notifier.decisions) != 2 {
		t.Fatalf("expected a second alert, got %d", len(notifier.decisions))
	}
	second := notifier.decisions[1]
	if !second.Bullish || second.StreakCount != 2 {
		t.Errorf("second alert should continue the streak, got streak=%d bullish=%v", second.StreakCount, second.Bullish)
	}
	if second.BaselineCap != 100_000 {
		t.Errorf("baseline must be the streak's first cap, got %.0f", second.BaselineCap)
	}
	if second.Snapshot.MarketCap != 150_000 {
		t.Errorf("snapshot should be current, got %.0f", second.Snapshot.MarketCap)
	}
}

func TestEngine_DuplicateSignatureDropped(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	swap := buy("w1", 1)
	if out := e.Ingest(ctx, swap); !out.Accepted {
		t.Fatalf("first delivery rejected: %s", out.Reason)
	}
	// Same signature arriving again, e.g. polling after the webhook.
	out := e.Ingest(ctx, swap)
	if out.Accepted {
		t.Fatal("duplicate delivery must not create a second record")
	}
	if out.Reason != "duplicate signature" {
		t.Errorf("unexpected reason: %s", out.Reason)
	}
	if got := e.window.UniqueWallets(swap.Mint, clock.Now()); got != 1 {
		t.Errorf("expected 1 purchase record, got %d", got)
	}
}

func TestEngine_FakeAlertDiscardsWindow(t *testing.T) {
	healthy := healthySnapshot()
	decayed := healthySnapshot()
	decayed.Volume24h = 1_000
	// Three ingestion fetches see a healthy token; the decision-time
	// re-fetch sees the spike decayed.
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthy, healthy, healthy, decayed, healthy}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(notifier.decisions) != 0 {
		t.Fatal("fake alert must not be delivered")
	}
	if got := e.window.UniqueWallets("MintXYZ", clock.Now()); got != 0 {
		t.Errorf("window should be discarded on a fake alert, got %d wallets", got)
	}

	// The mint is not blacklisted: accumulation restarts immediately.
	out := e.Ingest(ctx, buy("w1", 10))
	if !out.Accepted {
		t.Errorf("re-accumulation should restart: %s", out.Reason)
	}
}

func TestEngine_BlackoutHourRaisesThreshold(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	// 12:00 UTC is 15:00 at offset +3.
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, func(cfg *Config) {
		cfg.BlackoutHours = []int{15}
	})

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(notifier.decisions) != 0 {
		t.Fatal("base threshold must not fire during a blackout hour")
	}

	e.Ingest(ctx, buy("w4", 4))
	if len(notifier.decisions) != 1 {
		t.Fatalf("raised threshold of 4 should fire, got %d alerts", len(notifier.decisions))
	}
}

func TestEngine_NotifyFailureLeavesStateUntouched(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{err: errors.New("delivery down")}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(notifier.decisions) != 0 {
		t.Fatal("no alert should be recorded while delivery is down")
	}

	// Delivery recovers; the next qualifying purchase retries from a
	// clean slate (no cooldown, no streak).
	notifier.err = nil
	out := e.Ingest(ctx, buy("w4", 4))
	if out.Decision == nil {
		t.Fatal("expected the retried alert to fire")
	}
	if out.Decision.StreakCount != 1 || out.Decision.Bullish {
		t.Errorf("failed delivery must not start a streak, got streak=%d bullish=%v",
			out.Decision.StreakCount, out.Decision.Bullish)
	}
}

func TestEngine_FilterRejections(t *testing.T) {
	dusty := healthySnapshot()
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{dusty}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()

	// 0.01 SOL at $200 is $2, below the $5 dust floor.
	small := buy("w1", 1)
	small.SolSpent = 0.01
	if out := e.Ingest(ctx, small); out.Accepted || out.Reason != "dust" {
		t.Errorf("expected dust rejection, got %+v", out)
	}

	excluded := buy("w1", 2)
	excluded.Mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	if out := e.Ingest(ctx, excluded); out.Accepted || out.Reason != "excluded mint" {
		t.Errorf("expected excluded mint rejection, got %+v", out)
	}

	// Rejected events still consume their signature.
	if out := e.Ingest(ctx, small); out.Reason != "duplicate signature" {
		t.Errorf("rejected signature should be marked processed, got %+v", out)
	}
}

func TestEngine_ZeroSpendPassesDustFilter(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	// SOL spend that could not be netted from the transfers arrives as
	// zero; the wallet still counts toward the cluster.
	unnetted := buy("w1", 1)
	unnetted.SolSpent = 0
	out := e.Ingest(context.Background(), unnetted)
	if !out.Accepted {
		t.Fatalf("zero-spend purchase rejected: %s", out.Reason)
	}
	if got := e.window.UniqueWallets("MintXYZ", clock.Now()); got != 1 {
		t.Errorf("expected the purchase in the window, got %d wallets", got)
	}
}

func TestEngine_CooldownBoundarySuppresses(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, market, notifier, clock, nil)

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(notifier.decisions) != 1 {
		t.Fatalf("setup alert missing: %d", len(notifier.decisions))
	}

	// Elapsed time exactly equal to the cooldown still suppresses.
	clock.Advance(DefaultConfig().Cooldown)
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, 10+i))
	}
	if len(notifier.decisions) != 1 {
		t.Fatalf("alert at the exact cooldown boundary must be suppressed, got %d alerts", len(notifier.decisions))
	}

	// Past the boundary the same count re-alerts once the window empties.
	clock.Advance(21 * time.Second)
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, 20+i))
	}
	if len(notifier.decisions) != 2 {
		t.Fatalf("expected a second alert past the cooldown, got %d", len(notifier.decisions))
	}
}

func TestEngine_OnAlertHook(t *testing.T) {
	market := &fakeMarket{snaps: []*domain.TokenSnapshot{healthySnapshot()}, price: 200}
	notifier := &fakeNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}

	var hooked []*domain.AlertDecision
	cfg := DefaultConfig()
	e := New(Options{
		Config:   cfg,
		Wallets:  []string{"w1", "w2", "w3"},
		Market:   market,
		Notifier: notifier,
		Logger:   log.New(io.Discard, "", 0),
		Now:      clock.Now,
		OnAlert:  func(d *domain.AlertDecision) { hooked = append(hooked, d) },
	})

	ctx := context.Background()
	for i, w := range []string{"w1", "w2", "w3"} {
		e.Ingest(ctx, buy(w, i))
	}
	if len(hooked) != 1 {
		t.Fatalf("expected hook to fire once, got %d", len(hooked))
	}
	if hooked[0].ID == "" {
		t.Error("decision ID should be assigned")
	}
}
