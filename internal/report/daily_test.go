package report

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/notify"
	"smartmoney-monitor/internal/storage/memory"
)

type fakeMarket struct {
	caps map[string]float64
}

func (f *fakeMarket) TokenSnapshot(ctx context.Context, mint string) (*domain.TokenSnapshot, error) {
	mcap, ok := f.caps[mint]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &domain.TokenSnapshot{Symbol: "X", MarketCap: mcap}, nil
}

type fakeNotifier struct {
	statuses []string
}

func (f *fakeNotifier) Notify(ctx context.Context, d *domain.AlertDecision) error { return nil }
func (f *fakeNotifier) Status(ctx context.Context, msg string) error {
	f.statuses = append(f.statuses, msg)
	return nil
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func testReporter(t *testing.T, market MarketData, now time.Time) (*Reporter, *memory.AlertStore, *memory.EvaluationStore, *fakeNotifier) {
	t.Helper()
	alerts := memory.NewAlertStore()
	evals := memory.NewEvaluationStore()
	notifier := &fakeNotifier{}
	r := NewReporter(Options{
		Alerts:   alerts,
		Evals:    evals,
		Market:   market,
		Notifier: notifier,
		Logger:   log.New(io.Discard, "", 0),
		Now:      func() time.Time { return now },
	})
	return r, alerts, evals, notifier
}

func TestReporter_NoAlerts(t *testing.T) {
	r, _, _, _ := testReporter(t, &fakeMarket{}, time.Now())

	text, err := r.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(text, "no alerts fired") {
		t.Errorf("report = %q", text)
	}
}

func TestReporter_WinLossFromPeak(t *testing.T) {
	now := time.Now().UTC()
	market := &fakeMarket{caps: map[string]float64{
		"winner": 90_000,  // below entry now, but peaked above
		"loser":  50_000,  // never recovered
	}}
	r, alerts, evals, _ := testReporter(t, market, now)
	ctx := context.Background()

	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "winner", Symbol: "WIN", MarketCap: 100_000, CreatedAt: now.Add(-2 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "loser", Symbol: "LOSE", MarketCap: 100_000, CreatedAt: now.Add(-3 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := evals.Insert(ctx, &domain.TokenEvaluation{
		Mint: "winner", Label: domain.CheckLabel30Min, ATHCap: 160_000,
		Classification: domain.ClassificationShortList,
		AlertAt:        now.Add(-2 * time.Hour), CheckedAt: now.Add(-90 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	text, err := r.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !strings.Contains(text, "1W / 1L across 2 tokens") {
		t.Errorf("missing win/loss summary: %q", text)
	}
	if !strings.Contains(text, "WIN | $100K -> peak $160K (+60%)") {
		t.Errorf("missing peak line: %q", text)
	}
	if !strings.Contains(text, "promoted 1") {
		t.Errorf("missing classification tally: %q", text)
	}
	// Winner sorts above loser.
	if strings.Index(text, "WIN |") > strings.Index(text, "LOSE |") {
		t.Errorf("order wrong: %q", text)
	}
}

func TestReporter_FirstAlertCapWins(t *testing.T) {
	now := time.Now().UTC()
	market := &fakeMarket{caps: map[string]float64{"mint": 120_000}}
	r, alerts, _, _ := testReporter(t, market, now)
	ctx := context.Background()

	// Two alerts for the same mint; the earlier one sets the entry cap.
	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "mint", Symbol: "TKN", MarketCap: 60_000, CreatedAt: now.Add(-4 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "mint", Symbol: "TKN", MarketCap: 110_000, CreatedAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	text, err := r.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(text, "alerts total: 2 (1 distinct tokens)") {
		t.Errorf("alert tally wrong: %q", text)
	}
	// +100% from the 60K entry, not +9% from the second alert.
	if !strings.Contains(text, "+100%") {
		t.Errorf("entry cap not taken from first alert: %q", text)
	}
}

func TestReporter_LookupFailureTolerated(t *testing.T) {
	now := time.Now().UTC()
	r, alerts, _, notifier := testReporter(t, &fakeMarket{}, now)
	ctx := context.Background()

	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "gone", Symbol: "GONE", MarketCap: 80_000, CreatedAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	if err := r.Send(ctx); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(notifier.statuses) != 1 {
		t.Fatalf("got %d status messages", len(notifier.statuses))
	}
	if !strings.Contains(notifier.statuses[0], "GONE") {
		t.Errorf("report missing token: %q", notifier.statuses[0])
	}
}

func TestReporter_CleanupPrunesOldRows(t *testing.T) {
	now := time.Now().UTC()
	alerts := memory.NewAlertStore()
	evals := memory.NewEvaluationStore()
	r := NewReporter(Options{
		Alerts:        alerts,
		Evals:         evals,
		Market:        &fakeMarket{},
		Notifier:      &fakeNotifier{},
		Logger:        log.New(io.Discard, "", 0),
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	})
	ctx := context.Background()

	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "old", CreatedAt: now.Add(-31 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "fresh", CreatedAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := evals.Insert(ctx, &domain.TokenEvaluation{
		Mint: "old", Label: domain.CheckLabel1Min, CheckedAt: now.Add(-31 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	r.Cleanup(ctx)

	left, err := alerts.GetSince(ctx, now.Add(-365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Mint != "fresh" {
		t.Errorf("alerts after cleanup = %v, want only fresh", left)
	}
	evalsLeft, err := evals.GetSince(ctx, now.Add(-365*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(evalsLeft) != 0 {
		t.Errorf("evaluations after cleanup = %d, want 0", len(evalsLeft))
	}
}

func TestReporter_CleanupDisabledByDefault(t *testing.T) {
	now := time.Now().UTC()
	r, alerts, _, _ := testReporter(t, &fakeMarket{}, now)
	ctx := context.Background()

	if err := alerts.Insert(ctx, &domain.AlertSnapshot{
		Mint: "old", CreatedAt: now.Add(-365 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	r.Cleanup(ctx)

	left, err := alerts.GetSince(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Errorf("rows pruned with retention disabled, left = %d", len(left))
	}
}
