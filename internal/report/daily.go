// Package report builds the daily closing summary: every token alerted
// in the last 24 hours with its alert cap, peak cap and current cap,
// a win/loss verdict per token, and the classification tally.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/notify"
	"smartmoney-monitor/internal/storage"
)

// DefaultSchedule fires at midnight in the report clock's timezone.
const DefaultSchedule = "0 0 * * *"

// MarketData resolves the current market cap for the report's
// hold-vs-peak comparison.
type MarketData interface {
	TokenSnapshot(ctx context.Context, mint string) (*domain.TokenSnapshot, error)
}

// Reporter assembles and delivers the daily summary.
type Reporter struct {
	alerts   storage.AlertStore
	evals    storage.EvaluationStore
	activity storage.ActivityStore
	market   MarketData
	notifier notify.Notifier
	logger   *log.Logger
	location *time.Location
	now      func() time.Time

	retentionDays int
}

// Options contains configuration for creating a Reporter.
type Options struct {
	Alerts   storage.AlertStore
	Evals    storage.EvaluationStore
	Activity storage.ActivityStore
	Market   MarketData
	Notifier notify.Notifier
	Logger   *log.Logger
	// UTCOffsetHours fixes the report day boundary clock. Defaults to
	// +3, matching the alert blackout clock.
	UTCOffsetHours int
	// RetentionDays bounds how long alert and evaluation rows are kept.
	// Zero disables pruning.
	RetentionDays int
	Now           func() time.Time
}

// NewReporter creates a daily reporter.
func NewReporter(opts Options) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	offset := opts.UTCOffsetHours
	if offset == 0 {
		offset = 3
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reporter{
		alerts:   opts.Alerts,
		evals:    opts.Evals,
		activity: opts.Activity,
		market:   opts.Market,
		notifier: opts.Notifier,
		logger:   logger,
		location: time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600),
		now:      now,

		retentionDays: opts.RetentionDays,
	}
}

// Location returns the fixed-offset clock the report day boundary
// follows. The cron runner must be created with this location for
// midnight to land on the right hour.
func (r *Reporter) Location() *time.Location {
	return r.location
}

// Register adds the daily job to the given cron runner.
func (r *Reporter) Register(c *cron.Cron, spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.Send(ctx); err != nil {
			r.logger.Printf("[report] daily report failed: %v", err)
		}
		r.Cleanup(ctx)
	})
	return err
}

// Cleanup prunes alert and evaluation rows older than the retention
// window. Runs after each daily report; failures are logged and the
// rows get another chance the next day.
func (r *Reporter) Cleanup(ctx context.Context) {
	if r.retentionDays <= 0 {
		return
	}
	cutoff := r.now().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)

	var pruned int64
	if n, err := r.alerts.PruneBefore(ctx, cutoff); err != nil {
		r.logger.Printf("[report] alert prune failed: %v", err)
	} else {
		pruned += n
	}
	if r.evals != nil {
		if n, err := r.evals.PruneBefore(ctx, cutoff); err != nil {
			r.logger.Printf("[report] evaluation prune failed: %v", err)
		} else {
			pruned += n
		}
	}
	if pruned > 0 {
		r.logger.Printf("[report] pruned %d rows older than %d days", pruned, r.retentionDays)
	}
}

// Send builds the summary for the last 24 hours and delivers it as a
// status message.
func (r *Reporter) Send(ctx context.Context) error {
	text, err := r.Build(ctx)
	if err != nil {
		return err
	}
	return r.notifier.Status(ctx, text)
}

// tokenSummary aggregates all alerts for one mint within the window.
type tokenSummary struct {
	mint           string
	symbol         string
	alertCap       float64 // cap at the first alert of the day
	alertCount     int
	athCap         float64
	currentCap     float64
	classification string
}

func (t *tokenSummary) athChangePct() (float64, bool) {
	if t.alertCap <= 0 || t.athCap <= 0 {
		return 0, false
	}
	return (t.athCap - t.alertCap) / t.alertCap * 100, true
}

func (t *tokenSummary) holdChangePct() (float64, bool) {
	if t.alertCap <= 0 {
		return 0, false
	}
	return (t.currentCap - t.alertCap) / t.alertCap * 100, true
}

// win is peak-based: a token counts as a win when it rose above its
// alert cap at any point, even if it later collapsed.
func (t *tokenSummary) win() bool {
	if pct, ok := t.athChangePct(); ok {
		return pct > 0
	}
	if pct, ok := t.holdChangePct(); ok {
		return pct > 0
	}
	return false
}

// Build renders the report text for the 24 hours preceding now.
func (r *Reporter) Build(ctx context.Context) (string, error) {
	now := r.now().In(r.location)
	since := now.Add(-24 * time.Hour)
	dateStr := now.Add(-24 * time.Hour).Format("02.01.2006")

	alerts, err := r.alerts.GetSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("load alerts: %w", err)
	}
	if len(alerts) == 0 {
		return fmt.Sprintf("DAILY CLOSE %s\nno alerts fired in the last 24h", dateStr), nil
	}

	summaries := r.summarize(ctx, alerts, since)

	var wins, losses, withData int
	trash, success, unknown := 0, 0, 0
	for _, t := range summaries {
		if t.alertCap > 0 {
			withData++
			if t.win() {
				wins++
			} else {
				losses++
			}
		}
		switch t.classification {
		case domain.ClassificationTrash, domain.ClassificationNotShortList:
			trash++
		case domain.ClassificationShortList, domain.ClassificationContractsCheck:
			success++
		default:
			unknown++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DAILY CLOSE %s\n", dateStr)
	for _, t := range summaries {
		line := r.formatToken(t)
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if withData > 0 {
		winRate := float64(wins) / float64(withData) * 100
		fmt.Fprintf(&b, "%dW / %dL across %d tokens (%.0f%% peaked above entry)\n",
			wins, losses, withData, winRate)
	}
	if classified := trash + success; classified > 0 {
		fmt.Fprintf(&b, "trash %d/%d (%.0f%%), promoted %d\n",
			trash, classified, float64(trash)/float64(classified)*100, success)
	}
	if unknown > 0 {
		fmt.Fprintf(&b, "%d token(s) not yet evaluated\n", unknown)
	}
	fmt.Fprintf(&b, "alerts total: %d (%d distinct tokens)", len(alerts), len(summaries))

	if r.activity != nil {
		if purchases, err := r.activity.CountSince(ctx, since); err == nil {
			fmt.Fprintf(&b, "\nverified purchases: %d", purchases)
		}
	}

	return b.String(), nil
}

// summarize groups alerts by mint, folds in the day's evaluations and
// resolves current caps. Alerts arrive newest first, so the oldest
// entry per mint wins the alert-cap slot.
func (r *Reporter) summarize(ctx context.Context, alerts []*domain.AlertSnapshot, since time.Time) []*tokenSummary {
	byMint := make(map[string]*tokenSummary)
	var order []string

	for i := len(alerts) - 1; i >= 0; i-- {
		a := alerts[i]
		t, ok := byMint[a.Mint]
		if !ok {
			t = &tokenSummary{mint: a.Mint, symbol: a.Symbol, alertCap: a.MarketCap}
			if t.symbol == "" {
				t.symbol = "???"
			}
			byMint[a.Mint] = t
			order = append(order, a.Mint)
		}
		t.alertCount++
	}

	if r.evals != nil {
		evals, err := r.evals.GetSince(ctx, since)
		if err != nil {
			r.logger.Printf("[report] evaluation load failed: %v", err)
		}
		for _, e := range evals {
			t, ok := byMint[e.Mint]
			if !ok {
				continue
			}
			if e.ATHCap > t.athCap {
				t.athCap = e.ATHCap
			}
			if e.Classification != "" {
				t.classification = e.Classification
			}
		}
	}

	for _, mint := range order {
		t := byMint[mint]
		snap, err := r.market.TokenSnapshot(ctx, mint)
		if err != nil {
			r.logger.Printf("[report] cap lookup failed for %s: %v", mint, err)
			continue
		}
		t.currentCap = snap.MarketCap
		if t.currentCap > t.athCap {
			t.athCap = t.currentCap
		}
	}

	out := make([]*tokenSummary, 0, len(order))
	for _, mint := range order {
		out = append(out, byMint[mint])
	}
	// Best peak performance first; tokens without data go last.
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := out[i].athChangePct()
		pj, jok := out[j].athChangePct()
		if iok != jok {
			return iok
		}
		return pi > pj
	})
	return out
}

func (r *Reporter) formatToken(t *tokenSummary) string {
	athPct, athOK := t.athChangePct()
	holdPct, holdOK := t.holdChangePct()

	switch {
	case athOK:
		verdict := "L"
		if t.win() {
			verdict = "W"
		}
		hold := "?"
		if holdOK {
			hold = fmt.Sprintf("%+.0f%%", holdPct)
		}
		return fmt.Sprintf("%s | %s -> peak %s (%+.0f%%), now %s (%s) %s",
			t.symbol, formatCap(t.alertCap), formatCap(t.athCap), athPct,
			formatCap(t.currentCap), hold, verdict)
	case holdOK:
		verdict := "L"
		if holdPct > 0 {
			verdict = "W"
		}
		return fmt.Sprintf("%s | %s -> %s (%+.0f%%) %s",
			t.symbol, formatCap(t.alertCap), formatCap(t.currentCap), holdPct, verdict)
	default:
		return fmt.Sprintf("%s | ? -> %s (no entry cap)", t.symbol, formatCap(t.currentCap))
	}
}

func formatCap(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.0fK", v/1_000)
	case v > 0:
		return fmt.Sprintf("$%.0f", v)
	default:
		return "$0"
	}
}
