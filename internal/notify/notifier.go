// Package notify defines the outbound alert delivery contract.
package notify

import (
	"context"
	"log"
	"strings"

	"smartmoney-monitor/internal/domain"
)

// Notifier delivers alert decisions to a human-facing channel. Delivery
// failure is reported to the caller; the engine logs it and moves on
// without retrying.
type Notifier interface {
	// Notify delivers one alert decision.
	Notify(ctx context.Context, decision *domain.AlertDecision) error

	// Status delivers a free-form operational message (startup, daily
	// report). Best effort.
	Status(ctx context.Context, message string) error
}

// displayWallets is the maximum number of wallet addresses included in
// a rendered alert line. The decision itself carries the full set.
const displayWallets = 5

// LogNotifier writes alerts to the process log. Used as the default
// sink and in tests.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify renders the decision as a single log line.
func (n *LogNotifier) Notify(_ context.Context, d *domain.AlertDecision) error {
	wallets := d.Wallets
	if len(wallets) > displayWallets {
		wallets = wallets[:displayWallets]
	}
	streak := ""
	if d.Bullish {
		streak = " bullish"
	}
	n.logger.Printf("ALERT%s %s (%s): %d wallets [%s] mcap=%.0f baseline=%.0f streak=%d",
		streak, d.Symbol, d.Mint, len(d.Wallets), strings.Join(wallets, ", "),
		d.Snapshot.MarketCap, d.BaselineCap, d.StreakCount)
	return nil
}

// Status logs the message verbatim.
func (n *LogNotifier) Status(_ context.Context, message string) error {
	n.logger.Printf("%s", message)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
