package engine

import (
	"time"

	"smartmoney-monitor/internal/domain"
)

// purchaseWindow holds per-mint sliding windows of verified purchases.
// A wallet appears at most once per mint; records leave the window only
// by age, never by count. Not safe for concurrent use; the engine
// serializes access under its own lock.
type purchaseWindow struct {
	span    time.Duration
	records map[string][]domain.PurchaseRecord
}

func newPurchaseWindow(span time.Duration) *purchaseWindow {
	return &purchaseWindow{
		span:    span,
		records: make(map[string][]domain.PurchaseRecord),
	}
}

// Add appends a record for the mint unless the wallet already has one
// in the live window. Returns false for a duplicate wallet. Expired
// records for the mint are pruned first so a wallet whose earlier
// purchase has aged out counts as new.
func (w *purchaseWindow) Add(mint string, rec domain.PurchaseRecord) bool {
	w.prune(mint, rec.Timestamp)
	for _, existing := range w.records[mint] {
		if existing.Wallet == rec.Wallet {
			return false
		}
	}
	w.records[mint] = append(w.records[mint], rec)
	return true
}

// Records returns the live records for the mint as of now.
func (w *purchaseWindow) Records(mint string, now time.Time) []domain.PurchaseRecord {
	w.prune(mint, now)
	return w.records[mint]
}

// UniqueWallets returns the distinct wallet count in the live window.
func (w *purchaseWindow) UniqueWallets(mint string, now time.Time) int {
	return len(w.Records(mint, now))
}

// Wallets returns the wallet addresses in the live window, purchase order.
func (w *purchaseWindow) Wallets(mint string, now time.Time) []string {
	recs := w.Records(mint, now)
	wallets := make([]string, 0, len(recs))
	for _, r := range recs {
		wallets = append(wallets, r.Wallet)
	}
	return wallets
}

// Clear drops all records for the mint.
func (w *purchaseWindow) Clear(mint string) {
	delete(w.records, mint)
}

// Mints returns the number of mints with at least one record.
func (w *purchaseWindow) Mints() int {
	return len(w.records)
}

func (w *purchaseWindow) prune(mint string, now time.Time) {
	recs := w.records[mint]
	if len(recs) == 0 {
		return
	}
	cutoff := now.Add(-w.span)
	live := recs[:0]
	for _, r := range recs {
		if r.Timestamp.After(cutoff) {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		delete(w.records, mint)
		return
	}
	w.records[mint] = live
}
