package domain

import "time"

// AlertState tracks the last alert fired for a mint. Created on the first
// alert, overwritten on every subsequent one, never deleted.
type AlertState struct {
	LastAlertAt    time.Time
	WalletCount    int     // unique wallets at the last alert
	StreakBaseline float64 // market cap at the first alert of the current bullish streak
	StreakCount    int     // position within the streak (1 = new streak)
}

// AlertDecision is the engine's output when a mint crosses the wallet
// threshold. Wallets carries the full set; display truncation is the
// notifier's concern.
type AlertDecision struct {
	ID          string
	Mint        string
	Symbol      string
	Wallets     []string
	Purchases   []PurchaseRecord
	Snapshot    TokenSnapshot
	StreakCount int     // 1 for a fresh alert, N+1 within the bullish window
	Bullish     bool    // true when part of a streak
	BaselineCap float64 // streak-first market cap; equals Snapshot.MarketCap when not bullish
	FiredAt     time.Time
}

// AlertSnapshot is the persisted record of a fired alert.
type AlertSnapshot struct {
	ID          int64
	Mint        string
	Symbol      string
	MarketCap   float64
	WalletCount int
	Wallets     []string
	CreatedAt   time.Time
}

// TradeSignal is a best-effort persistence record marking a mint as an
// entry candidate for downstream consumers.
type TradeSignal struct {
	ID          int64
	Mint        string
	Symbol      string
	EntryCap    float64
	Scenario    string
	WalletCount int
	CreatedAt   time.Time
}

// WalletActivity records a single verified purchase by a tracked wallet.
type WalletActivity struct {
	Wallet      string
	Mint        string
	Symbol      string
	Signature   string
	SolSpent    float64
	BuyValueUSD float64
	MarketCap   float64
	CreatedAt   time.Time
}
