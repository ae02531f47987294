package domain

import "time"

// SwapEvent is a verified token purchase extracted from an enhanced
// transaction: one tracked wallet received a non-excluded mint and paid
// for it in SOL (directly or through wSOL).
type SwapEvent struct {
	Wallet      string    // buyer wallet address
	Mint        string    // mint address of the token received
	TokenAmount float64   // amount of the token received
	SolSpent    float64   // net SOL paid by the wallet
	Source      string    // DEX label ("Raydium AMM V4", "Jupiter V6", ...)
	Signature   string    // provider transaction signature
	ObservedAt  time.Time // when the event entered the engine
}

// PurchaseRecord is one wallet's entry in a mint's purchase window.
// A wallet appears at most once per mint per window.
type PurchaseRecord struct {
	Wallet    string
	SolSpent  float64
	MarketCap float64 // market cap at purchase time
	Timestamp time.Time
}
