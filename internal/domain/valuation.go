package domain

import "time"

// Valuation check labels. Each alert schedules all four.
const (
	CheckLabel1Min  = "1min"
	CheckLabel5Min  = "5min"
	CheckLabel15Min = "15min"
	CheckLabel30Min = "30min"
)

// Valuation classifications. Only thresholded checks (5min, 30min)
// produce one; observation-only checks leave it empty.
const (
	ClassificationTrash          = "trash"
	ClassificationShortList      = "short_list"
	ClassificationContractsCheck = "contracts_check"
	ClassificationNotShortList   = "not_short_list"
)

// ValuationCheck is a deferred market-cap re-check scheduled after an
// alert. Threshold is nil for observation-only checkpoints.
type ValuationCheck struct {
	Mint      string
	Symbol    string
	AlertCap  float64 // market cap at alert time (check baseline)
	Wallets   []string
	AlertAt   time.Time
	CheckAt   time.Time // when the check fires
	Label     string
	Threshold *float64 // fractional gain required to pass, nil = observe only
}

// ValuationResult is the outcome of one executed check.
type ValuationResult struct {
	Mint           string
	Symbol         string
	Label          string
	AlertCap       float64
	CurrentCap     float64
	ChangePct      float64 // fractional change vs AlertCap
	Classification string  // empty for observation-only checks
	Passed         bool
	CheckedAt      time.Time
}

// TokenEvaluation is the persisted form of a valuation check, carrying
// the monotonic all-time-high market cap observed for the mint.
type TokenEvaluation struct {
	ID             int64
	Mint           string
	Symbol         string
	Label          string
	AlertCap       float64
	CurrentCap     float64
	ChangePct      float64
	Classification string
	ATHCap         float64
	Wallets        []string
	AlertAt        time.Time
	CheckedAt      time.Time
}
