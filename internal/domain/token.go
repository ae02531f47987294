package domain

// TokenSnapshot is a point-in-time view of a token's market data,
// fetched fresh for every evaluation and never cached across calls.
type TokenSnapshot struct {
	Symbol    string
	Name      string
	MarketCap float64 // USD market capitalization (FDV fallback)
	PriceUSD  float64
	Liquidity float64 // pool liquidity in USD
	Volume24h float64 // 24h trade volume in USD
	Buys24h   int
	Sells24h  int
	PairAddr  string
	DexID     string
}

// Txns24h returns total 24h transaction count (buys + sells).
func (s *TokenSnapshot) Txns24h() int {
	return s.Buys24h + s.Sells24h
}
