// Package classifier turns raw enhanced transactions into typed swap
// events, filtering out transfers, airdrops and NFT activity.
package classifier

// WSOLMint is the wrapped SOL mint address.
const WSOLMint = "So11111111111111111111111111111111111111112"

// DEXPrograms maps swap-capable program ids to human-readable labels.
// A transaction touching any of these (including via inner instructions)
// is treated as a swap even when the provider left it untyped.
var DEXPrograms = map[string]string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSdgbctX": "Raydium AMM V4",
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": "Raydium CLMM",
	"CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C": "Raydium CPMM",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "Jupiter V6",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "Pump.fun",
	"pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA":  "PumpSwap",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "Orca Whirlpool",
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  "Meteora DLMM",
}

// ExcludedMints are stable/base assets that never count as a purchase.
var ExcludedMints = map[string]bool{
	"So11111111111111111111111111111111111111112":  true, // wSOL
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  true, // mSOL
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": true, // stSOL
	"J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn": true, // JitoSOL
	"bSo13r4TkiE4KumL71LsHTPpL2euBYLFx6h9HP3piy1":  true, // bSOL
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": true, // BONK
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  true, // JUP
}

// ExcludedSymbols rejects by resolved symbol what ExcludedMints rejects
// by address. Compared case-insensitively.
var ExcludedSymbols = map[string]bool{
	"SOL": true, "WSOL": true, "USDC": true, "USDT": true,
	"MSOL": true, "STSOL": true, "JITOSOL": true, "BSOL": true, "JUP": true,
}

// airdropFanout is the distinct-recipient count above which a transfer
// is treated as a batch airdrop rather than a purchase.
const airdropFanout = 5
