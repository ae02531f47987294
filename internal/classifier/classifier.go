package classifier

import (
	"fmt"
	"strings"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/helius"
)

// Kind is the coarse classification of an enhanced transaction.
type Kind string

// Classification kinds.
const (
	KindSwap         Kind = "SWAP"
	KindTransfer     Kind = "TRANSFER"
	KindAirdrop      Kind = "AIRDROP"
	KindNFT          Kind = "NFT"
	KindUnclassified Kind = "UNCLASSIFIED"
)

// Classification is the result of Classify. Reason is empty for swaps.
type Classification struct {
	Kind   Kind
	Source string // DEX label for swaps, provider source tag otherwise
	Reason string
}

// IsSwap reports whether the transaction qualifies as a swap.
func (c Classification) IsSwap() bool {
	return c.Kind == KindSwap
}

// Classify decides whether an enhanced transaction is a swap.
//
// Order matters: the provider's own SWAP tag wins outright; transfers
// are split into airdrops (high recipient fan-out) and plain transfers;
// NFT activity is rejected; anything else is accepted only when a known
// swap program appears in the instruction list (outer or inner).
func Classify(tx *helius.EnhancedTransaction) Classification {
	if tx.Type == "SWAP" {
		return Classification{Kind: KindSwap, Source: tx.Source}
	}

	if tx.Type == "TRANSFER" {
		recipients := make(map[string]bool)
		for _, tt := range tx.TokenTransfers {
			if tt.ToUserAccount != "" {
				recipients[tt.ToUserAccount] = true
			}
		}
		if len(recipients) > airdropFanout {
			return Classification{
				Kind:   KindAirdrop,
				Source: tx.Source,
				Reason: fmt.Sprintf("batch transfer to %d distinct recipients", len(recipients)),
			}
		}
		return Classification{Kind: KindTransfer, Source: tx.Source, Reason: "transfer, not a swap"}
	}

	if strings.Contains(tx.Type, "NFT") {
		return Classification{Kind: KindNFT, Source: tx.Source, Reason: "NFT activity"}
	}

	// Untyped: look for a known swap program, first match wins.
	for _, ix := range tx.Instructions {
		if label, ok := DEXPrograms[ix.ProgramID]; ok {
			return Classification{Kind: KindSwap, Source: label}
		}
	}
	for _, ix := range tx.Instructions {
		for _, inner := range ix.InnerInstructions {
			if label, ok := DEXPrograms[inner.ProgramID]; ok {
				return Classification{Kind: KindSwap, Source: label}
			}
		}
	}

	return Classification{
		Kind:   KindUnclassified,
		Source: tx.Source,
		Reason: fmt.Sprintf("no known swap program (type %q)", tx.Type),
	}
}

// ExtractSwap validates a classified transaction as a purchase by the
// given wallet and builds the swap event. The second return value is a
// rejection reason; it is empty exactly when the event is non-nil.
func ExtractSwap(tx *helius.EnhancedTransaction, wallet string) (*domain.SwapEvent, string) {
	c := Classify(tx)
	if !c.IsSwap() {
		return nil, c.Reason
	}

	// Token transfer received by the wallet, skipping excluded mints.
	var received *helius.TokenTransfer
	for i := range tx.TokenTransfers {
		tt := &tx.TokenTransfers[i]
		if !strings.EqualFold(tt.ToUserAccount, wallet) {
			continue
		}
		if ExcludedMints[tt.Mint] {
			continue
		}
		received = tt
		break
	}
	if received == nil {
		return nil, "no token received by this wallet"
	}

	solSpent := netNativeSpent(tx, wallet)
	if solSpent == 0 {
		// Some swap programs route the spend through wSOL token
		// transfers instead of native transfers.
		solSpent = netWSOLSpent(tx, wallet)
	}

	observedAt := time.Now()
	if tx.Timestamp > 0 {
		observedAt = time.Unix(tx.Timestamp, 0)
	}

	return &domain.SwapEvent{
		Wallet:      wallet,
		Mint:        received.Mint,
		TokenAmount: received.TokenAmount,
		SolSpent:    solSpent,
		Source:      c.Source,
		Signature:   tx.Signature,
		ObservedAt:  observedAt,
	}, ""
}

// netNativeSpent nets the wallet's outgoing and incoming SOL transfers,
// floored at zero.
func netNativeSpent(tx *helius.EnhancedTransaction, wallet string) float64 {
	var spent float64
	for _, nt := range tx.NativeTransfers {
		if strings.EqualFold(nt.FromUserAccount, wallet) {
			spent += float64(nt.Amount) / helius.LamportsPerSol
		}
	}
	for _, nt := range tx.NativeTransfers {
		if strings.EqualFold(nt.ToUserAccount, wallet) {
			spent -= float64(nt.Amount) / helius.LamportsPerSol
		}
	}
	if spent < 0 {
		return 0
	}
	return spent
}

// netWSOLSpent nets the wallet's wSOL token transfers, floored at zero.
func netWSOLSpent(tx *helius.EnhancedTransaction, wallet string) float64 {
	var spent float64
	for _, tt := range tx.TokenTransfers {
		if tt.Mint != WSOLMint {
			continue
		}
		if strings.EqualFold(tt.FromUserAccount, wallet) {
			spent += tt.TokenAmount
		}
	}
	for _, tt := range tx.TokenTransfers {
		if tt.Mint != WSOLMint {
			continue
		}
		if strings.EqualFold(tt.ToUserAccount, wallet) {
			spent -= tt.TokenAmount
		}
	}
	if spent < 0 {
		return 0
	}
	return spent
}
