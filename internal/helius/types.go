// Package helius provides a rate-limited client for the Helius RPC and
// Enhanced Transactions APIs, plus the enhanced-transaction wire types.
package helius

// EnhancedTransaction is a human-readable parsed transaction from the
// Helius Enhanced Transactions API. The same shape arrives via the
// batch endpoint, enhanced webhooks and transactionSubscribe pushes.
type EnhancedTransaction struct {
	Signature       string           `json:"signature"`
	Type            string           `json:"type"`   // "SWAP", "TRANSFER", "NFT_SALE", ...
	Source          string           `json:"source"` // provider's DEX/source tag
	Description     string           `json:"description"`
	FeePayer        string           `json:"feePayer"`
	Fee             int64            `json:"fee"`
	Timestamp       int64            `json:"timestamp"` // unix seconds
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	AccountData     []AccountData    `json:"accountData"`
	Instructions    []Instruction    `json:"instructions"`
}

// TokenTransfer is a single SPL token movement within a transaction.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
	TokenStandard   string  `json:"tokenStandard"`
}

// NativeTransfer is a SOL movement in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// AccountData lists an account touched by the transaction.
type AccountData struct {
	Account string `json:"account"`
}

// Instruction carries the program id of an outer instruction and any
// nested inner instructions.
type Instruction struct {
	ProgramID         string             `json:"programId"`
	InnerInstructions []InnerInstruction `json:"innerInstructions"`
}

// InnerInstruction is a nested instruction's program id.
type InnerInstruction struct {
	ProgramID string `json:"programId"`
}

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// Failed reports whether the transaction itself failed on chain.
func (s *SignatureInfo) Failed() bool {
	return s.Err != nil
}

// LamportsPerSol converts between lamports and SOL.
const LamportsPerSol = 1e9
