package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrNoWallets means the wallet file produced zero valid addresses.
// The process must not start without a watch list.
var ErrNoWallets = errors.New("monitor: no valid wallets loaded")

// walletEntry covers the object form of a wallet list item.
type walletEntry struct {
	Address string `json:"address"`
}

// walletFile covers the wrapped form {"wallets": [...]}.
type walletFile struct {
	Wallets json.RawMessage `json:"wallets"`
}

// LoadWallets reads a wallet list from a JSON file. Three shapes are
// accepted: a bare array of base58 addresses, an array of objects with
// an "address" field, or either of those wrapped in {"wallets": ...}.
// Invalid addresses are dropped silently; an empty result is an error.
func LoadWallets(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}
	wallets, err := ParseWallets(data)
	if err != nil {
		return nil, fmt.Errorf("parse wallet file %s: %w", path, err)
	}
	return wallets, nil
}

// ParseWallets decodes a wallet list from raw JSON and validates every
// address. Duplicates and off-curve or malformed addresses are dropped.
func ParseWallets(data []byte) ([]string, error) {
	raw := data

	// Unwrap {"wallets": [...]} if present.
	var wrapped walletFile
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Wallets != nil {
		raw = wrapped.Wallets
	}

	addresses, err := decodeAddressList(raw)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(addresses))
	valid := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if _, dup := seen[addr]; dup {
			continue
		}
		if !isValidWallet(addr) {
			continue
		}
		seen[addr] = struct{}{}
		valid = append(valid, addr)
	}

	if len(valid) == 0 {
		return nil, ErrNoWallets
	}
	return valid, nil
}

// decodeAddressList accepts either ["addr", ...] or [{"address": ...}].
func decodeAddressList(raw []byte) ([]string, error) {
	var strs []string
	if err := json.Unmarshal(raw, &strs); err == nil {
		return strs, nil
	}

	var entries []walletEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unrecognized wallet list shape: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Address)
	}
	return out, nil
}

// isValidWallet checks that the address decodes to a 32-byte ed25519
// point on the curve. System wallets are always on-curve; PDAs are not
// and cannot sign, so they never belong on a watch list.
func isValidWallet(address string) bool {
	point, err := base58.Decode(address)
	if err != nil || len(point) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(point)
	return err == nil
}
