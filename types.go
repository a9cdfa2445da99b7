package ore

import (
	solana "github.com/gagliardetto/solana-go"
)

// Proof is the miner's on-chain proof account. ClaimableRewards is the
// smallest-unit balance accrued by mining and not yet claimed; it is
// the amount the claim flow draws against. Field order matches the
// on-chain borsh layout.
type Proof struct {
	Authority        solana.PublicKey
	ClaimableRewards uint64
	TotalHashes      uint64
	TotalRewards     uint64
	LastClaimAt      int64
}

// Balances is the pair of balances the UI header displays.
type Balances struct {
	Lamports uint64 `json:"lamports"`
	Ore      uint64 `json:"ore"`
}
