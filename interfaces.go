package ore

import (
	"context"

	solana "github.com/gagliardetto/solana-go"
)

// WalletBridge is the externally injected signing capability. The core
// treats it as opaque: transactions are handed over fully constructed
// (fee payer set, instructions finalized) and never inspected or
// mutated on the way through.
type WalletBridge interface {
	// Mount prepares the bridge for use. The core calls it exactly once,
	// before the first invocation, and does not retry on failure.
	Mount(ctx context.Context) error

	// SignAndSend signs the transaction and submits it to the network,
	// returning the confirmed transaction signature.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Gateway is the RPC facade the flows submit claims through and query
// chain state from. Implementations are stateless per call and safe
// for shared use across flows.
type Gateway interface {
	// Claim submits a claim for the given smallest-unit amount and
	// returns the transaction signature once accepted.
	Claim(ctx context.Context, amount uint64) (solana.Signature, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// GetTokenBalance returns the smallest-unit ORE balance held by an
	// owner's associated token account.
	GetTokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)

	// GetProof returns the miner's on-chain proof account.
	GetProof(ctx context.Context, authority solana.PublicKey) (Proof, error)
}

// KeyStore persists the active keypair across sessions. The import
// flow writes through it when the user commits a replacement key.
type KeyStore interface {
	Save(privateKeyBase58 string) error
	Load() (string, error)
}

// Refresher restarts a dependent async query. Both Query[T] and any
// external data producer the claim flow needs to invalidate satisfy it.
type Refresher interface {
	Restart(ctx context.Context)
}
