// Package signer provides a WalletBridge backed by a locally held
// keypair, plus file-based keypair persistence. It is the signing path
// the server binary uses; a browser extension bridge satisfies the
// same interface in hosted deployments.
package signer

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	ore "github.com/Milo123459/ore-app"
)

// SendTransactionFunc submits a fully signed transaction and returns
// its signature. Split out so tests can run the bridge without a
// network.
type SendTransactionFunc func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

// LocalBridge implements ore.WalletBridge with an in-process private
// key: it signs transactions itself and submits them through the RPC
// node instead of deferring to an injected wallet extension.
type LocalBridge struct {
	key  solana.PrivateKey
	send SendTransactionFunc
	ping func(ctx context.Context) error
	log  zerolog.Logger
}

// BridgeOption configures a LocalBridge.
type BridgeOption func(*LocalBridge)

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(log zerolog.Logger) BridgeOption {
	return func(b *LocalBridge) { b.log = log }
}

// WithSendFunc overrides transaction submission.
func WithSendFunc(send SendTransactionFunc) BridgeOption {
	return func(b *LocalBridge) { b.send = send }
}

// WithPingFunc overrides the mount-time node health check.
func WithPingFunc(ping func(ctx context.Context) error) BridgeOption {
	return func(b *LocalBridge) { b.ping = ping }
}

// New creates a bridge signing with the given key and submitting
// through the given RPC endpoint.
func New(key solana.PrivateKey, endpoint string, opts ...BridgeOption) (*LocalBridge, error) {
	if len(key) != ore.KeyLength {
		return nil, fmt.Errorf("invalid private key length %d", len(key))
	}

	client := rpc.New(endpoint)
	b := &LocalBridge{
		key: key,
		log: zerolog.Nop(),
		send: func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
			return client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
				PreflightCommitment: rpc.CommitmentConfirmed,
			})
		},
		ping: func(ctx context.Context) error {
			_, err := client.GetHealth(ctx)
			return err
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

var _ ore.WalletBridge = (*LocalBridge)(nil)

// PublicKey returns the signing key's public half.
func (b *LocalBridge) PublicKey() solana.PublicKey {
	return b.key.PublicKey()
}

// Mount checks the RPC node is reachable. Called once by the core.
func (b *LocalBridge) Mount(ctx context.Context) error {
	if err := b.ping(ctx); err != nil {
		return fmt.Errorf("rpc node unavailable: %w", err)
	}
	b.log.Debug().Msg("wallet bridge mounted")
	return nil
}

// SignAndSend signs the transaction with the local key and submits it.
func (b *LocalBridge) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(b.key.PublicKey()) {
			return &b.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := b.send(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}
