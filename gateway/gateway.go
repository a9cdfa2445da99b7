// Package gateway implements the RPC-backed Gateway the flows submit
// claims through and query chain state from. It owns the on-chain
// addresses and instruction encoding; signing and submission go
// through the wallet bridge it was built with.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	ore "github.com/Milo123459/ore-app"
)

// Program and mint addresses for the ORE program.
var (
	ProgramID = solana.MustPublicKeyFromBase58("mineRHF5r6S7HyD9SppBfVMXMavDkJsxwGesEvxZr2A")
	MintID    = solana.MustPublicKeyFromBase58("oreoN2tQbHXVaZsr3pf66A48miqcBXCDJozganhEJgz")
)

// PDA seeds.
var (
	proofSeed    = []byte("proof")
	treasurySeed = []byte("treasury")
)

// claimInstructionTag is the program's instruction discriminant for claim.
const claimInstructionTag uint8 = 2

type claimArgs struct {
	Tag    uint8
	Amount uint64
}

// Client is the RPC-backed Gateway bound to one miner authority.
type Client struct {
	rpc       *rpc.Client
	bridge    ore.WalletBridge
	authority solana.PublicKey
	log       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the gateway logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a gateway against the given RPC endpoint. The bridge
// signs and submits the transactions the gateway builds; the authority
// is the miner keypair's public key and pays the fees.
func New(endpoint string, authority solana.PublicKey, bridge ore.WalletBridge, opts ...Option) *Client {
	c := &Client{
		rpc:       rpc.New(endpoint),
		bridge:    bridge,
		authority: authority,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ore.Gateway = (*Client)(nil)

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", account, err)
	}
	return out.Value, nil
}

// GetTokenBalance returns the smallest-unit ORE balance held by the
// owner's associated token account. Owners without a token account
// have a zero balance.
func (c *Client) GetTokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	tokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, MintID)
	if err != nil {
		return 0, fmt.Errorf("failed to derive token account for %s: %w", owner, err)
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		// An owner that never held ORE has no token account.
		return 0, nil
	}
	if out.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// GetProof returns the miner's on-chain proof account.
func (c *Client) GetProof(ctx context.Context, authority solana.PublicKey) (ore.Proof, error) {
	address, _, err := solana.FindProgramAddress([][]byte{proofSeed, authority.Bytes()}, ProgramID)
	if err != nil {
		return ore.Proof{}, fmt.Errorf("failed to derive proof address: %w", err)
	}

	out, err := c.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return ore.Proof{}, fmt.Errorf("failed to fetch proof account %s: %w", address, err)
	}
	if out.Value == nil {
		return ore.Proof{}, fmt.Errorf("proof account %s does not exist; has this miner registered?", address)
	}

	proof, err := DecodeProof(out.Value.Data.GetBinary())
	if err != nil {
		return ore.Proof{}, fmt.Errorf("failed to decode proof account %s: %w", address, err)
	}
	return proof, nil
}

// DecodeProof decodes a proof account's borsh data.
func DecodeProof(data []byte) (ore.Proof, error) {
	var proof ore.Proof
	if err := bin.NewBorshDecoder(data).Decode(&proof); err != nil {
		return ore.Proof{}, err
	}
	return proof, nil
}

// Claim builds the claim transaction for the given smallest-unit
// amount and hands it to the wallet bridge for signing and submission.
// The claimed tokens land in the authority's associated token account.
func (c *Client) Claim(ctx context.Context, amount uint64) (solana.Signature, error) {
	tx, err := c.BuildClaimTransaction(ctx, amount)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.bridge.SignAndSend(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("claim submission failed: %w", err)
	}
	c.log.Info().Str("signature", sig.String()).Uint64("amount", amount).Msg("claim submitted")
	return sig, nil
}

// BuildClaimTransaction constructs the unsigned claim transaction:
// fee payer set, instruction finalized, ready for the wallet bridge.
func (c *Client) BuildClaimTransaction(ctx context.Context, amount uint64) (*solana.Transaction, error) {
	ix, err := c.claimInstruction(amount)
	if err != nil {
		return nil, err
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.authority),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build claim transaction: %w", err)
	}
	return tx, nil
}

func (c *Client) claimInstruction(amount uint64) (solana.Instruction, error) {
	beneficiary, _, err := solana.FindAssociatedTokenAddress(c.authority, MintID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive beneficiary token account: %w", err)
	}
	proofAddress, _, err := solana.FindProgramAddress([][]byte{proofSeed, c.authority.Bytes()}, ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive proof address: %w", err)
	}
	treasury, _, err := solana.FindProgramAddress([][]byte{treasurySeed}, ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive treasury address: %w", err)
	}
	treasuryTokens, _, err := solana.FindAssociatedTokenAddress(treasury, MintID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive treasury token account: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(claimArgs{
		Tag:    claimInstructionTag,
		Amount: amount,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode claim args: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(c.authority).WRITE().SIGNER(),
		solana.Meta(beneficiary).WRITE(),
		solana.Meta(proofAddress).WRITE(),
		solana.Meta(treasury),
		solana.Meta(treasuryTokens).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}

	return solana.NewInstruction(ProgramID, accounts, buf.Bytes()), nil
}
