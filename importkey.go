package ore

import (
	"context"
	"crypto/ed25519"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
)

// ImportStep is the key import flow's position. The flow starts at
// Loading while the active keypair's balance is fetched, then routes
// to Warning (funds at risk, acknowledgment required) or straight to
// Import (nothing to lose). Error is entered when the balance cannot
// be determined, so the user is never silently shown nothing.
type ImportStep int

const (
	// ImportStepLoading means the active key's balance is still unknown.
	ImportStepLoading ImportStep = iota
	// ImportStepWarning means the active key holds funds; the user must
	// acknowledge the loss before importing over it.
	ImportStepWarning
	// ImportStepImport is the paste-and-validate screen.
	ImportStepImport
	// ImportStepError means the balance check failed; importing blind
	// over a possibly funded key is not offered.
	ImportStepError
)

func (s ImportStep) String() string {
	switch s {
	case ImportStepLoading:
		return "loading"
	case ImportStepWarning:
		return "warning"
	case ImportStepImport:
		return "import"
	case ImportStepError:
		return "error"
	default:
		return "unknown"
	}
}

// Field-level validation messages shown under the key input.
const (
	MsgInvalidFormat = "Invalid format"
	MsgInvalidLength = "Invalid length"
)

// KeyValidation is the outcome of validating pasted key text.
//
// Empty input is "empty", not "invalid": no message is shown and the
// import action stays disabled. Only Valid enables the import action.
type KeyValidation struct {
	// Key holds the parsed keypair when Valid.
	Key solana.PrivateKey
	// Valid means all checks passed and the import action may be enabled.
	Valid bool
	// Empty means the decoded input was zero length.
	Empty bool
	// ErrMsg is the field-level message ("Invalid format",
	// "Invalid length"), empty when the input is empty or valid.
	ErrMsg string
}

// ValidateKeyInput checks pasted key text without touching the
// network: base58 decode, exact keypair length, then keypair
// consistency (the embedded public key must match the one the secret
// half derives).
func ValidateKeyInput(text string) KeyValidation {
	if text == "" {
		return KeyValidation{Empty: true}
	}
	raw, err := base58.Decode(text)
	if err != nil {
		return KeyValidation{ErrMsg: MsgInvalidFormat}
	}
	if len(raw) == 0 {
		return KeyValidation{Empty: true}
	}
	if len(raw) != KeyLength {
		return KeyValidation{ErrMsg: MsgInvalidLength}
	}

	// The stored public half must be the one the seed derives; a raw
	// ed25519.PrivateKey would just echo whatever bytes are there.
	derived := ed25519.NewKeyFromSeed(raw[:32]).Public().(ed25519.PublicKey)
	if !solana.PublicKeyFromBytes(derived).Equals(solana.PublicKeyFromBytes(raw[32:])) {
		// Right length, not a keypair. The field shows no message but
		// the import action stays disabled.
		return KeyValidation{}
	}
	return KeyValidation{Key: solana.PrivateKey(raw), Valid: true}
}

// KeyImport gates the destructive "replace active keypair" action
// behind a balance check on the active key, validates pasted key
// material on every input change, and fetches the candidate key's
// balance once per distinct valid input.
type KeyImport struct {
	mu      sync.Mutex
	gateway Gateway
	store   KeyStore
	current solana.PublicKey
	log     zerolog.Logger

	step           ImportStep
	currentBalance uint64

	input          string
	validation     KeyValidation
	lastValidInput string

	balance        AsyncResult[uint64]
	balanceVisible bool
	balanceRun     uint64

	closed bool
}

// ImportOption configures a KeyImport.
type ImportOption func(*KeyImport)

// WithImportLogger sets the flow logger.
func WithImportLogger(log zerolog.Logger) ImportOption {
	return func(k *KeyImport) { k.log = log }
}

// NewKeyImport creates the flow at Loading for the given active key.
func NewKeyImport(gateway Gateway, store KeyStore, current solana.PublicKey, opts ...ImportOption) *KeyImport {
	k := &KeyImport{
		gateway: gateway,
		store:   store,
		current: current,
		log:     zerolog.Nop(),
		step:    ImportStepLoading,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Begin fetches the active key's balance and routes the flow out of
// Loading: positive balance to Warning, zero to Import, fetch failure
// to Error. Begin returns before the fetch resolves.
func (k *KeyImport) Begin(ctx context.Context) {
	go func() {
		balance, err := k.gateway.GetBalance(ctx, k.current)

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.closed || k.step != ImportStepLoading {
			return
		}
		if err != nil {
			k.log.Error().Err(err).Stringer("account", k.current).Msg("active key balance check failed")
			k.step = ImportStepError
			return
		}
		k.currentBalance = balance
		if balance > 0 {
			k.step = ImportStepWarning
		} else {
			k.step = ImportStepImport
		}
	}()
}

// Step returns the flow's current position.
func (k *KeyImport) Step() ImportStep {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.step
}

// CurrentBalance returns the active key's lamport balance once the
// flow left Loading.
func (k *KeyImport) CurrentBalance() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.currentBalance
}

// Acknowledge records that the user accepted losing access to the
// active key's funds and moves the flow from Warning to Import.
func (k *KeyImport) Acknowledge() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.step != ImportStepWarning {
		return NewAppError(ErrCodeImportStep, "acknowledge is only valid from warning", map[string]interface{}{
			"step": k.step.String(),
		})
	}
	k.step = ImportStepImport
	return nil
}

// SetInput revalidates the pasted key text. A pass through all checks
// enables the import action and issues one balance query for the
// derived public key per distinct valid input; any failed check
// disables the action and clears the stale balance display.
func (k *KeyImport) SetInput(ctx context.Context, text string) {
	k.mu.Lock()
	k.input = text
	k.validation = ValidateKeyInput(text)

	if !k.validation.Valid {
		k.balanceVisible = false
		k.balanceRun++ // drop any in-flight fetch
		k.lastValidInput = ""
		k.mu.Unlock()
		return
	}

	if text == k.lastValidInput {
		k.mu.Unlock()
		return
	}
	k.lastValidInput = text
	k.balanceRun++
	run := k.balanceRun
	k.balance = Loading[uint64]()
	k.balanceVisible = true
	pubkey := k.validation.Key.PublicKey()
	k.mu.Unlock()

	go func() {
		balance, err := k.gateway.GetBalance(ctx, pubkey)

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.closed || k.balanceRun != run {
			return
		}
		if err != nil {
			k.balance = Errored[uint64](err)
			return
		}
		k.balance = Ok(balance)
	}()
}

// Validation returns the outcome for the current input.
func (k *KeyImport) Validation() KeyValidation {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.validation
}

// CanImport reports whether the destructive import action is enabled.
func (k *KeyImport) CanImport() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.step == ImportStepImport && k.validation.Valid
}

// Balance returns the candidate key's balance result and whether it
// should be displayed at all.
func (k *KeyImport) Balance() (AsyncResult[uint64], bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.balance, k.balanceVisible
}

// Commit replaces the persisted keypair with the validated input.
// Valid only while the import action is enabled.
func (k *KeyImport) Commit() error {
	k.mu.Lock()
	if k.step != ImportStepImport || !k.validation.Valid {
		k.mu.Unlock()
		return NewAppError(ErrCodeImportDisabled, "import is not enabled for the current input", nil)
	}
	input := k.input
	k.mu.Unlock()

	if err := k.store.Save(input); err != nil {
		return NewAppError(ErrCodeGateway, "failed to persist keypair", map[string]interface{}{
			"cause": err.Error(),
		})
	}
	k.log.Info().Msg("active keypair replaced")
	return nil
}

// Close detaches the flow; late balance fetches become no-ops.
func (k *KeyImport) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
}
