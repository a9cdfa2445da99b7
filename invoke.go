package ore

import (
	"context"
	"sync"

	solana "github.com/gagliardetto/solana-go"
)

// InvocationStatus is the lifecycle of one signing attempt for one
// transaction value.
//
// Valid transitions:
//
//	Start -> Waiting
//	Waiting -> Done | DoneWithError
//	DoneWithError -> Waiting (explicit retry)
//
// Done is terminal: a new transaction requires a fresh invocation.
type InvocationStatus int

const (
	// StatusStart is the initial state; signing has not been triggered.
	StatusStart InvocationStatus = iota
	// StatusWaiting means the bridge call is in flight.
	StatusWaiting
	// StatusDone means the transaction was signed and accepted.
	StatusDone
	// StatusDoneWithError means the attempt failed; retry is allowed.
	StatusDoneWithError
)

func (s InvocationStatus) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusWaiting:
		return "waiting"
	case StatusDone:
		return "done"
	case StatusDoneWithError:
		return "done_with_error"
	default:
		return "unknown"
	}
}

// StatusObserver is notified on every status transition. It replaces
// the reactive re-render the original UI relied on: the hosting view
// subscribes and redraws off the pushed status.
type StatusObserver func(status InvocationStatus)

// SignatureInvocation drives exactly one signing/submission attempt of
// a transaction through the wallet bridge. It owns the status value,
// performs exactly one bridge call per Invoke, and supports manual
// retry after failure. Retry is never implicit; there is no backoff.
//
// Re-entrant invocation is rejected by the machine itself rather than
// left to caller-side button gating: Invoke while Waiting returns an
// invoke_in_progress error, and Invoke after Done returns
// invoke_completed.
type SignatureInvocation struct {
	mu     sync.Mutex
	bridge WalletBridge

	status    InvocationStatus
	signature solana.Signature
	lastErr   error
	observers []StatusObserver
	closed    bool

	mountOnce sync.Once
	mountErr  error
}

// InvocationOption configures a SignatureInvocation.
type InvocationOption func(*SignatureInvocation)

// WithStatusObserver registers an observer at creation time.
func WithStatusObserver(fn StatusObserver) InvocationOption {
	return func(i *SignatureInvocation) {
		i.observers = append(i.observers, fn)
	}
}

// NewSignatureInvocation creates a machine in the Start state bound to
// the given bridge.
func NewSignatureInvocation(bridge WalletBridge, opts ...InvocationOption) *SignatureInvocation {
	i := &SignatureInvocation{
		bridge: bridge,
		status: StatusStart,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Status returns the current status.
func (i *SignatureInvocation) Status() InvocationStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Signature returns the confirmed signature and true once the machine
// reached Done.
func (i *SignatureInvocation) Signature() (solana.Signature, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.signature, i.status == StatusDone
}

// Err returns the failure behind the most recent DoneWithError, or nil.
func (i *SignatureInvocation) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Subscribe registers an observer for status transitions.
func (i *SignatureInvocation) Subscribe(fn StatusObserver) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.observers = append(i.observers, fn)
}

// Invoke starts (or retries) the signing attempt. The status flips to
// Waiting before Invoke returns; the bridge call itself proceeds in
// the background and resolves to Done or DoneWithError.
//
// The transaction must be fully constructed (fee payer set,
// instructions finalized); the machine forwards it untouched.
//
// Returns an error without any bridge call when the machine is already
// Waiting, already Done, closed, or the one-time bridge mount failed.
func (i *SignatureInvocation) Invoke(ctx context.Context, tx *solana.Transaction) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return NewAppError(ErrCodeInvokeClosed, "invocation context is closed", nil)
	}
	switch i.status {
	case StatusWaiting:
		i.mu.Unlock()
		return NewAppError(ErrCodeInvokeInProgress, "a signing attempt is already in progress", nil)
	case StatusDone:
		i.mu.Unlock()
		return NewAppError(ErrCodeInvokeCompleted, "invocation already completed; build a new transaction", nil)
	}
	i.mu.Unlock()

	// Mount the bridge exactly once. A mount failure is sticky: the
	// machine never retries mounting.
	i.mountOnce.Do(func() {
		i.mountErr = i.bridge.Mount(ctx)
	})
	if i.mountErr != nil {
		return NewAppError(ErrCodeBridgeUnmounted, "wallet bridge is not available", map[string]interface{}{
			"cause": i.mountErr.Error(),
		})
	}

	i.mu.Lock()
	// Re-check under lock: a concurrent Invoke may have won the race
	// while the mount ran.
	if i.closed || i.status == StatusWaiting || i.status == StatusDone {
		i.mu.Unlock()
		return NewAppError(ErrCodeInvokeInProgress, "a signing attempt is already in progress", nil)
	}
	i.status = StatusWaiting
	i.lastErr = nil
	observers, status := i.snapshotLocked()
	i.mu.Unlock()

	notify(observers, status)

	go func() {
		sig, err := i.bridge.SignAndSend(ctx, tx)

		i.mu.Lock()
		if i.closed {
			// Owner tore the UI down mid-flight; drop the outcome.
			i.mu.Unlock()
			return
		}
		if err != nil {
			i.status = StatusDoneWithError
			i.lastErr = err
		} else {
			i.status = StatusDone
			i.signature = sig
		}
		observers, status := i.snapshotLocked()
		i.mu.Unlock()

		notify(observers, status)
	}()

	return nil
}

// Close detaches the machine from its owner. A bridge call still in
// flight resolves into nothing; subsequent Invoke calls fail with
// invoke_closed.
func (i *SignatureInvocation) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
}

func (i *SignatureInvocation) snapshotLocked() ([]StatusObserver, InvocationStatus) {
	observers := make([]StatusObserver, len(i.observers))
	copy(observers, i.observers)
	return observers, i.status
}

func notify(observers []StatusObserver, status InvocationStatus) {
	for _, fn := range observers {
		fn(status)
	}
}
