package ore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClaimStep is the claim wizard's position.
//
// Transitions are user-driven (Edit -> Confirm via EnterConfirm,
// Confirm -> Edit via Back) except Confirm -> Done, which only a
// successful claim submission drives.
type ClaimStep int

const (
	// ClaimStepEdit is the amount-entry screen.
	ClaimStepEdit ClaimStep = iota
	// ClaimStepConfirm is the review screen holding the staged amount.
	ClaimStepConfirm
	// ClaimStepDone is terminal; the claim landed on chain.
	ClaimStepDone
)

func (s ClaimStep) String() string {
	switch s {
	case ClaimStepEdit:
		return "edit"
	case ClaimStepConfirm:
		return "confirm"
	case ClaimStepDone:
		return "done"
	default:
		return "unknown"
	}
}

// StepObserver is notified on every claim step transition.
type StepObserver func(step ClaimStep)

// ClaimSession coordinates the three-step claim wizard and the
// submission of the staged amount through the gateway. One session is
// owned by one hosting page and destroyed with it; the busy flag is
// kept apart from the step so the confirm screen can disable its
// button without discarding where the wizard stands.
type ClaimSession struct {
	mu      sync.Mutex
	id      uuid.UUID
	gateway Gateway
	log     zerolog.Logger

	step    ClaimStep
	amount  uint64
	busy    bool
	lastErr error

	proof        Refresher
	tokenBalance Refresher
	observers    []StepObserver
	closed       bool
}

// ClaimOption configures a ClaimSession.
type ClaimOption func(*ClaimSession)

// WithProofRefresher wires the dependent proof query; it is restarted
// after every successful claim.
func WithProofRefresher(r Refresher) ClaimOption {
	return func(s *ClaimSession) { s.proof = r }
}

// WithTokenBalanceRefresher wires the dependent token balance query,
// restarted alongside the proof after a successful claim.
func WithTokenBalanceRefresher(r Refresher) ClaimOption {
	return func(s *ClaimSession) { s.tokenBalance = r }
}

// WithStepObserver registers a step observer at creation time.
func WithStepObserver(fn StepObserver) ClaimOption {
	return func(s *ClaimSession) { s.observers = append(s.observers, fn) }
}

// WithClaimLogger sets the session logger.
func WithClaimLogger(log zerolog.Logger) ClaimOption {
	return func(s *ClaimSession) { s.log = log }
}

// NewClaimSession creates a session at the Edit step.
func NewClaimSession(gateway Gateway, opts ...ClaimOption) *ClaimSession {
	s := &ClaimSession{
		id:      uuid.New(),
		gateway: gateway,
		log:     zerolog.Nop(),
		step:    ClaimStepEdit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("claim_session", s.id.String()).Logger()
	return s
}

// ID returns the session identifier.
func (s *ClaimSession) ID() uuid.UUID { return s.id }

// Step returns the wizard's current position.
func (s *ClaimSession) Step() ClaimStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Amount returns the staged smallest-unit amount.
func (s *ClaimSession) Amount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amount
}

// Busy reports whether a submission is in flight.
func (s *ClaimSession) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Err returns the failure behind the most recent submit attempt, or
// nil. It is cleared when a new submission starts.
func (s *ClaimSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DisplayAmount returns the staged amount in display units.
func (s *ClaimSession) DisplayAmount() float64 {
	return AmountToUI(s.Amount(), TokenDecimals)
}

// EnterConfirm stages a positive smallest-unit amount and moves the
// wizard from Edit to Confirm. The amount is immutable until Back
// returns the wizard to Edit.
func (s *ClaimSession) EnterConfirm(amount uint64) error {
	s.mu.Lock()
	if s.step != ClaimStepEdit {
		step := s.step
		s.mu.Unlock()
		return NewAppError(ErrCodeClaimStep, "confirm is only reachable from edit", map[string]interface{}{
			"step": step.String(),
		})
	}
	if amount == 0 {
		s.mu.Unlock()
		return NewAppError(ErrCodeInvalidAmount, "claim amount must be positive", nil)
	}
	s.amount = amount
	s.step = ClaimStepConfirm
	observers, step := s.snapshotLocked()
	s.mu.Unlock()

	notifyStep(observers, step)
	return nil
}

// Back returns the wizard from Confirm to Edit. The staged amount is
// not discarded; it becomes editable again. Rejected while a
// submission is in flight.
func (s *ClaimSession) Back() error {
	s.mu.Lock()
	if s.step != ClaimStepConfirm {
		step := s.step
		s.mu.Unlock()
		return NewAppError(ErrCodeClaimStep, "back is only valid from confirm", map[string]interface{}{
			"step": step.String(),
		})
	}
	if s.busy {
		s.mu.Unlock()
		return NewAppError(ErrCodeClaimBusy, "claim submission in progress", nil)
	}
	s.step = ClaimStepEdit
	observers, step := s.snapshotLocked()
	s.mu.Unlock()

	notifyStep(observers, step)
	return nil
}

// Submit sends the staged claim through the gateway. Valid only from
// Confirm with no submission already in flight. The busy flag is set
// before Submit returns; the gateway call resolves in the background.
//
// On success the busy flag clears, the dependent proof and token
// balance queries restart, and the wizard moves to Done. On failure
// the busy flag clears, the wizard stays at Confirm, and the error is
// logged and retained for display; the user retries via Submit.
func (s *ClaimSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.step != ClaimStepConfirm {
		step := s.step
		s.mu.Unlock()
		return NewAppError(ErrCodeClaimStep, "submit is only valid from confirm", map[string]interface{}{
			"step": step.String(),
		})
	}
	if s.busy {
		s.mu.Unlock()
		return NewAppError(ErrCodeClaimBusy, "claim submission already in progress", nil)
	}
	s.busy = true
	s.lastErr = nil
	amount := s.amount
	s.mu.Unlock()

	go func() {
		sig, err := s.gateway.Claim(ctx, amount)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.busy = false
		if err != nil {
			s.lastErr = err
			s.mu.Unlock()
			s.log.Error().Err(err).Uint64("amount", amount).Msg("claim submission failed")
			return
		}
		s.step = ClaimStepDone
		observers, step := s.snapshotLocked()
		proof, tokenBalance := s.proof, s.tokenBalance
		s.mu.Unlock()

		s.log.Info().Str("signature", sig.String()).Uint64("amount", amount).Msg("claim confirmed")
		if proof != nil {
			proof.Restart(ctx)
		}
		if tokenBalance != nil {
			tokenBalance.Restart(ctx)
		}
		notifyStep(observers, step)
	}()

	return nil
}

// Close detaches the session from its owner; an in-flight submission
// resolves into nothing.
func (s *ClaimSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *ClaimSession) snapshotLocked() ([]StepObserver, ClaimStep) {
	observers := make([]StepObserver, len(s.observers))
	copy(observers, s.observers)
	return observers, s.step
}

func notifyStep(observers []StepObserver, step ClaimStep) {
	for _, fn := range observers {
		fn(step)
	}
}
